// Package storage provides the durable persistence layer for order sagas:
// order state snapshots and the append-only history journal replayed after a
// crash.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Storage defines the interface for durable order persistence.
type Storage interface {
	// Order snapshot operations
	SaveOrder(ctx context.Context, order *OrderRecord) error
	GetOrder(ctx context.Context, id string) (*OrderRecord, error)
	ListOrders(ctx context.Context, filter *OrderFilter) ([]*OrderRecord, int, error)
	DeleteOrder(ctx context.Context, id string) error

	// History journal operations
	AppendHistory(ctx context.Context, event HistoryEvent) (uint64, error)
	History(ctx context.Context, orderID string) ([]HistoryEvent, error)

	// Lifecycle
	Close() error
}

// OrderRecord is the persisted snapshot of one order saga. It is written on
// every state transition so a restarted process can resume the saga from the
// last recorded state.
type OrderRecord struct {
	ID          string `json:"id"`
	ProductID   int    `json:"product_id"`
	ProductName string `json:"product_name"`
	PriceAmount int64  `json:"price_amount"`

	State string `json:"state"`
	// StateEnteredAt timestamps entry into State; recovery derives the
	// remaining pickup/delivery window from it.
	StateEnteredAt time.Time  `json:"state_entered_at"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`

	Result        string `json:"result,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
	Refunded      bool   `json:"refunded,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// OrderFilter defines filtering options for listing orders.
type OrderFilter struct {
	States []string `json:"states,omitempty"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

// HistoryEventType identifies one recorded saga event.
type HistoryEventType string

const (
	HistoryEventSagaStarted       HistoryEventType = "saga_started"
	HistoryEventSagaCompleted     HistoryEventType = "saga_completed"
	HistoryEventStateChanged      HistoryEventType = "state_changed"
	HistoryEventSignalReceived    HistoryEventType = "signal_received"
	HistoryEventTimerFired        HistoryEventType = "timer_fired"
	HistoryEventActivityStarted   HistoryEventType = "activity_started"
	HistoryEventActivityCompleted HistoryEventType = "activity_completed"
	HistoryEventActivityFailed    HistoryEventType = "activity_failed"
	HistoryEventCancelRequested   HistoryEventType = "cancel_requested"
)

// HistoryEvent is one durable journal record for an order saga.
type HistoryEvent struct {
	Sequence  uint64           `json:"sequence"`
	OrderID   string           `json:"order_id"`
	Type      HistoryEventType `json:"type"`
	Detail    string           `json:"detail,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NotFoundError indicates that the requested entity was not found.
type NotFoundError struct {
	EntityType string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.EntityType, e.ID)
}

// StorageUnavailableError indicates that the storage backend is unavailable.
type StorageUnavailableError struct {
	Cause error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Cause)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Cause }

// SerializationError indicates a failure serializing or deserializing data.
type SerializationError struct {
	Operation string
	Cause     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error during %s: %v", e.Operation, e.Cause)
}

func (e *SerializationError) Unwrap() error { return e.Cause }
