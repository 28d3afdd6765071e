// Package signal provides the Signal Bus delivering external events into
// running order sagas.
//
// Three signal kinds are supported:
//   - Pickup: the driver picked up the order
//   - Delivery: the driver delivered the order
//   - Cancel: an external request to abort the order
package signal

import "time"

// Kind identifies the signal.
type Kind string

const (
	// KindPickup marks the order as picked up by the driver.
	KindPickup Kind = "pickup"
	// KindDelivery marks the order as delivered.
	KindDelivery Kind = "delivery"
	// KindCancel requests cancellation of the order.
	KindCancel Kind = "cancel"
)

// Valid reports whether k is a known signal kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPickup, KindDelivery, KindCancel:
		return true
	default:
		return false
	}
}

// Signal is one message delivered through the Signal Bus.
type Signal struct {
	// Kind is the signal kind.
	Kind Kind `json:"kind"`

	// OrderID is the target order identifier.
	OrderID string `json:"order_id"`

	// Reason is the cancellation reason for Cancel signals.
	Reason string `json:"reason,omitempty"`

	// SentAt is the timestamp when the signal was sent.
	SentAt time.Time `json:"sent_at"`
}

// Pickup builds a pickup signal for the given order.
func Pickup(orderID string) *Signal {
	return &Signal{Kind: KindPickup, OrderID: orderID, SentAt: time.Now().UTC()}
}

// Delivery builds a delivery signal for the given order.
func Delivery(orderID string) *Signal {
	return &Signal{Kind: KindDelivery, OrderID: orderID, SentAt: time.Now().UTC()}
}

// Cancel builds a cancel signal with an operator-facing reason.
func Cancel(orderID, reason string) *Signal {
	return &Signal{Kind: KindCancel, OrderID: orderID, Reason: reason, SentAt: time.Now().UTC()}
}
