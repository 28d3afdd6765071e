// Package order implements the food-delivery order saga: charge the
// customer, wait for pickup and delivery signals under deadlines, follow up
// after delivery, and refund with notification on any abort path.
package order

import (
	"fmt"
	"sync"
	"time"

	"github.com/dishpatch/dishpatch/pkg/catalog"
	"github.com/dishpatch/dishpatch/pkg/engine"
	"github.com/dishpatch/dishpatch/pkg/signal"
	"github.com/dishpatch/dishpatch/pkg/storage"
)

const (
	// ResultCompleted is the outcome string of the happy path.
	ResultCompleted = "Order completed successfully"

	reasonNotPickedUp  = "Not picked up in time."
	reasonNotDelivered = "Not delivered in time."

	notePickedUp  = "Order picked up"
	noteDelivered = "Order delivered!"
	noteRate      = "Please rate your delivery experience!"
	noteFeedback  = "Please provide your feedback to improve our service!"
	noteRefunded  = " Your payment has been refunded"
)

// Timings bundles the saga's wait windows. Each deadline is measured from
// entry into the wait state, never from saga start.
type Timings struct {
	// PickupWindow bounds the wait for a pickup signal after payment.
	PickupWindow time.Duration
	// DeliveryWindow bounds the wait for a delivery signal after pickup.
	DeliveryWindow time.Duration
	// ChargeGrace is how long a failed charge lingers for an external
	// cancel before the saga aborts on its own.
	ChargeGrace time.Duration
	// FeedbackDelay is the pause before the post-terminal courtesy
	// notification.
	FeedbackDelay time.Duration
}

// DefaultTimings returns the production wait windows.
func DefaultTimings() Timings {
	return Timings{
		PickupWindow:   time.Minute,
		DeliveryWindow: 3 * time.Minute,
		ChargeGrace:    5 * time.Minute,
		FeedbackDelay:  10 * time.Second,
	}
}

// TransitionObserver is notified after every persisted-worthy state change.
// Implementations must not block; they run on the saga's goroutine.
type TransitionObserver interface {
	OnTransition(sc *engine.Context, from, to State, snapshot *storage.OrderRecord)
}

// Saga is the order state machine for one order. All mutations happen on the
// saga's instance goroutine; the mutex only makes Status readable from other
// goroutines mid-wait.
type Saga struct {
	orderID string
	product catalog.Product
	timings Timings

	observer TransitionObserver

	mu          sync.RWMutex
	state       State
	stateAt     time.Time
	deliveredAt *time.Time
	// freshDelivery is set when the delivery signal lands in this run and
	// cleared once the delivered notification goes out. A saga resumed from
	// a Delivered snapshot starts with it unset.
	freshDelivery bool
	refunded      bool
	result        string
	reason        string
	createdAt     time.Time
}

// SagaOption configures a Saga.
type SagaOption func(*Saga)

// WithObserver sets the transition observer.
func WithObserver(observer TransitionObserver) SagaOption {
	return func(s *Saga) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// NewSaga creates a fresh saga seeded in the Charging state.
func NewSaga(orderID string, product catalog.Product, timings Timings, opts ...SagaOption) *Saga {
	s := &Saga{
		orderID: orderID,
		product: product,
		timings: timings,
		state:   StateCharging,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResumeSaga rebuilds a saga from a persisted snapshot so a restarted
// process can pick up where the crashed one stopped. Wait deadlines continue
// from the snapshot's StateEnteredAt rather than restarting in full.
func ResumeSaga(record *storage.OrderRecord, product catalog.Product, timings Timings, opts ...SagaOption) *Saga {
	s := NewSaga(record.ID, product, timings, opts...)
	s.state = State(record.State)
	s.stateAt = record.StateEnteredAt
	if record.DeliveredAt != nil {
		at := *record.DeliveredAt
		s.deliveredAt = &at
	}
	s.reason = record.FailureReason
	s.refunded = record.Refunded
	s.createdAt = record.CreatedAt
	return s
}

// OrderID returns the order id.
func (s *Saga) OrderID() string { return s.orderID }

// Product returns the ordered product.
func (s *Saga) Product() catalog.Product { return s.product }

// State returns the current state.
func (s *Saga) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Result returns the terminal outcome string, empty until the saga finishes.
func (s *Saga) Result() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Status answers the status query. It is safe to call from any goroutine at
// any point in the saga's life, including mid-wait.
func (s *Saga) Status() StatusView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := StatusView{
		OrderID:   s.orderID,
		ProductID: s.product.ID,
		State:     s.state,
	}
	if s.deliveredAt != nil {
		at := *s.deliveredAt
		view.DeliveredAt = &at
	}
	return view
}

// StatusView is the read-only projection returned by the status query.
type StatusView struct {
	OrderID     string     `json:"order_id"`
	ProductID   int        `json:"product_id"`
	State       State      `json:"state"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// Run executes the saga to a terminal state. Every failure inside the happy
// path routes through compensation; Run never returns an error, the outcome
// is the terminal result string.
func (s *Saga) Run(sc *engine.Context) error {
	if s.createdAt.IsZero() {
		s.mu.Lock()
		s.createdAt = sc.Now()
		s.mu.Unlock()
	}

	err := s.happyPath(sc)
	if err == nil {
		s.setResult(ResultCompleted)
		return nil
	}
	if engine.IsShutdown(err) {
		// The process is going down, not the order. No compensation; the
		// snapshot resumes this saga on the next start.
		return err
	}

	reason := abortReason(err)
	s.compensate(sc, reason)
	s.setResult("Order failed: " + reason)
	return nil
}

// happyPath walks the charge -> pickup -> delivery -> follow-up sequence.
// Each block is guarded by the current state so a resumed saga enters at the
// step it crashed in.
func (s *Saga) happyPath(sc *engine.Context) error {
	if s.State() == StateCharging {
		if _, err := sc.Execute(ActivityChargeCustomer, s.product); err != nil {
			if engine.IsCancelled(err) {
				return err
			}
			// Linger for an external cancel before aborting on our
			// own; either way the abort carries the charge failure.
			s.chargeGrace(sc)
			return &abortError{reason: fmt.Sprintf("Failed to charge customer for %s. %s", s.product.Name, err.Error())}
		}
		s.transition(sc, StatePaid)
	}

	if s.State() == StatePaid {
		pickedUp, err := sc.Await(func() bool { return s.State() == StatePickedUp }, s.remainingWindow(sc, s.timings.PickupWindow))
		if err != nil {
			return err
		}
		if !pickedUp {
			s.transition(sc, StateRefunding)
			return &abortError{reason: reasonNotPickedUp}
		}
		s.notify(sc, notePickedUp)
	}

	if s.State() == StatePickedUp {
		delivered, err := sc.Await(func() bool { return s.State() == StateDelivered }, s.remainingWindow(sc, s.timings.DeliveryWindow))
		if err != nil {
			return err
		}
		if !delivered {
			s.transition(sc, StateRefunding)
			return &abortError{reason: reasonNotDelivered}
		}
	}

	if s.State() == StateDelivered {
		// The delivery signal can land at any suspension point, including
		// while the pickup notification is in flight, so the delivered
		// notification belongs to this block rather than the wait above.
		if s.takeFreshDelivery() {
			s.notify(sc, noteDelivered)
		}
		if err := sc.Sleep(s.remainingWindow(sc, s.timings.FeedbackDelay)); err != nil {
			return err
		}
		s.notify(sc, noteRate)
		s.transition(sc, StateCompleted)
		return nil
	}

	// A saga resumed in Refunding crashed mid-compensation; re-raise the
	// persisted reason so compensation runs again from the top.
	if s.State() == StateRefunding {
		return &abortError{reason: s.abortReasonOrDefault()}
	}

	return nil
}

// HandleSignal applies one external signal. Guards make duplicate or
// out-of-order delivery a no-op instead of an invalid transition.
func (s *Saga) HandleSignal(sc *engine.Context, sig *signal.Signal) {
	switch sig.Kind {
	case signal.KindPickup:
		if s.State() == StatePaid {
			s.transition(sc, StatePickedUp)
		}
	case signal.KindDelivery:
		if s.State() == StatePickedUp {
			s.markDelivered(sig.SentAt)
			s.transition(sc, StateDelivered)
		}
	}
}

// chargeGrace suspends for the post-charge-failure grace period. A cancel
// arriving during the grace is swallowed; the abort reason stays the charge
// failure either way.
func (s *Saga) chargeGrace(sc *engine.Context) {
	if _, err := sc.Await(func() bool { return false }, s.timings.ChargeGrace); err != nil && !engine.IsCancelled(err) {
		sc.Logger().Warn("charge grace wait failed", "order_id", s.orderID, "error", err)
	}
}

// remainingWindow returns how much of a wait window is left given when the
// current state was entered. A fresh transition gets the full window; a
// resumed saga gets only the unexpired remainder.
func (s *Saga) remainingWindow(sc *engine.Context, full time.Duration) time.Duration {
	s.mu.RLock()
	entered := s.stateAt
	s.mu.RUnlock()

	if entered.IsZero() {
		return full
	}
	elapsed := sc.Now().Sub(entered)
	if elapsed >= full {
		return 0
	}
	return full - elapsed
}

func (s *Saga) transition(sc *engine.Context, to State) {
	s.mu.Lock()
	from := s.state
	if err := validateTransition(from, to); err != nil {
		s.mu.Unlock()
		sc.Logger().Error("rejected order transition", "order_id", s.orderID, "error", err)
		return
	}
	if from == to {
		s.mu.Unlock()
		return
	}
	s.state = to
	s.stateAt = sc.Now()
	snapshot := s.snapshotLocked(sc.Now())
	s.mu.Unlock()

	sc.Record(storage.HistoryEventStateChanged, fmt.Sprintf("%s -> %s", from, to))
	if s.observer != nil {
		s.observer.OnTransition(sc, from, to, snapshot)
	}
}

func (s *Saga) markDelivered(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := at.UTC()
	s.deliveredAt = &t
	s.freshDelivery = true
}

// takeFreshDelivery reports whether a delivery signal landed in this run and
// consumes the flag so the delivered notification is sent once.
func (s *Saga) takeFreshDelivery() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := s.freshDelivery
	s.freshDelivery = false
	return fresh
}

func (s *Saga) markRefunded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refunded = true
}

func (s *Saga) setResult(result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
}

func (s *Saga) setReason(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reason = reason
}

func (s *Saga) abortReasonOrDefault() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reason != "" {
		return s.reason
	}
	return "Order aborted."
}

// Snapshot builds a persistable record of the saga's current state.
func (s *Saga) Snapshot(now time.Time) *storage.OrderRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(now)
}

func (s *Saga) snapshotLocked(now time.Time) *storage.OrderRecord {
	record := &storage.OrderRecord{
		ID:             s.orderID,
		ProductID:      s.product.ID,
		ProductName:    s.product.Name,
		PriceAmount:    s.product.Price,
		State:          string(s.state),
		StateEnteredAt: s.stateAt,
		Result:         s.result,
		FailureReason:  s.reason,
		Refunded:       s.refunded,
		CreatedAt:      s.createdAt,
		UpdatedAt:      now,
	}
	if s.deliveredAt != nil {
		at := *s.deliveredAt
		record.DeliveredAt = &at
	}
	if s.state.IsTerminal() {
		t := now
		record.CompletedAt = &t
	}
	return record
}

// abortError carries an abort reason raised by the saga itself (timeouts,
// charge failure) as opposed to an external cancellation.
type abortError struct {
	reason string
}

func (e *abortError) Error() string { return e.reason }

func abortReason(err error) string {
	if cancelled, ok := err.(*engine.CancelledError); ok {
		return cancelled.Reason
	}
	if abort, ok := err.(*abortError); ok {
		return abort.reason
	}
	return err.Error()
}
