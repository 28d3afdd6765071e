package order

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dishpatch/dishpatch/pkg/catalog"
	"github.com/dishpatch/dishpatch/pkg/engine"
	"github.com/dishpatch/dishpatch/pkg/logger"
	"github.com/dishpatch/dishpatch/pkg/signal"
	"github.com/dishpatch/dishpatch/pkg/storage"
)

// EventBroadcaster receives order state changes for fan-out to external
// subscribers (websocket clients). Implementations must not block.
type EventBroadcaster interface {
	BroadcastOrderState(orderID string, from, to State, view StatusView)
}

// MetricsRecorder receives order lifecycle metrics.
type MetricsRecorder interface {
	RecordOrderStarted(productName string)
	RecordOrderOutcome(outcome string)
	RecordStateTransition(from, to string)
}

type nopEvents struct{}

func (nopEvents) BroadcastOrderState(string, State, State, StatusView) {}

type nopMetrics struct{}

func (nopMetrics) RecordOrderStarted(string)            {}
func (nopMetrics) RecordOrderOutcome(string)            {}
func (nopMetrics) RecordStateTransition(string, string) {}

// Service starts order sagas and answers signals and queries for them. It
// owns the persistence of order snapshots across transitions.
type Service struct {
	engine  *engine.Engine
	store   storage.Storage
	bus     signal.Bus
	timings Timings
	log     logger.Logger
	events  EventBroadcaster
	metrics MetricsRecorder

	mu    sync.RWMutex
	sagas map[string]*Saga
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithEventBroadcaster sets the state-change broadcaster.
func WithEventBroadcaster(events EventBroadcaster) ServiceOption {
	return func(s *Service) {
		if events != nil {
			s.events = events
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// NewService creates the order service.
func NewService(eng *engine.Engine, store storage.Storage, bus signal.Bus, timings Timings, log logger.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		engine:  eng,
		store:   store,
		bus:     bus,
		timings: timings,
		log:     log,
		events:  nopEvents{},
		metrics: nopMetrics{},
		sagas:   make(map[string]*Saga),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartOrder looks up the product and launches a saga for it. An unknown
// product id fails here, before any state exists or side effect runs.
func (s *Service) StartOrder(ctx context.Context, productID int) (string, error) {
	product, err := catalog.ByID(productID)
	if err != nil {
		return "", err
	}

	orderID := uuid.New().String()
	saga := NewSaga(orderID, product, s.timings, WithObserver(s))

	now := s.engine.Clock().Now()
	saga.mu.Lock()
	saga.createdAt = now
	saga.stateAt = now
	saga.mu.Unlock()

	if err := s.store.SaveOrder(ctx, saga.Snapshot(now)); err != nil {
		return "", fmt.Errorf("persist initial order: %w", err)
	}

	if err := s.launch(ctx, saga); err != nil {
		return "", err
	}

	s.metrics.RecordOrderStarted(product.Name)
	s.log.Info("order started", "order_id", orderID, "product", product.Name)
	return orderID, nil
}

// launch registers the saga and hands it to the engine, arranging final
// persistence when the instance finishes.
func (s *Service) launch(ctx context.Context, saga *Saga) error {
	s.mu.Lock()
	s.sagas[saga.OrderID()] = saga
	s.mu.Unlock()

	inst, err := s.engine.StartInstance(ctx, saga.OrderID(), saga.Run, saga.HandleSignal)
	if err != nil {
		s.mu.Lock()
		delete(s.sagas, saga.OrderID())
		s.mu.Unlock()
		return err
	}

	go func() {
		<-inst.Done()

		now := s.engine.Clock().Now()
		if err := s.store.SaveOrder(context.Background(), saga.Snapshot(now)); err != nil {
			s.log.Error("persist final order failed", "order_id", saga.OrderID(), "error", err)
		}
		if saga.State().IsTerminal() {
			s.metrics.RecordOrderOutcome(string(saga.State()))
			s.log.Info("order finished", "order_id", saga.OrderID(), "state", saga.State(), "result", saga.Result())
		} else {
			// Shutdown interrupt; the snapshot resumes the order later.
			s.log.Info("order suspended", "order_id", saga.OrderID(), "state", saga.State())
		}

		s.mu.Lock()
		delete(s.sagas, saga.OrderID())
		s.mu.Unlock()
	}()

	return nil
}

// OnTransition implements TransitionObserver: persist the snapshot, count
// the transition and broadcast it.
func (s *Service) OnTransition(sc *engine.Context, from, to State, snapshot *storage.OrderRecord) {
	if err := s.store.SaveOrder(sc.BaseContext(), snapshot); err != nil {
		s.log.Error("persist order snapshot failed", "order_id", snapshot.ID, "error", err)
	}
	s.metrics.RecordStateTransition(string(from), string(to))

	view := StatusView{
		OrderID:     snapshot.ID,
		ProductID:   snapshot.ProductID,
		State:       to,
		DeliveredAt: snapshot.DeliveredAt,
	}
	s.events.BroadcastOrderState(snapshot.ID, from, to, view)
}

// Signal publishes a pickup or delivery signal for an order. Signals are
// fire-and-forget: the saga's own guards decide whether the signal has any
// effect, and signals for finished or unknown orders are accepted and
// dropped.
func (s *Service) Signal(ctx context.Context, orderID string, kind signal.Kind) error {
	if !kind.Valid() || kind == signal.KindCancel {
		return fmt.Errorf("invalid signal kind %q", kind)
	}

	var sig *signal.Signal
	switch kind {
	case signal.KindPickup:
		sig = signal.Pickup(orderID)
	case signal.KindDelivery:
		sig = signal.Delivery(orderID)
	}
	return s.bus.Publish(ctx, sig)
}

// Cancel requests cancellation of a running order saga with a reason.
func (s *Service) Cancel(ctx context.Context, orderID, reason string) error {
	if reason == "" {
		reason = "Order cancelled."
	}
	return s.bus.Publish(ctx, signal.Cancel(orderID, reason))
}

// Status answers the status query for an order. Live sagas answer from
// memory at any point, including mid-wait; finished orders fall back to the
// persisted snapshot.
func (s *Service) Status(ctx context.Context, orderID string) (StatusView, error) {
	s.mu.RLock()
	saga, live := s.sagas[orderID]
	s.mu.RUnlock()

	if live {
		return saga.Status(), nil
	}

	record, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return StatusView{}, err
	}
	return viewFromRecord(record), nil
}

func viewFromRecord(record *storage.OrderRecord) StatusView {
	view := StatusView{
		OrderID:   record.ID,
		ProductID: record.ProductID,
		State:     State(record.State),
	}
	if record.DeliveredAt != nil {
		at := *record.DeliveredAt
		view.DeliveredAt = &at
	}
	return view
}

// List returns persisted order snapshots.
func (s *Service) List(ctx context.Context, filter *storage.OrderFilter) ([]*storage.OrderRecord, int, error) {
	return s.store.ListOrders(ctx, filter)
}

// History returns the journal for one order.
func (s *Service) History(ctx context.Context, orderID string) ([]storage.HistoryEvent, error) {
	return s.store.History(ctx, orderID)
}

// Result returns the terminal outcome string for an order, preferring the
// live saga over the snapshot.
func (s *Service) Result(ctx context.Context, orderID string) (string, error) {
	s.mu.RLock()
	saga, live := s.sagas[orderID]
	s.mu.RUnlock()

	if live {
		return saga.Result(), nil
	}
	record, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	return record.Result, nil
}

// ActiveOrders returns the number of live sagas.
func (s *Service) ActiveOrders() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sagas)
}

// Wait blocks until the saga for orderID finishes or ctx expires. It is a
// convenience for demos and tests; production callers watch the event stream.
func (s *Service) Wait(ctx context.Context, orderID string) error {
	inst, ok := s.engine.GetInstance(orderID)
	if !ok {
		return nil
	}
	select {
	case <-inst.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ TransitionObserver = (*Service)(nil)
