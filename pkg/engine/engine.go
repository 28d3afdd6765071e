// Package engine provides the durable execution context that runs order
// sagas: per-instance serialized event processing, clock-driven timers,
// activity invocation with retry policies and history journaling.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dishpatch/dishpatch/pkg/activity"
	"github.com/dishpatch/dishpatch/pkg/logger"
	"github.com/dishpatch/dishpatch/pkg/signal"
	"github.com/dishpatch/dishpatch/pkg/storage"
)

type engineState int32

const (
	stateIdle engineState = iota
	stateRunning
	stateStopped
)

// Engine hosts saga instances. One Engine serves every order; each order
// gets its own Instance with an independent signal subscription.
type Engine struct {
	storage  storage.Storage
	bus      signal.Bus
	executor *activity.Executor
	logger   logger.Logger
	clock    Clock
	metrics  MetricsRecorder

	state     atomic.Int32
	runCtx    context.Context
	runCancel context.CancelFunc

	instMu    sync.RWMutex
	instances map[string]*Instance
	wg        sync.WaitGroup
}

// New creates an engine. The storage backend journals saga history, the bus
// delivers external signals and the executor runs activities.
func New(store storage.Storage, bus signal.Bus, executor *activity.Executor, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		storage:   store,
		bus:       bus,
		executor:  executor,
		logger:    log,
		clock:     NewRealClock(),
		metrics:   &nopMetrics{},
		instances: make(map[string]*Instance),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start moves the engine to the running state.
func (e *Engine) Start(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(stateIdle), int32(stateRunning)) {
		return fmt.Errorf("engine already started")
	}
	e.runCtx, e.runCancel = context.WithCancel(context.Background())
	e.logger.Info("engine started")
	return nil
}

// Stop cancels the run context and waits for live instances to finish, up to
// the caller's deadline.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(stateRunning), int32(stateStopped)) {
		return nil
	}
	e.runCancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine stop timed out: %w", ctx.Err())
	}
}

// StartInstance launches a saga workflow for one order. The workflow runs on
// its own goroutine; signals published to the bus under the order id are
// delivered at its suspension points.
func (e *Engine) StartInstance(ctx context.Context, orderID string, wf Workflow, handler SignalHandler) (*Instance, error) {
	if engineState(e.state.Load()) != stateRunning {
		return nil, &EngineNotRunningError{}
	}

	e.instMu.Lock()
	if _, exists := e.instances[orderID]; exists {
		e.instMu.Unlock()
		return nil, &InstanceExistsError{ID: orderID}
	}

	// Subscribe on the run context, not the caller's. The caller is often an
	// HTTP request whose context dies as soon as the response is written,
	// which would tear down the subscription mid-saga on the Redis transport.
	sigs, err := e.bus.Subscribe(e.runCtx, orderID)
	if err != nil {
		e.instMu.Unlock()
		return nil, fmt.Errorf("subscribe signals for %s: %w", orderID, err)
	}

	inst := &Instance{
		id:      orderID,
		signals: sigs,
		done:    make(chan struct{}),
	}
	e.instances[orderID] = inst
	e.instMu.Unlock()

	e.record(ctx, orderID, storage.HistoryEventSagaStarted, "")
	e.metrics.RecordSagaStarted()
	e.metrics.IncActiveSagas()

	e.wg.Add(1)
	go e.runInstance(inst, wf, handler)

	return inst, nil
}

func (e *Engine) runInstance(inst *Instance, wf Workflow, handler SignalHandler) {
	defer e.wg.Done()

	spanCtx, span := engineTracer().Start(e.runCtx, spanSagaExecute)
	span.SetAttributes(attribute.String("order.id", inst.id))

	sc := &Context{
		eng:     e,
		inst:    inst,
		base:    spanCtx,
		handler: handler,
		sigs:    inst.signals,
	}

	started := e.clock.Now()
	err := wf(sc)
	elapsed := e.clock.Now().Sub(started)

	outcome := "completed"
	if IsShutdown(err) {
		// Not a completion; the saga resumes from its snapshot on restart.
		outcome = "interrupted"
		e.logger.Info("saga interrupted by shutdown", "order_id", inst.id)
	} else if err != nil {
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.record(e.runCtx, inst.id, storage.HistoryEventSagaCompleted, err.Error())
		e.logger.Error("saga finished with error", "order_id", inst.id, "error", err)
	} else {
		e.record(e.runCtx, inst.id, storage.HistoryEventSagaCompleted, "")
		e.logger.Info("saga completed", "order_id", inst.id, "duration", elapsed)
	}
	span.End()

	e.metrics.DecActiveSagas()
	e.metrics.RecordSagaCompleted(outcome, elapsed)

	if unsubErr := e.bus.Unsubscribe(inst.id); unsubErr != nil {
		e.logger.Warn("unsubscribe failed", "order_id", inst.id, "error", unsubErr)
	}

	e.instMu.Lock()
	delete(e.instances, inst.id)
	e.instMu.Unlock()

	inst.finish(err)
}

// GetInstance returns the live instance for an order, if any.
func (e *Engine) GetInstance(orderID string) (*Instance, bool) {
	e.instMu.RLock()
	defer e.instMu.RUnlock()
	inst, ok := e.instances[orderID]
	return inst, ok
}

// InstanceCount returns the number of live instances.
func (e *Engine) InstanceCount() int {
	e.instMu.RLock()
	defer e.instMu.RUnlock()
	return len(e.instances)
}

// Clock returns the engine's clock.
func (e *Engine) Clock() Clock { return e.clock }

// IsHealthy returns true if the engine is running.
func (e *Engine) IsHealthy() bool {
	return engineState(e.state.Load()) == stateRunning
}

// IsReady returns true if the engine is running and its signal bus is reachable.
func (e *Engine) IsReady() bool {
	return e.IsHealthy() && e.bus.Healthy()
}

// record appends a history event, logging rather than failing on journal errors.
func (e *Engine) record(ctx context.Context, orderID string, eventType storage.HistoryEventType, detail string) {
	if _, err := e.storage.AppendHistory(ctx, storage.HistoryEvent{
		OrderID:   orderID,
		Type:      eventType,
		Detail:    detail,
		Timestamp: e.clock.Now(),
	}); err != nil {
		e.logger.Warn("history append failed", "order_id", orderID, "event", string(eventType), "error", err)
	}
}

// MetricsRecorder receives saga lifecycle metrics.
type MetricsRecorder interface {
	RecordSagaStarted()
	RecordSagaCompleted(outcome string, duration time.Duration)
	IncActiveSagas()
	DecActiveSagas()
}

type nopMetrics struct{}

func (nopMetrics) RecordSagaStarted()                        {}
func (nopMetrics) RecordSagaCompleted(string, time.Duration) {}
func (nopMetrics) IncActiveSagas()                           {}
func (nopMetrics) DecActiveSagas()                           {}
