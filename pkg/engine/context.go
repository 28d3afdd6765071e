package engine

import (
	"context"
	"time"

	"github.com/dishpatch/dishpatch/pkg/logger"
	"github.com/dishpatch/dishpatch/pkg/signal"
	"github.com/dishpatch/dishpatch/pkg/storage"
)

// Context is the execution context handed to a saga workflow. Every
// suspension goes through it: condition-or-timeout races, fixed sleeps and
// activity calls. Signals are delivered only while the workflow is suspended,
// on the workflow's own goroutine, so handlers and the workflow body never
// run concurrently.
//
// A cancel signal interrupts whichever suspension is active and surfaces as a
// CancelledError, unless the workflow is inside a Shielded region. Shielded
// regions drop cancel signals so compensation cannot be truncated by a second
// cancellation. Engine shutdown interrupts every suspension, shielded or not,
// as a ShutdownError; the persisted snapshot carries the saga across restarts.
type Context struct {
	eng      *Engine
	inst     *Instance
	base     context.Context
	handler  SignalHandler
	shielded bool
	sigs     <-chan *signal.Signal
}

// ID returns the order id of the executing instance.
func (sc *Context) ID() string { return sc.inst.id }

// Now returns the current time from the engine's clock. Workflows must not
// read the wall clock directly.
func (sc *Context) Now() time.Time { return sc.eng.clock.Now() }

// Logger returns the engine's logger.
func (sc *Context) Logger() logger.Logger { return sc.eng.logger }

// BaseContext returns the engine's run context. It is cancelled when the
// engine shuts down.
func (sc *Context) BaseContext() context.Context { return sc.base }

// Record appends one event to the instance's history journal. Journal
// failures are logged, never fatal to the saga.
func (sc *Context) Record(eventType storage.HistoryEventType, detail string) {
	sc.eng.record(sc.base, sc.inst.id, eventType, detail)
}

// Shielded runs fn with cancellation disabled. Cancel signals arriving while
// fn is suspended are journalled and dropped instead of interrupting it.
// Shielded regions do not nest meaningfully; re-entering is a no-op.
func (sc *Context) Shielded(fn func() error) error {
	if sc.shielded {
		return fn()
	}
	sc.shielded = true
	defer func() { sc.shielded = false }()
	return fn()
}

// Await suspends until pred reports true or the timeout elapses. pred is
// evaluated once up front and again after every delivered signal. It returns
// true if the condition was met, false if the timer fired first.
func (sc *Context) Await(pred func() bool, timeout time.Duration) (bool, error) {
	if pred() {
		return true, nil
	}

	timer := sc.eng.clock.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case sig, ok := <-sc.sigs:
			if !ok {
				sc.sigs = nil
				continue
			}
			if err := sc.deliver(sig); err != nil {
				return false, err
			}
			if pred() {
				return true, nil
			}
		case <-timer.C():
			sc.Record(storage.HistoryEventTimerFired, "await timeout")
			return false, nil
		case <-sc.base.Done():
			return false, &ShutdownError{OrderID: sc.inst.id}
		}
	}
}

// Sleep suspends for the given duration. Signals delivered while sleeping are
// handled; a cancel signal interrupts the sleep unless shielded.
func (sc *Context) Sleep(d time.Duration) error {
	timer := sc.eng.clock.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case sig, ok := <-sc.sigs:
			if !ok {
				sc.sigs = nil
				continue
			}
			if err := sc.deliver(sig); err != nil {
				return err
			}
		case <-timer.C():
			return nil
		case <-sc.base.Done():
			return &ShutdownError{OrderID: sc.inst.id}
		}
	}
}

// Execute invokes a registered activity by name and suspends until it
// finishes. The activity runs with its registered retry policy. A cancel
// signal arriving mid-flight cancels the activity's context and waits for it
// to unwind before returning, unless shielded.
func (sc *Context) Execute(name string, input any) (any, error) {
	runCtx, cancel := context.WithCancel(sc.base)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	resCh := make(chan outcome, 1)
	go func() {
		result, err := sc.eng.executor.Invoke(runCtx, name, input)
		resCh <- outcome{result: result, err: err}
	}()

	sc.Record(storage.HistoryEventActivityStarted, name)

	for {
		select {
		case sig, ok := <-sc.sigs:
			if !ok {
				sc.sigs = nil
				continue
			}
			if err := sc.deliver(sig); err != nil {
				cancel()
				<-resCh
				return nil, err
			}
		case out := <-resCh:
			if out.err != nil {
				sc.Record(storage.HistoryEventActivityFailed, name+": "+out.err.Error())
				return nil, out.err
			}
			sc.Record(storage.HistoryEventActivityCompleted, name)
			return out.result, nil
		case <-sc.base.Done():
			// The activity context derives from sc.base; wait for it to unwind.
			<-resCh
			return nil, &ShutdownError{OrderID: sc.inst.id}
		}
	}
}

// deliver routes one signal: cancels interrupt interruptible regions, all
// other signals go to the instance's handler.
func (sc *Context) deliver(sig *signal.Signal) error {
	if sig.Kind == signal.KindCancel {
		sc.Record(storage.HistoryEventCancelRequested, sig.Reason)
		if sc.shielded {
			sc.eng.logger.Debug("cancel ignored in shielded region", "order_id", sc.inst.id, "reason", sig.Reason)
			return nil
		}
		return &CancelledError{OrderID: sc.inst.id, Reason: sig.Reason}
	}

	sc.Record(storage.HistoryEventSignalReceived, string(sig.Kind))
	if sc.handler != nil {
		sc.handler(sc, sig)
	}
	return nil
}
