package engine

import (
	"sync"

	"github.com/dishpatch/dishpatch/pkg/signal"
)

// Workflow is the body of a saga instance. It runs on a dedicated goroutine
// and suspends only through its Context (Await, Sleep, Execute), so all event
// processing for one instance is strictly serialized.
type Workflow func(sc *Context) error

// SignalHandler is invoked on the instance goroutine for every signal
// delivered at a suspension point. Handlers run before the suspended wait
// re-evaluates its condition.
type SignalHandler func(sc *Context, sig *signal.Signal)

// Instance is a live saga execution for one order.
type Instance struct {
	id      string
	signals <-chan *signal.Signal
	done    chan struct{}

	mu  sync.Mutex
	err error
}

// ID returns the order id this instance executes for.
func (i *Instance) ID() string { return i.id }

// Done is closed when the instance finishes, whatever the outcome.
func (i *Instance) Done() <-chan struct{} { return i.done }

// Err returns the workflow's result after Done is closed. It returns nil
// while the instance is still running.
func (i *Instance) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}

func (i *Instance) finish(err error) {
	i.mu.Lock()
	i.err = err
	i.mu.Unlock()
	close(i.done)
}
