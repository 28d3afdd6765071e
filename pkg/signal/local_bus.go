package signal

import (
	"context"
	"fmt"
	"sync"
)

// LocalBus is an in-memory Signal Bus implementation using Go channels.
type LocalBus struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Signal
	bufferSize  int
	closed      bool
}

// NewLocalBus creates a new in-memory Signal Bus.
func NewLocalBus(bufferSize int) *LocalBus {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &LocalBus{
		subscribers: make(map[string]chan *Signal),
		bufferSize:  bufferSize,
	}
}

// Publish sends a signal to the target order's subscriber channel. Signals
// for orders without a live subscriber are accepted and dropped; the sender
// never learns whether the signal had an effect.
func (b *LocalBus) Publish(_ context.Context, sig *Signal) error {
	if sig == nil {
		metricsRecorder().RecordSignalDropped("local", "unknown", "nil_signal")
		return fmt.Errorf("signal cannot be nil")
	}
	if sig.OrderID == "" {
		metricsRecorder().RecordSignalDropped("local", string(sig.Kind), "empty_order_id")
		return fmt.Errorf("signal order_id cannot be empty")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		metricsRecorder().RecordSignalDropped("local", string(sig.Kind), "bus_closed")
		return fmt.Errorf("signal bus is closed")
	}

	ch, ok := b.subscribers[sig.OrderID]
	if !ok {
		metricsRecorder().RecordSignalDropped("local", string(sig.Kind), "no_subscriber")
		return nil
	}
	metricsRecorder().RecordSignalSent("local", string(sig.Kind))

	// Non-blocking send; drop oldest if buffer full.
	select {
	case ch <- sig:
		metricsRecorder().RecordSignalDelivered("local", string(sig.Kind))
	default:
		metricsRecorder().RecordSignalDropped("local", string(sig.Kind), "buffer_full")
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- sig:
			metricsRecorder().RecordSignalDelivered("local", string(sig.Kind))
		default:
			metricsRecorder().RecordSignalDropped("local", string(sig.Kind), "buffer_still_full")
		}
	}

	return nil
}

// Subscribe creates a buffered channel receiving signals for the given order.
func (b *LocalBus) Subscribe(_ context.Context, orderID string) (<-chan *Signal, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order_id cannot be empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("signal bus is closed")
	}

	if _, exists := b.subscribers[orderID]; exists {
		return nil, fmt.Errorf("order %s already subscribed", orderID)
	}

	ch := make(chan *Signal, b.bufferSize)
	b.subscribers[orderID] = ch
	return ch, nil
}

// Unsubscribe removes the subscription and closes the channel.
func (b *LocalBus) Unsubscribe(orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[orderID]
	if !ok {
		return nil
	}

	close(ch)
	delete(b.subscribers, orderID)
	return nil
}

// Close shuts down the bus and closes all subscriber channels.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	for orderID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, orderID)
	}
	return nil
}

// Healthy returns true if the bus is not closed.
func (b *LocalBus) Healthy() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}
