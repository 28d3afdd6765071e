package events

import (
	"sync"
	"testing"
	"time"

	"github.com/dishpatch/dishpatch/pkg/order"
)

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	first := b.Subscribe(4)
	second := b.Subscribe(4)

	b.Broadcast(Event{Type: "order.state_changed", Payload: "x"})

	for _, ch := range []chan Event{first, second} {
		select {
		case event := <-ch:
			if event.Type != "order.state_changed" {
				t.Errorf("unexpected event type %q", event.Type)
			}
			if event.Timestamp.IsZero() {
				t.Error("expected broadcast to stamp the event")
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestBroadcastOrderStatePayload(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	ch := b.Subscribe(1)
	deliveredAt := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	b.BroadcastOrderState("order-1", order.StatePickedUp, order.StateDelivered, order.StatusView{
		OrderID:     "order-1",
		ProductID:   1,
		State:       order.StateDelivered,
		DeliveredAt: &deliveredAt,
	})

	select {
	case event := <-ch:
		payload, ok := event.Payload.(map[string]any)
		if !ok {
			t.Fatalf("unexpected payload type %T", event.Payload)
		}
		if payload["order_id"] != "order-1" {
			t.Errorf("unexpected order_id %v", payload["order_id"])
		}
		if payload["old_state"] != "picked_up" || payload["new_state"] != "delivered" {
			t.Errorf("unexpected states %v -> %v", payload["old_state"], payload["new_state"])
		}
		if _, ok := payload["delivered_at"]; !ok {
			t.Error("expected delivered_at in payload")
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestSlowSubscriberDoesNotBlockBroadcast(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	full := b.Subscribe(1)
	b.Broadcast(Event{Type: "first"})

	done := make(chan struct{})
	go func() {
		b.Broadcast(Event{Type: "second"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full subscriber")
	}

	// The overflow event was dropped; only the first remains.
	if event := <-full; event.Type != "first" {
		t.Errorf("unexpected event %q", event.Type)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe(1)
	b.Unsubscribe(ch)

	if _, open := <-ch; open {
		t.Error("expected channel closed after unsubscribe")
	}

	// Broadcasting after unsubscribe must not panic.
	b.Broadcast(Event{Type: "noop"})
}

func TestConcurrentBroadcastAndUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				b.Broadcast(Event{Type: "order.state_changed"})
			}
		}
	}()

	// Churn subscriptions while the broadcaster is firing; a send into a
	// freshly closed channel panics the whole process.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				ch := b.Subscribe(1)
				b.Unsubscribe(ch)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	close(stop)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent broadcast and unsubscribe deadlocked")
	}
}
