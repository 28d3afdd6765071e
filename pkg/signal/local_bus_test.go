package signal

import (
	"context"
	"testing"
	"time"
)

func TestLocalBusPublishSubscribe(t *testing.T) {
	bus := NewLocalBus(4)
	defer bus.Close()

	ch, err := bus.Subscribe(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := bus.Publish(context.Background(), Pickup("order-1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case sig := <-ch:
		if sig.Kind != KindPickup || sig.OrderID != "order-1" {
			t.Fatalf("unexpected signal %+v", sig)
		}
		if sig.SentAt.IsZero() {
			t.Fatal("SentAt must be populated")
		}
	case <-time.After(time.Second):
		t.Fatal("signal not delivered")
	}
}

func TestLocalBusNoSubscriberDropsSilently(t *testing.T) {
	bus := NewLocalBus(4)
	defer bus.Close()

	if err := bus.Publish(context.Background(), Delivery("ghost")); err != nil {
		t.Fatalf("publish to missing subscriber must not error, got %v", err)
	}
}

func TestLocalBusRejectsDuplicateSubscription(t *testing.T) {
	bus := NewLocalBus(4)
	defer bus.Close()

	if _, err := bus.Subscribe(context.Background(), "order-1"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := bus.Subscribe(context.Background(), "order-1"); err == nil {
		t.Fatal("expected duplicate subscription error")
	}
}

func TestLocalBusOrderingPreserved(t *testing.T) {
	bus := NewLocalBus(8)
	defer bus.Close()

	ch, _ := bus.Subscribe(context.Background(), "order-1")
	_ = bus.Publish(context.Background(), Pickup("order-1"))
	_ = bus.Publish(context.Background(), Delivery("order-1"))

	first := <-ch
	second := <-ch
	if first.Kind != KindPickup || second.Kind != KindDelivery {
		t.Fatalf("delivery order violated: %s then %s", first.Kind, second.Kind)
	}
}

func TestLocalBusOverflowDropsOldest(t *testing.T) {
	bus := NewLocalBus(1)
	defer bus.Close()

	ch, _ := bus.Subscribe(context.Background(), "order-1")
	_ = bus.Publish(context.Background(), Pickup("order-1"))
	_ = bus.Publish(context.Background(), Delivery("order-1"))

	sig := <-ch
	if sig.Kind != KindDelivery {
		t.Fatalf("expected newest signal to survive overflow, got %s", sig.Kind)
	}
}

func TestLocalBusClosedRejectsPublish(t *testing.T) {
	bus := NewLocalBus(4)
	_ = bus.Close()
	if bus.Healthy() {
		t.Fatal("closed bus must not report healthy")
	}
	if err := bus.Publish(context.Background(), Cancel("order-1", "test")); err == nil {
		t.Fatal("expected error publishing to closed bus")
	}
}

func TestKindValid(t *testing.T) {
	for _, k := range []Kind{KindPickup, KindDelivery, KindCancel} {
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if Kind("steer").Valid() {
		t.Error("unknown kind must be invalid")
	}
}
