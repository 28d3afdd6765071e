package order

import (
	"context"
	"fmt"
	"time"

	"github.com/dishpatch/dishpatch/pkg/activity"
	"github.com/dishpatch/dishpatch/pkg/catalog"
)

// Activity names the saga invokes through its execution context.
const (
	ActivityChargeCustomer   = "charge-customer"
	ActivityRefundOrder      = "refund-order"
	ActivitySendNotification = "send-notification"
)

// PaymentGateway is the payment boundary consumed by the charge and refund
// activities.
type PaymentGateway interface {
	Charge(ctx context.Context, product catalog.Product) (string, error)
	Refund(ctx context.Context, product catalog.Product) (string, error)
}

// Notifier is the fire-and-forget notification boundary.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// ActivityPolicy bundles the retry/timeout configuration applied to the
// three order activities at registration time, not per call.
type ActivityPolicy struct {
	StartToCloseTimeout time.Duration
	RetryInterval       time.Duration
	MaximumAttempts     int
}

// DefaultActivityPolicy matches the production payment service expectations:
// a fixed retry interval with a bounded attempt count.
func DefaultActivityPolicy() ActivityPolicy {
	return ActivityPolicy{
		StartToCloseTimeout: 2 * time.Minute,
		RetryInterval:       5 * time.Second,
		MaximumAttempts:     3,
	}
}

func (p ActivityPolicy) options() activity.Options {
	return activity.Options{
		StartToCloseTimeout: p.StartToCloseTimeout,
		Retry: activity.RetryPolicy{
			InitialInterval:    p.RetryInterval,
			MaximumInterval:    p.RetryInterval,
			BackoffCoefficient: 1.0,
			MaximumAttempts:    p.MaximumAttempts,
		},
	}
}

// RegisterActivities binds the order activities to their implementations.
func RegisterActivities(registry *activity.Registry, gateway PaymentGateway, notifier Notifier, policy ActivityPolicy) error {
	defs := []activity.Definition{
		{
			Name: ActivityChargeCustomer,
			Fn: func(ctx context.Context, input any) (any, error) {
				product, ok := input.(catalog.Product)
				if !ok {
					return nil, fmt.Errorf("charge input must be a product, got %T", input)
				}
				return gateway.Charge(ctx, product)
			},
			Options: policy.options(),
		},
		{
			Name: ActivityRefundOrder,
			Fn: func(ctx context.Context, input any) (any, error) {
				product, ok := input.(catalog.Product)
				if !ok {
					return nil, fmt.Errorf("refund input must be a product, got %T", input)
				}
				return gateway.Refund(ctx, product)
			},
			Options: policy.options(),
		},
		{
			Name: ActivitySendNotification,
			Fn: func(ctx context.Context, input any) (any, error) {
				text, ok := input.(string)
				if !ok {
					return nil, fmt.Errorf("notification input must be a string, got %T", input)
				}
				return nil, notifier.Send(ctx, text)
			},
			Options: policy.options(),
		},
	}

	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}
