package notify

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Sender matches the notifier contract the activity layer consumes.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// RateLimited wraps a Sender with a token bucket so a burst of failing
// sagas cannot flood the downstream push service.
type RateLimited struct {
	inner   Sender
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with the given sustained rate and burst.
func NewRateLimited(inner Sender, perSecond float64, burst int) *RateLimited {
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Send waits for a token, then delegates. The wait respects ctx so a
// cancelled activity never blocks on the bucket.
func (r *RateLimited) Send(ctx context.Context, text string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notification rate limit: %w", err)
	}
	return r.inner.Send(ctx, text)
}
