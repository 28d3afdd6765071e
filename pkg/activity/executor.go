package activity

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dishpatch/dishpatch/pkg/logger"
)

// MetricsRecorder records activity execution metrics.
type MetricsRecorder interface {
	RecordActivityAttempt(name string, status string)
	RecordActivityDuration(name string, status string, duration time.Duration)
	RecordActivityRetry(name string)
}

type nopMetricsRecorder struct{}

func (n *nopMetricsRecorder) RecordActivityAttempt(name string, status string) {}
func (n *nopMetricsRecorder) RecordActivityDuration(name string, status string, duration time.Duration) {
}
func (n *nopMetricsRecorder) RecordActivityRetry(name string) {}

// Executor invokes registered activities under their configured policies.
type Executor struct {
	registry *Registry
	log      logger.Logger
	metrics  MetricsRecorder
}

// ExecutorOption customizes Executor construction.
type ExecutorOption func(*Executor)

// WithMetrics sets the metrics recorder for the executor.
func WithMetrics(metrics MetricsRecorder) ExecutorOption {
	return func(e *Executor) {
		if metrics != nil {
			e.metrics = metrics
		}
	}
}

// NewExecutor creates an activity executor over a registry.
func NewExecutor(registry *Registry, log logger.Logger, opts ...ExecutorOption) *Executor {
	if log == nil {
		log = logger.Global()
	}
	e := &Executor{
		registry: registry,
		log:      log,
		metrics:  &nopMetricsRecorder{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Invoke runs the named activity, retrying per its policy. It returns the
// activity result, an *ExhaustedError when the policy runs out of attempts,
// the wrapped cause when the failure is non-retryable, or ctx.Err when the
// caller is cancelled between attempts.
func (e *Executor) Invoke(ctx context.Context, name string, input any) (any, error) {
	def, err := e.registry.Get(name)
	if err != nil {
		return nil, err
	}

	tracer := otel.Tracer("dishpatch/activity")
	ctx, span := tracer.Start(ctx, "activity."+name)
	defer span.End()

	maxAttempts := def.Options.Retry.MaximumAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		start := time.Now()
		result, attemptErr := e.runAttempt(ctx, def, input)
		elapsed := time.Since(start)

		if attemptErr == nil {
			e.metrics.RecordActivityAttempt(name, "completed")
			e.metrics.RecordActivityDuration(name, "completed", elapsed)
			span.SetAttributes(attribute.Int("activity.attempts", attempt+1))
			return result, nil
		}
		lastErr = attemptErr

		if IsNonRetryable(attemptErr) {
			e.metrics.RecordActivityAttempt(name, "rejected")
			e.metrics.RecordActivityDuration(name, "rejected", elapsed)
			span.SetStatus(codes.Error, attemptErr.Error())
			e.log.WarnContext(ctx, "activity failed non-retryably",
				"activity", name, "attempt", attempt+1, "error", attemptErr)
			return nil, attemptErr
		}

		e.metrics.RecordActivityAttempt(name, "failed")
		e.metrics.RecordActivityDuration(name, "failed", elapsed)
		e.log.WarnContext(ctx, "activity attempt failed",
			"activity", name, "attempt", attempt+1, "error", attemptErr)

		if attempt == maxAttempts-1 {
			break
		}
		e.metrics.RecordActivityRetry(name)
		if err := sleepCtx(ctx, backoffForAttempt(def.Options.Retry, attempt)); err != nil {
			return nil, err
		}
	}

	span.SetStatus(codes.Error, lastErr.Error())
	return nil, &ExhaustedError{Activity: name, Attempts: maxAttempts, Cause: lastErr}
}

func (e *Executor) runAttempt(ctx context.Context, def Definition, input any) (any, error) {
	attemptCtx := ctx
	cancel := func() {}
	if def.Options.StartToCloseTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, def.Options.StartToCloseTimeout)
	}
	defer cancel()

	result, err := def.Fn(attemptCtx, input)
	if err == nil && attemptCtx.Err() != nil {
		err = attemptCtx.Err()
	}
	return result, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
