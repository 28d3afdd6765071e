package engine

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithClock replaces the engine's clock. Tests use this with a FakeClock to
// drive timer waits deterministically.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithMetrics sets the metrics recorder for the engine.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(e *Engine) {
		if metrics != nil {
			e.metrics = metrics
		}
	}
}
