// Package activity provides named side-effecting operations invoked by sagas,
// each carrying its own retry and timeout policy.
package activity

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Func is the implementation of one activity.
type Func func(ctx context.Context, input any) (any, error)

// RetryPolicy controls retries for one activity invocation.
type RetryPolicy struct {
	InitialInterval    time.Duration
	MaximumInterval    time.Duration
	BackoffCoefficient float64
	// MaximumAttempts bounds total attempts. Zero means a single attempt.
	MaximumAttempts int
}

// Options bundles the execution policy configured per activity at
// registration time, not per call.
type Options struct {
	// StartToCloseTimeout bounds one attempt.
	StartToCloseTimeout time.Duration
	Retry               RetryPolicy
}

// Definition binds an activity name to its implementation and policy.
type Definition struct {
	Name    string
	Fn      Func
	Options Options
}

// Registry holds activity definitions by name.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty activity registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition. Names must be unique.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("activity name cannot be empty")
	}
	if def.Fn == nil {
		return fmt.Errorf("activity %q has no implementation", def.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("activity %q already registered", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("activity %q not registered", name)
	}
	return def, nil
}

// Names returns all registered activity names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	return names
}

func backoffForAttempt(policy RetryPolicy, attempt int) time.Duration {
	interval := policy.InitialInterval
	if interval <= 0 {
		interval = time.Second
	}
	for i := 0; i < attempt; i++ {
		interval = time.Duration(float64(interval) * normalizeCoefficient(policy.BackoffCoefficient))
		if policy.MaximumInterval > 0 && interval >= policy.MaximumInterval {
			return policy.MaximumInterval
		}
	}
	if policy.MaximumInterval > 0 && interval > policy.MaximumInterval {
		return policy.MaximumInterval
	}
	return interval
}

func normalizeCoefficient(c float64) float64 {
	if c < 1 {
		return 1
	}
	return c
}
