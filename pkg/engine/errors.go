package engine

import (
	"errors"
	"fmt"
)

// CancelledError is returned from a suspension point when a cancel signal
// interrupts an interruptible region. Reason carries the caller-supplied
// cancellation reason.
type CancelledError struct {
	OrderID string
	Reason  string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("saga %q cancelled: %s", e.OrderID, e.Reason)
}

// IsCancelled reports whether err is or wraps a CancelledError.
func IsCancelled(err error) bool {
	var cancelled *CancelledError
	return errors.As(err, &cancelled)
}

// ShutdownError is returned from a suspension point when the engine is
// stopping. Unlike a cancel signal it interrupts shielded regions too; the
// persisted snapshot resumes the saga on the next start.
type ShutdownError struct {
	OrderID string
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("saga %q interrupted by engine shutdown", e.OrderID)
}

// IsShutdown reports whether err is or wraps a ShutdownError.
func IsShutdown(err error) bool {
	var shutdown *ShutdownError
	return errors.As(err, &shutdown)
}

// InstanceExistsError is returned when starting a saga for an order that
// already has a live instance.
type InstanceExistsError struct {
	ID string
}

func (e *InstanceExistsError) Error() string {
	return fmt.Sprintf("saga instance %q is already running", e.ID)
}

// EngineNotRunningError is returned when an operation requires the engine to be running.
type EngineNotRunningError struct{}

func (e *EngineNotRunningError) Error() string {
	return "engine is not running"
}
