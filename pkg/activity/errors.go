package activity

import (
	"errors"
	"fmt"
)

// NonRetryableError marks a failure that must not be retried, such as an
// explicit rejection by the downstream service.
type NonRetryableError struct {
	Cause error
}

func (e *NonRetryableError) Error() string {
	return e.Cause.Error()
}

func (e *NonRetryableError) Unwrap() error { return e.Cause }

// NonRetryable wraps err so the executor surfaces it without further attempts.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Cause: err}
}

// IsNonRetryable reports whether err (or anything it wraps) is non-retryable.
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// ExhaustedError is returned when the retry policy runs out of attempts.
type ExhaustedError struct {
	Activity string
	Attempts int
	Cause    error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("activity %q failed after %d attempts: %v", e.Activity, e.Attempts, e.Cause)
}

func (e *ExhaustedError) Unwrap() error { return e.Cause }
