// Package remote defines the provider-facing error taxonomy and the retry
// policy shared by the sync engine and provider adapters. Adapters classify
// raw provider failures into exactly one of three categories; the engine
// decides from the category whether to retry, skip the event, or abort the
// whole run.
package remote

import "errors"

// TransientError marks a provider failure worth retrying: rate limits,
// timeouts, 5xx responses. Exhausted retries surface as a per-event error.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient provider error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// AuthError marks an authorization failure. Never retried; it aborts the
// whole sync run because no further provider call can succeed.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return "provider authorization failed: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// ValidationError marks event data the provider rejected. The event is
// skipped and recorded; the run continues.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "provider rejected event: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsAuth reports whether err is (or wraps) an AuthError.
func IsAuth(err error) bool {
	var a *AuthError
	return errors.As(err, &a)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
