package inngestgo

import (
	"errors"
	"time"

	sdkerrors "github.com/inngest/inngestgo/errors"
)

type noRetryError struct {
	err error
}

func (e noRetryError) Error() string { return e.err.Error() }
func (e noRetryError) Unwrap() error { return e.err }

// NoRetryError wraps err so that, when returned from a function or step,
// the run is marked as permanently failed instead of being retried.
func NoRetryError(err error) error {
	if err == nil {
		return nil
	}
	return noRetryError{err: err}
}

// IsNoRetryError reports whether err (or anything it wraps) was produced by
// NoRetryError, including the equivalent helper in the errors subpackage
// used internally by step.InvokeByID.
func IsNoRetryError(err error) bool {
	if err == nil {
		return false
	}
	var nre noRetryError
	if errors.As(err, &nre) {
		return true
	}
	return sdkerrors.IsNoRetryError(err)
}

type retryAtError struct {
	err error
	at  time.Time
}

func (e retryAtError) Error() string { return e.err.Error() }
func (e retryAtError) Unwrap() error { return e.err }

// RetryAtError wraps err so that, when returned from a function or step,
// the next retry is scheduled at exactly `at` instead of using the
// orchestrator's backoff policy.
func RetryAtError(err error, at time.Time) error {
	if err == nil {
		return nil
	}
	return retryAtError{err: err, at: at}
}

// GetRetryAtTime returns the explicit retry time set by RetryAtError, or
// nil if err doesn't carry one.
func GetRetryAtTime(err error) *time.Time {
	if err == nil {
		return nil
	}
	var rae retryAtError
	if errors.As(err, &rae) {
		return &rae.at
	}
	return nil
}

// IsStepError reports whether err (or anything it wraps) is a per-step
// error surfaced by the orchestrator, as opposed to an error returned
// directly by user code.
func IsStepError(err error) bool {
	if err == nil {
		return false
	}
	var se sdkerrors.StepError
	return errors.As(err, &se)
}
