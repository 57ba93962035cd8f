package vigilant

import "errors"

// Sentinel errors for the facade and lifecycle manager, following the error
// taxonomy of spec.md §7. Internal transport/aggregation failures never
// escape to the caller — they're absorbed by the batchers and surfaced only
// through self-telemetry (internal/telemetry) and the emergency stderr
// channel, per the "never re-enter the SDK's own logging" rule.
var (
	// ErrAlreadyInitialized is returned by Init when a singleton already
	// exists. State is left untouched.
	ErrAlreadyInitialized = errors.New("vigilant: already initialized")

	// ErrNotInitialized is returned by every facade call made before Init
	// or after Shutdown.
	ErrNotInitialized = errors.New("vigilant: not initialized")
)

// UnexpectedFailureError wraps an error raised while constructing or
// starting the singleton instance.
type UnexpectedFailureError struct {
	Cause error
}

func (e *UnexpectedFailureError) Error() string {
	return "vigilant: unexpected failure during init: " + e.Cause.Error()
}

func (e *UnexpectedFailureError) Unwrap() error {
	return e.Cause
}
