package manager

import (
	"errors"
	"net/http"
)

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{ modelID string }

func (e tooBusyError) Error() string { return "too busy: " + e.modelID }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// modelLoadError is the terminal failure of the one-time model load.
type modelLoadError struct {
	modelID string
	err     error
}

func (e modelLoadError) Error() string {
	return "model " + e.modelID + " failed to load: " + e.err.Error()
}

func (e modelLoadError) Unwrap() error { return e.err }

func (e modelLoadError) StatusCode() int { return http.StatusServiceUnavailable }

// IsModelLoadFailed reports whether err comes from a failed model load.
func IsModelLoadFailed(err error) bool {
	var e modelLoadError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing external dependency (e.g., llama.cpp
// not compiled in, worker unreachable) so the HTTP layer can return 503.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

func (e dependencyUnavailableError) StatusCode() int { return http.StatusServiceUnavailable }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

// unexpectedHandleError is returned when a handle does not have the type an
// adapter expects.
type unexpectedHandleError struct{ got Handle }

func (e unexpectedHandleError) Error() string { return "unexpected model handle type" }

// As asserts the concrete handle type. Adapters call it with the result of
// Ensure.
func As[T any](h Handle) (T, error) {
	t, ok := h.(T)
	if !ok {
		var zero T
		return zero, unexpectedHandleError{got: h}
	}
	return t, nil
}
