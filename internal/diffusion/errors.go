package diffusion

import (
	"errors"
	"fmt"
	"net/http"

	"modelserve/internal/manager"
)

// validationError rejects a malformed image request before it reaches a
// pipeline.
type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

func (e validationError) StatusCode() int { return http.StatusBadRequest }

func invalidf(format string, args ...any) error {
	return validationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var e validationError
	return errors.As(err, &e)
}

// pipelineUnavailableError is returned when the loaded variant does not
// provide the pipeline an operation needs (e.g. text-to-image on a latent
// upscaler).
type pipelineUnavailableError struct {
	pipeline string
	variant  Variant
}

func (e pipelineUnavailableError) Error() string {
	return fmt.Sprintf("%s pipeline is not available for %s models", e.pipeline, e.variant)
}

func (e pipelineUnavailableError) StatusCode() int { return http.StatusNotImplemented }

// IsPipelineUnavailable reports whether err signals a missing pipeline.
func IsPipelineUnavailable(err error) bool {
	var e pipelineUnavailableError
	return errors.As(err, &e)
}

var errServiceClosed = manager.ErrDependencyUnavailable("diffusion service is shutting down")
