// Package apperr defines the error taxonomy shared by the handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks missing or malformed input; surfaced as 400.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown user or simulation; surfaced as 404.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict marks a conditional update that lost a race
	// with a concurrent writer. Callers re-read and retry or give up.
	ErrVersionConflict = errors.New("version conflict")
)

// SchedulingError means the external scheduler rejected or failed the
// submit. The simulation is left in its last-known state.
type SchedulingError struct {
	Op  string
	Err error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("scheduling error during %s: %v", e.Op, e.Err)
}

func (e *SchedulingError) Unwrap() error { return e.Err }

// Response is the structured error envelope returned by handlers.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

// HTTPStatus maps a taxonomy error onto its HTTP status code.
func HTTPStatus(err error) int {
	var se *SchedulingError
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrVersionConflict):
		return http.StatusConflict
	case errors.As(err, &se):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Envelope builds the structured response for err.
func Envelope(err error, message string) Response {
	return Response{
		StatusCode: HTTPStatus(err),
		Message:    message,
		Error:      err.Error(),
	}
}
