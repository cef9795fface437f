// Package meural provides an HTTP client for the Meural REST API with
// automatic retry, transparent pagination, and error classification.
package meural

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, meural.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("meural: bad request")
	ErrUnauthorized = errors.New("meural: unauthorized")
	ErrForbidden    = errors.New("meural: forbidden")
	ErrNotFound     = errors.New("meural: not found")
	ErrConflict     = errors.New("meural: conflict")
	ErrThrottled    = errors.New("meural: throttled")
	ErrServerError  = errors.New("meural: server error")
)

// APIError wraps a sentinel error with the HTTP status code and the API
// error message body for debugging.
type APIError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	return fmt.Sprintf("meural: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isRetryable reports whether the given HTTP status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Transient reports whether err came from a network failure or a
// retryable service-side condition. Callers use this to decide between
// "skip this item and continue" and "operator attention required".
func Transient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return isRetryable(apiErr.StatusCode)
	}

	// Anything that never produced an APIError was a transport failure.
	return err != nil
}
