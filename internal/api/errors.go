package api

import (
	"errors"
	"fmt"
	nethttp "net/http"
)

// Sentinel errors matched with errors.Is against an *HTTPError.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized (check the API key)")
	ErrThrottled    = errors.New("throttled by daemon")
)

// HTTPError is a non-2xx response from the snapshot API.
type HTTPError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// HTTPStatus implements http.StatusError so ClassifyError can bucket it.
func (e *HTTPError) HTTPStatus() int { return e.StatusCode }

// Is maps status codes onto the package sentinels.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == nethttp.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == nethttp.StatusUnauthorized || e.StatusCode == nethttp.StatusForbidden
	case ErrThrottled:
		return e.StatusCode == nethttp.StatusTooManyRequests || e.StatusCode == nethttp.StatusServiceUnavailable
	}
	return false
}
