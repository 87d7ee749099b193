package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"
)

// ErrorType represents different classes of errors for retry strategy
type ErrorType int

const (
	// ErrorTypeSuccess indicates operation succeeded
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeTransport indicates network/connection issues (timeouts, connection refused,
	// DNS) and server-side 5xx/429 responses. Retried with backoff, never fatal.
	ErrorTypeTransport
	// ErrorTypeProtocol indicates a response that arrived but could not be understood
	// (malformed JSON, unexpected shape). The message is dropped and processing continues.
	ErrorTypeProtocol
	// ErrorTypeAuth indicates the daemon rejected the API key (401/403)
	ErrorTypeAuth
	// ErrorTypeFatal indicates client errors that should not be retried (400, 404, invalid request)
	ErrorTypeFatal
)

// StatusError is implemented by errors that carry an HTTP status code.
type StatusError interface {
	error
	HTTPStatus() int
}

// ProtocolError wraps a response body that could not be decoded.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ClassifyError determines the error type for retry strategy.
// Typed errors are checked first; the string fallback catches errors that
// crossed a library boundary without wrapping.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}

	if errors.Is(err, context.Canceled) {
		return ErrorTypeFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTransport
	}

	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return ClassifyStatus(statusErr.HTTPStatus())
	}

	var protoErr *ProtocolError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &protoErr) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ErrorTypeProtocol
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrorTypeProtocol
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorTypeTransport
	}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) {
		return ErrorTypeTransport
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "forbidden") ||
		strings.Contains(errStr, "invalid api key") {
		return ErrorTypeAuth
	}

	if strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "giving up after") {
		return ErrorTypeTransport
	}

	if strings.Contains(errStr, "invalid character") ||
		strings.Contains(errStr, "cannot unmarshal") ||
		strings.Contains(errStr, "malformed") {
		return ErrorTypeProtocol
	}

	// Unknown errors - treat as fatal to avoid infinite retries on unexpected errors
	return ErrorTypeFatal
}

// ClassifyStatus buckets an HTTP response status.
func ClassifyStatus(code int) ErrorType {
	switch {
	case code >= 200 && code < 300:
		return ErrorTypeSuccess
	case code == 401 || code == 403:
		return ErrorTypeAuth
	case code == 429 || code == 408 || code >= 500:
		return ErrorTypeTransport
	default:
		return ErrorTypeFatal
	}
}

// IsRetryable reports whether an error of this type may succeed on a later attempt.
func IsRetryable(errType ErrorType) bool {
	return errType == ErrorTypeTransport
}

// CalculateBackoff returns exponential backoff duration with full jitter
// Full jitter prevents thundering herd problem when many clients retry simultaneously
//
// Formula: random(0, min(maxDelay, initialDelay * 2^attempt))
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}

	base := time.Duration(1<<uint(attempt)) * initialDelay
	if base > maxDelay || base <= 0 {
		base = maxDelay
	}

	return time.Duration(rand.Int63n(int64(base)))
}

// RetryPolicy decides whether a snapshot request is attempted again. It has
// the shape of retryablehttp.CheckRetry: only transport failures (network
// errors, 408, 429 and 5xx) are retried, and never after ctx is done.
func RetryPolicy(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return IsRetryable(ClassifyError(err)), nil
	}
	return IsRetryable(ClassifyStatus(resp.StatusCode)), nil
}

// RetryBackoff has the shape of retryablehttp.Backoff. A throttled response
// waits for its Retry-After; everything else gets full-jitter backoff.
// attemptNum counts from zero.
func RetryBackoff(min, max time.Duration, attemptNum int, resp *nethttp.Response) time.Duration {
	if resp != nil && (resp.StatusCode == nethttp.StatusTooManyRequests || resp.StatusCode == nethttp.StatusServiceUnavailable) {
		if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return CalculateBackoff(attemptNum+1, min, max)
}

// ErrorTypeName returns a human-readable name for an ErrorType
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeTransport:
		return "transport"
	case ErrorTypeProtocol:
		return "protocol"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
