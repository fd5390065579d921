package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// HTTPError is returned for any non-2xx response. The body is not inspected.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.Status)
}

// StatusCode extracts the HTTP status of err, or 0 when err is not an HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

// ErrorCode classifies err into a short label for metrics.
func ErrorCode(err error) string {
	if err == nil {
		return "ok"
	}
	if status := StatusCode(err); status != 0 {
		switch {
		case status >= 500:
			return "http_5xx"
		case status == 429:
			return "http_429"
		default:
			return "http_4xx"
		}
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return "decode"
	}
	return "error"
}

// DecodeError wraps a malformed success body.
type DecodeError struct {
	Endpoint string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response: %v", e.Endpoint, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
