package rocketreach

import (
	"fmt"
	"time"
)

// APIError is a non-success response other than 404 and 429.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rocketreach: api error (status %d): %s", e.StatusCode, e.Message)
}

// RateLimitError is returned on HTTP 429. RetryAfter is zero when the
// provider sent no Retry-After header.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rocketreach: rate limit exceeded (retry after %s): %s", e.RetryAfter, e.Message)
	}
	return "rocketreach: rate limit exceeded: " + e.Message
}

// NetworkError wraps a transport failure: DNS, connect, TLS, timeout, or a
// body that could not be read.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "rocketreach: network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
