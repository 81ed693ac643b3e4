package provider

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// Failure kinds. Provider errors match exactly one of these with errors.Is,
// except API failures which are *APIError values.
var (
	ErrDisabled        = eris.New("provider disabled")
	ErrRateLimited     = eris.New("provider rate limit exceeded, retry later")
	ErrNetwork         = eris.New("provider unreachable")
	ErrMissingIdentity = eris.New("insufficient identifying data")
)

// Error tags an underlying failure with one of the failure kinds.
type Error struct {
	Kind       error
	Err        error
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

// Is matches the failure kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// APIError is a non-success response the provider returned deliberately:
// bad credentials, a rejected request, a server error or a malformed body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return "provider api error: " + e.Message
	}
	return fmt.Sprintf("provider api error (status %d): %s", e.Status, e.Message)
}
