package enrich

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-enricher/internal/provider"
	"github.com/sells-group/contact-enricher/internal/store"
)

// Failure categories returned by Service. Match them with errors.Is.
var (
	ErrProviderUnavailable  = eris.New("enrichment provider unavailable")
	ErrInsufficientData     = eris.New("insufficient data for enrichment")
	ErrRateLimited          = eris.New("provider rate limit exceeded")
	ErrNetwork              = eris.New("provider network error")
	ErrAPI                  = eris.New("provider api error")
	ErrContactNotFound      = eris.New("contact not found")
	ErrPersistence          = eris.New("persistence error")
	ErrEnrichmentInProgress = eris.New("enrichment already in progress")
)

// ErrorKind classifies an error for logs, metrics and HTTP status codes.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindInsufficientData    ErrorKind = "insufficient_data"
	KindRateLimited         ErrorKind = "rate_limited"
	KindNetwork             ErrorKind = "network"
	KindAPI                 ErrorKind = "api_error"
	KindContactNotFound     ErrorKind = "contact_not_found"
	KindPersistence         ErrorKind = "persistence"
	KindInProgress          ErrorKind = "in_progress"
	KindUnknown             ErrorKind = "unknown"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrProviderUnavailable, KindProviderUnavailable},
	{ErrInsufficientData, KindInsufficientData},
	{ErrRateLimited, KindRateLimited},
	{ErrNetwork, KindNetwork},
	{ErrAPI, KindAPI},
	{ErrContactNotFound, KindContactNotFound},
	{ErrPersistence, KindPersistence},
	{ErrEnrichmentInProgress, KindInProgress},
}

// Kind returns the category of err, KindNone for nil and KindUnknown for
// errors that did not come from Service.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// Error is a categorized failure with a user-facing message.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

// Is matches the category sentinel.
func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func newError(kind error, msg string, cause error) *Error {
	if msg == "" {
		msg = kind.Error()
	}
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// classifyProvider maps a provider failure onto the enrichment categories.
func classifyProvider(err error) *Error {
	var (
		pe     *provider.Error
		apiErr *provider.APIError
	)
	switch {
	case errors.Is(err, provider.ErrDisabled):
		msg := err.Error()
		if errors.As(err, &pe) && pe.Err != nil {
			msg = pe.Err.Error()
		}
		return newError(ErrProviderUnavailable, msg, err)
	case errors.Is(err, provider.ErrMissingIdentity):
		return newError(ErrInsufficientData, insufficientMessage(err), err)
	case errors.Is(err, provider.ErrRateLimited):
		msg := "provider rate limit exceeded, retry later"
		if errors.As(err, &pe) && pe.RetryAfter > 0 {
			msg = fmt.Sprintf("provider rate limit exceeded, retry in %s", pe.RetryAfter)
		}
		return newError(ErrRateLimited, msg, err)
	case errors.Is(err, provider.ErrNetwork),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		cause := err
		if errors.As(err, &pe) && pe.Err != nil {
			cause = pe.Err
		}
		return newError(ErrNetwork, "provider unreachable: "+cause.Error(), err)
	case errors.As(err, &apiErr):
		return newError(ErrAPI, apiErr.Error(), err)
	default:
		return newError(ErrAPI, "provider error: "+err.Error(), err)
	}
}

// classifyStore maps a store failure onto the enrichment categories.
func classifyStore(err error, id int64) *Error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return newError(ErrContactNotFound, fmt.Sprintf("contact %d not found", id), err)
	case errors.Is(err, store.ErrConflict):
		return newError(ErrEnrichmentInProgress, fmt.Sprintf("contact %d is already being enriched", id), err)
	default:
		return newError(ErrPersistence, fmt.Sprintf("persist contact %d: %v", id, err), err)
	}
}

// insufficientMessage strips the sentinel suffix so the message names only
// the missing fields.
func insufficientMessage(err error) string {
	msg := err.Error()
	suffix := ": " + provider.ErrMissingIdentity.Error()
	if len(msg) > len(suffix) && msg[len(msg)-len(suffix):] == suffix {
		return msg[:len(msg)-len(suffix)]
	}
	return msg
}
