// Package provider abstracts the identity-data provider used to enrich
// contacts. Implementations decode the provider's payload into typed
// responses so callers never inspect raw JSON.
package provider

import (
	"context"
	"encoding/json"

	"github.com/sells-group/contact-enricher/internal/model"
)

// Client looks up a person by one identifier family.
type Client interface {
	// Name returns the provider identifier recorded as enrichment source.
	Name() string
	// Enabled reports whether the client can reach a provider at all.
	Enabled() bool
	LookupByEmail(ctx context.Context, email string) (*Response, error)
	LookupByLinkedIn(ctx context.Context, linkedInURL string) (*Response, error)
	LookupByNameAndCompany(ctx context.Context, name, company string) (*Response, error)
}

// Response is a definitive provider answer. Exactly one of Found or NotFound
// is set.
type Response struct {
	Found    *Found
	NotFound *NotFound
}

// Found carries a matched person and, when known, the employer.
type Found struct {
	Person  model.Person
	Company *model.Organization
	Raw     json.RawMessage
}

// NotFound is the provider's confirmation that nobody matched.
type NotFound struct {
	Message string
}

// IsFound reports whether the response carries a match.
func (r *Response) IsFound() bool { return r != nil && r.Found != nil }

// Definitive reports whether the response is a match or a confirmed miss.
func (r *Response) Definitive() bool {
	return r != nil && (r.Found != nil || r.NotFound != nil)
}

// FoundResponse builds a match response.
func FoundResponse(p model.Person, c *model.Organization, raw json.RawMessage) *Response {
	return &Response{Found: &Found{Person: p, Company: c, Raw: raw}}
}

// NotFoundResponse builds a no-match response.
func NotFoundResponse(msg string) *Response {
	return &Response{NotFound: &NotFound{Message: msg}}
}
