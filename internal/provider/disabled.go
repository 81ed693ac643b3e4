package provider

import (
	"context"

	"github.com/rotisserie/eris"
)

const (
	msgNotConfigured = "RocketReach API key not configured. Add rocketreach.api_key to config.yaml or set ENRICHER_ROCKETREACH_API_KEY to enable enrichment."
	msgUnavailable   = "RocketReach API key is configured but the client is not available. Check the rocketreach settings and logs."
)

// Disabled stands in for a provider that cannot be used. Every lookup fails
// with ErrDisabled carrying an actionable message.
type Disabled struct {
	configured bool
}

// NewDisabled returns the null provider. configured distinguishes missing
// credentials from a client that failed to initialize.
func NewDisabled(configured bool) *Disabled {
	return &Disabled{configured: configured}
}

// Message explains why enrichment is unavailable and how to fix it.
func (d *Disabled) Message() string {
	if d.configured {
		return msgUnavailable
	}
	return msgNotConfigured
}

func (d *Disabled) Name() string  { return "disabled" }
func (d *Disabled) Enabled() bool { return false }

func (d *Disabled) LookupByEmail(context.Context, string) (*Response, error) {
	return nil, d.err()
}

func (d *Disabled) LookupByLinkedIn(context.Context, string) (*Response, error) {
	return nil, d.err()
}

func (d *Disabled) LookupByNameAndCompany(context.Context, string, string) (*Response, error) {
	return nil, d.err()
}

func (d *Disabled) err() error {
	return &Error{Kind: ErrDisabled, Err: eris.New(d.Message())}
}
