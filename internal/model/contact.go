package model

import (
	"strings"
	"time"
)

// EnrichmentStatus is the lifecycle state of a contact's enrichment.
type EnrichmentStatus string

const (
	StatusNotAttempted EnrichmentStatus = "not_attempted"
	StatusPending      EnrichmentStatus = "pending"
	StatusProcessing   EnrichmentStatus = "processing"
	StatusEnriched     EnrichmentStatus = "enriched"
	StatusFailed       EnrichmentStatus = "failed"
	StatusNotFound     EnrichmentStatus = "not_found" // terminal
)

// IsValid reports whether s is a known status.
func (s EnrichmentStatus) IsValid() bool {
	switch s {
	case StatusNotAttempted, StatusPending, StatusProcessing, StatusEnriched, StatusFailed, StatusNotFound:
		return true
	}
	return false
}

// OrPending returns StatusPending for an empty status.
func (s EnrichmentStatus) OrPending() EnrichmentStatus {
	if s == "" {
		return StatusPending
	}
	return s
}

// Contact is a CRM contact with its enrichment metadata.
type Contact struct {
	ID              int64  `json:"id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Company         string `json:"company,omitempty"`
	Position        string `json:"position,omitempty"`
	Address         string `json:"address,omitempty"`
	City            string `json:"city,omitempty"`
	State           string `json:"state,omitempty"`
	ZipCode         string `json:"zip_code,omitempty"`
	Country         string `json:"country,omitempty"`
	TwitterHandle   string `json:"twitter_handle,omitempty"`
	LinkedInProfile string `json:"linkedin_profile,omitempty"`
	GithubUsername  string `json:"github_username,omitempty"`
	Website         string `json:"website,omitempty"`
	Notes           string `json:"notes,omitempty"`

	EnrichmentStatus   EnrichmentStatus `json:"enrichment_status"`
	EnrichmentAttempts int              `json:"enrichment_attempts"`
	EnrichmentError    *string          `json:"enrichment_error,omitempty"`
	EnrichedAt         *time.Time       `json:"enriched_at,omitempty"`
	EnrichmentSource   *string          `json:"enrichment_source,omitempty"`
	EnrichmentData     []byte           `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins first and last name.
func (c *Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// HasNameAndCompany reports whether first name, last name and company are all set.
func (c *Contact) HasNameAndCompany() bool {
	return notBlank(c.FirstName) && notBlank(c.LastName) && notBlank(c.Company)
}

// FreshlyEnriched reports whether the contact was enriched within window of now.
func (c *Contact) FreshlyEnriched(now time.Time, window time.Duration) bool {
	if c.EnrichmentStatus != StatusEnriched || c.EnrichedAt == nil {
		return false
	}
	return c.EnrichedAt.After(now.Add(-window))
}

// ContactUpdate is a sparse set of column writes. Nil fields are left untouched.
type ContactUpdate struct {
	Email           *string
	Phone           *string
	Position        *string
	LinkedInProfile *string
	Address         *string
	Company         *string
	Website         *string
	Notes           *string

	EnrichmentStatus *EnrichmentStatus
	EnrichmentError  *string
	ClearError       bool // sets enrichment_error to NULL; ignored when EnrichmentError is set
	EnrichedAt       *time.Time
	EnrichmentSource *string
	EnrichmentData   []byte
}

// IsEmpty reports whether the update writes nothing.
func (u ContactUpdate) IsEmpty() bool {
	return u.Email == nil && u.Phone == nil && u.Position == nil && u.LinkedInProfile == nil &&
		u.Address == nil && u.Company == nil && u.Website == nil && u.Notes == nil &&
		u.EnrichmentStatus == nil && u.EnrichmentError == nil && !u.ClearError && u.EnrichedAt == nil &&
		u.EnrichmentSource == nil && u.EnrichmentData == nil
}

// Apply copies the update onto c in place.
func (u ContactUpdate) Apply(c *Contact) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&c.Email, u.Email)
	set(&c.Phone, u.Phone)
	set(&c.Position, u.Position)
	set(&c.LinkedInProfile, u.LinkedInProfile)
	set(&c.Address, u.Address)
	set(&c.Company, u.Company)
	set(&c.Website, u.Website)
	set(&c.Notes, u.Notes)
	if u.EnrichmentStatus != nil {
		c.EnrichmentStatus = *u.EnrichmentStatus
	}
	switch {
	case u.EnrichmentError != nil:
		msg := *u.EnrichmentError
		c.EnrichmentError = &msg
	case u.ClearError:
		c.EnrichmentError = nil
	}
	if u.EnrichedAt != nil {
		t := *u.EnrichedAt
		c.EnrichedAt = &t
	}
	if u.EnrichmentSource != nil {
		s := *u.EnrichmentSource
		c.EnrichmentSource = &s
	}
	if u.EnrichmentData != nil {
		c.EnrichmentData = u.EnrichmentData
	}
}

// StatusRecord is the read-only view of a contact's enrichment state.
type StatusRecord struct {
	Status     EnrichmentStatus `json:"status" yaml:"status"`
	Attempts   int              `json:"attempts" yaml:"attempts"`
	LastError  *string          `json:"last_error" yaml:"last_error"`
	EnrichedAt *time.Time       `json:"enriched_at" yaml:"enriched_at"`
	Source     *string          `json:"source" yaml:"source"`
}

// DefaultStatusRecord is reported for contacts that were never enriched.
func DefaultStatusRecord() StatusRecord {
	return StatusRecord{Status: StatusPending}
}

// StatusCounts holds per-status contact counts.
type StatusCounts struct {
	Total    int `json:"total" yaml:"total"`
	Enriched int `json:"enriched" yaml:"enriched"`
	Failed   int `json:"failed" yaml:"failed"`
	Pending  int `json:"pending" yaml:"pending"`
	NotFound int `json:"not_found" yaml:"not_found"`
}

// Stats summarises enrichment coverage across all contacts.
type Stats struct {
	StatusCounts       `yaml:",inline"`
	EnrichmentRate     float64 `json:"enrichment_rate_percent" yaml:"enrichment_rate_percent"`
	ProviderConfigured bool    `json:"provider_configured" yaml:"provider_configured"`
	Message            string  `json:"message,omitempty" yaml:"message,omitempty"`
}

func notBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}
