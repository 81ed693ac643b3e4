package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-enricher/internal/config"
	"github.com/sells-group/contact-enricher/internal/model"
)

var (
	// ErrNotFound is returned when no contact has the requested id.
	ErrNotFound = eris.New("contact not found")
	// ErrConflict is returned by BeginAttempt when the contact's enrichment
	// state changed after it was read or another attempt holds it.
	ErrConflict = eris.New("contact enrichment state changed concurrently")
)

// DefaultProcessingLease is how long a contact may sit in processing before
// BeginAttempt lets a new attempt take it over.
const DefaultProcessingLease = 15 * time.Minute

// ContactFilter selects contacts by enrichment status.
type ContactFilter struct {
	Statuses []model.EnrichmentStatus `json:"statuses,omitempty"`
	Limit    int                      `json:"limit,omitempty"`
	Offset   int                      `json:"offset,omitempty"`
}

// Store defines the contact persistence needed by enrichment.
type Store interface {
	// Contacts
	GetContact(ctx context.Context, id int64) (*model.Contact, error)
	CreateContact(ctx context.Context, c *model.Contact) (*model.Contact, error)
	ListContactIDs(ctx context.Context, filter ContactFilter) ([]int64, error)

	// Enrichment state. BeginAttempt moves the contact to processing only if
	// it still has the status and attempt count the caller read, and refuses
	// a contact already processing unless its lease has expired.
	BeginAttempt(ctx context.Context, id int64, seenStatus model.EnrichmentStatus, seenAttempts int) error
	UpdateContact(ctx context.Context, id int64, u model.ContactUpdate) error
	ResetEnrichment(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*model.StatusCounts, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "enricher.db"
		}
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}

const contactColumns = `id, first_name, last_name, email, phone, company, position, address, city, state,
	zip_code, country, twitter_handle, linkedin_profile, github_username, website, notes,
	enrichment_status, enrichment_attempts, enrichment_error, enriched_at, enrichment_source,
	enrichment_data, created_at, updated_at`

// statusExpr reads a NULL or empty status as pending.
const statusExpr = `COALESCE(NULLIF(enrichment_status, ''), 'pending')`

// beginAttemptGuard rejects contacts in processing whose updated_at is newer
// than the lease cutoff.
const beginAttemptGuard = `(` + statusExpr + ` <> 'processing' OR updated_at < `

const statsQuery = `SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN enrichment_status = 'enriched' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN enrichment_status = 'failed' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN ` + statusExpr + ` IN ('pending', 'not_attempted') THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN enrichment_status = 'not_found' THEN 1 ELSE 0 END), 0)
FROM contacts`

type scannable interface {
	Scan(dest ...any) error
}

func scanContact(row scannable) (*model.Contact, error) {
	var (
		c                      model.Contact
		status, errMsg, source *string
		enrichedAt             *time.Time
	)
	err := row.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Company, &c.Position,
		&c.Address, &c.City, &c.State, &c.ZipCode, &c.Country, &c.TwitterHandle,
		&c.LinkedInProfile, &c.GithubUsername, &c.Website, &c.Notes,
		&status, &c.EnrichmentAttempts, &errMsg, &enrichedAt, &source,
		&c.EnrichmentData, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if status != nil {
		c.EnrichmentStatus = model.EnrichmentStatus(*status)
	}
	c.EnrichmentStatus = c.EnrichmentStatus.OrPending()
	c.EnrichmentError = errMsg
	c.EnrichmentSource = source
	if enrichedAt != nil {
		t := enrichedAt.UTC()
		c.EnrichedAt = &t
	}
	return &c, nil
}

// assignment is one column write of an UPDATE.
type assignment struct {
	col string
	val any
}

// contactAssignments lists the column writes for u, ending with updated_at.
func contactAssignments(u model.ContactUpdate, now time.Time) []assignment {
	var out []assignment
	str := func(col string, v *string) {
		if v != nil {
			out = append(out, assignment{col, *v})
		}
	}
	str("email", u.Email)
	str("phone", u.Phone)
	str("position", u.Position)
	str("linkedin_profile", u.LinkedInProfile)
	str("address", u.Address)
	str("company", u.Company)
	str("website", u.Website)
	str("notes", u.Notes)

	if u.EnrichmentStatus != nil {
		out = append(out, assignment{"enrichment_status", string(*u.EnrichmentStatus)})
	}
	switch {
	case u.EnrichmentError != nil:
		out = append(out, assignment{"enrichment_error", *u.EnrichmentError})
	case u.ClearError:
		out = append(out, assignment{"enrichment_error", nil})
	}
	if u.EnrichedAt != nil {
		out = append(out, assignment{"enriched_at", u.EnrichedAt.UTC()})
	}
	str("enrichment_source", u.EnrichmentSource)
	if u.EnrichmentData != nil {
		out = append(out, assignment{"enrichment_data", u.EnrichmentData})
	}
	return append(out, assignment{"updated_at", now})
}

// nullableStatus stores an empty status as NULL.
func nullableStatus(s model.EnrichmentStatus) any {
	if s == "" {
		return nil
	}
	return string(s)
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func filterStatuses(f ContactFilter) []any {
	args := make([]any, 0, len(f.Statuses))
	for _, s := range f.Statuses {
		args = append(args, string(s.OrPending()))
	}
	return args
}
