package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-enricher/internal/db"
	"github.com/sells-group/contact-enricher/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	lease   time.Duration
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgGetContact = `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`

	pgBeginAttempt = `UPDATE contacts
	SET enrichment_attempts = enrichment_attempts + 1, enrichment_status = $1, enrichment_error = NULL, updated_at = $2
	WHERE id = $3 AND ` + statusExpr + ` = $4 AND enrichment_attempts = $5 AND ` + beginAttemptGuard + `$6)`

	pgResetEnrichment = `UPDATE contacts SET enrichment_status = $1, enrichment_error = NULL, updated_at = $2 WHERE id = $3`

	pgContactExists = `SELECT 1 FROM contacts WHERE id = $1`

	pgInsertContact = `INSERT INTO contacts (first_name, last_name, email, phone, company, position, address, city, state,
	zip_code, country, twitter_handle, linkedin_profile, github_username, website, notes,
	enrichment_status, enrichment_attempts, enrichment_error, enriched_at, enrichment_source,
	enrichment_data, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	RETURNING id`
)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot enrichment path.
var preparedStatements = map[string]string{
	"get_contact":      pgGetContact,
	"begin_attempt":    pgBeginAttempt,
	"reset_enrichment": pgResetEnrichment,
	"contact_stats":    statsQuery,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				// The contacts table does not exist until Migrate runs.
				if strings.Contains(err.Error(), "does not exist") {
					continue
				}
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, lease: DefaultProcessingLease}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS contacts (
	id                  BIGSERIAL PRIMARY KEY,
	first_name          TEXT NOT NULL DEFAULT '',
	last_name           TEXT NOT NULL DEFAULT '',
	email               TEXT NOT NULL DEFAULT '',
	phone               TEXT NOT NULL DEFAULT '',
	company             TEXT NOT NULL DEFAULT '',
	position            TEXT NOT NULL DEFAULT '',
	address             TEXT NOT NULL DEFAULT '',
	city                TEXT NOT NULL DEFAULT '',
	state               TEXT NOT NULL DEFAULT '',
	zip_code            TEXT NOT NULL DEFAULT '',
	country             TEXT NOT NULL DEFAULT '',
	twitter_handle      TEXT NOT NULL DEFAULT '',
	linkedin_profile    TEXT NOT NULL DEFAULT '',
	github_username     TEXT NOT NULL DEFAULT '',
	website             TEXT NOT NULL DEFAULT '',
	notes               TEXT NOT NULL DEFAULT '',
	enrichment_status   TEXT,
	enrichment_attempts INTEGER NOT NULL DEFAULT 0,
	enrichment_error    TEXT,
	enriched_at         TIMESTAMPTZ,
	enrichment_source   TEXT,
	enrichment_data     JSONB,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_contacts_enrichment_status ON contacts(enrichment_status);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetContact(ctx context.Context, id int64) (*model.Contact, error) {
	c, err := scanContact(s.pool.QueryRow(ctx, pgGetContact, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: contact %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get contact %d", id)
	}
	return c, nil
}

func (s *PostgresStore) CreateContact(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	now := time.Now().UTC()
	var id int64
	err := s.pool.QueryRow(ctx, pgInsertContact,
		c.FirstName, c.LastName, c.Email, c.Phone, c.Company, c.Position, c.Address, c.City, c.State,
		c.ZipCode, c.Country, c.TwitterHandle, c.LinkedInProfile, c.GithubUsername, c.Website, c.Notes,
		nullableStatus(c.EnrichmentStatus), c.EnrichmentAttempts, c.EnrichmentError, c.EnrichedAt, c.EnrichmentSource,
		nullableBytes(c.EnrichmentData), now, now,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert contact")
	}
	return s.GetContact(ctx, id)
}

func (s *PostgresStore) ListContactIDs(ctx context.Context, filter ContactFilter) ([]int64, error) {
	query := `SELECT id FROM contacts WHERE true`
	args := []any{}
	argIdx := 1

	if len(filter.Statuses) > 0 {
		query += fmt.Sprintf(` AND %s = ANY($%d)`, statusExpr, argIdx)
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filterStatuses(filter) {
			statuses = append(statuses, st.(string))
		}
		args = append(args, statuses)
		argIdx++
	}
	query += ` ORDER BY id`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contacts")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list contacts iterate")
}

func (s *PostgresStore) BeginAttempt(ctx context.Context, id int64, seenStatus model.EnrichmentStatus, seenAttempts int) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, pgBeginAttempt,
		string(model.StatusProcessing), now, id, string(seenStatus.OrPending()), seenAttempts, now.Add(-s.lease),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: begin attempt for contact %d", id)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrConflict(ctx, id)
	}
	return nil
}

func (s *PostgresStore) UpdateContact(ctx context.Context, id int64, u model.ContactUpdate) error {
	if u.IsEmpty() {
		return nil
	}
	sets := contactAssignments(u, time.Now().UTC())
	clauses := make([]string, len(sets))
	args := make([]any, 0, len(sets)+1)
	for i, a := range sets {
		clauses[i] = fmt.Sprintf("%s = $%d", a.col, i+1)
		args = append(args, a.val)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE contacts SET %s WHERE id = $%d`, strings.Join(clauses, ", "), len(args))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update contact %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: contact %d", id)
	}
	return nil
}

func (s *PostgresStore) ResetEnrichment(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, pgResetEnrichment, string(model.StatusPending), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: reset contact %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: contact %d", id)
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.StatusCounts, error) {
	var sc model.StatusCounts
	err := s.pool.QueryRow(ctx, statsQuery).Scan(&sc.Total, &sc.Enriched, &sc.Failed, &sc.Pending, &sc.NotFound)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	return &sc, nil
}

func (s *PostgresStore) missingOrConflict(ctx context.Context, id int64) error {
	var one int
	err := s.pool.QueryRow(ctx, pgContactExists, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "postgres: contact %d", id)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: check contact %d", id)
	}
	return eris.Wrapf(ErrConflict, "postgres: contact %d", id)
}
