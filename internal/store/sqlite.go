package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contact-enricher/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	lease time.Duration
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, lease: DefaultProcessingLease}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS contacts (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
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
	enriched_at         DATETIME,
	enrichment_source   TEXT,
	enrichment_data     BLOB,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_contacts_enrichment_status ON contacts(enrichment_status);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetContact(ctx context.Context, id int64) (*model.Contact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: contact %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get contact %d", id)
	}
	return c, nil
}

func (s *SQLiteStore) CreateContact(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (first_name, last_name, email, phone, company, position, address, city, state,
			zip_code, country, twitter_handle, linkedin_profile, github_username, website, notes,
			enrichment_status, enrichment_attempts, enrichment_error, enriched_at, enrichment_source,
			enrichment_data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.FirstName, c.LastName, c.Email, c.Phone, c.Company, c.Position, c.Address, c.City, c.State,
		c.ZipCode, c.Country, c.TwitterHandle, c.LinkedInProfile, c.GithubUsername, c.Website, c.Notes,
		nullableStatus(c.EnrichmentStatus), c.EnrichmentAttempts, c.EnrichmentError, c.EnrichedAt, c.EnrichmentSource,
		nullableBytes(c.EnrichmentData), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert contact")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last insert id")
	}
	return s.GetContact(ctx, id)
}

func (s *SQLiteStore) ListContactIDs(ctx context.Context, filter ContactFilter) ([]int64, error) {
	query := `SELECT id FROM contacts WHERE 1=1`
	var args []any

	if len(filter.Statuses) > 0 {
		query += ` AND ` + statusExpr + ` IN (?` + strings.Repeat(", ?", len(filter.Statuses)-1) + `)`
		args = append(args, filterStatuses(filter)...)
	}
	query += ` ORDER BY id`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contacts")
	}
	defer rows.Close() //nolint:errcheck

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list contacts iterate")
}

func (s *SQLiteStore) BeginAttempt(ctx context.Context, id int64, seenStatus model.EnrichmentStatus, seenAttempts int) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts
		 SET enrichment_attempts = enrichment_attempts + 1, enrichment_status = ?, enrichment_error = NULL, updated_at = ?
		 WHERE id = ? AND `+statusExpr+` = ? AND enrichment_attempts = ? AND `+beginAttemptGuard+`?)`,
		string(model.StatusProcessing), now, id, string(seenStatus.OrPending()), seenAttempts, now.Add(-s.lease),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin attempt for contact %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return s.missingOrConflict(ctx, id)
	}
	return nil
}

func (s *SQLiteStore) UpdateContact(ctx context.Context, id int64, u model.ContactUpdate) error {
	if u.IsEmpty() {
		return nil
	}
	sets := contactAssignments(u, time.Now().UTC())
	clauses := make([]string, len(sets))
	args := make([]any, 0, len(sets)+1)
	for i, a := range sets {
		clauses[i] = a.col + " = ?"
		args = append(args, a.val)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, `UPDATE contacts SET `+strings.Join(clauses, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update contact %d", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) ResetEnrichment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET enrichment_status = ?, enrichment_error = NULL, updated_at = ? WHERE id = ?`,
		string(model.StatusPending), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reset contact %d", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.StatusCounts, error) {
	var sc model.StatusCounts
	err := s.db.QueryRowContext(ctx, statsQuery).Scan(&sc.Total, &sc.Enriched, &sc.Failed, &sc.Pending, &sc.NotFound)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	return &sc, nil
}

func (s *SQLiteStore) missingOrConflict(ctx context.Context, id int64) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM contacts WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "sqlite: contact %d", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: check contact %d", id)
	}
	return eris.Wrapf(ErrConflict, "sqlite: contact %d", id)
}

func checkRowsAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "contact %d", id)
	}
	return nil
}
