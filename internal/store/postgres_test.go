package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-enricher/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock, lease: DefaultProcessingLease}
	return s, mock
}

func contactRow(mock pgxmock.PgxPoolIface, id int64, status *string, attempts int) *pgxmock.Rows {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return mock.NewRows([]string{
		"id", "first_name", "last_name", "email", "phone", "company", "position", "address", "city", "state",
		"zip_code", "country", "twitter_handle", "linkedin_profile", "github_username", "website", "notes",
		"enrichment_status", "enrichment_attempts", "enrichment_error", "enriched_at", "enrichment_source",
		"enrichment_data", "created_at", "updated_at",
	}).AddRow(
		id, "Ann", "Bee", "ann@acme.io", "555-0000", "Acme", "", "", "", "",
		"", "", "", "", "", "", "",
		status, attempts, (*string)(nil), (*time.Time)(nil), (*string)(nil),
		[]byte(nil), now, now,
	)
}

func TestPostgresStore_GetContact(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	status := "failed"

	mock.ExpectQuery(`SELECT id, first_name, .* FROM contacts WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(contactRow(mock, 7, &status, 2))

	c, err := s.GetContact(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.ID)
	assert.Equal(t, "555-0000", c.Phone)
	assert.Equal(t, model.StatusFailed, c.EnrichmentStatus)
	assert.Equal(t, 2, c.EnrichmentAttempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetContact_NullStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM contacts WHERE id = \$1`).
		WithArgs(int64(8)).
		WillReturnRows(contactRow(mock, 8, nil, 0))

	c, err := s.GetContact(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, c.EnrichmentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetContact_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM contacts WHERE id = \$1`).
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetContact(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetContact_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM contacts WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnError(errors.New("connection lost"))

	_, err := s.GetContact(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "get contact 1")
}

func TestPostgresStore_BeginAttempt(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE contacts\s+SET enrichment_attempts = enrichment_attempts \+ 1`).
		WithArgs("processing", pgxmock.AnyArg(), int64(3), "pending", 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.BeginAttempt(context.Background(), 3, "", 0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BeginAttempt_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE contacts\s+SET enrichment_attempts`).
		WithArgs("processing", pgxmock.AnyArg(), int64(3), "failed", 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM contacts WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(mock.NewRows([]string{"?column?"}).AddRow(1))

	err := s.BeginAttempt(context.Background(), 3, model.StatusFailed, 1)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BeginAttempt_RejectsLiveProcessing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`enrichment_attempts = \$5 AND \(COALESCE\(NULLIF\(enrichment_status, ''\), 'pending'\) <> 'processing' OR updated_at < \$6\)`).
		WithArgs("processing", pgxmock.AnyArg(), int64(3), "processing", 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM contacts WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(mock.NewRows([]string{"?column?"}).AddRow(1))

	err := s.BeginAttempt(context.Background(), 3, model.StatusProcessing, 1)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BeginAttempt_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE contacts\s+SET enrichment_attempts`).
		WithArgs("processing", pgxmock.AnyArg(), int64(9), "pending", 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM contacts WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnError(pgx.ErrNoRows)

	err := s.BeginAttempt(context.Background(), 9, model.StatusPending, 0)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateContact(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	status := model.StatusFailed
	msg := "provider unreachable"

	mock.ExpectExec(`UPDATE contacts SET enrichment_status = \$1, enrichment_error = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs("failed", msg, pgxmock.AnyArg(), int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateContact(context.Background(), 5, model.ContactUpdate{EnrichmentStatus: &status, EnrichmentError: &msg})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateContact_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	notes := "x"

	mock.ExpectExec(`UPDATE contacts SET notes = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs(notes, pgxmock.AnyArg(), int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateContact(context.Background(), 5, model.ContactUpdate{Notes: &notes})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_ResetEnrichment(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE contacts SET enrichment_status = \$1, enrichment_error = NULL`).
		WithArgs("pending", pgxmock.AnyArg(), int64(11)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.ResetEnrichment(context.Background(), 11))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Stats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT\s+COUNT\(\*\)`).
		WillReturnRows(mock.NewRows([]string{"total", "enriched", "failed", "pending", "not_found"}).
			AddRow(10, 4, 2, 3, 1))

	sc, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusCounts{Total: 10, Enriched: 4, Failed: 2, Pending: 3, NotFound: 1}, *sc)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListContactIDs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id FROM contacts WHERE true AND .* = ANY\(\$1\) ORDER BY id LIMIT \$2`).
		WithArgs([]string{"pending", "failed"}, 50).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(4)))

	ids, err := s.ListContactIDs(context.Background(), ContactFilter{
		Statuses: []model.EnrichmentStatus{model.StatusPending, model.StatusFailed},
		Limit:    50,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateContact(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO contacts .* RETURNING id`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(12)))
	status := "pending"
	mock.ExpectQuery(`FROM contacts WHERE id = \$1`).
		WithArgs(int64(12)).
		WillReturnRows(contactRow(mock, 12, &status, 0))

	c, err := s.CreateContact(context.Background(), &model.Contact{FirstName: "Ann", LastName: "Bee"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS contacts`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
