package enrich

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-enricher/internal/config"
	"github.com/sells-group/contact-enricher/internal/model"
	"github.com/sells-group/contact-enricher/internal/provider"
	"github.com/sells-group/contact-enricher/internal/store"
)

// --- Provider Mock ---

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string  { return "rocketreach" }
func (m *mockProvider) Enabled() bool { return true }

func (m *mockProvider) LookupByEmail(ctx context.Context, email string) (*provider.Response, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Response), args.Error(1)
}

func (m *mockProvider) LookupByLinkedIn(ctx context.Context, linkedInURL string) (*provider.Response, error) {
	args := m.Called(ctx, linkedInURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Response), args.Error(1)
}

func (m *mockProvider) LookupByNameAndCompany(ctx context.Context, name, company string) (*provider.Response, error) {
	args := m.Called(ctx, name, company)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Response), args.Error(1)
}

// --- Fixtures ---

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	store    store.Store
	provider *mockProvider
	metrics  *Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, &mockProvider{}, config.ProviderConfig{APIKey: "test-key"})
}

func newFixtureWith(t *testing.T, p provider.Client, pcfg config.ProviderConfig) *fixture {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "enrich.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	m := NewMetrics(prometheus.NewRegistry())
	svc := NewService(st, p, pcfg, config.EnrichmentConfig{FreshnessHours: 24, DefaultStrategy: "auto"},
		WithMetrics(m),
		WithClock(func() time.Time { return testNow }),
	)
	mp, _ := p.(*mockProvider)
	return &fixture{svc: svc, store: st, provider: mp, metrics: m}
}

func (f *fixture) seed(t *testing.T, c model.Contact) *model.Contact {
	t.Helper()
	created, err := f.store.CreateContact(context.Background(), &c)
	require.NoError(t, err)
	return created
}

func (f *fixture) reload(t *testing.T, id int64) *model.Contact {
	t.Helper()
	c, err := f.store.GetContact(context.Background(), id)
	require.NoError(t, err)
	return c
}

func strPtr(s string) *string { return &s }

func acmeMatch() *provider.Response {
	return provider.FoundResponse(
		model.Person{
			ID:          "42",
			Name:        "Jane Doe",
			Emails:      []string{"jane@acme.io", "jane@gmail.com"},
			Phones:      []string{"+1 512 555 0100", "+1 512 555 0199"},
			Title:       "VP Engineering",
			Location:    "Austin, TX",
			LinkedInURL: "https://www.linkedin.com/in/janedoe",
		},
		&model.Organization{
			Name:          "Acme",
			Domain:        "acme.io",
			Industry:      "Software",
			EmployeeCount: "250",
			Location:      "Austin, TX",
		},
		[]byte(`{"id":42}`),
	)
}
