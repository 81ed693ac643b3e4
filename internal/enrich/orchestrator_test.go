package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-enricher/internal/config"
	"github.com/sells-group/contact-enricher/internal/model"
	"github.com/sells-group/contact-enricher/internal/provider"
)

func TestEnrich_Success(t *testing.T) {
	f := newFixture(t)
	c := f.seed(t, model.Contact{FirstName: "Jane", LastName: "Doe", Email: "jane@acme.io", Notes: "met at expo"})
	f.provider.On("LookupByEmail", mock.Anything, "jane@acme.io").Return(acmeMatch(), nil).Once()

	out, err := f.svc.Enrich(context.Background(), c.ID, provider.StrategyAuto)
	require.NoError(t, err)

	assert.Equal(t, model.ResultSuccess, out.Result.Kind)
	assert.False(t, out.Cached)
	assert.Equal(t, "email", out.Strategy)

	got := out.Contact
	assert.Equal(t, model.StatusEnriched, got.EnrichmentStatus)
	assert.Equal(t, 1, got.EnrichmentAttempts)
	assert.Nil(t, got.EnrichmentError)
	require.NotNil(t, got.EnrichedAt)
	assert.True(t, testNow.Equal(*got.EnrichedAt))
	require.NotNil(t, got.EnrichmentSource)
	assert.Equal(t, "rocketreach:email", *got.EnrichmentSource)

	assert.Equal(t, "jane@acme.io", got.Email)
	assert.Equal(t, "+1 512 555 0100", got.Phone, "first phone only")
	assert.Equal(t, "VP Engineering", got.Position)
	assert.Equal(t, "https://www.linkedin.com/in/janedoe", got.LinkedInProfile)
	assert.Equal(t, "Austin, TX", got.Address)
	assert.Equal(t, "Acme", got.Company)
	assert.Equal(t, "https://acme.io", got.Website)
	assert.Equal(t, "met at expo\n\n--- Enriched Data ---\nIndustry: Software\nEmployees: 250\nLocation: Austin, TX", got.Notes)

	p, err := DecodePayload(got.EnrichmentData)
	require.NoError(t, err)
	assert.Equal(t, "rocketreach", p.Provider)
	assert.Equal(t, "email", p.Strategy)
	assert.Equal(t, "42", p.Person.ID)
	assert.JSONEq(t, `{"id":42}`, string(p.Raw))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Attempts.WithLabelValues("email")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Outcomes.WithLabelValues("enriched")))
	f.provider.AssertExpectations(t)
}

func TestEnrich_NotFoundStatusSkipsProvider(t *testing.T) {
	f := newFixture(t)
	c := f.seed(t, model.Contact{
		Email:              "ghost@nowhere.io",
		EnrichmentStatus:   model.StatusNotFound,
		EnrichmentAttempts: 1,
		EnrichmentError:    strPtr("Person not found in RocketReach database"),
	})

	for _, force := range []bool{false, true} {
		out, err := f.svc.EnrichWith(context.Background(), c.ID, provider.StrategyAuto, EnrichOptions{Force: force})
		require.NoError(t, err)
		assert.Equal(t, model.ResultNotFound, out.Result.Kind)
		assert.True(t, out.Cached)
		assert.Equal(t, "Person not found in RocketReach database", out.Result.NotFound.Message)
	}

	f.provider.AssertNotCalled(t, "LookupByEmail", mock.Anything, mock.Anything)
	assert.Equal(t, 1, f.reload(t, c.ID).EnrichmentAttempts)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ShortCircuits.WithLabelValues("not_found")))
}

func TestEnrich_FreshlyEnrichedSkipsProvider(t *testing.T) {
	f := newFixture(t)
	enrichedAt := testNow.Add(-23 * time.Hour)
	data, err := EncodePayload("rocketreach", "email", enrichedAt, &model.Person{Name: "Jane Doe"}, nil, nil)
	require.NoError(t, err)
	c := f.seed(t, model.Contact{
		Email:              "jane@acme.io",
		EnrichmentStatus:   model.StatusEnriched,
		EnrichmentAttempts: 1,
		EnrichedAt:         &enrichedAt,
		EnrichmentData:     data,
	})

	out, err := f.svc.Enrich(context.Background(), c.ID, provider.StrategyAuto)
	require.NoError(t, err)

	assert.True(t, out.Cached)
	assert.Equal(t, model.ResultSuccess, out.Result.Kind)
	require.NotNil(t, out.Result.Success.Person)
	assert.Equal(t, "Jane Doe", out.Result.Success.Person.Name)
	f.provider.AssertNotCalled(t, "LookupByEmail", mock.Anything, mock.Anything)
	assert.Equal(t, 1, f.reload(t, c.ID).EnrichmentAttempts)
}

func TestEnrich_StaleOrForcedCallsProvider(t *testing.T) {
	tests := []struct {
		name  string
		age   time.Duration
		force bool
	}{
		{"older than window", 25 * time.Hour, false},
		{"fresh but forced", time.Hour, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			enrichedAt := testNow.Add(-tt.age)
			c := f.seed(t, model.Contact{
				Email:              "jane@acme.io",
				EnrichmentStatus:   model.StatusEnriched,
				EnrichmentAttempts: 1,
				EnrichedAt:         &enrichedAt,
			})
			f.provider.On("LookupByEmail", mock.Anything, "jane@acme.io").Return(acmeMatch(), nil).Once()

			out, err := f.svc.EnrichWith(context.Background(), c.ID, provider.StrategyAuto, EnrichOptions{Force: tt.force})
			require.NoError(t, err)
			assert.False(t, out.Cached)
			assert.Equal(t, 2, out.Contact.EnrichmentAttempts)
			f.provider.AssertExpectations(t)
		})
	}
}

func TestEnrich_PreservesExistingFields(t *testing.T) {
	f := newFixture(t)
	c := f.seed(t, model.Contact{Email: "jane@acme.io", Phone: "555-0000", Company: "Acme Holdings", Website: "acme.example"})
	f.provider.On("LookupByEmail", mock.Anything, "jane@acme.io").Return(acmeMatch(), nil)

	out, err := f.svc.Enrich(context.Background(), c.ID, provider.StrategyEmail)
	require.NoError(t, err)

	assert.Equal(t, "555-0000", out.Contact.Phone)
	assert.Equal(t, "jane@acme.io", out.Contact.Email)
	assert.Equal(t, "Acme Holdings", out.Contact.Company)
	assert.Equal(t, "acme.example", out.Contact.Website)
	assert.Equal(t, "VP Engineering", out.Contact.Position, "empty fields are still filled")
}

func TestEnrich_AutoTriesEmailBeforeLinkedIn(t *testing.T) {
	f := newFixture(t)
	c := f.seed(t, model.Contact{
		FirstName:       "Jane",
		LastName:        "Doe",
		Company:         "Acme",
		Email:           "jane@acme.io",
		LinkedInProfile: "https://www.linkedin.com/in/janedoe",
	})
	f.provider.On("LookupByEmail", mock.Anything, "jane@acme.io").Return(provider.NotFoundResponse("no match"), nil).Once()

	out, err := f.svc.Enrich(context.Background(), c.ID, provider.StrategyAuto)
	require.NoError(t, err)

	assert.Equal(t, "email", out.Strategy)
	f.provider.AssertNotCalled(t, "LookupByLinkedIn", mock.Anything, mock.Anything)
	f.provider.AssertNotCalled(t, "LookupByNameAndCompany", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnrich_AutoFallsBackToNameAndCompany(t *testing.T) {
	f := newFixture(t)
	c := f.seed(t, model.Contact{FirstName: "Jane", LastName: "Doe", Company: "Acme"})
	f.provider.On("LookupByNameAndCompany", mock.Anything, "Jane Doe", "Acme").Return(acmeMatch(), nil).Once()

	out, err := f.svc.Enrich(context.Background(), c.ID, "")
	require.NoError(t, err)

	assert.Equal(t, "name_company", out.Strategy)
	require.NotNil(t, out.Contact.EnrichmentSource)
	assert.Equal(t, "rocketreach:name_company", *out.Contact.EnrichmentSource)
	assert.Equal(t, "Acme", out.Contact.Company)
}

func TestEnrich_ProviderNotFound(t *testing.T) {
	f := newFixture(t)
	c := f.seed(t, model.Contact{LinkedInProfile: "https://www.linkedin.com/in/ghost"})
	f.provider.On("LookupByLinkedIn", mock.Anything, "https://www.linkedin.com/in/ghost").
		Return(provider.NotFoundResponse("Person not found in RocketReach database"), nil).Once()

	out, err := f.svc.Enrich(context.Background(), c.ID, provider.StrategyLinkedIn)
	require.NoError(t, err)

	assert.Equal(t, model.ResultNotFound, out.Result.Kind)
	assert.Equal(t, model.StatusNotFound, out.Contact.EnrichmentStatus)
	require.NotNil(t, out.Contact.EnrichmentError)
	assert.Equal(t, "Person not found in RocketReach database", *out.Contact.EnrichmentError)
	assert.Equal(t, 1, out.Contact.EnrichmentAttempts)

	// Terminal: a second call is answered from state.
	again, err := f.svc.Enrich(context.Background(), c.ID, provider.StrategyLinkedIn)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	f.provider.AssertNumberOfCalls(t, "LookupByLinkedIn", 1)
}

func TestEnrich_InsufficientDataWritesNothing(t *testing.T) {
	tests := []struct {
		name     string
		contact  model.Contact
		strategy provider.Strategy
		wantMsg  string
	}{
		{"auto without identifiers", model.Contact{FirstName: "Jane", Company: "Acme"}, provider.StrategyAuto, "required"},
		{"email strategy without email", model.Contact{LinkedInProfile: "https://linkedin.com/in/x"}, provider.StrategyEmail, "email required for email strategy"},
		{"linkedin strategy without url", model.Contact{Email: "a@b.co"}, provider.StrategyLinkedIn, "LinkedIn URL required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.seed(t, tt.contact)

			_, err := f.svc.Enrich(context.Background(), c.ID, tt.strategy)
			require.ErrorIs(t, err, ErrInsufficientData)
			assert.Equal(t, KindInsufficientData, Kind(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.NotContains(t, err.Error(), "insufficient identifying data")

			got := f.reload(t, c.ID)
			assert.Equal(t, 0, got.EnrichmentAttempts)
			assert.Equal(t, model.StatusPending, got.EnrichmentStatus)
			assert.Empty(t, f.provider.Calls)
		})
	}
}

func TestEnrich_ContactNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Enrich(context.Background(), 999, provider.StrategyAuto)
	require.ErrorIs(t, err, ErrContactNotFound)
	assert.Equal(t, KindContactNotFound, Kind(err))
}

func TestEnrich_ProviderErrorsPersistFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    error
		wantMsg string
	}{
		{"rate limited", &provider.Error{Kind: provider.ErrRateLimited, RetryAfter: 30 * time.Second}, ErrRateLimited, "retry in 30s"},
		{"network", &provider.Error{Kind: provider.ErrNetwork, Err: errors.New("dial tcp: connection refused")}, ErrNetwork, "connection refused"},
		{"api", &provider.APIError{Status: 401, Message: "invalid API key"}, ErrAPI, "invalid API key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.seed(t, model.Contact{Email: "jane@acme.io"})
			f.provider.On("LookupByEmail", mock.Anything, "jane@acme.io").Return(nil, tt.err).Once()

			_, err := f.svc.Enrich(context.Background(), c.ID, provider.StrategyAuto)
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.wantMsg)

			got := f.reload(t, c.ID)
			assert.Equal(t, model.StatusFailed, got.EnrichmentStatus)
			assert.Equal(t, 1, got.EnrichmentAttempts)
			require.NotNil(t, got.EnrichmentError)
			assert.Equal(t, err.Error(), *got.EnrichmentError)
		})
	}
}

func TestEnrich_RepeatedFailuresCountAttempts(t *testing.T) {
	f := newFixture(t)
	c := f.seed(t, model.Contact{Email: "jane@acme.io"})
	f.provider.On("LookupByEmail", mock.Anything, "jane@acme.io").
		Return(nil, &provider.Error{Kind: provider.ErrNetwork, Err: errors.New("timeout")})

	for i := 0; i < 3; i++ {
		_, err := f.svc.Enrich(context.Background(), c.ID, provider.StrategyAuto)
		require.ErrorIs(t, err, ErrNetwork)

		got := f.reload(t, c.ID)
		assert.Equal(t, model.StatusFailed, got.EnrichmentStatus, "call %d", i+1)
		assert.Equal(t, i+1, got.EnrichmentAttempts, "call %d", i+1)
	}
	f.provider.AssertNumberOfCalls(t, "LookupByEmail", 3)
}

func TestEnrich_FailureThenSuccessClearsError(t *testing.T) {
	f := newFixture(t)
	c := f.seed(t, model.Contact{Email: "jane@acme.io"})
	f.provider.On("LookupByEmail", mock.Anything, "jane@acme.io").
		Return(nil, &provider.APIError{Status: 500, Message: "boom"}).Once()
	f.provider.On("LookupByEmail", mock.Anything, "jane@acme.io").Return(acmeMatch(), nil).Once()

	_, err := f.svc.Enrich(context.Background(), c.ID, provider.StrategyAuto)
	require.Error(t, err)

	out, err := f.svc.Enrich(context.Background(), c.ID, provider.StrategyAuto)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Contact.EnrichmentAttempts)
	assert.Nil(t, out.Contact.EnrichmentError)
	assert.Equal(t, model.StatusEnriched, out.Contact.EnrichmentStatus)
}

func TestEnrich_RepeatedSuccessAppendsNotesAgain(t *testing.T) {
	f := newFixture(t)
	c := f.seed(t, model.Contact{Email: "jane@acme.io"})
	f.provider.On("LookupByEmail", mock.Anything, "jane@acme.io").Return(acmeMatch(), nil)

	_, err := f.svc.Enrich(context.Background(), c.ID, provider.StrategyAuto)
	require.NoError(t, err)
	out, err := f.svc.EnrichWith(context.Background(), c.ID, provider.StrategyAuto, EnrichOptions{Force: true})
	require.NoError(t, err)

	assert.Equal(t, 2, countOf(out.Contact.Notes, "--- Enriched Data ---"))
}

func TestEnrich_ProviderDisabled(t *testing.T) {
	f := newFixtureWith(t, provider.NewDisabled(false), config.ProviderConfig{})
	c := f.seed(t, model.Contact{Email: "jane@acme.io"})

	_, err := f.svc.Enrich(context.Background(), c.ID, provider.StrategyAuto)
	require.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "ENRICHER_ROCKETREACH_API_KEY")

	got := f.reload(t, c.ID)
	assert.Equal(t, 0, got.EnrichmentAttempts)

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, stats.ProviderConfigured)
	assert.Contains(t, stats.Message, "not configured")
}

// blockingLookup parks the provider call until release is closed and
// signals entered once it is inside.
func blockingLookup(entered chan<- struct{}, release <-chan struct{}) func(mock.Arguments) {
	return func(mock.Arguments) {
		close(entered)
		<-release
	}
}

func TestEnrich_ConcurrentCallsShareOneAttempt(t *testing.T) {
	f := newFixture(t)
	c := f.seed(t, model.Contact{Email: "jane@acme.io", LinkedInProfile: "https://www.linkedin.com/in/janedoe"})

	entered, release := make(chan struct{}), make(chan struct{})
	f.provider.On("LookupByEmail", mock.Anything, "jane@acme.io").
		Run(blockingLookup(entered, release)).
		Return(acmeMatch(), nil).Once()

	var (
		wg   sync.WaitGroup
		errs [2]error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = f.svc.Enrich(context.Background(), c.ID, provider.StrategyAuto)
	}()
	<-entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[1] = f.svc.Enrich(context.Background(), c.ID, provider.StrategyEmail)
	}()
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, f.reload(t, c.ID).EnrichmentAttempts)
	f.provider.AssertNumberOfCalls(t, "LookupByEmail", 1)
}

func TestEnrich_ContactProcessingElsewhereIsInProgress(t *testing.T) {
	f := newFixture(t)
	c := f.seed(t, model.Contact{Email: "jane@acme.io"})

	entered, release := make(chan struct{}), make(chan struct{})
	f.provider.On("LookupByEmail", mock.Anything, "jane@acme.io").
		Run(blockingLookup(entered, release)).
		Return(acmeMatch(), nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Enrich(context.Background(), c.ID, provider.StrategyAuto)
		done <- err
	}()
	<-entered

	// A second service over the same store stands in for another process.
	other := &mockProvider{}
	svc2 := NewService(f.store, other, config.ProviderConfig{APIKey: "k"}, config.EnrichmentConfig{FreshnessHours: 24})
	_, err := svc2.EnrichWith(context.Background(), c.ID, provider.StrategyEmail, EnrichOptions{Force: true})
	require.ErrorIs(t, err, ErrEnrichmentInProgress)
	assert.Equal(t, KindInProgress, Kind(err))
	assert.Empty(t, other.Calls)

	close(release)
	require.NoError(t, <-done)

	got := f.reload(t, c.ID)
	assert.Equal(t, model.StatusEnriched, got.EnrichmentStatus)
	assert.Equal(t, 1, got.EnrichmentAttempts)
}

func TestEnrich_CallerCancelledDuringLookupStillPersists(t *testing.T) {
	t.Run("failure", func(t *testing.T) {
		f := newFixture(t)
		c := f.seed(t, model.Contact{Email: "jane@acme.io"})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		f.provider.On("LookupByEmail", mock.Anything, "jane@acme.io").
			Run(func(mock.Arguments) { cancel() }).
			Return(nil, &provider.Error{Kind: provider.ErrNetwork, Err: context.Canceled}).Once()

		_, err := f.svc.Enrich(ctx, c.ID, provider.StrategyAuto)
		require.ErrorIs(t, err, ErrNetwork)
		assert.Equal(t, "provider unreachable: context canceled", err.Error())

		got := f.reload(t, c.ID)
		assert.Equal(t, model.StatusFailed, got.EnrichmentStatus)
		assert.Equal(t, 1, got.EnrichmentAttempts)
		require.NotNil(t, got.EnrichmentError)
		assert.Equal(t, "provider unreachable: context canceled", *got.EnrichmentError)
	})

	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		c := f.seed(t, model.Contact{Email: "jane@acme.io"})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		f.provider.On("LookupByEmail", mock.Anything, "jane@acme.io").
			Run(func(mock.Arguments) { cancel() }).
			Return(acmeMatch(), nil).Once()

		out, err := f.svc.Enrich(ctx, c.ID, provider.StrategyAuto)
		require.NoError(t, err)
		assert.Equal(t, model.StatusEnriched, out.Contact.EnrichmentStatus)
		assert.Equal(t, model.StatusEnriched, f.reload(t, c.ID).EnrichmentStatus)
	})
}

func TestEnrich_EmptyProviderResponseFails(t *testing.T) {
	tests := []struct {
		name string
		resp *provider.Response
	}{
		{"nil", nil},
		{"no answer", &provider.Response{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.seed(t, model.Contact{Email: "jane@acme.io"})
			if tt.resp == nil {
				f.provider.On("LookupByEmail", mock.Anything, "jane@acme.io").Return(nil, nil).Once()
			} else {
				f.provider.On("LookupByEmail", mock.Anything, "jane@acme.io").Return(tt.resp, nil).Once()
			}

			_, err := f.svc.Enrich(context.Background(), c.ID, provider.StrategyAuto)
			require.ErrorIs(t, err, ErrAPI)
			assert.Contains(t, err.Error(), "empty provider response")

			got := f.reload(t, c.ID)
			assert.Equal(t, model.StatusFailed, got.EnrichmentStatus)
			assert.Equal(t, 1, got.EnrichmentAttempts)
		})
	}
}

func countOf(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}
