// Package enrich runs contact enrichment: it calls the identity provider,
// merges what it finds into the stored contact and tracks each contact's
// enrichment lifecycle.
package enrich

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/contact-enricher/internal/config"
	"github.com/sells-group/contact-enricher/internal/model"
	"github.com/sells-group/contact-enricher/internal/provider"
	"github.com/sells-group/contact-enricher/internal/store"
)

const (
	defaultNotFoundMessage = "No matching person found for this contact"
	msgCachedNotFound      = "Contact was previously marked as not found; reset it to try again"
	msgCachedFresh         = "Contact was enriched recently; returning stored data"
)

// Outcome is the result of one Enrich call. Contact is the stored record
// after the call. Cached is set when no provider call was made.
type Outcome struct {
	Result   model.Result   `json:"result"`
	Contact  *model.Contact `json:"contact,omitempty"`
	Cached   bool           `json:"cached"`
	Strategy string         `json:"strategy,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// EnrichOptions tunes a single enrichment.
type EnrichOptions struct {
	// Force skips the freshness short-circuit. It never bypasses not_found.
	Force bool
}

// Service enriches contacts held in a Store using a provider Client.
type Service struct {
	store              store.Store
	provider           provider.Client
	providerConfigured bool
	freshness          time.Duration
	defaultStrategy    provider.Strategy
	metrics            *Metrics
	now                func() time.Time
	group              singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records enrichment metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. providerCfg reports whether credentials were
// supplied; enrichCfg sets the freshness window and default strategy.
func NewService(st store.Store, p provider.Client, providerCfg config.ProviderConfig, enrichCfg config.EnrichmentConfig, opts ...Option) *Service {
	def, err := provider.ParseStrategy(enrichCfg.DefaultStrategy)
	if err != nil {
		def = provider.StrategyAuto
	}
	s := &Service{
		store:              st,
		provider:           p,
		providerConfigured: providerCfg.Configured(),
		freshness:          enrichCfg.FreshnessWindow(),
		defaultStrategy:    def,
		now:                time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ProviderName returns the name of the configured provider.
func (s *Service) ProviderName() string { return s.provider.Name() }

// Enrich enriches one contact with the given strategy. An empty strategy
// uses the configured default.
func (s *Service) Enrich(ctx context.Context, id int64, strategy provider.Strategy) (*Outcome, error) {
	return s.EnrichWith(ctx, id, strategy, EnrichOptions{})
}

// EnrichWith is Enrich with options. Concurrent calls in this process for
// the same contact share a single attempt, whatever their strategy or
// options; callers in other processes are refused by the store.
func (s *Service) EnrichWith(ctx context.Context, id int64, strategy provider.Strategy, opts EnrichOptions) (*Outcome, error) {
	if strategy == "" {
		strategy = s.defaultStrategy
	}
	v, err, _ := s.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		return s.enrich(ctx, id, strategy, opts)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Outcome), nil
}

func (s *Service) enrich(ctx context.Context, id int64, strategy provider.Strategy, opts EnrichOptions) (*Outcome, error) {
	start := time.Now()
	log := zap.L().With(zap.Int64("contact_id", id), zap.String("strategy", strategy.String()))

	if !s.provider.Enabled() {
		err := s.unavailable()
		s.metrics.ObserveOutcome(string(KindProviderUnavailable), strategy.String(), start)
		return nil, err
	}

	c, err := s.store.GetContact(ctx, id)
	if err != nil {
		return nil, classifyStore(err, id)
	}

	if out := s.shortCircuit(c, opts); out != nil {
		log.Debug("enrich: answered from stored state", zap.String("status", string(c.EnrichmentStatus)))
		return out, nil
	}

	ident := identityOf(c)
	if _, err := ident.Resolve(strategy); err != nil {
		s.metrics.ObserveOutcome(string(KindInsufficientData), strategy.String(), start)
		return nil, classifyProvider(err)
	}

	if err := s.store.BeginAttempt(ctx, id, c.EnrichmentStatus, c.EnrichmentAttempts); err != nil {
		return nil, classifyStore(err, id)
	}
	attempt := c.EnrichmentAttempts + 1
	log = log.With(zap.Int("attempt", attempt))

	// Once the contact is processing, its outcome is written even if the
	// caller gives up during the provider call.
	wctx := context.WithoutCancel(ctx)

	resp, used, err := provider.Lookup(ctx, s.provider, strategy, ident)
	s.metrics.ObserveAttempt(used.String())
	if err != nil {
		perr := classifyProvider(err)
		if werr := s.markFailed(wctx, id, perr.Message); werr != nil {
			log.Error("enrich: could not record failure", zap.Error(werr), zap.NamedError("provider_error", err))
			return nil, werr
		}
		log.Warn("enrich: provider call failed", zap.String("kind", string(Kind(perr))), zap.Error(err))
		s.metrics.ObserveOutcome(string(Kind(perr)), used.String(), start)
		return nil, perr
	}

	if !resp.IsFound() {
		return s.recordNotFound(wctx, log, c, resp, used, start)
	}
	return s.recordSuccess(wctx, log, c, resp, used, start)
}

// shortCircuit answers from stored state when no provider call is allowed.
func (s *Service) shortCircuit(c *model.Contact, opts EnrichOptions) *Outcome {
	switch {
	case c.EnrichmentStatus == model.StatusNotFound:
		s.metrics.ObserveShortCircuit("not_found")
		msg := defaultNotFoundMessage
		if c.EnrichmentError != nil && *c.EnrichmentError != "" {
			msg = *c.EnrichmentError
		}
		return &Outcome{Result: model.NewNotFound(msg), Contact: c, Cached: true, Message: msgCachedNotFound}
	case !opts.Force && c.FreshlyEnriched(s.now(), s.freshness):
		s.metrics.ObserveShortCircuit("fresh")
		var (
			person  *model.Person
			company *model.Organization
			used    string
		)
		if p, err := DecodePayload(c.EnrichmentData); err == nil {
			person, company, used = p.Person, p.Company, p.Strategy
		}
		return &Outcome{Result: model.NewSuccess(person, company), Contact: c, Cached: true, Strategy: used, Message: msgCachedFresh}
	}
	return nil
}

func (s *Service) recordNotFound(ctx context.Context, log *zap.Logger, c *model.Contact, resp *provider.Response, used provider.Strategy, start time.Time) (*Outcome, error) {
	msg := defaultNotFoundMessage
	if resp.NotFound != nil && resp.NotFound.Message != "" {
		msg = resp.NotFound.Message
	}
	status := model.StatusNotFound
	if err := s.store.UpdateContact(ctx, c.ID, model.ContactUpdate{EnrichmentStatus: &status, EnrichmentError: &msg}); err != nil {
		return nil, s.failAfterProvider(ctx, log, c.ID, used, start, classifyStore(err, c.ID))
	}
	reloaded, err := s.store.GetContact(ctx, c.ID)
	if err != nil {
		return nil, classifyStore(err, c.ID)
	}
	log.Info("enrich: no match", zap.String("message", msg))
	s.metrics.ObserveOutcome(string(model.StatusNotFound), used.String(), start)
	return &Outcome{Result: model.NewNotFound(msg), Contact: reloaded, Strategy: used.String(), Message: msg}, nil
}

func (s *Service) recordSuccess(ctx context.Context, log *zap.Logger, c *model.Contact, resp *provider.Response, used provider.Strategy, start time.Time) (*Outcome, error) {
	found := resp.Found
	now := s.now().UTC()

	data, err := EncodePayload(s.provider.Name(), used.String(), now, &found.Person, found.Company, found.Raw)
	if err != nil {
		return nil, s.failAfterProvider(ctx, log, c.ID, used, start, newError(ErrPersistence, "encode enrichment data", err))
	}

	u := MergeResult(c, &found.Person, found.Company)
	status := model.StatusEnriched
	source := s.provider.Name() + ":" + used.String()
	u.EnrichmentStatus = &status
	u.EnrichedAt = &now
	u.EnrichmentSource = &source
	u.EnrichmentData = data
	u.ClearError = true

	if err := s.store.UpdateContact(ctx, c.ID, u); err != nil {
		return nil, s.failAfterProvider(ctx, log, c.ID, used, start, classifyStore(err, c.ID))
	}
	reloaded, err := s.store.GetContact(ctx, c.ID)
	if err != nil {
		return nil, classifyStore(err, c.ID)
	}

	log.Info("enrich: contact enriched", zap.String("source", source))
	s.metrics.ObserveOutcome(string(model.StatusEnriched), used.String(), start)
	return &Outcome{
		Result:   model.NewSuccess(&found.Person, found.Company),
		Contact:  reloaded,
		Strategy: used.String(),
		Message:  "Contact enriched successfully",
	}, nil
}

// failAfterProvider records a failure that happened after the provider
// answered so the contact does not stay in processing.
func (s *Service) failAfterProvider(ctx context.Context, log *zap.Logger, id int64, used provider.Strategy, start time.Time, cause *Error) error {
	if werr := s.markFailed(ctx, id, cause.Message); werr != nil {
		log.Error("enrich: could not record failure", zap.Error(werr))
	}
	s.metrics.ObserveOutcome(string(Kind(cause)), used.String(), start)
	return cause
}

func (s *Service) markFailed(ctx context.Context, id int64, msg string) error {
	status := model.StatusFailed
	if err := s.store.UpdateContact(ctx, id, model.ContactUpdate{EnrichmentStatus: &status, EnrichmentError: &msg}); err != nil {
		return newError(ErrPersistence, fmt.Sprintf("record failure for contact %d: %v (provider error: %s)", id, err, msg), err)
	}
	return nil
}

func (s *Service) unavailable() error {
	msg := "enrichment provider is not configured: add rocketreach.api_key to config or set ENRICHER_ROCKETREACH_API_KEY"
	if d, ok := s.provider.(*provider.Disabled); ok {
		msg = d.Message()
	}
	return newError(ErrProviderUnavailable, msg, nil)
}

func identityOf(c *model.Contact) provider.Identity {
	return provider.Identity{
		Email:       c.Email,
		LinkedInURL: c.LinkedInProfile,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Company:     c.Company,
	}
}
