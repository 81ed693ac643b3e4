package enrich

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/contact-enricher/internal/model"
	"github.com/sells-group/contact-enricher/internal/provider"
	"github.com/sells-group/contact-enricher/internal/store"
)

// Status returns the enrichment state of a contact. Contacts that were never
// enriched, and ids with no contact, report the default pending record.
func (s *Service) Status(ctx context.Context, id int64) (*model.StatusRecord, error) {
	c, err := s.store.GetContact(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		zap.L().Debug("enrich: status requested for unknown contact", zap.Int64("contact_id", id))
		rec := model.DefaultStatusRecord()
		return &rec, nil
	}
	if err != nil {
		return nil, classifyStore(err, id)
	}
	return &model.StatusRecord{
		Status:     c.EnrichmentStatus.OrPending(),
		Attempts:   c.EnrichmentAttempts,
		LastError:  c.EnrichmentError,
		EnrichedAt: c.EnrichedAt,
		Source:     c.EnrichmentSource,
	}, nil
}

// CanEnrich reports whether c carries enough identifying data for any
// strategy: an email, a LinkedIn URL, or first name, last name and company.
func CanEnrich(c *model.Contact) bool {
	return c != nil && identityOf(c).Has(provider.StrategyAuto)
}

// CanEnrichContact loads a contact and reports CanEnrich for it.
func (s *Service) CanEnrichContact(ctx context.Context, id int64) (bool, error) {
	c, err := s.store.GetContact(ctx, id)
	if err != nil {
		return false, classifyStore(err, id)
	}
	return CanEnrich(c), nil
}

// Stats summarises enrichment coverage across all contacts.
func (s *Service) Stats(ctx context.Context) (*model.Stats, error) {
	counts, err := s.store.Stats(ctx)
	if err != nil {
		return nil, newError(ErrPersistence, "load enrichment stats: "+err.Error(), err)
	}
	out := &model.Stats{
		StatusCounts:       *counts,
		EnrichmentRate:     enrichmentRate(counts.Enriched, counts.Total),
		ProviderConfigured: s.providerConfigured,
	}
	if !s.provider.Enabled() {
		out.Message = s.unavailable().Error()
	}
	return out, nil
}

// Reset puts a contact back to pending and clears its last error so it can
// be enriched again. Attempts are kept. This is the only way out of
// not_found.
func (s *Service) Reset(ctx context.Context, id int64) error {
	if err := s.store.ResetEnrichment(ctx, id); err != nil {
		return classifyStore(err, id)
	}
	zap.L().Info("enrich: contact reset", zap.Int64("contact_id", id))
	return nil
}

// enrichmentRate is enriched/total as a percentage rounded to two decimals.
func enrichmentRate(enriched, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(enriched)/float64(total)*100*100) / 100
}
