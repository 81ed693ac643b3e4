package enrich

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-enricher/internal/model"
	"github.com/sells-group/contact-enricher/internal/provider"
)

// BatchItem describes one contact the batch finished without error.
type BatchItem struct {
	ID         int64                  `json:"id" yaml:"id"`
	Status     model.EnrichmentStatus `json:"status" yaml:"status"`
	EnrichedAt *time.Time             `json:"enriched_at,omitempty" yaml:"enriched_at,omitempty"`
	Cached     bool                   `json:"cached,omitempty" yaml:"cached,omitempty"`
}

// BatchSummary accounts for every id of a batch. Successful+Failed always
// equals the number of ids submitted. Errors is keyed by contact id, so a
// duplicated id that fails keeps only its last message.
type BatchSummary struct {
	BatchID    string           `json:"batch_id" yaml:"batch_id"`
	Total      int              `json:"total" yaml:"total"`
	Successful int              `json:"successful" yaml:"successful"`
	Failed     int              `json:"failed" yaml:"failed"`
	Errors     map[int64]string `json:"errors" yaml:"errors"`
	Enriched   []BatchItem      `json:"enriched" yaml:"enriched"`
}

// EnrichBatch enriches ids one after another. A contact's failure is
// recorded and never stops the batch. A provider-confirmed no-match counts
// as successful. When ctx is done the remaining ids are recorded as failed.
func (s *Service) EnrichBatch(ctx context.Context, ids []int64, strategy provider.Strategy) *BatchSummary {
	return s.EnrichBatchWith(ctx, ids, strategy, EnrichOptions{})
}

// EnrichBatchWith is EnrichBatch with per-contact options.
func (s *Service) EnrichBatchWith(ctx context.Context, ids []int64, strategy provider.Strategy, opts EnrichOptions) *BatchSummary {
	sum := &BatchSummary{
		BatchID:  uuid.NewString(),
		Total:    len(ids),
		Errors:   make(map[int64]string),
		Enriched: make([]BatchItem, 0, len(ids)),
	}
	log := zap.L().With(zap.String("batch_id", sum.BatchID))
	log.Info("enrich: batch started", zap.Int("contacts", len(ids)), zap.String("strategy", strategy.String()))

	s.metrics.BatchStarted(len(ids))
	defer s.metrics.BatchFinished()

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			sum.Failed++
			sum.Errors[id] = "batch cancelled: " + err.Error()
			continue
		}

		out, err := s.enrichOne(ctx, id, strategy, opts)
		if err != nil {
			sum.Failed++
			sum.Errors[id] = err.Error()
			log.Debug("enrich: batch item failed", zap.Int64("contact_id", id), zap.Error(err))
			continue
		}

		sum.Successful++
		item := BatchItem{ID: id, Status: model.StatusEnriched, Cached: out.Cached}
		if out.Contact != nil {
			item.Status = out.Contact.EnrichmentStatus
			item.EnrichedAt = out.Contact.EnrichedAt
		}
		sum.Enriched = append(sum.Enriched, item)
	}

	log.Info("enrich: batch finished",
		zap.Int("successful", sum.Successful),
		zap.Int("failed", sum.Failed),
	)
	return sum
}

// enrichOne isolates a single contact so a panic fails only that contact.
func (s *Service) enrichOne(ctx context.Context, id int64, strategy provider.Strategy, opts EnrichOptions) (out *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("enrich: panic during batch item", zap.Int64("contact_id", id), zap.Any("panic", r))
			out, err = nil, eris.Errorf("internal error: %v", r)
		}
	}()
	return s.EnrichWith(ctx, id, strategy, opts)
}
