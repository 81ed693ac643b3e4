package enrich

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for contact enrichment.
type Metrics struct {
	Attempts        *prometheus.CounterVec
	Outcomes        *prometheus.CounterVec
	ShortCircuits   *prometheus.CounterVec
	EnrichDuration  *prometheus.HistogramVec
	BatchSize       prometheus.Histogram
	BatchesInFlight prometheus.Gauge
}

// NewMetrics registers enrichment metrics with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enricher_attempts_total",
			Help: "Provider calls started, by strategy",
		}, []string{"strategy"}),
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enricher_outcomes_total",
			Help: "Finished enrichments by result kind (enriched, not_found, or an error kind)",
		}, []string{"outcome"}),
		ShortCircuits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "enricher_short_circuits_total",
			Help: "Enrichments answered without a provider call, by reason",
		}, []string{"reason"}),
		EnrichDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enricher_enrich_duration_seconds",
			Help:    "Duration of single-contact enrichment including the provider call",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"strategy"}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "enricher_batch_size",
			Help:    "Number of contact ids per batch request",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		BatchesInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "enricher_batches_in_flight",
			Help: "Batches currently being processed",
		}),
	}
}

// ObserveAttempt records a provider call for strategy.
func (m *Metrics) ObserveAttempt(strategy string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(strategy).Inc()
}

// ObserveOutcome records a finished enrichment and its duration.
// Call with the time the enrichment started.
func (m *Metrics) ObserveOutcome(outcome, strategy string, start time.Time) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
	m.EnrichDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
}

// ObserveShortCircuit records an enrichment answered from stored state.
func (m *Metrics) ObserveShortCircuit(reason string) {
	if m == nil {
		return
	}
	m.ShortCircuits.WithLabelValues(reason).Inc()
}

// BatchStarted records the start of a batch of n ids.
func (m *Metrics) BatchStarted(n int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(n))
	m.BatchesInFlight.Inc()
}

// BatchFinished records the end of a batch.
func (m *Metrics) BatchFinished() {
	if m == nil {
		return
	}
	m.BatchesInFlight.Dec()
}
