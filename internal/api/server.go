// Package api exposes contact enrichment over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/contact-enricher/internal/enrich"
	"github.com/sells-group/contact-enricher/internal/model"
	"github.com/sells-group/contact-enricher/internal/provider"
)

// maxBatchSize bounds the ids accepted by one batch request.
const maxBatchSize = 1000

// Enricher is the enrichment surface served by the API.
type Enricher interface {
	ProviderName() string
	EnrichWith(ctx context.Context, id int64, strategy provider.Strategy, opts enrich.EnrichOptions) (*enrich.Outcome, error)
	EnrichBatchWith(ctx context.Context, ids []int64, strategy provider.Strategy, opts enrich.EnrichOptions) *enrich.BatchSummary
	Status(ctx context.Context, id int64) (*model.StatusRecord, error)
	CanEnrichContact(ctx context.Context, id int64) (bool, error)
	Stats(ctx context.Context) (*model.Stats, error)
}

// Pinger checks backend connectivity for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the API dependencies.
type Server struct {
	svc         Enricher
	db          Pinger
	gatherer    prometheus.Gatherer
	metrics     *httpMetrics
	corsOrigins []string
	timeout     time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithRegistry registers HTTP metrics with reg and serves reg on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.gatherer = reg
		s.metrics = newHTTPMetrics(reg)
	}
}

// WithCORSOrigins sets the allowed CORS origins. Defaults to any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithRequestTimeout bounds each request. Batches can take a while, so the
// default is generous.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a Server.
func New(svc Enricher, db Pinger, opts ...Option) *Server {
	s := &Server{
		svc:         svc,
		db:          db,
		gatherer:    prometheus.DefaultGatherer,
		corsOrigins: []string{"*"},
		timeout:     5 * time.Minute,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = newHTTPMetrics(nil)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Retry-After", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout))
		r.Use(s.metrics.middleware)

		r.Post("/contacts/enrich", s.handleEnrichBatch)
		r.Route("/contacts/{id}", func(r chi.Router) {
			r.Post("/enrich", s.handleEnrich)
			r.Get("/enrichment", s.handleStatus)
			r.Get("/can-enrich", s.handleCanEnrich)
		})
		r.Get("/enrichment/stats", s.handleStats)
	})

	return r
}
