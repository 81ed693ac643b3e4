package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-enricher/internal/enrich"
	"github.com/sells-group/contact-enricher/internal/provider"
	"github.com/sells-group/contact-enricher/internal/store"
)

// enricherEnv holds the store and service shared by the commands.
type enricherEnv struct {
	Store    store.Store
	Service  *enrich.Service
	Registry *prometheus.Registry
}

// Close releases resources held by the environment.
func (e *enricherEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv validates config for mode, opens the store and builds the
// enrichment service. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*enricherEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client := provider.FromConfig(cfg.RocketReach)
	if d, ok := client.(*provider.Disabled); ok {
		zap.L().Warn("enrichment provider disabled", zap.String("reason", d.Message()))
	}

	svc := enrich.NewService(st, client, cfg.RocketReach, cfg.Enrichment,
		enrich.WithMetrics(enrich.NewMetrics(reg)),
	)

	return &enricherEnv{Store: st, Service: svc, Registry: reg}, nil
}
