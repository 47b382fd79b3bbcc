package commands

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jmylchreest/rentwatch/internal/config"
	"github.com/jmylchreest/rentwatch/internal/discovery"
	"github.com/jmylchreest/rentwatch/internal/logger"
	"github.com/jmylchreest/rentwatch/internal/orchestrator"
	"github.com/jmylchreest/rentwatch/internal/reconcile"
	"github.com/jmylchreest/rentwatch/internal/scraper/ai"
	"github.com/jmylchreest/rentwatch/internal/scraper/manual"
	"github.com/jmylchreest/rentwatch/internal/store"
	"github.com/jmylchreest/rentwatch/internal/telemetry"
	"github.com/jmylchreest/rentwatch/pkg/fetcher"
	"github.com/jmylchreest/rentwatch/pkg/listing"
	"github.com/jmylchreest/rentwatch/pkg/oracle"
)

// app holds the collaborators shared by scrape and serve.
type app struct {
	cfg      *config.Config
	store    store.Store
	fetcher  fetcher.Fetcher
	orch     *orchestrator.Orchestrator
	registry *prometheus.Registry
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	f, err := newFetcher(cfg.Fetch)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}

	logs := make(map[listing.Strategy]*telemetry.Log, len(listing.Strategies))
	for _, s := range listing.Strategies {
		l, err := telemetry.OpenLog(cfg.Telemetry.Dir, s)
		if err != nil {
			_ = st.Close()
			_ = f.Close()
			return nil, err
		}
		logs[s] = l
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics := telemetry.NewMetrics(reg)

	opts := fetcher.Options{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      cfg.Fetch.Timeout,
		WaitDuration: cfg.Fetch.WaitDuration,
	}
	oc := oracle.New(oracle.Config{
		FallbackModel: cfg.FallbackModel,
		Temperature:   cfg.Temperature,
		Timeout:       cfg.OracleTimeout,
		APIKeys:       cfg.Providers.APIKeys(),
		BaseURLs:      cfg.Providers.BaseURLs(),
		Observer:      metrics.OracleObserver(),
	})

	orch := orchestrator.New(cfg.OrchestratorConfig(), orchestrator.Deps{
		Discoverer: discovery.New(f, discovery.NewLinkSelector(discovery.DefaultLinkSelector), opts),
		Manual:     manual.New(f, opts),
		AI:         ai.New(f, oc, opts),
		Reconciler: reconcile.New(st),
		Logs:       logs,
		Metrics:    metrics,
	})

	logger.Debug("app ready",
		"fetch_mode", f.Type(),
		"store", cfg.Store.Driver,
		"telemetry_dir", cfg.Telemetry.Dir)

	return &app{cfg: cfg, store: st, fetcher: f, orch: orch, registry: reg}, nil
}

func newFetcher(cfg config.FetchConfig) (fetcher.Fetcher, error) {
	return fetcher.New(cfg.Mode,
		fetcher.StaticConfig{
			UserAgent:         cfg.UserAgent,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		},
		fetcher.DynamicConfig{
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout,
			ExecPath:  cfg.ChromePath,
		})
}

func (a *app) Close() {
	if err := a.fetcher.Close(); err != nil {
		logger.Warn("close fetcher", "error", err)
	}
	if err := a.store.Close(); err != nil {
		logger.Warn("close store", "error", err)
	}
}
