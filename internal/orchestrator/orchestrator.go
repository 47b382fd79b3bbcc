// Package orchestrator runs both extraction strategies over one index page,
// reconciles the results and keeps per-strategy counters and run history.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/rentwatch/internal/logger"
	"github.com/jmylchreest/rentwatch/internal/telemetry"
	"github.com/jmylchreest/rentwatch/pkg/listing"
)

// Defaults.
const (
	DefaultIndexURL = "https://wolfnieruchomosci.gratka.pl/nieruchomosci/domy/wynajem"
	DefaultModel    = "gpt-4o-mini"
	DefaultAILimit  = 5
)

// DefaultAllowedModels are the selector-inference models a run may request.
var DefaultAllowedModels = []string{
	"gpt-4o-mini",
	"gpt-4o",
	"claude-3-5-haiku-20241022",
	"claude-sonnet-4-20250514",
}

// ErrRunInProgress is returned when Run is called while another run holds the lock.
var ErrRunInProgress = errors.New("run already in progress")

// ErrStopRequested is returned when a stop was requested before or during a run.
var ErrStopRequested = errors.New("stop requested")

// Discoverer lists listing URLs on an index page.
type Discoverer interface {
	Discover(ctx context.Context, indexURL string) ([]string, error)
}

// ManualExtractor extracts one listing with fixed selectors.
type ManualExtractor interface {
	Extract(ctx context.Context, url string) (*listing.Scraped, error)
}

// AIExtractor extracts one listing with oracle-inferred selectors.
type AIExtractor interface {
	Extract(ctx context.Context, url, model string) (*listing.Scraped, error)
}

// Reconciler persists one scrape result.
type Reconciler interface {
	Reconcile(ctx context.Context, s *listing.Scraped) (*listing.Listing, error)
}

// Config holds run parameters.
type Config struct {
	DefaultIndexURL string
	DefaultModel    string
	AllowedModels   []string
	// AILimit bounds how many discovered URLs the AI pass visits. Zero uses
	// DefaultAILimit; a negative value removes the bound.
	AILimit int
}

// Deps are the collaborators used by a run.
type Deps struct {
	Discoverer Discoverer
	Manual     ManualExtractor
	AI         AIExtractor
	Reconciler Reconciler
	// Logs holds the telemetry log per strategy. Missing entries disable logging.
	Logs    map[listing.Strategy]*telemetry.Log
	Metrics *telemetry.Metrics
}

// Orchestrator owns the processed counters, stop flag and run history.
type Orchestrator struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	counters  map[listing.Strategy]*telemetry.Counter
	recorders map[listing.Strategy]*telemetry.Recorder

	runMu sync.Mutex
	stop  atomic.Bool

	histMu  sync.RWMutex
	history []ScrapeAttemptRecord
}

// New creates an orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.DefaultIndexURL == "" {
		cfg.DefaultIndexURL = DefaultIndexURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	if len(cfg.AllowedModels) == 0 {
		cfg.AllowedModels = DefaultAllowedModels
	}
	if cfg.AILimit == 0 {
		cfg.AILimit = DefaultAILimit
	}

	o := &Orchestrator{
		cfg:       cfg,
		deps:      deps,
		log:       logger.Component("orchestrator"),
		counters:  make(map[listing.Strategy]*telemetry.Counter),
		recorders: make(map[listing.Strategy]*telemetry.Recorder),
	}
	for _, s := range listing.Strategies {
		c := &telemetry.Counter{}
		o.counters[s] = c
		o.recorders[s] = telemetry.NewRecorder(s, deps.Logs[s], c, deps.Metrics)
	}
	return o
}

// ResolveModel returns model when it is allowed and the default otherwise.
func (o *Orchestrator) ResolveModel(model string) string {
	if slices.Contains(o.cfg.AllowedModels, model) {
		return model
	}
	if model != "" {
		o.log.Warn("model not allowed, using default", "model", model, "default", o.cfg.DefaultModel)
	}
	return o.cfg.DefaultModel
}

// Run scrapes indexURL with both strategies. Only one run executes at a time;
// a concurrent call fails with ErrRunInProgress. Cancelling ctx or calling
// RequestStop ends the run after the listing in flight with a partial result.
func (o *Orchestrator) Run(ctx context.Context, indexURL, model string) RunResult {
	if indexURL == "" {
		indexURL = o.cfg.DefaultIndexURL
	}
	result := RunResult{IndexURL: indexURL}

	if o.stop.Load() {
		o.log.Info("run skipped, stop requested", "index", indexURL)
		return o.finish(result, StatusCancelled, ErrStopRequested)
	}
	if !o.runMu.TryLock() {
		return o.finish(result, StatusError, ErrRunInProgress)
	}
	defer o.runMu.Unlock()

	result.Model = o.ResolveModel(model)
	o.log.Info("run starting", "index", indexURL, "model", result.Model)

	urls, err := o.deps.Discoverer.Discover(ctx, indexURL)
	if err != nil {
		return o.finish(result, StatusError, fmt.Errorf("discover: %w", err))
	}

	aiURLs := urls
	if o.cfg.AILimit > 0 && len(aiURLs) > o.cfg.AILimit {
		aiURLs = aiURLs[:o.cfg.AILimit]
	}

	result.AI, err = o.pass(ctx, listing.StrategyAI, aiURLs, func(ctx context.Context, u string) (*listing.Scraped, error) {
		return o.deps.AI.Extract(ctx, u, result.Model)
	})
	if err == nil {
		result.Manual, err = o.pass(ctx, listing.StrategyManual, urls, o.deps.Manual.Extract)
	}
	switch {
	case errors.Is(err, errInterrupted):
		result.Partial = true
	case err != nil:
		return o.finish(result, StatusError, err)
	}

	result.Combined = Combine(result.AI, result.Manual)

	record := ScrapeAttemptRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		IndexURL:  indexURL,
		Model:     result.Model,
		Partial:   result.Partial,
		AI:        Stats(result.AI),
		Manual:    Stats(result.Manual),
	}
	o.histMu.Lock()
	o.history = append(o.history, record)
	o.histMu.Unlock()
	result.Record = &record

	o.log.Info("run complete",
		"index", indexURL,
		"ai", len(result.AI),
		"manual", len(result.Manual),
		"combined", len(result.Combined),
		"partial", result.Partial)
	return o.finish(result, StatusSuccess, nil)
}

var errInterrupted = errors.New("run interrupted")

type extractFunc func(ctx context.Context, url string) (*listing.Scraped, error)

// pass extracts and reconciles urls one at a time. Per-URL extraction
// failures are logged and skipped. A storage failure aborts the pass.
func (o *Orchestrator) pass(ctx context.Context, strategy listing.Strategy, urls []string, extract extractFunc) ([]listing.Scraped, error) {
	rec := o.recorders[strategy]
	results := make([]listing.Scraped, 0, len(urls))

	for i, u := range urls {
		if err := o.interrupted(ctx); err != nil {
			o.log.Warn("pass interrupted",
				"strategy", strategy,
				"done", i,
				"remaining", len(urls)-i,
				"reason", err)
			return results, errInterrupted
		}

		scraped, err := rec.Record(ctx, u, func(ctx context.Context) (*listing.Scraped, error) {
			return extract(ctx, u)
		})
		if err != nil {
			o.log.Warn("listing skipped", "strategy", strategy, "url", u, "error", err)
			continue
		}

		if _, err := o.deps.Reconciler.Reconcile(ctx, scraped); err != nil {
			return results, fmt.Errorf("%s pass: %w", strategy, err)
		}
		results = append(results, *scraped)
	}
	return results, nil
}

func (o *Orchestrator) interrupted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.stop.Load() {
		return ErrStopRequested
	}
	return nil
}

func (o *Orchestrator) finish(result RunResult, status Status, err error) RunResult {
	result.Status = status
	if err != nil {
		result.Err = err
		result.Error = err.Error()
		if status == StatusError {
			o.log.Error("run failed", "index", result.IndexURL, "error", err)
		}
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.Runs.WithLabelValues(string(status)).Inc()
	}
	return result
}

// ProcessedCount returns how many listings strategy has extracted successfully.
func (o *Orchestrator) ProcessedCount(strategy listing.Strategy) int64 {
	if c, ok := o.counters[strategy]; ok {
		return c.Get()
	}
	return 0
}

// ResetProcessedCount sets strategy's counter back to zero.
func (o *Orchestrator) ResetProcessedCount(strategy listing.Strategy) {
	if c, ok := o.counters[strategy]; ok {
		c.Reset()
	}
}

// History returns a copy of the completed run records, oldest first.
func (o *Orchestrator) History() []ScrapeAttemptRecord {
	o.histMu.RLock()
	defer o.histMu.RUnlock()
	return slices.Clone(o.history)
}

// RequestStop prevents new runs from starting and ends the current one after
// the listing in flight.
func (o *Orchestrator) RequestStop() {
	o.stop.Store(true)
	o.log.Info("stop requested")
}

// ClearStop allows runs again after RequestStop.
func (o *Orchestrator) ClearStop() {
	o.stop.Store(false)
}

// StopRequested reports whether RequestStop is in effect.
func (o *Orchestrator) StopRequested() bool {
	return o.stop.Load()
}
