package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jmylchreest/rentwatch/pkg/llm"
)

// Metrics exposes extraction telemetry to Prometheus.
type Metrics struct {
	Extractions      *prometheus.CounterVec
	Failures         *prometheus.CounterVec
	ExtractDuration  *prometheus.HistogramVec
	SelectorDuration prometheus.Histogram
	PeakMemory       *prometheus.HistogramVec
	Runs             *prometheus.CounterVec
	OracleCalls      *prometheus.CounterVec
	OracleTokens     *prometheus.CounterVec
}

// NewMetrics registers the extraction metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentwatch_extractions_total",
				Help: "Listings extracted successfully",
			},
			[]string{"strategy"},
		),
		Failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentwatch_extraction_failures_total",
				Help: "Listing extractions that failed",
			},
			[]string{"strategy"},
		),
		ExtractDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rentwatch_extraction_duration_seconds",
				Help:    "Wall-clock time of one listing extraction",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"strategy"},
		),
		SelectorDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rentwatch_selector_inference_duration_seconds",
				Help:    "Time spent waiting for selector inference",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20},
			},
		),
		PeakMemory: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rentwatch_extraction_peak_memory_mib",
				Help:    "Peak heap growth during one listing extraction",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
			},
			[]string{"strategy"},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentwatch_runs_total",
				Help: "Scrape runs by final status",
			},
			[]string{"status"},
		),
		OracleCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentwatch_oracle_calls_total",
				Help: "Selector inference calls by provider, model and outcome",
			},
			[]string{"provider", "model", "outcome"},
		),
		OracleTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentwatch_oracle_tokens_total",
				Help: "Tokens consumed by selector inference",
			},
			[]string{"provider", "direction"},
		),
	}
}

// OracleObserver records oracle calls into m.
func (m *Metrics) OracleObserver() llm.Observer {
	return llm.ObserverFunc(func(_ context.Context, e llm.CallEvent) {
		outcome := "ok"
		switch {
		case e.Err != nil:
			outcome = "error"
		case e.Fallback:
			outcome = "fallback_ok"
		}
		m.OracleCalls.WithLabelValues(e.Provider, e.Model, outcome).Inc()
		m.OracleTokens.WithLabelValues(e.Provider, "input").Add(float64(e.Usage.InputTokens))
		m.OracleTokens.WithLabelValues(e.Provider, "output").Add(float64(e.Usage.OutputTokens))
	})
}
