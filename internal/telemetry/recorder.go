package telemetry

import (
	"context"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/rentwatch/internal/logger"
	"github.com/jmylchreest/rentwatch/pkg/listing"
)

// ExtractFunc performs one listing extraction.
type ExtractFunc func(ctx context.Context) (*listing.Scraped, error)

// Recorder wraps extractions of one strategy with measurement, the
// durable log, the processed counter and metrics.
type Recorder struct {
	strategy listing.Strategy
	log      *Log
	counter  *Counter
	metrics  *Metrics
}

// NewRecorder creates a recorder. log and metrics may be nil.
func NewRecorder(strategy listing.Strategy, log *Log, counter *Counter, metrics *Metrics) *Recorder {
	if counter == nil {
		counter = &Counter{}
	}
	return &Recorder{strategy: strategy, log: log, counter: counter, metrics: metrics}
}

// Counter returns the processed counter this recorder increments.
func (r *Recorder) Counter() *Counter {
	return r.counter
}

// Record runs fn and, on success, stamps the result with its elapsed time and
// peak memory, appends a log row and increments the processed counter.
// Failures are returned unchanged and leave the counter untouched.
func (r *Recorder) Record(ctx context.Context, url string, fn ExtractFunc) (*listing.Scraped, error) {
	var scraped *listing.Scraped
	m, err := Measure(func() error {
		var err error
		scraped, err = fn(ctx)
		return err
	})
	if err != nil {
		if r.metrics != nil {
			r.metrics.Failures.WithLabelValues(string(r.strategy)).Inc()
		}
		return nil, err
	}

	scraped.Strategy = r.strategy
	scraped.ElapsedTime = m.Seconds()
	scraped.MemoryUsage = m.MiB()

	if r.log != nil {
		row := Row{
			URL:          url,
			ElapsedTime:  scraped.ElapsedTime,
			SelectorTime: scraped.SelectorTime,
			MemoryUsage:  scraped.MemoryUsage,
			Strategy:     r.strategy,
		}
		if err := r.log.Append(row); err != nil {
			logger.Warn("telemetry log write failed", "path", r.log.Path(), "error", err)
		}
	}

	count := r.counter.Inc()

	if r.metrics != nil {
		label := string(r.strategy)
		r.metrics.Extractions.WithLabelValues(label).Inc()
		r.metrics.ExtractDuration.WithLabelValues(label).Observe(scraped.ElapsedTime)
		r.metrics.PeakMemory.WithLabelValues(label).Observe(scraped.MemoryUsage)
		if scraped.SelectorTime != nil {
			r.metrics.SelectorDuration.Observe(*scraped.SelectorTime)
		}
	}

	logger.Debug("extraction recorded",
		"strategy", r.strategy,
		"url", url,
		"elapsed", m.Elapsed,
		"peak_memory", humanize.IBytes(m.PeakBytes),
		"processed", count)
	return scraped, nil
}
