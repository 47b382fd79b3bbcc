package orchestrator

import (
	"time"

	"github.com/jmylchreest/rentwatch/pkg/listing"
)

// Status is the outcome of a run.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// RunResult is returned by every Run call.
type RunResult struct {
	Status   Status `json:"status" yaml:"status"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
	IndexURL string `json:"index_url" yaml:"index_url"`
	Model    string `json:"model" yaml:"model"`
	// Partial is set when the run stopped early after a cancellation.
	Partial bool `json:"partial,omitempty" yaml:"partial,omitempty"`

	AI       []listing.Scraped `json:"ai_results" yaml:"ai_results"`
	Manual   []listing.Scraped `json:"manual_results" yaml:"manual_results"`
	Combined []listing.Scraped `json:"combined_results" yaml:"combined_results"`

	Record *ScrapeAttemptRecord `json:"record,omitempty" yaml:"record,omitempty"`

	// Err holds the run-level failure for errors.Is checks.
	Err error `json:"-" yaml:"-"`
}

// StrategyStats summarises one strategy's results within a single run.
type StrategyStats struct {
	Processed      int     `json:"processed" yaml:"processed"`
	AvgElapsedTime float64 `json:"avg_elapsed_time" yaml:"avg_elapsed_time"`
	// AvgSelectorTime is only set for the AI strategy.
	AvgSelectorTime *float64 `json:"avg_selector_time,omitempty" yaml:"avg_selector_time,omitempty"`
	AvgMemoryUsage  float64  `json:"avg_memory_usage" yaml:"avg_memory_usage"`
}

// ScrapeAttemptRecord is the immutable history entry of one completed run.
type ScrapeAttemptRecord struct {
	ID        string        `json:"id" yaml:"id"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	IndexURL  string        `json:"index_url" yaml:"index_url"`
	Model     string        `json:"model" yaml:"model"`
	Partial   bool          `json:"partial,omitempty" yaml:"partial,omitempty"`
	AI        StrategyStats `json:"ai" yaml:"ai"`
	Manual    StrategyStats `json:"manual" yaml:"manual"`
}

// Stats computes the per-run averages over results. Selector time is
// averaged over the results that carry one.
func Stats(results []listing.Scraped) StrategyStats {
	st := StrategyStats{Processed: len(results)}
	if len(results) == 0 {
		return st
	}

	var elapsed, memory, selector float64
	selectorCount := 0
	for _, r := range results {
		elapsed += r.ElapsedTime
		memory += r.MemoryUsage
		if r.SelectorTime != nil {
			selector += *r.SelectorTime
			selectorCount++
		}
	}

	n := float64(len(results))
	st.AvgElapsedTime = elapsed / n
	st.AvgMemoryUsage = memory / n
	if selectorCount > 0 {
		avg := selector / float64(selectorCount)
		st.AvgSelectorTime = &avg
	}
	return st
}

// Combine returns every AI result followed by the manual results whose URL
// the AI pass did not produce.
func Combine(ai, manual []listing.Scraped) []listing.Scraped {
	seen := make(map[string]bool, len(ai))
	combined := make([]listing.Scraped, 0, len(ai)+len(manual))
	for _, r := range ai {
		seen[r.URL] = true
		combined = append(combined, r)
	}
	for _, r := range manual {
		if !seen[r.URL] {
			combined = append(combined, r)
		}
	}
	return combined
}
