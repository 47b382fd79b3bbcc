// Package listing defines the rental listing record shared by both scraping
// strategies, the per-page scrape result, and the field-ownership rules used
// when a record is written by more than one strategy.
package listing

import (
	"errors"
	"fmt"
	"strings"
)

// NotAvailable is the placeholder for a field that could not be located on a page.
const NotAvailable = "Not Available"

// ErrStructureNotFound is returned when the data a strategy relies on is
// missing from a page. The page is skipped.
var ErrStructureNotFound = errors.New("expected page structure not found")

// Strategy identifies the extraction approach that produced a result.
type Strategy string

const (
	StrategyAI     Strategy = "ai"
	StrategyManual Strategy = "manual"
)

// Strategies lists every known strategy.
var Strategies = []Strategy{StrategyAI, StrategyManual}

// ParseStrategy converts a user supplied name into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyAI:
		return StrategyAI, nil
	case StrategyManual:
		return StrategyManual, nil
	}
	return "", fmt.Errorf("unknown strategy %q (want ai or manual)", s)
}

// Listing is the durable record, identified by URL.
type Listing struct {
	ID      int64   `json:"id" yaml:"id"`
	URL     string  `json:"url" yaml:"url" validate:"required,url"`
	Title   *string `json:"title" yaml:"title"`
	Rent    *int    `json:"rent" yaml:"rent" validate:"omitempty,gte=0"`
	Area    *int    `json:"area" yaml:"area" validate:"omitempty,gte=0"`
	Address *string `json:"address" yaml:"address"`

	AIElapsedTime     *float64 `json:"ai_elapsed_time" yaml:"ai_elapsed_time"`
	AISelectorTime    *float64 `json:"ai_selector_time" yaml:"ai_selector_time"`
	AIMemoryUsage     *float64 `json:"ai_memory_usage" yaml:"ai_memory_usage"`
	ManualElapsedTime *float64 `json:"manual_elapsed_time" yaml:"manual_elapsed_time"`
	ManualMemoryUsage *float64 `json:"manual_memory_usage" yaml:"manual_memory_usage"`
}

// Scraped is the normalized result of extracting one listing page, together
// with the telemetry measured while doing so.
type Scraped struct {
	URL      string   `json:"url" yaml:"url"`
	Strategy Strategy `json:"scraper_type" yaml:"scraper_type"`

	Title   *string `json:"title" yaml:"title"`
	Rent    *int    `json:"rent" yaml:"rent"`
	Area    *int    `json:"area" yaml:"area"`
	Address *string `json:"address" yaml:"address"`

	ElapsedTime  float64  `json:"elapsed_time" yaml:"elapsed_time"`
	SelectorTime *float64 `json:"selector_time,omitempty" yaml:"selector_time,omitempty"`
	MemoryUsage  float64  `json:"memory_usage" yaml:"memory_usage"`
}

// RawExtraction maps field names to the text found on the page, before
// normalization.
type RawExtraction map[string]string

// Get returns the raw value for field, or NotAvailable.
func (r RawExtraction) Get(field string) string {
	if v, ok := r[field]; ok && v != "" {
		return v
	}
	return NotAvailable
}

// Text converts a raw value into an optional string, mapping the
// NotAvailable placeholder and empty text to nil.
func Text(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == NotAvailable {
		return nil
	}
	return &raw
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
