// Package fetcher retrieves listing and index pages from the target site.
// Implement the Fetcher interface to plug in another retrieval strategy.
package fetcher

import (
	"context"
	"errors"
	"time"
)

// Fetcher abstracts page fetching strategies.
type Fetcher interface {
	// Fetch retrieves page content from a URL.
	Fetch(ctx context.Context, url string, opts Options) (Content, error)

	// Close releases any resources (browser instances, etc.).
	Close() error

	// Type returns a string identifying the fetcher type ("static", "dynamic", "auto").
	Type() string
}

// Options controls fetching behavior for a single request.
type Options struct {
	UserAgent       string
	Timeout         time.Duration
	WaitForSelector string        // CSS selector to wait for (dynamic fetchers)
	WaitDuration    time.Duration // Additional wait after load
	Headers         map[string]string
}

// Content represents fetched page data.
type Content struct {
	URL         string
	HTML        string
	StatusCode  int
	ContentType string
	FetchedAt   time.Time
}

// ErrFetch wraps every network or non-2xx failure returned by a Fetcher.
// Check with errors.Is(err, fetcher.ErrFetch).
var ErrFetch = errors.New("fetch failed")

// DefaultTimeout bounds every request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Chrome user agent for better compatibility
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// New creates a fetcher by mode name. dynamic is only used by the
// browser-backed modes.
func New(mode string, static StaticConfig, dynamic DynamicConfig) (Fetcher, error) {
	switch mode {
	case "", "static":
		return NewStatic(static), nil
	case "dynamic":
		return NewDynamic(dynamic)
	case "auto":
		d, err := NewDynamic(dynamic)
		if err != nil {
			return nil, err
		}
		return NewAuto(NewStatic(static), d), nil
	default:
		return nil, errors.New("unknown fetch mode: " + mode)
	}
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
