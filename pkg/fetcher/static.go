package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/jmylchreest/rentwatch/internal/logger"
)

// StaticConfig holds configuration for the static fetcher.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
	// RequestsPerSecond limits outgoing requests. Zero means unlimited.
	RequestsPerSecond float64
}

// DefaultStaticConfig returns sensible defaults.
func DefaultStaticConfig() StaticConfig {
	return StaticConfig{
		UserAgent: defaultUserAgent,
		Timeout:   DefaultTimeout,
	}
}

// StaticFetcher uses Colly for plain HTTP fetching.
type StaticFetcher struct {
	config  StaticConfig
	limiter *rate.Limiter
}

// NewStatic creates a new static fetcher.
func NewStatic(cfg StaticConfig) *StaticFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultStaticConfig().UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultStaticConfig().Timeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &StaticFetcher{config: cfg, limiter: limiter}
}

// Fetch retrieves page content using Colly. Network errors and non-2xx
// responses are returned wrapped in ErrFetch.
func (f *StaticFetcher) Fetch(ctx context.Context, targetURL string, opts Options) (Content, error) {
	logger.Debug("static fetch starting", "url", targetURL)

	result := Content{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return result, fmt.Errorf("%w: %s: %w", ErrFetch, targetURL, err)
	}

	// Create a new collector for each request
	userAgent := coalesce(opts.UserAgent, f.config.UserAgent)
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
	)

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	c.SetRequestTimeout(timeout)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		for k, v := range opts.Headers {
			r.Headers.Set(k, v)
		}
	})

	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		result.ContentType = r.Headers.Get("Content-Type")
		result.HTML = string(r.Body)
		logger.Debug("static fetch response received",
			"status", r.StatusCode,
			"content_type", result.ContentType,
			"body_size", len(r.Body))
	})

	c.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
			result.StatusCode = statusCode
		}
		fetchErr = fmt.Errorf("%w: %s: status %d: %w", ErrFetch, targetURL, statusCode, err)
		logger.Debug("static fetch error", "status", statusCode, "error", err)
	})

	if err := c.Visit(targetURL); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("%w: %s: %w", ErrFetch, targetURL, err)
	}
	if fetchErr != nil {
		return result, fetchErr
	}
	if ctx.Err() != nil {
		return result, fmt.Errorf("%w: %s: %w", ErrFetch, targetURL, ctx.Err())
	}
	if result.StatusCode < 200 || result.StatusCode > 299 {
		return result, fmt.Errorf("%w: %s: status %d", ErrFetch, targetURL, result.StatusCode)
	}

	logger.Debug("static fetch complete", "url", targetURL)
	return result, nil
}

// Close releases resources.
func (f *StaticFetcher) Close() error {
	return nil
}

// Type returns the fetcher type.
func (f *StaticFetcher) Type() string {
	return "static"
}

var _ Fetcher = (*StaticFetcher)(nil)
