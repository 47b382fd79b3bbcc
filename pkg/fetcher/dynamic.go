package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/rentwatch/internal/logger"
)

// DynamicConfig holds configuration for the headless browser fetcher.
type DynamicConfig struct {
	UserAgent string
	Timeout   time.Duration
	// ExecPath overrides the Chrome binary lookup.
	ExecPath string
}

// DynamicFetcher renders pages in headless Chrome via chromedp.
// The target site hydrates its listing data client-side, so this fetcher
// sees the same DOM a browser does.
type DynamicFetcher struct {
	config      DynamicConfig
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
}

// NewDynamic creates a dynamic fetcher with a browser allocator.
// The browser itself starts on the first Fetch.
func NewDynamic(cfg DynamicConfig) (*DynamicFetcher, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	logger.Debug("dynamic fetcher allocator created", "timeout", cfg.Timeout)

	return &DynamicFetcher{
		config:      cfg,
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
	}, nil
}

// Fetch navigates to targetURL and returns the rendered document.
func (f *DynamicFetcher) Fetch(ctx context.Context, targetURL string, opts Options) (Content, error) {
	logger.Debug("dynamic fetch starting", "url", targetURL)

	result := Content{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}

	browserCtx, cancelBrowser := chromedp.NewContext(f.allocCtx, chromedp.WithLogf(func(string, ...any) {}))
	defer cancelBrowser()

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)
	defer cancelTimeout()

	// Stop the browser when the caller gives up.
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	waitSelector := coalesce(opts.WaitForSelector, "body")
	actions := []chromedp.Action{
		chromedp.Navigate(targetURL),
		chromedp.WaitReady(waitSelector),
	}
	if opts.WaitDuration > 0 {
		actions = append(actions, chromedp.Sleep(opts.WaitDuration))
	}

	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html))

	if err := chromedp.Run(timeoutCtx, actions...); err != nil {
		logger.Debug("dynamic fetch failed", "url", targetURL, "error", err)
		return result, fmt.Errorf("%w: %s: %w", ErrFetch, targetURL, err)
	}

	result.HTML = html
	// chromedp does not expose the document status code
	result.StatusCode = 200
	result.ContentType = "text/html"

	logger.Debug("dynamic fetch complete", "url", targetURL, "html_size", len(html))
	return result, nil
}

// Close shuts down the browser allocator.
func (f *DynamicFetcher) Close() error {
	if f.cancelAlloc != nil {
		f.cancelAlloc()
	}
	return nil
}

// Type returns the fetcher type.
func (f *DynamicFetcher) Type() string {
	return "dynamic"
}

var _ Fetcher = (*DynamicFetcher)(nil)
