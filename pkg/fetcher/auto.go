package fetcher

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/rentwatch/internal/logger"
)

// AutoFetcher fetches statically and re-fetches in the browser when the
// static request fails or returns an unrendered client-side app shell.
type AutoFetcher struct {
	static  Fetcher
	dynamic Fetcher
}

// NewAuto combines a static and a dynamic fetcher.
func NewAuto(static, dynamic Fetcher) *AutoFetcher {
	return &AutoFetcher{static: static, dynamic: dynamic}
}

// Fetch implements Fetcher.
func (f *AutoFetcher) Fetch(ctx context.Context, url string, opts Options) (Content, error) {
	content, err := f.static.Fetch(ctx, url, opts)
	switch {
	case err != nil && ctx.Err() != nil:
		return content, err
	case err != nil:
		logger.Debug("static fetch failed, trying browser", "url", url, "error", err)
	case NeedsJavaScript(content.HTML):
		logger.Debug("page needs javascript, trying browser", "url", url)
	default:
		return content, nil
	}
	return f.dynamic.Fetch(ctx, url, opts)
}

// mountPoints are the root elements client-side frameworks render into.
var mountPoints = "#__nuxt, #__next, #app, #root, app-root"

// NeedsJavaScript reports whether html looks like an app shell whose content
// is only rendered in a browser: an empty framework mount point, or a
// noscript notice asking for JavaScript on a page with little text.
func NeedsJavaScript(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}

	empty := false
	doc.Find(mountPoints).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() == 0 && strings.TrimSpace(s.Text()) == "" {
			empty = true
		}
		return !empty
	})
	if empty {
		return true
	}

	notice := strings.ToLower(doc.Find("noscript").Text())
	if !strings.Contains(notice, "javascript") {
		return false
	}
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	return len(strings.TrimSpace(body.Text())) < 200
}

// Close releases both fetchers.
func (f *AutoFetcher) Close() error {
	errS := f.static.Close()
	errD := f.dynamic.Close()
	if errS != nil {
		return errS
	}
	return errD
}

// Type implements Fetcher.
func (f *AutoFetcher) Type() string {
	return "auto"
}
