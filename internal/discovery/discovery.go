// Package discovery finds listing URLs on the site's index page.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/rentwatch/internal/logger"
	"github.com/jmylchreest/rentwatch/pkg/fetcher"
)

// DefaultLinkSelector matches listing teaser links on the index page.
const DefaultLinkSelector = ".listing__teaserWrapper a.teaserLinkSeo"

// LinkSelector extracts listing links from index page HTML.
type LinkSelector struct {
	CSSSelector string
}

// NewLinkSelector creates a link selector. An empty selector uses DefaultLinkSelector.
func NewLinkSelector(cssSelector string) *LinkSelector {
	if cssSelector == "" {
		cssSelector = DefaultLinkSelector
	}
	return &LinkSelector{CSSSelector: cssSelector}
}

// ExtractLinks returns the href of every matching anchor, resolved against
// baseURL, in document order. Duplicates are kept.
func (ls *LinkSelector) ExtractLinks(html string, baseURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	// Listing paths are absolute on the site, so only scheme and host matter.
	root := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/"}

	var links []string
	doc.Find(ls.CSSSelector).Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		href = strings.TrimSpace(href)
		if !exists || href == "" {
			return
		}

		// Skip fragments and javascript links
		if strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}

		linkURL, err := url.Parse(href)
		if err != nil {
			logger.Debug("skipping unparseable link", "href", href, "error", err)
			return
		}
		if !linkURL.IsAbs() {
			linkURL = root.ResolveReference(linkURL)
		}

		links = append(links, linkURL.String())
	})

	return links, nil
}

// Discoverer fetches an index page and lists the listing URLs on it.
type Discoverer struct {
	fetcher  fetcher.Fetcher
	selector *LinkSelector
	opts     fetcher.Options
}

// New creates a discoverer that fetches with f.
func New(f fetcher.Fetcher, selector *LinkSelector, opts fetcher.Options) *Discoverer {
	if selector == nil {
		selector = NewLinkSelector("")
	}
	return &Discoverer{fetcher: f, selector: selector, opts: opts}
}

// Discover fetches indexURL and returns the listing URLs found on it.
// A fetch failure is returned wrapped in fetcher.ErrFetch.
func (d *Discoverer) Discover(ctx context.Context, indexURL string) ([]string, error) {
	content, err := d.fetcher.Fetch(ctx, indexURL, d.opts)
	if err != nil {
		return nil, fmt.Errorf("index page: %w", err)
	}

	links, err := d.selector.ExtractLinks(content.HTML, indexURL)
	if err != nil {
		return nil, fmt.Errorf("index page %s: %w", indexURL, err)
	}

	logger.Info("listings discovered", "index", indexURL, "count", len(links))
	return links, nil
}
