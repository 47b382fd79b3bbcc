// Package ai extracts listings with CSS selectors inferred by a language model.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/rentwatch/internal/logger"
	"github.com/jmylchreest/rentwatch/pkg/fetcher"
	"github.com/jmylchreest/rentwatch/pkg/listing"
	"github.com/jmylchreest/rentwatch/pkg/normalize"
	"github.com/jmylchreest/rentwatch/pkg/oracle"
)

// MaxCandidates is how many block elements are checked for a listing container.
const MaxCandidates = 10

// candidateSelector matches the block elements considered as containers.
const candidateSelector = "article, section, div"

// containerKeywords mark text that likely belongs to the listing body.
var containerKeywords = []string{"rent", "area", "address", "m²", "price"}

// SelectorOracle infers field selectors from an HTML fragment.
type SelectorOracle interface {
	InferSelectors(ctx context.Context, html, model string) (oracle.Selectors, error)
}

// Extractor scrapes listing pages with oracle-inferred selectors.
type Extractor struct {
	fetcher fetcher.Fetcher
	oracle  SelectorOracle
	opts    fetcher.Options
}

// New creates an AI extractor.
func New(f fetcher.Fetcher, o SelectorOracle, opts fetcher.Options) *Extractor {
	return &Extractor{fetcher: f, oracle: o, opts: opts}
}

// Strategy returns listing.StrategyAI.
func (e *Extractor) Strategy() listing.Strategy {
	return listing.StrategyAI
}

// Extract fetches url, asks the oracle for selectors using model and applies
// them. The returned SelectorTime covers only the oracle call.
func (e *Extractor) Extract(ctx context.Context, url, model string) (*listing.Scraped, error) {
	content, err := e.fetcher.Fetch(ctx, url, e.opts)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.HTML))
	if err != nil {
		return nil, fmt.Errorf("%s: parse html: %w", url, err)
	}

	scope, found := DetectContainer(doc)
	snippet, err := goquery.OuterHtml(scope)
	if err != nil {
		return nil, fmt.Errorf("%s: render container: %w", url, err)
	}
	snippet = oracle.Truncate(snippet, oracle.MaxHTMLBytes)
	logger.Debug("ai container selected", "url", url, "container", found, "html_bytes", len(snippet))

	start := time.Now()
	selectors, err := e.oracle.InferSelectors(ctx, snippet, model)
	selectorTime := time.Since(start).Seconds()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}

	raw := ApplySelectors(scope, selectors)
	logger.Debug("ai fields extracted", "url", url, "selectors", len(selectors))

	return &listing.Scraped{
		URL:          url,
		Strategy:     listing.StrategyAI,
		Title:        listing.Text(raw.Get(string(listing.FieldTitle))),
		Rent:         normalize.RentPtr(raw.Get(string(listing.FieldRent))),
		Area:         normalize.AreaPtr(raw.Get(string(listing.FieldArea))),
		Address:      listing.Text(raw.Get(string(listing.FieldAddress))),
		SelectorTime: &selectorTime,
	}, nil
}

// DetectContainer returns the first of the leading MaxCandidates block
// elements whose text mentions a listing keyword. When none does it returns
// the whole document and false.
func DetectContainer(doc *goquery.Document) (*goquery.Selection, bool) {
	candidates := doc.Find(candidateSelector)
	if candidates.Length() > MaxCandidates {
		candidates = candidates.Slice(0, MaxCandidates)
	}

	var container *goquery.Selection
	candidates.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(strings.Join(strings.Fields(s.Text()), " "))
		for _, kw := range containerKeywords {
			if strings.Contains(text, kw) {
				container = s
				return false
			}
		}
		return true
	})

	if container == nil {
		return doc.Selection, false
	}
	return container, true
}

// ApplySelectors reads each field's text through its selector within scope.
// Fields without a selector or without a match are NotAvailable.
func ApplySelectors(scope *goquery.Selection, selectors oracle.Selectors) listing.RawExtraction {
	raw := make(listing.RawExtraction, len(oracle.Fields))
	for _, field := range oracle.Fields {
		raw[field] = listing.NotAvailable

		sel := selectors.Get(field)
		if sel == "" {
			continue
		}
		match := scope.Find(sel).First()
		if match.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(match.Text()); text != "" {
			raw[field] = text
		}
	}
	return raw
}
