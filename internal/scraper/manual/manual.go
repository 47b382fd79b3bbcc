// Package manual extracts listings with fixed selectors tied to the target
// site's markup and its embedded Nuxt payload.
package manual

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/rentwatch/internal/logger"
	"github.com/jmylchreest/rentwatch/pkg/fetcher"
	"github.com/jmylchreest/rentwatch/pkg/listing"
	"github.com/jmylchreest/rentwatch/pkg/normalize"
)

// DOM selectors used when the payload lacks a field.
const (
	TitleSelector   = "title"
	AddressSelector = ".location-row__second_column"
	AreaSelector    = "#basic-info-price-row + div span"

	currencyMarker = "zł"
	areaMarker     = "m²"
)

// Extractor scrapes listing pages with the manual strategy.
type Extractor struct {
	fetcher fetcher.Fetcher
	opts    fetcher.Options
}

// New creates a manual extractor.
func New(f fetcher.Fetcher, opts fetcher.Options) *Extractor {
	return &Extractor{fetcher: f, opts: opts}
}

// Strategy returns listing.StrategyManual.
func (e *Extractor) Strategy() listing.Strategy {
	return listing.StrategyManual
}

// Extract fetches url and parses it. Fetch failures wrap fetcher.ErrFetch and
// pages without the listing payload wrap listing.ErrStructureNotFound.
func (e *Extractor) Extract(ctx context.Context, url string) (*listing.Scraped, error) {
	content, err := e.fetcher.Fetch(ctx, url, e.opts)
	if err != nil {
		return nil, err
	}
	return ParseListing(content.HTML, url)
}

// ParseListing extracts and normalizes a listing from page HTML. Rent and
// area held as JSON numbers in the payload are truncated to whole units
// instead of going through the text normalizer.
func ParseListing(html, url string) (*listing.Scraped, error) {
	raw, numbers, err := parse(html)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}

	rent := normalize.RentPtr(raw.Get(string(listing.FieldRent)))
	if n, ok := numbers[listing.FieldRent]; ok {
		rent = wholeUnits(n)
	}
	area := normalize.AreaPtr(raw.Get(string(listing.FieldArea)))
	if n, ok := numbers[listing.FieldArea]; ok {
		area = wholeUnits(n)
	}

	return &listing.Scraped{
		URL:      url,
		Strategy: listing.StrategyManual,
		Title:    listing.Text(raw.Get(string(listing.FieldTitle))),
		Rent:     rent,
		Area:     area,
		Address:  listing.Text(raw.Get(string(listing.FieldAddress))),
	}, nil
}

// ParseRaw returns the raw field text of a listing page. The payload must be
// present and describe a listing; each field is read from it first and from
// the DOM when the payload lacks it.
func ParseRaw(html string) (listing.RawExtraction, error) {
	raw, _, err := parse(html)
	return raw, err
}

func parse(html string) (listing.RawExtraction, map[listing.Field]float64, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}

	p, err := parsePayload(doc)
	if err != nil {
		return nil, nil, err
	}
	obj, ok := p.listingObject()
	if !ok {
		return nil, nil, fmt.Errorf("%w: no %s object in payload", listing.ErrStructureNotFound, adKeywordsKey)
	}

	raw, numbers := p.fields(obj)
	fromPayload := len(raw)
	for field, value := range domFields(doc) {
		if _, ok := raw[field]; !ok {
			raw[field] = value
		}
	}

	logger.Debug("manual fields extracted", "payload_fields", fromPayload, "fields", len(raw))
	return raw, numbers, nil
}

// wholeUnits truncates a payload number toward zero. Negative values are
// treated as absent.
func wholeUnits(n float64) *int {
	if n < 0 {
		return nil
	}
	v := int(n)
	return &v
}

// domFields reads the descriptive fields with the fixed DOM selectors.
// Fields that cannot be found are left out.
func domFields(doc *goquery.Document) listing.RawExtraction {
	raw := make(listing.RawExtraction)

	if title := strings.TrimSpace(doc.Find(TitleSelector).First().Text()); title != "" {
		raw[string(listing.FieldTitle)] = title
	}

	doc.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := ownText(s)
		if strings.Contains(text, currencyMarker) {
			raw[string(listing.FieldRent)] = strings.TrimSpace(text)
			return false
		}
		return true
	})

	if addr := strings.TrimSpace(doc.Find(AddressSelector).First().Text()); addr != "" {
		raw[string(listing.FieldAddress)] = addr
	}

	if area := strings.TrimSpace(doc.Find(AreaSelector).First().Text()); strings.Contains(area, areaMarker) {
		raw[string(listing.FieldArea)] = area
	}

	return raw
}

// ownText returns the text of s's direct text children only.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		}
	})
	return b.String()
}
