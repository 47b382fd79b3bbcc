package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/rentwatch/pkg/fetcher"
	"github.com/jmylchreest/rentwatch/pkg/listing"
	"github.com/jmylchreest/rentwatch/pkg/oracle"
)

const listingPage = `<!DOCTYPE html>
<html><head><title>Dom na wynajem</title></head>
<body>
  <div class="header">Wolf Nieruchomości</div>
  <section class="offer">
    <h1 class="offer-title">Dom z ogrodem, Konstancin</h1>
    <div class="offer-price">Price: 7 500 zł</div>
    <div class="offer-area">180,4 m²</div>
    <div class="offer-address">Konstancin-Jeziorna, ul. Słoneczna</div>
  </section>
</body></html>`

type stubFetcher struct {
	pages map[string]string
}

func (f *stubFetcher) Fetch(_ context.Context, url string, _ fetcher.Options) (fetcher.Content, error) {
	html, ok := f.pages[url]
	if !ok {
		return fetcher.Content{}, fmt.Errorf("%w: %s: status 404", fetcher.ErrFetch, url)
	}
	return fetcher.Content{URL: url, HTML: html, StatusCode: 200}, nil
}

func (f *stubFetcher) Close() error { return nil }
func (f *stubFetcher) Type() string { return "stub" }

type stubOracle struct {
	selectors oracle.Selectors
	err       error
	gotHTML   string
	gotModel  string
}

func (o *stubOracle) InferSelectors(_ context.Context, html, model string) (oracle.Selectors, error) {
	o.gotHTML = html
	o.gotModel = model
	return o.selectors, o.err
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestDetectContainer_FirstKeywordMatch(t *testing.T) {
	doc := mustDoc(t, listingPage)

	got, found := DetectContainer(doc)
	if !found {
		t.Fatal("expected a container to be found")
	}
	if !got.HasClass("offer") {
		t.Errorf("container class = %q, want offer", got.AttrOr("class", ""))
	}
}

func TestDetectContainer_CaseInsensitive(t *testing.T) {
	doc := mustDoc(t, `<html><body><div id="a">nothing</div><div id="b">Monthly RENT due</div></body></html>`)

	got, found := DetectContainer(doc)
	if !found || got.AttrOr("id", "") != "b" {
		t.Errorf("DetectContainer() = %q, %v", got.AttrOr("id", ""), found)
	}
}

func TestDetectContainer_OnlyFirstTenCandidates(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < MaxCandidates; i++ {
		fmt.Fprintf(&b, "<div>filler %d</div>", i)
	}
	b.WriteString(`<div class="late">price 2 000 zł</div></body></html>`)

	got, found := DetectContainer(mustDoc(t, b.String()))
	if found {
		t.Errorf("expected no container within the first %d candidates, got %q", MaxCandidates, got.AttrOr("class", ""))
	}
	if got.Find(".late").Length() != 1 {
		t.Error("fallback scope should be the whole page")
	}
}

func TestApplySelectors(t *testing.T) {
	doc := mustDoc(t, listingPage)
	scope, _ := DetectContainer(doc)

	raw := ApplySelectors(scope, oracle.Selectors{
		"title":   "h1.offer-title",
		"rent":    ".offer-price",
		"area":    ".does-not-exist",
		"garbage": "div",
	})

	if raw.Get("title") != "Dom z ogrodem, Konstancin" {
		t.Errorf("title = %q", raw.Get("title"))
	}
	if raw.Get("rent") != "Price: 7 500 zł" {
		t.Errorf("rent = %q", raw.Get("rent"))
	}
	if raw.Get("area") != listing.NotAvailable {
		t.Errorf("area = %q, want NotAvailable", raw.Get("area"))
	}
	if raw.Get("address") != listing.NotAvailable {
		t.Errorf("address = %q, want NotAvailable", raw.Get("address"))
	}
	if _, ok := raw["garbage"]; ok {
		t.Error("unexpected field outside the oracle field set")
	}
}

func TestApplySelectors_ScopedToContainer(t *testing.T) {
	doc := mustDoc(t, `<html><head><title>Page title</title></head><body>
		<section>price <span class="p">1 zł</span></section></body></html>`)
	scope, _ := DetectContainer(doc)

	raw := ApplySelectors(scope, oracle.Selectors{"title": "title"})
	if raw.Get("title") != listing.NotAvailable {
		t.Errorf("title outside the container should not match, got %q", raw.Get("title"))
	}
}

func TestExtractor_Extract(t *testing.T) {
	const url = "https://example.com/ob/7"
	o := &stubOracle{selectors: oracle.Selectors{
		"title":   "h1",
		"rent":    ".offer-price",
		"area":    ".offer-area",
		"address": ".offer-address",
	}}
	e := New(&stubFetcher{pages: map[string]string{url: listingPage}}, o, fetcher.Options{})

	got, err := e.Extract(context.Background(), url, "gpt-4o")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if got.Title == nil || *got.Title != "Dom z ogrodem, Konstancin" {
		t.Errorf("Title = %v", got.Title)
	}
	if got.Rent == nil || *got.Rent != 7500 {
		t.Errorf("Rent = %v", got.Rent)
	}
	if got.Area == nil || *got.Area != 180 {
		t.Errorf("Area = %v", got.Area)
	}
	if got.Address == nil || *got.Address != "Konstancin-Jeziorna, ul. Słoneczna" {
		t.Errorf("Address = %v", got.Address)
	}
	if got.SelectorTime == nil || *got.SelectorTime < 0 {
		t.Errorf("SelectorTime = %v", got.SelectorTime)
	}
	if got.Strategy != listing.StrategyAI {
		t.Errorf("Strategy = %s", got.Strategy)
	}
	if o.gotModel != "gpt-4o" {
		t.Errorf("oracle model = %q", o.gotModel)
	}
	if !strings.HasPrefix(o.gotHTML, "<section") || strings.Contains(o.gotHTML, "header") {
		t.Errorf("oracle should receive only the container, got %q", o.gotHTML)
	}
}

func TestExtractor_LargePageTruncated(t *testing.T) {
	const url = "https://example.com/ob/8"
	page := "<html><body><p>" + strings.Repeat("ż", 4000) + "</p></body></html>"
	o := &stubOracle{selectors: oracle.Selectors{}}
	e := New(&stubFetcher{pages: map[string]string{url: page}}, o, fetcher.Options{})

	got, err := e.Extract(context.Background(), url, "gpt-4o-mini")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(o.gotHTML) > oracle.MaxHTMLBytes {
		t.Errorf("oracle html = %d bytes, want <= %d", len(o.gotHTML), oracle.MaxHTMLBytes)
	}
	if got.Title != nil || got.Rent != nil {
		t.Errorf("expected no fields without selectors, got %+v", got)
	}
}

func TestExtractor_OracleFailure(t *testing.T) {
	const url = "https://example.com/ob/9"
	o := &stubOracle{err: fmt.Errorf("%w: boom", oracle.ErrOracleCallFailed)}
	e := New(&stubFetcher{pages: map[string]string{url: listingPage}}, o, fetcher.Options{})

	_, err := e.Extract(context.Background(), url, "gpt-4o")
	if !errors.Is(err, oracle.ErrOracleCallFailed) {
		t.Errorf("Extract() error = %v, want ErrOracleCallFailed", err)
	}
}

func TestExtractor_FetchFailure(t *testing.T) {
	e := New(&stubFetcher{}, &stubOracle{}, fetcher.Options{})

	_, err := e.Extract(context.Background(), "https://example.com/gone", "gpt-4o")
	if !errors.Is(err, fetcher.ErrFetch) {
		t.Errorf("Extract() error = %v, want ErrFetch", err)
	}
}
