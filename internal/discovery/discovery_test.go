package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmylchreest/rentwatch/pkg/fetcher"
)

// readTestdata reads a file from the testdata directory
func readTestdata(t *testing.T, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", filename))
	if err != nil {
		t.Fatalf("failed to read testdata %s: %v", filename, err)
	}
	return string(data)
}

type stubFetcher struct {
	pages map[string]string
}

func (f *stubFetcher) Fetch(_ context.Context, url string, _ fetcher.Options) (fetcher.Content, error) {
	html, ok := f.pages[url]
	if !ok {
		return fetcher.Content{URL: url, StatusCode: 404}, fmt.Errorf("%w: %s: status 404", fetcher.ErrFetch, url)
	}
	return fetcher.Content{URL: url, HTML: html, StatusCode: 200}, nil
}

func (f *stubFetcher) Close() error { return nil }
func (f *stubFetcher) Type() string { return "stub" }

const indexURL = "https://wolfnieruchomosci.gratka.pl/nieruchomosci/domy/wynajem"

func TestLinkSelector_ExtractLinks(t *testing.T) {
	html := readTestdata(t, "index.html")

	links, err := NewLinkSelector("").ExtractLinks(html, indexURL)
	if err != nil {
		t.Fatalf("ExtractLinks() error = %v", err)
	}

	want := []string{
		"https://wolfnieruchomosci.gratka.pl/nieruchomosci/dom-warszawa-wilanow/ob/101",
		"https://wolfnieruchomosci.gratka.pl/nieruchomosci/dom-krakow/ob/102",
		"https://wolfnieruchomosci.gratka.pl/nieruchomosci/dom-warszawa-wilanow/ob/101",
	}
	if len(links) != len(want) {
		t.Fatalf("got %d links, want %d: %v", len(links), len(want), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, links[i], want[i])
		}
	}
}

func TestLinkSelector_CustomSelector(t *testing.T) {
	html := readTestdata(t, "index.html")

	links, err := NewLinkSelector(".promo a").ExtractLinks(html, indexURL)
	if err != nil {
		t.Fatalf("ExtractLinks() error = %v", err)
	}
	if len(links) != 1 || links[0] != "https://wolfnieruchomosci.gratka.pl/nieruchomosci/promowane/ob/999" {
		t.Errorf("links = %v", links)
	}
}

func TestLinkSelector_NoMatches(t *testing.T) {
	links, err := NewLinkSelector("").ExtractLinks("<html><body><a href=\"/x\">x</a></body></html>", indexURL)
	if err != nil {
		t.Fatalf("ExtractLinks() error = %v", err)
	}
	if len(links) != 0 {
		t.Errorf("expected no links, got %v", links)
	}
}

func TestDiscoverer_Discover(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{indexURL: readTestdata(t, "index.html")}}

	links, err := New(f, nil, fetcher.Options{}).Discover(context.Background(), indexURL)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(links) != 3 {
		t.Errorf("got %d links, want 3", len(links))
	}
}

func TestDiscoverer_IndexFetchFails(t *testing.T) {
	f := &stubFetcher{}

	_, err := New(f, nil, fetcher.Options{}).Discover(context.Background(), indexURL)
	if !errors.Is(err, fetcher.ErrFetch) {
		t.Errorf("Discover() error = %v, want ErrFetch", err)
	}
}
