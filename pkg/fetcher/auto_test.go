package fetcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type stubFetcher struct {
	html  string
	err   error
	calls int
}

func (s *stubFetcher) Fetch(_ context.Context, url string, _ Options) (Content, error) {
	s.calls++
	if s.err != nil {
		return Content{}, s.err
	}
	return Content{URL: url, HTML: s.html, StatusCode: 200}, nil
}

func (s *stubFetcher) Close() error { return nil }
func (s *stubFetcher) Type() string { return "stub" }

const renderedPage = `<html><body><div id="__nuxt"><h1>Dom na wynajem</h1><span>4 500 zł</span></div></body></html>`

func TestNeedsJavaScript(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"rendered nuxt", renderedPage, false},
		{"empty nuxt mount", `<html><body><div id="__nuxt"></div><script src="/app.js"></script></body></html>`, true},
		{"empty react root", `<html><body><div id="root"> </div></body></html>`, true},
		{"noscript on thin page", `<html><body><noscript>Please enable JavaScript</noscript><p>Loading</p></body></html>`, true},
		{"noscript on full page", `<html><body><noscript>enable javascript</noscript><p>` + longText + `</p></body></html>`, false},
		{"plain page", `<html><body><p>Hello</p></body></html>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsJavaScript(tt.html); got != tt.want {
				t.Errorf("NeedsJavaScript() = %v, want %v", got, tt.want)
			}
		})
	}
}

const longText = "Przestronny dom z ogrodem, garażem na dwa samochody i tarasem. " +
	"Cicha okolica, blisko szkoły i sklepów, dobry dojazd do centrum miasta. " +
	"Dostępny od zaraz, umowa na minimum rok, kaucja w wysokości jednego czynszu."

func TestAutoFetcher_StaticPageKept(t *testing.T) {
	static := &stubFetcher{html: renderedPage}
	dynamic := &stubFetcher{html: "browser"}

	got, err := NewAuto(static, dynamic).Fetch(context.Background(), "https://example.com", Options{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got.HTML != renderedPage || dynamic.calls != 0 {
		t.Errorf("dynamic used for a rendered page (calls=%d)", dynamic.calls)
	}
}

func TestAutoFetcher_ShellUsesBrowser(t *testing.T) {
	static := &stubFetcher{html: `<div id="__nuxt"></div>`}
	dynamic := &stubFetcher{html: renderedPage}

	got, err := NewAuto(static, dynamic).Fetch(context.Background(), "https://example.com", Options{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got.HTML != renderedPage {
		t.Errorf("HTML = %q, want browser render", got.HTML)
	}
}

func TestAutoFetcher_StaticErrorUsesBrowser(t *testing.T) {
	static := &stubFetcher{err: fmt.Errorf("%w: status 403", ErrFetch)}
	dynamic := &stubFetcher{html: renderedPage}

	if _, err := NewAuto(static, dynamic).Fetch(context.Background(), "https://example.com", Options{}); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if dynamic.calls != 1 {
		t.Errorf("dynamic calls = %d, want 1", dynamic.calls)
	}
}

func TestAutoFetcher_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	static := &stubFetcher{err: fmt.Errorf("%w: %w", ErrFetch, context.Canceled)}
	dynamic := &stubFetcher{html: renderedPage}

	_, err := NewAuto(static, dynamic).Fetch(ctx, "https://example.com", Options{})
	if !errors.Is(err, ErrFetch) {
		t.Errorf("error = %v, want ErrFetch", err)
	}
	if dynamic.calls != 0 {
		t.Error("browser used after cancellation")
	}
}
