package telemetry

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jmylchreest/rentwatch/pkg/listing"
	"github.com/jmylchreest/rentwatch/pkg/llm"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}

func TestMeasure_ElapsedAndPeak(t *testing.T) {
	var sink [][]byte
	m, err := Measure(func() error {
		for i := 0; i < 8; i++ {
			sink = append(sink, make([]byte, 1<<20))
			time.Sleep(3 * time.Millisecond)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Measure() error = %v", err)
	}
	if m.Elapsed < 20*time.Millisecond {
		t.Errorf("Elapsed = %v, want >= 20ms", m.Elapsed)
	}
	if m.PeakBytes == 0 {
		t.Error("PeakBytes = 0, expected heap growth to be observed")
	}
	if len(sink) != 8 {
		t.Fatal("unexpected sink length")
	}
}

func TestMeasure_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Measure(func() error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("Measure() error = %v, want boom", err)
	}
}

func TestCounter(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()

	if got := c.Get(); got != 50 {
		t.Errorf("Get() = %d, want 50", got)
	}
	c.Reset()
	if got := c.Get(); got != 0 {
		t.Errorf("Get() after Reset = %d, want 0", got)
	}
}

func TestLog_HeaderWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	l, err := OpenLog(dir, listing.StrategyAI)
	if err != nil {
		t.Fatalf("OpenLog() error = %v", err)
	}

	sel := 0.5
	for _, u := range []string{"https://a", "https://b"} {
		if err := l.Append(Row{URL: u, ElapsedTime: 1.23456, SelectorTime: &sel, MemoryUsage: 2, Strategy: listing.StrategyAI}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	// A second handle on the same file must not rewrite the header.
	l2, _ := OpenLog(dir, listing.StrategyAI)
	if err := l2.Append(Row{URL: "https://c", Strategy: listing.StrategyAI}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	rows := readCSV(t, filepath.Join(dir, "ai_telemetry.csv"))
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4 (header + 3)", len(rows))
	}
	want := []string{"url", "elapsed_time", "selector_time", "memory_usage", "scraper_type"}
	for i, col := range want {
		if rows[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], col)
		}
	}
	if rows[1][1] != "1.2346" || rows[1][2] != "0.5000" || rows[1][4] != "ai" {
		t.Errorf("row = %v", rows[1])
	}
	if rows[3][2] != "" {
		t.Errorf("missing selector time should be empty, got %q", rows[3][2])
	}
}

func TestLog_EmptyFileGetsHeader(t *testing.T) {
	dir := t.TempDir()
	l, _ := OpenLog(dir, listing.StrategyManual)
	// A first append that failed after creating the file leaves it empty.
	if err := os.WriteFile(l.Path(), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := l.Append(Row{URL: "https://a", ElapsedTime: 0.1, Strategy: listing.StrategyManual}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	rows := readCSV(t, l.Path())
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (header + 1)", len(rows))
	}
	if rows[0][0] != "url" || rows[1][0] != "https://a" {
		t.Errorf("rows = %v", rows)
	}
}

func TestLog_ManualColumns(t *testing.T) {
	dir := t.TempDir()
	l, _ := OpenLog(dir, listing.StrategyManual)
	if err := l.Append(Row{URL: "https://a", ElapsedTime: 0.1, MemoryUsage: 0.25, Strategy: listing.StrategyManual}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	rows := readCSV(t, filepath.Join(dir, "manual_telemetry.csv"))
	if len(rows[0]) != 4 || rows[0][2] != "memory_usage" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][3] != "manual" {
		t.Errorf("row = %v", rows[1])
	}
}

func TestRecorder_CountsOnlySuccess(t *testing.T) {
	dir := t.TempDir()
	l, _ := OpenLog(dir, listing.StrategyManual)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	r := NewRecorder(listing.StrategyManual, l, nil, metrics)

	ok := func(ctx context.Context) (*listing.Scraped, error) {
		return &listing.Scraped{URL: "https://a"}, nil
	}
	fail := func(ctx context.Context) (*listing.Scraped, error) {
		return nil, listing.ErrStructureNotFound
	}

	for i := 0; i < 3; i++ {
		s, err := r.Record(context.Background(), "https://a", ok)
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if s.Strategy != listing.StrategyManual || s.ElapsedTime < 0 {
			t.Errorf("Record() = %+v", s)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := r.Record(context.Background(), "https://b", fail); !errors.Is(err, listing.ErrStructureNotFound) {
			t.Errorf("Record() error = %v", err)
		}
	}

	if got := r.Counter().Get(); got != 3 {
		t.Errorf("processed = %d, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.Failures.WithLabelValues("manual")); got != 2 {
		t.Errorf("failures metric = %v, want 2", got)
	}
	if rows := readCSV(t, l.Path()); len(rows) != 4 {
		t.Errorf("log rows = %d, want 4", len(rows))
	}
}

func TestRecorder_LogFailureSwallowed(t *testing.T) {
	dir := t.TempDir()
	l, _ := OpenLog(dir, listing.StrategyAI)
	// Make the log path a directory so opening it fails.
	if err := os.Mkdir(l.Path(), 0o755); err != nil {
		t.Fatal(err)
	}
	r := NewRecorder(listing.StrategyAI, l, nil, nil)

	_, err := r.Record(context.Background(), "https://a", func(ctx context.Context) (*listing.Scraped, error) {
		return &listing.Scraped{URL: "https://a"}, nil
	})
	if err != nil {
		t.Fatalf("Record() error = %v, want nil", err)
	}
	if r.Counter().Get() != 1 {
		t.Error("counter should still increment when the log write fails")
	}
}

func TestMetrics_OracleObserver(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	obs := m.OracleObserver()
	ctx := context.Background()

	obs.OnCall(ctx, llm.CallEvent{Provider: "openai", Model: "gpt-4o", Usage: llm.Usage{InputTokens: 900, OutputTokens: 30}})
	obs.OnCall(ctx, llm.CallEvent{Provider: "anthropic", Model: "claude-3-5-haiku-20241022", Err: errors.New("overloaded")})
	obs.OnCall(ctx, llm.CallEvent{Provider: "openai", Model: "gpt-4o-mini", Fallback: true, Usage: llm.Usage{InputTokens: 100, OutputTokens: 10}})

	if got := testutil.ToFloat64(m.OracleCalls.WithLabelValues("openai", "gpt-4o", "ok")); got != 1 {
		t.Errorf("ok calls = %v", got)
	}
	if got := testutil.ToFloat64(m.OracleCalls.WithLabelValues("anthropic", "claude-3-5-haiku-20241022", "error")); got != 1 {
		t.Errorf("error calls = %v", got)
	}
	if got := testutil.ToFloat64(m.OracleCalls.WithLabelValues("openai", "gpt-4o-mini", "fallback_ok")); got != 1 {
		t.Errorf("fallback calls = %v", got)
	}
	if got := testutil.ToFloat64(m.OracleTokens.WithLabelValues("openai", "input")); got != 1000 {
		t.Errorf("input tokens = %v, want 1000", got)
	}
}
