package telemetry

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/jmylchreest/rentwatch/pkg/listing"
)

// Row is one telemetry log entry.
type Row struct {
	URL          string
	ElapsedTime  float64
	SelectorTime *float64
	MemoryUsage  float64
	Strategy     listing.Strategy
}

// Log appends telemetry rows to a per-strategy CSV file.
// It is safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	path     string
	strategy listing.Strategy
}

// FileName returns the log file name used for strategy.
func FileName(strategy listing.Strategy) string {
	return string(strategy) + "_telemetry.csv"
}

// OpenLog returns the log for strategy under dir. The directory is created
// if needed; the file and header are written on first Append.
func OpenLog(dir string, strategy listing.Strategy) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("telemetry: create dir: %w", err)
	}
	return &Log{path: filepath.Join(dir, FileName(strategy)), strategy: strategy}, nil
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Header returns the column names for the log's strategy.
func (l *Log) Header() []string {
	if l.strategy == listing.StrategyAI {
		return []string{"url", "elapsed_time", "selector_time", "memory_usage", "scraper_type"}
	}
	return []string{"url", "elapsed_time", "memory_usage", "scraper_type"}
}

// Append writes row to the log with a single write call. The header is
// written whenever the file is empty, so a file left empty by a failed
// first append still gets one.
func (l *Log) Append(row Row) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("telemetry: open %s: %w", l.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("telemetry: stat %s: %w", l.path, err)
	}
	empty := info.Size() == 0

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if empty {
		_ = w.Write(l.Header())
	}
	_ = w.Write(l.record(row))
	w.Flush()
	err = w.Error()
	if err != nil {
		err = fmt.Errorf("telemetry: encode row: %w", err)
	} else if _, werr := f.Write(buf.Bytes()); werr != nil {
		err = fmt.Errorf("telemetry: write %s: %w", l.path, werr)
	}

	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("telemetry: close %s: %w", l.path, cerr)
	}
	if err != nil && empty {
		// Do not leave a partial first row without its header.
		_ = os.Remove(l.path)
	}
	return err
}

func (l *Log) record(row Row) []string {
	rec := []string{row.URL, formatFloat(row.ElapsedTime)}
	if l.strategy == listing.StrategyAI {
		selector := ""
		if row.SelectorTime != nil {
			selector = formatFloat(*row.SelectorTime)
		}
		rec = append(rec, selector)
	}
	return append(rec, formatFloat(row.MemoryUsage), string(row.Strategy))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
