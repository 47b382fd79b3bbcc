// Package output renders run results, history and listings for the CLI.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
	FormatText  Format = "text"
)

// Formats lists the accepted --format values.
var Formats = []Format{FormatJSON, FormatJSONL, FormatYAML, FormatText}

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

// Option configures a Printer.
type Option func(*Printer)

// WithPretty enables pretty-printing of JSON.
func WithPretty(enabled bool) Option {
	return func(p *Printer) {
		p.pretty = enabled
	}
}

// WithIndent sets the JSON indentation string.
func WithIndent(indent string) Option {
	return func(p *Printer) {
		p.indent = indent
	}
}

// Printer writes values to w in one format.
type Printer struct {
	w      io.Writer
	format Format
	pretty bool
	indent string
}

// New creates a printer for format.
func New(w io.Writer, format Format, opts ...Option) (*Printer, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	p := &Printer{
		w:      w,
		format: format,
		pretty: true,
		indent: "  ",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Format returns the printer's format.
func (p *Printer) Format() Format { return p.format }
