package output

import (
	"bufio"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// encode writes v as one JSON or YAML document.
func (p *Printer) encode(v any) error {
	bw := bufio.NewWriter(p.w)

	switch p.format {
	case FormatYAML:
		enc := yaml.NewEncoder(bw)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return err
		}
	default:
		enc := json.NewEncoder(bw)
		if p.pretty {
			enc.SetIndent("", p.indent)
		}
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	}

	return bw.Flush()
}

// encodeLines writes each item as one compact JSON line.
func encodeLines[T any](p *Printer, items []T) error {
	bw := bufio.NewWriter(p.w)
	enc := json.NewEncoder(bw)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			return fmt.Errorf("encode json line %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// PrintValue writes any value. Text prints it with %+v.
func (p *Printer) PrintValue(v any) error {
	switch p.format {
	case FormatJSONL:
		return encodeLines(p, []any{v})
	case FormatText:
		_, err := fmt.Fprintf(p.w, "%+v\n", v)
		return err
	default:
		return p.encode(v)
	}
}
