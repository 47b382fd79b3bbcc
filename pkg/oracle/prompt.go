// Package oracle asks a text-generation provider to infer CSS selectors for
// listing fields from an HTML fragment.
package oracle

import (
	"strings"
)

// Fields are the listing attributes the oracle is asked to locate, in prompt order.
var Fields = []string{"title", "rent", "area", "address"}

// MaxHTMLBytes bounds the HTML sent in one request.
const MaxHTMLBytes = 3000

// Selectors maps a field name to the CSS selector inferred for it.
type Selectors map[string]string

// Get returns the selector for field, or "" when the oracle named none.
func (s Selectors) Get(field string) string {
	return s[field]
}

// BuildPrompt creates the fixed selector-inference prompt around html.
func BuildPrompt(html string) string {
	var prompt strings.Builder

	prompt.WriteString("You are a scraping expert. Given the following HTML snippet, extract the best CSS selectors for:\n")
	for _, f := range Fields {
		prompt.WriteString("- ")
		prompt.WriteString(f)
		prompt.WriteString("\n")
	}
	prompt.WriteString("Only output the field names and selectors like this:\n")
	for _, f := range Fields {
		prompt.WriteString(f)
		prompt.WriteString(": .")
		prompt.WriteString(f)
		prompt.WriteString("-class\n")
	}
	prompt.WriteString("\nHTML:\n")
	prompt.WriteString(html)
	prompt.WriteString("\n")

	return prompt.String()
}

// ParseSelectors converts a free-text oracle answer into a field mapping.
// Each line holding a ':' yields one entry split at the first ':'; other lines
// are ignored and a repeated key keeps its last value.
func ParseSelectors(text string) Selectors {
	selectors := make(Selectors)
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		selectors[key] = value
	}
	return selectors
}

// Truncate returns at most max bytes of html without splitting a UTF-8 sequence.
func Truncate(html string, max int) string {
	if max <= 0 || len(html) <= max {
		return html
	}
	cut := max
	// Back off to the start of a rune.
	for cut > 0 && !isRuneStart(html[cut]) {
		cut--
	}
	return html[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
