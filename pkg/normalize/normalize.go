// Package normalize converts raw text scraped from listing pages into typed
// values. Malformed input never fails: it degrades to "absent" (ok == false).
package normalize

import (
	"strconv"
	"strings"

	"github.com/jmylchreest/rentwatch/internal/logger"
	"github.com/jmylchreest/rentwatch/pkg/listing"
)

var areaReplacer = strings.NewReplacer(
	"•", "",
	"m²", "",
	",", ".",
)

// Rent returns the integer formed by the ASCII digits of raw, in order.
// No currency conversion or rounding is applied.
func Rent(raw string) (int, bool) {
	if isAbsent(raw) {
		return 0, false
	}

	digits := keep(raw, func(r rune) bool { return r >= '0' && r <= '9' })
	if digits == "" {
		return 0, false
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		logger.Debug("rent not parseable", "raw", raw, "error", err)
		return 0, false
	}
	return n, true
}

// Area parses a surface such as "61,5 m²" and truncates it toward zero.
func Area(raw string) (int, bool) {
	if isAbsent(raw) {
		return 0, false
	}

	cleaned := areaReplacer.Replace(raw)
	cleaned = keep(cleaned, func(r rune) bool { return (r >= '0' && r <= '9') || r == '.' })

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		logger.Debug("area not parseable", "raw", raw, "cleaned", cleaned, "error", err)
		return 0, false
	}
	return int(f), true
}

// RentPtr is Rent returning nil when absent.
func RentPtr(raw string) *int {
	if n, ok := Rent(raw); ok {
		return &n
	}
	return nil
}

// AreaPtr is Area returning nil when absent.
func AreaPtr(raw string) *int {
	if n, ok := Area(raw); ok {
		return &n
	}
	return nil
}

func isAbsent(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "" || raw == listing.NotAvailable
}

func keep(s string, pred func(rune) bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if pred(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
