// Package normalize turns raw filing cells into clean metric names, numeric
// values, period dates and millions-scaled amounts.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	htmlTagPattern     = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
	parenNegPattern    = regexp.MustCompile(`\(([0-9]*\.?[0-9]+)\)`)
	plainNumberPattern = regexp.MustCompile(`^[-+]?([0-9]+(\.[0-9]*)?|\.[0-9]+)$`)
)

// metricTrimSet is stripped from both ends of a metric name.
const metricTrimSet = " \t:|$€£¥*"

// absentTokens are cell contents that mean "no value".
var absentTokens = map[string]bool{
	"":  true,
	"-": true,
	"—": true,
	"–": true,
}

// CleanMetricName strips markup from a row label, collapses whitespace and
// trims boundary punctuation and currency symbols.
func CleanMetricName(raw string) string {
	name := htmlTagPattern.ReplaceAllString(raw, " ")
	name = whitespacePattern.ReplaceAllString(name, " ")
	return strings.Trim(name, metricTrimSet)
}

// ParseValue parses a financial cell. "(1,234)" is -1234, dashes and empty
// cells are absent, and anything with non-numeric residue is absent.
func ParseValue(raw string) *float64 {
	s := htmlTagPattern.ReplaceAllString(raw, "")
	s = whitespacePattern.ReplaceAllString(s, "")
	s = strings.NewReplacer(",", "", "$", "").Replace(s)

	if absentTokens[s] {
		return nil
	}

	s = parenNegPattern.ReplaceAllString(s, "-$1")
	if !plainNumberPattern.MatchString(s) {
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// IsCurrencyOnly reports whether a cell holds nothing but a currency marker,
// as produced by filings that put "$" in its own column.
func IsCurrencyOnly(raw string) bool {
	s := strings.TrimSpace(htmlTagPattern.ReplaceAllString(raw, ""))
	switch s {
	case "$", "€", "£", "¥", "US$":
		return true
	}
	return false
}
