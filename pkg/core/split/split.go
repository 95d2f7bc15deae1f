// Package split separates pipe-delimited markdown tables from the prose
// around them.
package split

import (
	"strings"
)

// tableDelimiter marks a line as part of a markdown table.
const tableDelimiter = "|"

// IsTableLine reports whether a line belongs to a table block.
func IsTableLine(line string) bool {
	return strings.Contains(line, tableDelimiter)
}

// ExtractTables returns each maximal run of consecutive table lines, verbatim,
// in document order.
func ExtractTables(content string) []string {
	tables := make([]string, 0)
	var current []string

	for _, line := range strings.Split(content, "\n") {
		if IsTableLine(line) {
			current = append(current, line)
			continue
		}
		if len(current) > 0 {
			tables = append(tables, strings.Join(current, "\n"))
			current = nil
		}
	}
	if len(current) > 0 {
		tables = append(tables, strings.Join(current, "\n"))
	}

	return tables
}

// ExtractNarrative returns the content with every table line removed. A single
// blank line stands in for each table run that is followed by more prose, so
// paragraphs on either side of a table stay separate. The result is trimmed.
func ExtractNarrative(content string) string {
	narrative := make([]string, 0)
	inTable := false

	for _, line := range strings.Split(content, "\n") {
		if IsTableLine(line) {
			inTable = true
			continue
		}
		if inTable {
			narrative = append(narrative, "")
			inTable = false
		}
		narrative = append(narrative, line)
	}

	return strings.TrimSpace(strings.Join(narrative, "\n"))
}
