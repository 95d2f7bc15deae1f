// Package facts extracts financial facts from markdown tables and from
// structured statement tables.
package facts

import (
	"time"

	"edgar_rag/pkg/models"
)

// SkipReason explains why a row produced no facts.
type SkipReason string

const (
	SkipHeader      SkipReason = "header"
	SkipShortMetric SkipReason = "short_metric"
	SkipNoValues    SkipReason = "no_values"
	SkipAbstract    SkipReason = "abstract"
	SkipDimension   SkipReason = "dimension"
	SkipNoConcept   SkipReason = "no_concept"
)

// Period is a reporting date recovered from a column header.
type Period struct {
	Date    time.Time
	Audited bool
}

// RowResult is the outcome of one table row.
type RowResult struct {
	Row    int
	Metric string
	Facts  []models.FinancialFact
	Skip   SkipReason // empty when the row produced facts
}

// TableResult is the outcome of one markdown table.
type TableResult struct {
	Periods []Period
	Rows    []RowResult
}

// Facts returns every fact produced by the table, in row order.
func (r TableResult) Facts() []models.FinancialFact {
	return collectFacts(r.Rows)
}

// Skipped counts skipped rows by reason.
func (r TableResult) Skipped() map[SkipReason]int {
	return countSkips(r.Rows)
}

// StatementResult is the outcome of one structured statement.
type StatementResult struct {
	Type    models.StatementType
	Periods []Period
	Rows    []RowResult
}

// Facts returns every fact produced by the statement, in row order.
func (r StatementResult) Facts() []models.FinancialFact {
	return collectFacts(r.Rows)
}

// Skipped counts skipped rows by reason.
func (r StatementResult) Skipped() map[SkipReason]int {
	return countSkips(r.Rows)
}

func collectFacts(rows []RowResult) []models.FinancialFact {
	out := make([]models.FinancialFact, 0)
	for _, row := range rows {
		out = append(out, row.Facts...)
	}
	return out
}

func countSkips(rows []RowResult) map[SkipReason]int {
	counts := make(map[SkipReason]int)
	for _, row := range rows {
		if row.Skip != "" {
			counts[row.Skip]++
		}
	}
	return counts
}
