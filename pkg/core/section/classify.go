package section

import (
	"regexp"
	"strings"

	"edgar_rag/pkg/models"
)

// tableDominantKeywords mark sections that are mostly financial tables or
// navigation boilerplate. Their narrative is not chunked; their tables feed
// fact extraction.
var tableDominantKeywords = []string{
	// primary statements
	"balance sheet",
	"income statement",
	"statement of operations",
	"statements of operations",
	"statement of earnings",
	"statements of earnings",
	"cash flow",
	"stockholders equity",
	"shareholders equity",
	"statement of equity",
	"statements of equity",
	"comprehensive income",
	"financial statements",
	"financial position",
	"consolidated statements",
	// navigation and boilerplate
	"table of contents",
	"index to",
	"index of",
	"cover page",
	"signatures",
	"exhibits",
}

// IsTableDominant reports whether a (canonical) section name denotes a
// table-heavy section.
func IsTableDominant(name string) bool {
	lower := strings.ToLower(name)
	lower = strings.NewReplacer("'", "", "’", "").Replace(lower)
	for _, kw := range tableDominantKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type statementPattern struct {
	statement models.StatementType
	patterns  []*regexp.Regexp
}

// statementPatterns are checked in order; the first match wins.
var statementPatterns = []statementPattern{
	{models.CashFlow, compileAll(
		`(?i)statements?\s+of\s+cash\s+flows?`,
		`(?i)cash\s+flows?\s+statements?`,
	)},
	{models.BalanceSheet, compileAll(
		`(?i)balance\s+sheets?`,
		`(?i)statements?\s+of\s+financial\s+position`,
	)},
	{models.IncomeStatement, compileAll(
		`(?i)statements?\s+of\s+operations`,
		`(?i)statements?\s+of\s+(?:consolidated\s+)?income`,
		`(?i)statements?\s+of\s+earnings`,
		`(?i)income\s+statements?`,
	)},
}

// statementAvoids exclude parent-only and consolidating schedules.
var statementAvoids = compileAll(
	`(?i)parent\s+company`,
	`(?i)registrant\s+only`,
	`(?i)supplemental\s+consolidating`,
	`(?i)comprehensive\s+income`,
)

// StatementTypeOf identifies the primary statement a section title refers to.
func StatementTypeOf(name string) (models.StatementType, bool) {
	for _, re := range statementAvoids {
		if re.MatchString(name) {
			return "", false
		}
	}
	for _, sp := range statementPatterns {
		for _, re := range sp.patterns {
			if re.MatchString(name) {
				return sp.statement, true
			}
		}
	}
	return "", false
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}
