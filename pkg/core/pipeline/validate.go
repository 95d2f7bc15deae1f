package pipeline

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"edgar_rag/pkg/core/section"
	"edgar_rag/pkg/models"
)

func isUnresolved(err error) bool {
	return errors.Is(err, ErrIdentityUnresolved)
}

type balanceLine int

const (
	lineOther balanceLine = iota
	lineAssets
	lineLiabilities
	lineEquity
	lineLiabilitiesAndEquity
)

var balanceConcepts = map[string]balanceLine{
	"assets":                           lineAssets,
	"liabilities":                      lineLiabilities,
	"stockholdersequity":               lineEquity,
	"liabilitiesandstockholdersequity": lineLiabilitiesAndEquity,
	"stockholdersequityincludingportionattributabletononcontrollinginterest": lineEquity,
}

var balanceLabels = map[string]balanceLine{
	"total assets":                              lineAssets,
	"total liabilities":                         lineLiabilities,
	"total stockholders equity":                 lineEquity,
	"total shareholders equity":                 lineEquity,
	"total equity":                              lineEquity,
	"total liabilities and stockholders equity": lineLiabilitiesAndEquity,
	"total liabilities and shareholders equity": lineLiabilitiesAndEquity,
	"total liabilities and equity":              lineLiabilitiesAndEquity,
}

func classifyBalanceLine(f models.FinancialFact) balanceLine {
	concept := strings.ToLower(f.Concept)
	for _, prefix := range []string{"us-gaap_", "us-gaap:"} {
		concept = strings.TrimPrefix(concept, prefix)
	}
	if line, ok := balanceConcepts[concept]; ok {
		return line
	}
	label := strings.ToLower(strings.NewReplacer("'", "", "’", "").Replace(f.Label))
	label = strings.Join(strings.Fields(label), " ")
	if line, ok := balanceLabels[label]; ok {
		return line
	}
	return lineOther
}

func isBalanceSheet(f models.FinancialFact) bool {
	if f.StatementType == string(models.BalanceSheet) {
		return true
	}
	st, ok := section.StatementTypeOf(f.StatementType)
	return ok && st == models.BalanceSheet
}

// checkBalanceSheet verifies Assets = Liabilities + Equity per period and
// returns one warning per period outside tolerance (percent of assets).
// Periods missing any side of the equation are not checked.
func checkBalanceSheet(fs []models.FinancialFact, tolerance float64) []string {
	byPeriod := make(map[string]map[balanceLine]float64)
	for _, f := range fs {
		if !isBalanceSheet(f) {
			continue
		}
		line := classifyBalanceLine(f)
		if line == lineOther {
			continue
		}
		key := f.PeriodDate.Format(models.DateLayout)
		values, ok := byPeriod[key]
		if !ok {
			values = make(map[balanceLine]float64)
			byPeriod[key] = values
		}
		if _, seen := values[line]; !seen {
			values[line] = f.Value
		}
	}

	periods := make([]string, 0, len(byPeriod))
	for p := range byPeriod {
		periods = append(periods, p)
	}
	sort.Strings(periods)

	warnings := make([]string, 0)
	for _, p := range periods {
		v := byPeriod[p]
		assets, ok := v[lineAssets]
		if !ok || assets == 0 {
			continue
		}
		other, ok := v[lineLiabilitiesAndEquity]
		if !ok {
			l, okL := v[lineLiabilities]
			e, okE := v[lineEquity]
			if !okL || !okE {
				continue
			}
			other = l + e
		}
		diff := math.Abs(assets - other)
		pct := diff / math.Abs(assets) * 100
		if pct > tolerance {
			warnings = append(warnings, fmt.Sprintf("period %s: assets %.2f vs liabilities+equity %.2f (%.4f%%)", p, assets, other, pct))
		}
	}
	return warnings
}
