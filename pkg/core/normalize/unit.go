package normalize

import (
	"regexp"
	"strings"

	"edgar_rag/pkg/models"
)

// UnitMillions is the normalized unit of every monetary fact.
const UnitMillions = "millions"

// UnitInput carries what is known about a value's unit.
type UnitInput struct {
	Concept       string
	Label         string
	UnitHint      string               // "USD", "thousands", "shares"... may be empty
	StatementType models.StatementType // empty when the source is not a primary statement
}

// Amount is a value after unit normalization.
type Amount struct {
	Value      float64
	Unit       string
	Confidence models.UnitConfidence
}

// nonMonetaryMarkers flag per-share amounts, share counts, ratios and headcounts.
// Matched against the lowercased concept, label and unit hint; word markers
// must appear as a whole word ("ratio" is not inside "operations").
var nonMonetaryMarkers = []struct {
	marker string
	unit   string
	word   bool
}{
	{"per share", "per_share", false},
	{"pershare", "per_share", false},
	{"per_share", "per_share", false},
	{"usd/share", "per_share", false},
	{"eps", "per_share", true},
	{"shares outstanding", "shares", false},
	{"sharesoutstanding", "shares", false},
	{"number of shares", "shares", false},
	{"numberofshares", "shares", false},
	{"weighted average shares", "shares", false},
	{"weightedaverageshares", "shares", false},
	{"percent", "percent", false},
	{"%", "percent", false},
	{"ratio", "ratio", true},
	{"headcount", "count", false},
	{"number of employees", "count", false},
	{"numberofemployees", "count", false},
}

// nonMonetaryHints are unit hints that name a non-monetary unit outright.
var nonMonetaryHints = map[string]string{
	"shares":     "shares",
	"share":      "shares",
	"usd/share":  "per_share",
	"usd/shares": "per_share",
	"pure":       "ratio",
	"%":          "percent",
	"percent":    "percent",
}

// primaryStatements are the statement types whose unlabeled values are assumed to be dollars.
var primaryStatements = map[models.StatementType]bool{
	models.BalanceSheet:    true,
	models.IncomeStatement: true,
	models.CashFlow:        true,
}

// NormalizeValueAndUnit converts a monetary value to millions of dollars.
//
// An explicit hint ("billions", "millions", "thousands", bare dollars) is
// applied and tagged explicit. With no hint, a monetary concept on a primary
// statement is assumed to be in dollars and tagged inferred. Everything else
// passes through unscaled and is tagged unknown.
func NormalizeValueAndUnit(value float64, in UnitInput) Amount {
	hint := strings.ToLower(strings.TrimSpace(in.UnitHint))

	if unit, ok := nonMonetaryHints[hint]; ok {
		return Amount{Value: value, Unit: unit, Confidence: models.UnitExplicit}
	}
	if unit, ok := nonMonetaryUnit(in, hint); ok {
		// A table-level scale ("in millions, except per share data") does not apply to these rows.
		return Amount{Value: value, Unit: unit, Confidence: models.UnitUnknown}
	}

	if hint != "" {
		if scaled, ok := toMillions(value, hint); ok {
			return Amount{Value: scaled, Unit: UnitMillions, Confidence: models.UnitExplicit}
		}
		return Amount{Value: value, Unit: strings.TrimSpace(in.UnitHint), Confidence: models.UnitUnknown}
	}

	if primaryStatements[in.StatementType] {
		return Amount{Value: value / 1e6, Unit: UnitMillions, Confidence: models.UnitInferred}
	}

	return Amount{Value: value, Unit: "unknown", Confidence: models.UnitUnknown}
}

// nonMonetaryUnit sniffs the concept, label and hint for per-share amounts,
// counts and ratios.
func nonMonetaryUnit(in UnitInput, hint string) (string, bool) {
	text := strings.ToLower(in.Concept + " " + in.Label + " " + hint)
	for _, m := range nonMonetaryMarkers {
		if m.word && containsWord(text, m.marker) || !m.word && strings.Contains(text, m.marker) {
			return m.unit, true
		}
	}
	return "", false
}

// toMillions converts a value in the hinted unit to millions.
func toMillions(value float64, hint string) (float64, bool) {
	switch {
	case strings.Contains(hint, "billion"):
		return value * 1000, true
	case strings.Contains(hint, "million"):
		return value, true
	case strings.Contains(hint, "thousand"), strings.Contains(hint, "000s"), strings.Contains(hint, "000's"):
		return value / 1000, true
	case hint == "usd", hint == "$", hint == "dollars", hint == "us dollars", hint == "iso4217:usd":
		return value / 1e6, true
	}
	return 0, false
}

var (
	// "(In thousands, except per share data)", "Dollars in millions",
	// "($ in billions)", "thousands of U.S. dollars", "($000s)".
	scalePhrasePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bin\s+(billions|millions|thousands)\b`),
		regexp.MustCompile(`(?i)\b(billions|millions|thousands)\s+of\s+(?:u\.s\.\s+)?dollars\b`),
		regexp.MustCompile(`(?i)\(\s*(?:\$|usd)?\s*(billions|millions|thousands)\s*\)`),
		regexp.MustCompile(`(?i)\(\s*(?:in\s+)?\$?\s*(000)'?s\s*\)`),
	}
	scaleWordPattern = regexp.MustCompile(`(?i)\b(billions?|millions?|thousands?)\b`)
)

// ScalePhrase returns the scale named by the last scale statement in text,
// such as "(in thousands, except per share data)": "billions", "millions",
// "thousands" or "". Bare mentions like "a $2 million charge" are ignored.
func ScalePhrase(text string) string {
	best, bestAt := "", -1
	for _, p := range scalePhrasePatterns {
		for _, m := range p.FindAllStringSubmatchIndex(text, -1) {
			if m[0] > bestAt {
				best, bestAt = text[m[2]:m[3]], m[0]
			}
		}
	}
	return scaleName(best)
}

// DetectUnitHint finds the scale of the values that follow text. A scale
// statement wins over bare scale words anywhere in the text; without one the
// last bare word ("Millions") is used. Returns "billions", "millions",
// "thousands" or "".
func DetectUnitHint(text string) string {
	if hint := ScalePhrase(text); hint != "" {
		return hint
	}
	words := scaleWordPattern.FindAllString(text, -1)
	if len(words) == 0 {
		return ""
	}
	return scaleName(words[len(words)-1])
}

func scaleName(word string) string {
	w := strings.ToLower(word)
	switch {
	case strings.HasPrefix(w, "billion"):
		return "billions"
	case strings.HasPrefix(w, "million"):
		return "millions"
	case strings.HasPrefix(w, "thousand"), w == "000":
		return "thousands"
	}
	return ""
}

func containsWord(text, word string) bool {
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if f == word {
			return true
		}
	}
	return false
}
