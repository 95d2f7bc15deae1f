package facts

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"edgar_rag/pkg/core/normalize"
	"edgar_rag/pkg/models"
)

var (
	columnDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	periodQualifier   = regexp.MustCompile(`(?i)^(fy|ytd|q[1-4]|h[12]|\d{1,2}m)$`)
)

// StatementRow is one line item of a structured statement.
type StatementRow struct {
	Concept         string                 `json:"concept"`
	Label           string                 `json:"label"`
	StandardConcept string                 `json:"standard_concept,omitempty"`
	Abstract        bool                   `json:"abstract,omitempty"`
	Dimension       bool                   `json:"dimension,omitempty"`
	Unit            string                 `json:"unit,omitempty"`
	Values          map[string]interface{} `json:"values"`
}

// statementRowKeys are the non-value fields of a flat (records-oriented) row.
var statementRowKeys = map[string]bool{
	"concept": true, "label": true, "standard_concept": true, "abstract": true,
	"dimension": true, "unit": true, "units": true, "values": true, "level": true,
	"is_abstract": true, "has_dimensions": true, "original_label": true,
}

// UnmarshalJSON accepts both the nested {"values": {...}} form and flat
// records where every period column sits beside the descriptive fields.
func (r *StatementRow) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Concept = stringField(raw, "concept")
	r.Label = stringField(raw, "label")
	r.StandardConcept = stringField(raw, "standard_concept")
	r.Abstract = boolField(raw, "abstract") || boolField(raw, "is_abstract")
	r.Dimension = boolField(raw, "dimension") || boolField(raw, "has_dimensions")
	r.Unit = stringField(raw, "unit")
	if r.Unit == "" {
		r.Unit = stringField(raw, "units")
	}

	r.Values = make(map[string]interface{})
	if nested, ok := raw["values"].(map[string]interface{}); ok {
		for k, v := range nested {
			r.Values[k] = v
		}
	}
	for k, v := range raw {
		if !statementRowKeys[k] {
			r.Values[k] = v
		}
	}
	return nil
}

// StatementTable is one primary statement from a structured source.
type StatementTable struct {
	Type    models.StatementType `json:"type,omitempty"`
	Columns []string             `json:"columns,omitempty"` // period column keys in display order
	Rows    []StatementRow       `json:"rows"`
}

// ColumnKey is a parsed statement column key such as "2025-12-31 (USD millions)".
type ColumnKey struct {
	Key      string
	Period   time.Time
	UnitHint string
}

// ParseColumnKey splits a composite column key into its period date and unit
// hint. The first YYYY-MM-DD token is the period; the remaining tokens,
// minus period qualifiers such as "FY" or "Q4", form the unit hint.
func ParseColumnKey(key string) (ColumnKey, bool) {
	loc := columnDatePattern.FindStringIndex(key)
	if loc == nil {
		return ColumnKey{}, false
	}
	period, err := time.Parse(models.DateLayout, key[loc[0]:loc[1]])
	if err != nil {
		return ColumnKey{}, false
	}

	rest := key[:loc[0]] + " " + key[loc[1]:]
	tokens := strings.FieldsFunc(rest, func(r rune) bool {
		return r == ' ' || r == '_' || r == '|' || r == '(' || r == ')' || r == ',' || r == ';'
	})
	hint := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.Trim(tok, "-")
		if tok == "" || periodQualifier.MatchString(tok) {
			continue
		}
		hint = append(hint, tok)
	}

	return ColumnKey{Key: key, Period: period, UnitHint: strings.Join(hint, " ")}, true
}

// ExtractStatement converts a structured statement into facts.
//
// Abstract and dimensional rows are skipped, as are missing and NaN values.
// A row's own unit overrides the unit hint carried by its column key.
func ExtractStatement(table StatementTable, filing models.Filing) StatementResult {
	result := StatementResult{Type: table.Type}

	columns := statementColumns(table)
	for _, c := range columns {
		result.Periods = append(result.Periods, Period{Date: c.Period, Audited: statementAudited(filing)})
	}

	for i, row := range table.Rows {
		rr := RowResult{Row: i, Metric: row.Label}
		switch {
		case row.Abstract:
			rr.Skip = SkipAbstract
		case row.Dimension:
			rr.Skip = SkipDimension
		case row.Concept == "" && row.Label == "":
			rr.Skip = SkipNoConcept
		default:
			rr.Facts = statementRowFacts(row, columns, table.Type, filing)
			if len(rr.Facts) == 0 {
				rr.Skip = SkipNoValues
			}
		}
		result.Rows = append(result.Rows, rr)
	}

	return result
}

func statementRowFacts(row StatementRow, columns []ColumnKey, st models.StatementType, filing models.Filing) []models.FinancialFact {
	concept := row.Concept
	if concept == "" {
		concept = row.Label
	}

	facts := make([]models.FinancialFact, 0, len(columns))
	for _, col := range columns {
		v, ok := toFloat(row.Values[col.Key])
		if !ok {
			continue
		}

		hint := col.UnitHint
		if row.Unit != "" {
			hint = row.Unit
		}
		amount := normalize.NormalizeValueAndUnit(v, normalize.UnitInput{
			Concept:       concept,
			Label:         row.Label,
			UnitHint:      hint,
			StatementType: st,
		})

		facts = append(facts, models.FinancialFact{
			Ticker:          filing.Ticker,
			FilingDate:      filing.FilingDate,
			FilingType:      filing.FormType,
			PeriodDate:      col.Period,
			StatementType:   string(st),
			Concept:         concept,
			Label:           row.Label,
			StandardConcept: row.StandardConcept,
			Value:           amount.Value,
			Unit:            amount.Unit,
			UnitConfidence:  amount.Confidence,
			Audited:         statementAudited(filing),
		})
	}
	return facts
}

// statementColumns returns the period columns in declared order, or sorted
// newest first when the table does not declare them.
func statementColumns(table StatementTable) []ColumnKey {
	keys := table.Columns
	if len(keys) == 0 {
		seen := make(map[string]bool)
		for _, row := range table.Rows {
			for k := range row.Values {
				if !seen[k] {
					seen[k] = true
					keys = append(keys, k)
				}
			}
		}
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	}

	columns := make([]ColumnKey, 0, len(keys))
	for _, k := range keys {
		if c, ok := ParseColumnKey(k); ok {
			columns = append(columns, c)
		}
	}
	return columns
}

// statementAudited treats quarterly statements as unaudited.
func statementAudited(filing models.Filing) bool {
	return filing.FormType != models.Form10Q
}

// toFloat reads a statement cell; missing, NaN and non-numeric cells are absent.
func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case float32:
		return toFloat(float64(x))
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return 0, false
		}
		return toFloat(f)
	case string:
		if p := normalize.ParseValue(x); p != nil {
			return *p, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func stringField(raw map[string]interface{}, key string) string {
	if s, ok := raw[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func boolField(raw map[string]interface{}, key string) bool {
	switch v := raw[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case float64:
		return v != 0
	}
	return false
}
