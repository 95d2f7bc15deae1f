package facts

import (
	"regexp"
	"strings"

	"edgar_rag/pkg/core/normalize"
	"edgar_rag/pkg/models"
)

const (
	maxHeaderRows   = 3
	minMetricLength = 3
)

var (
	separatorRowPattern = regexp.MustCompile(`^\|[-:\s|]+\|$`)
	periodLabelPattern  = regexp.MustCompile(`(?i)\b(years?|ended|ending|months|weeks|quarters?|fiscal|as of|period)\b`)
)

// TableContext describes where a markdown table was found.
type TableContext struct {
	Filing        models.Filing
	Section       string               // recorded as the facts' statement_type
	UnitHint      string               // scale stated above the table; a scale statement in the header overrides it
	StatementType models.StatementType // set when the section is a primary statement
}

// ParseMarkdownTable extracts facts from one pipe-delimited table.
//
// The first row, plus up to two following rows that look like column titles
// (see isHeaderRow), form the header. Periods come from header cells; when
// none parse, the first three lines are scanned for "Month D, YYYY" mentions
// and each mention takes the audited flag of those lines as a whole, so an
// "(unaudited)" caption marks every fallback period. A table without periods
// yields nothing. Each remaining row is a metric: its first cell is the name,
// and the values that parse, after dropping empty and currency-only cells,
// are paired with the periods by position. A dash or other non-numeric cell
// therefore shifts the values after it onto earlier periods.
func ParseMarkdownTable(table string, tc TableContext) TableResult {
	var result TableResult

	lines := make([]string, 0)
	for _, line := range strings.Split(table, "\n") {
		if strings.Contains(line, "|") && strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimSpace(line))
		}
	}
	if len(lines) < 2 {
		return result
	}

	type tableRow struct {
		line  int
		cells []string
	}
	rows := make([]tableRow, 0, len(lines))
	for i, line := range lines {
		if separatorRowPattern.MatchString(line) {
			continue
		}
		rows = append(rows, tableRow{line: i, cells: parseTableRow(line)})
	}
	if len(rows) == 0 {
		return result
	}

	headerCount := 1
	for headerCount < len(rows) && headerCount < maxHeaderRows && isHeaderRow(rows[headerCount].cells) {
		headerCount++
	}

	headerText := make([]string, 0, headerCount)
	headers := make([][]string, 0, headerCount)
	for _, r := range rows[:headerCount] {
		headers = append(headers, r.cells)
		headerText = append(headerText, lines[r.line])
	}

	result.Periods = periodsFromHeaders(headers)
	if len(result.Periods) == 0 {
		lead := lines
		if len(lead) > maxHeaderRows {
			lead = lead[:maxHeaderRows]
		}
		combined := strings.Join(lead, " ")
		_, audited := normalize.ParsePeriodHeader(combined)
		for _, d := range normalize.FindMonthDates(combined) {
			result.Periods = append(result.Periods, Period{Date: d, Audited: audited})
		}
	}
	if len(result.Periods) == 0 {
		return result
	}

	header := strings.Join(headerText, " ")
	unitHint := normalize.ScalePhrase(header)
	if unitHint == "" {
		unitHint = tc.UnitHint
	}
	if unitHint == "" {
		unitHint = normalize.DetectUnitHint(header)
	}

	for _, r := range rows[:headerCount] {
		result.Rows = append(result.Rows, RowResult{Row: r.line, Skip: SkipHeader})
	}
	for _, r := range rows[headerCount:] {
		result.Rows = append(result.Rows, parseMetricRow(r.line, r.cells, result.Periods, unitHint, tc))
	}

	return result
}

func parseMetricRow(line int, cells []string, periods []Period, unitHint string, tc TableContext) RowResult {
	metric := normalize.CleanMetricName(cells[0])
	row := RowResult{Row: line, Metric: metric}
	if len([]rune(metric)) < minMetricLength {
		row.Skip = SkipShortMetric
		return row
	}

	values := make([]float64, 0, len(cells)-1)
	for _, slot := range valueSlots(cells[1:]) {
		if v := normalize.ParseValue(slot); v != nil {
			values = append(values, *v)
		}
	}
	for i, v := range values {
		if i >= len(periods) {
			break
		}
		amount := normalize.NormalizeValueAndUnit(v, normalize.UnitInput{
			Concept:       metric,
			Label:         metric,
			UnitHint:      unitHint,
			StatementType: tc.StatementType,
		})
		row.Facts = append(row.Facts, models.FinancialFact{
			Ticker:         tc.Filing.Ticker,
			FilingDate:     tc.Filing.FilingDate,
			FilingType:     tc.Filing.FormType,
			PeriodDate:     periods[i].Date,
			StatementType:  tc.Section,
			Concept:        metric,
			Label:          metric,
			Value:          amount.Value,
			Unit:           amount.Unit,
			UnitConfidence: amount.Confidence,
			Audited:        periods[i].Audited,
		})
	}

	if len(row.Facts) == 0 {
		row.Skip = SkipNoValues
	}
	return row
}

// valueSlots drops empty and currency-only cells and re-attaches a dangling
// ")" to the cell before it, as in "| (1,234 | ) |".
func valueSlots(cells []string) []string {
	slots := make([]string, 0, len(cells))
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" || normalize.IsCurrencyOnly(c) {
			continue
		}
		if strings.HasPrefix(c, ")") && len(slots) > 0 {
			slots[len(slots)-1] += c
			continue
		}
		slots = append(slots, c)
	}
	return slots
}

// isHeaderRow reports whether a row after the first carries column titles
// rather than data. A row with a plain number other than a year is data. A
// labelled row is data too unless its label reads as period text ("Year
// Ended", "Fiscal Year"), so "| Employees | 2050 | 2031 |" keeps its values.
func isHeaderRow(cells []string) bool {
	for _, c := range valueSlots(cells[1:]) {
		if normalize.ParseValue(c) == nil {
			continue
		}
		if d, _ := normalize.ParsePeriodHeader(c); d != nil {
			continue
		}
		return false
	}
	label := strings.TrimSpace(cells[0])
	return label == "" || periodLabelPattern.MatchString(label)
}

// periodsFromHeaders returns the periods of the first header row that names any.
func periodsFromHeaders(headers [][]string) []Period {
	for _, cells := range headers {
		periods := make([]Period, 0)
		for _, c := range cells {
			if strings.TrimSpace(c) == "" {
				continue
			}
			if d, audited := normalize.ParsePeriodHeader(c); d != nil {
				periods = append(periods, Period{Date: *d, Audited: audited})
			}
		}
		if len(periods) > 0 {
			return periods
		}
	}
	return nil
}

func parseTableRow(line string) []string {
	line = strings.Trim(line, "|")
	parts := strings.Split(line, "|")

	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}
