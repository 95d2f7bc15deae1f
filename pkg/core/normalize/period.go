package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	monthDatePattern  = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{1,2}),?\s+(\d{4})\b`)
	fiscalYearPattern = regexp.MustCompile(`\b(20\d{2})\b`)
	unauditedPattern  = regexp.MustCompile(`(?i)\bunaudited\b`)
)

var monthNumbers = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// ParsePeriodHeader extracts a period date from a column header.
//
// A full "Month D, YYYY" date wins. Otherwise a bare fiscal year 20YY is
// taken as December 31 of that year. The audited flag is false only when the
// header says "unaudited".
func ParsePeriodHeader(text string) (*time.Time, bool) {
	audited := !unauditedPattern.MatchString(text)

	if m := monthDatePattern.FindStringSubmatch(text); m != nil {
		return calendarDate(m[3], monthNumbers[strings.ToLower(m[1])], m[2]), audited
	}

	if m := fiscalYearPattern.FindStringSubmatch(text); m != nil {
		return calendarDate(m[1], time.December, "31"), audited
	}

	return nil, audited
}

// FindMonthDates returns every "Month D, YYYY" date mentioned in text, in order.
func FindMonthDates(text string) []time.Time {
	var dates []time.Time
	for _, m := range monthDatePattern.FindAllStringSubmatch(text, -1) {
		if d := calendarDate(m[3], monthNumbers[strings.ToLower(m[1])], m[2]); d != nil {
			dates = append(dates, *d)
		}
	}
	return dates
}

// calendarDate builds a UTC date, rejecting days that overflow the month.
func calendarDate(year string, month time.Month, day string) *time.Time {
	y, err := strconv.Atoi(year)
	if err != nil {
		return nil
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 {
		return nil
	}
	t := time.Date(y, month, d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || t.Month() != month {
		return nil
	}
	return &t
}
