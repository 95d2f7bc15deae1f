package normalize

import (
	"math"
	"testing"
	"time"

	"edgar_rag/pkg/models"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		input    string
		expected *float64
	}{
		{"1,234", floatPtr(1234)},
		{"$1,234.56", floatPtr(1234.56)},
		{"(1,234)", floatPtr(-1234)},
		{"$ (567)", floatPtr(-567)},
		{"(0.25)", floatPtr(-0.25)},
		{"-42", floatPtr(-42)},
		{"<b>99</b>", floatPtr(99)},
		{"", nil},
		{"   ", nil},
		{"-", nil},
		{"—", nil},
		{"–", nil},
		{"N/A", nil},
		{"12%", nil},
		{"NaN", nil},
		{"Inf", nil},
		{"1e5", nil},
		{"(1,234", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseValue(tt.input)
			if tt.expected == nil {
				if result != nil {
					t.Errorf("ParseValue(%q) = %v, want nil", tt.input, *result)
				}
				return
			}
			if result == nil {
				t.Fatalf("ParseValue(%q) = nil, want %v", tt.input, *tt.expected)
			}
			if math.Abs(*result-*tt.expected) > 1e-9 {
				t.Errorf("ParseValue(%q) = %v, want %v", tt.input, *result, *tt.expected)
			}
		})
	}
}

func TestCleanMetricName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Total   revenues  ", "Total revenues"},
		{"<b>Net income</b>:", "Net income"},
		{"$ Cash and cash equivalents", "Cash and cash equivalents"},
		{"| Goodwill |", "Goodwill"},
		{"Total\nassets", "Total assets"},
		{"$", ""},
	}

	for _, tt := range tests {
		if got := CleanMetricName(tt.input); got != tt.expected {
			t.Errorf("CleanMetricName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestParsePeriodHeader(t *testing.T) {
	tests := []struct {
		input       string
		wantDate    string
		wantAudited bool
	}{
		{"December 31, 2025", "2025-12-31", true},
		{"September 30, 2024 (unaudited)", "2024-09-30", false},
		{"june 30 2023", "2023-06-30", true},
		{"Fiscal 2024", "2024-12-31", true},
		{"2022", "2022-12-31", true},
		{"Unaudited 2021", "2021-12-31", false},
		{"Three Months Ended", "", true},
		{"1998", "", true},
		{"February 30, 2025", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			date, audited := ParsePeriodHeader(tt.input)
			if audited != tt.wantAudited {
				t.Errorf("audited = %v, want %v", audited, tt.wantAudited)
			}
			if tt.wantDate == "" {
				if date != nil {
					t.Errorf("date = %s, want none", date.Format(models.DateLayout))
				}
				return
			}
			if date == nil {
				t.Fatalf("date = nil, want %s", tt.wantDate)
			}
			if got := date.Format(models.DateLayout); got != tt.wantDate {
				t.Errorf("date = %s, want %s", got, tt.wantDate)
			}
		})
	}
}

func TestFindMonthDates(t *testing.T) {
	dates := FindMonthDates("Year Ended December 31, 2025 and December 31, 2024")
	if len(dates) != 2 {
		t.Fatalf("expected 2 dates, got %d", len(dates))
	}
	want := []time.Time{
		time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	for i := range want {
		if !dates[i].Equal(want[i]) {
			t.Errorf("dates[%d] = %v, want %v", i, dates[i], want[i])
		}
	}
}

func TestNormalizeValueAndUnit(t *testing.T) {
	tests := []struct {
		name           string
		value          float64
		input          UnitInput
		wantValue      float64
		wantUnit       string
		wantConfidence models.UnitConfidence
	}{
		{
			name:           "balance sheet dollars without hint",
			value:          394_328_000_000,
			input:          UnitInput{Concept: "us-gaap_Assets", Label: "Total assets", StatementType: models.BalanceSheet},
			wantValue:      394_328,
			wantUnit:       UnitMillions,
			wantConfidence: models.UnitInferred,
		},
		{
			name:           "thousands hint",
			value:          5_000,
			input:          UnitInput{Label: "Revenue", UnitHint: "thousands"},
			wantValue:      5,
			wantUnit:       UnitMillions,
			wantConfidence: models.UnitExplicit,
		},
		{
			name:           "millions hint passes through",
			value:          1_234,
			input:          UnitInput{Label: "Revenue", UnitHint: "USD millions"},
			wantValue:      1_234,
			wantUnit:       UnitMillions,
			wantConfidence: models.UnitExplicit,
		},
		{
			name:           "billions hint",
			value:          2.5,
			input:          UnitInput{Label: "Revenue", UnitHint: "in billions"},
			wantValue:      2_500,
			wantUnit:       UnitMillions,
			wantConfidence: models.UnitExplicit,
		},
		{
			name:           "bare dollars hint",
			value:          7_000_000,
			input:          UnitInput{Label: "Revenue", UnitHint: "USD"},
			wantValue:      7,
			wantUnit:       UnitMillions,
			wantConfidence: models.UnitExplicit,
		},
		{
			name:           "per share on income statement is not scaled",
			value:          6.11,
			input:          UnitInput{Concept: "us-gaap_EarningsPerShareDiluted", Label: "Diluted earnings per share", StatementType: models.IncomeStatement},
			wantValue:      6.11,
			wantUnit:       "per_share",
			wantConfidence: models.UnitUnknown,
		},
		{
			name:           "per share row under a millions table",
			value:          1.52,
			input:          UnitInput{Label: "Basic EPS", UnitHint: "millions"},
			wantValue:      1.52,
			wantUnit:       "per_share",
			wantConfidence: models.UnitUnknown,
		},
		{
			name:           "explicit share unit",
			value:          15_550_061,
			input:          UnitInput{Concept: "us-gaap_WeightedAverageNumberOfDilutedSharesOutstanding", UnitHint: "shares", StatementType: models.IncomeStatement},
			wantValue:      15_550_061,
			wantUnit:       "shares",
			wantConfidence: models.UnitExplicit,
		},
		{
			name:           "ratio inside a word is still monetary",
			value:          12_000_000,
			input:          UnitInput{Label: "Income from operations", StatementType: models.IncomeStatement},
			wantValue:      12,
			wantUnit:       UnitMillions,
			wantConfidence: models.UnitInferred,
		},
		{
			name:           "no hint outside primary statements",
			value:          42,
			input:          UnitInput{Label: "Revenue"},
			wantValue:      42,
			wantUnit:       "unknown",
			wantConfidence: models.UnitUnknown,
		},
		{
			name:           "unrecognized hint",
			value:          42,
			input:          UnitInput{Label: "Revenue", UnitHint: "EUR", StatementType: models.IncomeStatement},
			wantValue:      42,
			wantUnit:       "EUR",
			wantConfidence: models.UnitUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeValueAndUnit(tt.value, tt.input)
			if math.Abs(got.Value-tt.wantValue) > 1e-9 {
				t.Errorf("value = %v, want %v", got.Value, tt.wantValue)
			}
			if got.Unit != tt.wantUnit {
				t.Errorf("unit = %q, want %q", got.Unit, tt.wantUnit)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %q, want %q", got.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestDetectUnitHint(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"(In millions, except per share amounts)", "millions"},
		{"(in thousands)", "thousands"},
		{"Amounts in billions of dollars", "billions"},
		{"Revenue by segment", ""},
		{"(In thousands, except per share data)\n| | 2025 |\nIncludes a $2 million impairment.", "thousands"},
		{"Dollars in millions. We recorded charges of $40 thousand.", "millions"},
		{"($ in billions)", "billions"},
		{"(Millions)", "millions"},
		{"($000s)", "thousands"},
		{"Revenue grew by $3 million", "millions"},
	}

	for _, tt := range tests {
		if got := DetectUnitHint(tt.input); got != tt.expected {
			t.Errorf("DetectUnitHint(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestScalePhrase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"(In thousands)\nA $2 million charge.", "thousands"},
		{"(In millions)\n| table |\n(In thousands)", "thousands"},
		{"thousands of U.S. dollars", "thousands"},
		{"A $2 million charge.", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ScalePhrase(tt.input); got != tt.expected {
			t.Errorf("ScalePhrase(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
