package utils

import (
	"testing"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"**Risk Factors**", "Risk Factors"},
		{"Item 7. _Management's_ Discussion", "Item 7. Management's Discussion"},
		{"[Item 1A](#item1a) Risk Factors", "Item 1A Risk Factors"},
		{"1. Business", "1. Business"},
		{"- Overview", "- Overview"},
		{"<b>Liquidity</b> and Capital Resources", "Liquidity and Capital Resources"},
		{"`Note 4`   Goodwill", "Note 4 Goodwill"},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := PlainText(tt.input); got != tt.expected {
			t.Errorf("PlainText(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestCleanMarkdown(t *testing.T) {
	input := "```markdown\n# Title\n\nBody\n```"
	if got := CleanMarkdown(input); got != "# Title\n\nBody" {
		t.Errorf("CleanMarkdown() = %q", got)
	}
}

func TestSmartParse(t *testing.T) {
	type row struct {
		Concept string              `json:"concept"`
		Values  map[string]*float64 `json:"values"`
	}

	tests := []struct {
		name     string
		input    string
		strategy string
	}{
		{"standard json", `{"concept":"Assets","values":{"2025-12-31":1.5}}`, "json"},
		{"bare NaN", `{"concept":"Assets","values":{"2025-12-31":1.5,"2024-12-31":NaN}}`, "json-nan"},
		{"trailing comma", `{"concept":"Assets","values":{"2025-12-31":1.5,},}`, "repair"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r row
			strategy, err := SmartParse(tt.input, &r)
			if err != nil {
				t.Fatalf("SmartParse() error = %v", err)
			}
			if strategy != tt.strategy {
				t.Errorf("strategy = %q, want %q", strategy, tt.strategy)
			}
			if r.Concept != "Assets" {
				t.Errorf("concept = %q", r.Concept)
			}
			if v := r.Values["2025-12-31"]; v == nil || *v != 1.5 {
				t.Errorf("2025-12-31 value = %v", v)
			}
		})
	}
}

func TestNullNonFinite(t *testing.T) {
	got := NullNonFinite(`{"a":[NaN,NaN,1],"b":-Infinity}`)
	want := `{"a":[null,null,1],"b":null}`
	if got != want {
		t.Errorf("NullNonFinite() = %q, want %q", got, want)
	}
}
