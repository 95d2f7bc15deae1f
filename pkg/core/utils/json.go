package utils

import (
	"encoding/json"
	"fmt"
	"regexp"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// bareNonFinite matches NaN/Infinity literals written by dataframe exporters.
var bareNonFinite = regexp.MustCompile(`([:\[,]\s*)(-?Infinity|NaN)(\s*[,\]}])`)

// RepairJSON fixes common defects in exported JSON: single quotes, trailing
// commas, unquoted keys, unclosed containers and code fences.
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("json repair failed: %w", err)
	}
	return repaired, nil
}

// ParseHJSON parses Hjson (comments, unquoted keys and strings, optional
// commas) and returns standard JSON.
func ParseHJSON(hjsonData string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(hjsonData), &result); err != nil {
		return "", fmt.Errorf("hjson parse failed: %w", err)
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("json marshal failed: %w", err)
	}
	return string(jsonBytes), nil
}

// NullNonFinite rewrites bare NaN / Infinity values to null so that
// encoding/json accepts them. A missing value and NaN mean the same thing here.
func NullNonFinite(input string) string {
	// Applied twice because adjacent matches like [NaN,NaN] share a delimiter.
	out := bareNonFinite.ReplaceAllString(input, "${1}null${3}")
	return bareNonFinite.ReplaceAllString(out, "${1}null${3}")
}

// SmartParse decodes input into v, trying progressively more lenient readers:
// standard JSON, JSON with NaN nulled out, repaired JSON, and finally Hjson.
// It returns the name of the strategy that succeeded.
func SmartParse(input string, v interface{}) (string, error) {
	if err := json.Unmarshal([]byte(input), v); err == nil {
		return "json", nil
	}

	nulled := NullNonFinite(input)
	if err := json.Unmarshal([]byte(nulled), v); err == nil {
		return "json-nan", nil
	}

	if repaired, err := RepairJSON(nulled); err == nil {
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return "repair", nil
		}
	}

	if converted, err := ParseHJSON(nulled); err == nil {
		if err := json.Unmarshal([]byte(converted), v); err == nil {
			return "hjson", nil
		}
	}

	return "", fmt.Errorf("all parsing strategies failed")
}
