package section

import (
	"regexp"
	"strings"
	"unicode"
)

const maxCanonicalLength = 80

// =============================================================================
// VOCABULARY
// =============================================================================

type phraseRule struct {
	phrase    string // lowercase, straight quotes
	canonical string
}

// itemTitles are the Form 10-K item names; used when a heading is a bare
// "Item 7." with no recognizable title text.
var itemTitles = map[string]string{
	"1":  "Business",
	"1A": "Risk Factors",
	"1B": "Unresolved Staff Comments",
	"1C": "Cybersecurity",
	"2":  "Properties",
	"3":  "Legal Proceedings",
	"4":  "Mine Safety Disclosures",
	"5":  "Market for Common Equity",
	"6":  "Selected Financial Data",
	"7":  "MD&A",
	"7A": "Market Risk",
	"8":  "Financial Statements",
	"9":  "Accounting Disagreements",
	"9A": "Controls and Procedures",
	"9B": "Other Information",
	"9C": "Foreign Jurisdiction Disclosure",
	"10": "Directors and Governance",
	"11": "Executive Compensation",
	"12": "Security Ownership",
	"13": "Related Transactions",
	"14": "Accountant Fees",
	"15": "Exhibits",
	"16": "Form 10-K Summary",
}

// exactSynonyms match the whole title once any "Item N." prefix is removed.
var exactSynonyms = map[string]string{
	"business":           "Business",
	"properties":         "Properties",
	"overview":           "Overview",
	"md&a":               "MD&A",
	"exhibits":           "Exhibits",
	"signatures":         "Signatures",
	"other information":  "Other Information",
	"legal proceedings":  "Legal Proceedings",
	"selected financial": "Selected Financial Data",
}

// phraseSynonyms match anywhere in the title, first hit wins.
var phraseSynonyms = []phraseRule{
	{"management's discussion and analysis", "MD&A"},
	{"managements discussion and analysis", "MD&A"},
	{"management discussion and analysis", "MD&A"},
	{"quantitative and qualitative disclosures about market risk", "Market Risk"},
	{"quantitative and qualitative disclosure about market risk", "Market Risk"},
	{"risk factors", "Risk Factors"},
	{"unresolved staff comments", "Unresolved Staff Comments"},
	{"cybersecurity", "Cybersecurity"},
	{"mine safety disclosures", "Mine Safety Disclosures"},
	{"market for registrant's common equity", "Market for Common Equity"},
	{"market for the registrant's common equity", "Market for Common Equity"},
	{"market for our common equity", "Market for Common Equity"},
	{"selected financial data", "Selected Financial Data"},
	{"changes in and disagreements with accountants", "Accounting Disagreements"},
	{"controls and procedures", "Controls and Procedures"},
	{"disclosure regarding foreign jurisdictions", "Foreign Jurisdiction Disclosure"},
	{"directors, executive officers and corporate governance", "Directors and Governance"},
	{"executive compensation", "Executive Compensation"},
	{"security ownership of certain beneficial owners", "Security Ownership"},
	{"certain relationships and related transactions", "Related Transactions"},
	{"principal accountant fees and services", "Accountant Fees"},
	{"principal accounting fees and services", "Accountant Fees"},
	{"exhibits and financial statement schedules", "Exhibits"},
	{"exhibits, financial statement schedules", "Exhibits"},
	{"exhibit index", "Exhibits"},
	{"financial statements and supplementary data", "Financial Statements"},
}

// bucketRules fold recurring sub-headings into shared buckets.
var bucketRules = []phraseRule{
	{"liquidity and capital resources", "Liquidity and Capital Resources"},
	{"critical accounting estimates", "Critical Accounting Estimates"},
	{"critical accounting policies", "Critical Accounting Estimates"},
	{"results of operations", "Results of Operations"},
	{"recent accounting pronouncements", "Recent Accounting Pronouncements"},
	{"recently issued accounting", "Recent Accounting Pronouncements"},
	{"recently adopted accounting", "Recent Accounting Pronouncements"},
	{"forward-looking statements", "Forward-Looking Statements"},
	{"forward looking statements", "Forward-Looking Statements"},
	{"human capital", "Human Capital"},
	{"segment information", "Segment Information"},
	{"segment reporting", "Segment Information"},
	{"income taxes", "Income Taxes"},
	{"stock-based compensation", "Stock-Based Compensation"},
	{"share-based compensation", "Stock-Based Compensation"},
	{"commitments and contingencies", "Commitments and Contingencies"},
	{"revenue recognition", "Revenue Recognition"},
	{"off-balance sheet arrangements", "Off-Balance Sheet Arrangements"},
	{"contractual obligations", "Contractual Obligations"},
	{"table of contents", "Table of Contents"},
	{"cover page", "Cover Page"},
	{"notes to consolidated financial statements", "Notes to Financial Statements"},
	{"notes to condensed consolidated financial statements", "Notes to Financial Statements"},
	{"notes to financial statements", "Notes to Financial Statements"},
	{"balance sheet", "Balance Sheets"},
	{"statements of financial position", "Balance Sheets"},
	{"statement of financial position", "Balance Sheets"},
	{"statements of comprehensive income", "Statements of Comprehensive Income"},
	{"statement of comprehensive income", "Statements of Comprehensive Income"},
	{"statements of operations", "Statements of Operations"},
	{"statement of operations", "Statements of Operations"},
	{"statements of income", "Statements of Operations"},
	{"statements of earnings", "Statements of Operations"},
	{"income statement", "Statements of Operations"},
	{"statements of cash flows", "Statements of Cash Flows"},
	{"statement of cash flows", "Statements of Cash Flows"},
	{"cash flow statement", "Statements of Cash Flows"},
	{"statements of stockholders' equity", "Statements of Stockholders' Equity"},
	{"statements of shareholders' equity", "Statements of Stockholders' Equity"},
	{"statements of changes in equity", "Statements of Stockholders' Equity"},
	{"statements of equity", "Statements of Stockholders' Equity"},
	{"report of independent registered public accounting firm", "Auditor Report"},
}

// fallbackKeywords bucket long or bulleted headings that matched nothing else.
var fallbackKeywords = []phraseRule{
	{"risk", "Risk Factors"},
	{"liquidity", "Liquidity and Capital Resources"},
	{"revenue", "Revenue"},
	{"tax", "Income Taxes"},
	{"litigation", "Legal Proceedings"},
	{"legal", "Legal Proceedings"},
	{"employee", "Human Capital"},
	{"segment", "Segment Information"},
	{"acquisition", "Acquisitions"},
	{"debt", "Debt"},
}

var (
	itemPrefixPattern   = regexp.MustCompile(`(?i)^(?:part\s+[iv]+\s*[,.:\-–—]?\s*)?item\s+(\d{1,2}[a-c]?)\s*[.:\-–—]?\s*`)
	partPattern         = regexp.MustCompile(`(?i)^part\s+(i{1,3}|iv)\b\s*[,.:\-–—]?\s*(.*)$`)
	highlightsPattern   = regexp.MustCompile(`(?i)^(?:financial\s+)?highlights\s+(?:from|of|for)\b`)
	risksRelatedPattern = regexp.MustCompile(`(?i)^risks?\s+(?:related|relating)\s+to\s+(.+)$`)
	notePattern         = regexp.MustCompile(`(?i)^note\s+(\d{1,3}[a-z]?)\s*[:.\-–—]\s*(.+)$`)
	continuedPattern    = regexp.MustCompile(`(?i)\s*\(continued\)\s*$`)
)

// preservedWords keep their casing when an all-caps heading is title-cased.
var preservedWords = map[string]string{
	"md&a": "MD&A", "u.s.": "U.S.", "us": "US", "gaap": "GAAP", "sec": "SEC",
	"llc": "LLC", "ceo": "CEO", "cfo": "CFO", "i": "I", "ii": "II", "iii": "III", "iv": "IV",
	"10-k": "10-K", "10-q": "10-Q", "r&d": "R&D", "ai": "AI", "esg": "ESG",
}

var minorWords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true, "by": true, "for": true,
	"from": true, "in": true, "of": true, "on": true, "or": true, "the": true, "to": true, "with": true,
}

// =============================================================================
// CANONICALIZATION
// =============================================================================

// Canonicalize maps a raw heading onto a stable section name.
//
// Rules apply in priority order: the synonym table (item titles and fixed
// phrases), phrase buckets, structural patterns ("Highlights from...",
// "Risks Related To X", "Note N: Title", "Part II"), then a fallback that
// buckets long or bulleted headings by keyword or truncates them. All-caps
// headings that reach the fallback are title-cased.
func Canonicalize(raw string) string {
	heading := normalizeHeading(raw)
	if heading == "" {
		return ""
	}
	lower := strings.ToLower(heading)

	if name, ok := matchSynonym(lower); ok {
		return name
	}
	if name, ok := matchPhrase(lower, bucketRules); ok {
		return name
	}
	if name, ok := matchStructure(heading); ok {
		return name
	}
	return fallback(heading)
}

func normalizeHeading(raw string) string {
	s := strings.NewReplacer("’", "'", "‘", "'", "“", `"`, "”", `"`, " ", " ").Replace(raw)
	s = strings.Join(strings.Fields(s), " ")
	s = continuedPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func matchSynonym(lower string) (string, bool) {
	title := lower
	code := ""
	if m := itemPrefixPattern.FindStringSubmatch(lower); m != nil {
		code = strings.ToUpper(m[1])
		title = strings.TrimSpace(lower[len(m[0]):])
	}
	title = strings.TrimRight(title, " .:")

	if name, ok := exactSynonyms[title]; ok {
		return name, true
	}
	if name, ok := matchPhrase(title, phraseSynonyms); ok {
		return name, true
	}
	if code != "" {
		if name, ok := itemTitles[code]; ok {
			return name, true
		}
	}
	return "", false
}

func matchPhrase(lower string, rules []phraseRule) (string, bool) {
	for _, r := range rules {
		if strings.Contains(lower, r.phrase) {
			return r.canonical, true
		}
	}
	return "", false
}

func matchStructure(heading string) (string, bool) {
	if highlightsPattern.MatchString(heading) {
		return "Highlights", true
	}
	if m := risksRelatedPattern.FindStringSubmatch(heading); m != nil {
		topic := strings.TrimRight(strings.TrimSpace(m[1]), " .:")
		if topic != "" {
			return truncate("Risk Factors - " + titleCaseIfShouting(topic)), true
		}
	}
	if m := notePattern.FindStringSubmatch(heading); m != nil {
		if title := strings.TrimSpace(m[2]); title != "" {
			return Canonicalize(title), true
		}
	}
	if m := partPattern.FindStringSubmatch(heading); m != nil {
		return "Part " + strings.ToUpper(m[1]), true
	}
	return "", false
}

func fallback(heading string) string {
	bulleted := false
	for _, p := range bulletPrefixes {
		if strings.HasPrefix(heading, p) {
			heading = strings.TrimSpace(heading[len(p):])
			bulleted = true
		}
	}

	if bulleted || len([]rune(heading)) > maxCanonicalLength {
		if name, ok := matchPhrase(strings.ToLower(heading), fallbackKeywords); ok {
			return name
		}
	}
	return truncate(titleCaseIfShouting(heading))
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxCanonicalLength {
		return s
	}
	return strings.TrimSpace(string(r[:maxCanonicalLength]))
}

// titleCaseIfShouting title-cases a heading written entirely in capitals.
func titleCaseIfShouting(s string) string {
	if !isShouting(s) {
		return s
	}

	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if keep, ok := preservedWords[strings.Trim(w, ",:;()")]; ok {
			words[i] = strings.Replace(w, strings.Trim(w, ",:;()"), keep, 1)
			continue
		}
		if i > 0 && minorWords[w] {
			continue
		}
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func isShouting(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				return false
			}
			letters++
		}
	}
	return letters >= minHeadingLetters
}

func capitalize(w string) string {
	r := []rune(w)
	for i, c := range r {
		if unicode.IsLetter(c) {
			r[i] = unicode.ToUpper(c)
			break
		}
	}
	return string(r)
}
