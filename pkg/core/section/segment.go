// Package section splits a filing's markdown into heading-delimited sections
// and maps noisy heading text onto a stable vocabulary of section names.
package section

import (
	"regexp"
	"strings"
	"unicode"

	"edgar_rag/pkg/core/utils"
)

// HeaderName names the implicit section holding everything before the first heading.
const HeaderName = "HEADER"

const (
	maxHeadingLength  = 180
	minHeadingLetters = 3
	bulletGlyphs      = "•·▪◦●■□➢►"
)

var (
	headingPattern = regexp.MustCompile(`^(#{1,4})(\s+.*)?$`)
	closingHashes  = regexp.MustCompile(`\s+#+$`)
	bulletPrefixes = []string{"- ", "* ", "+ "}
)

// Section is a contiguous run of lines opened by a heading (or the preamble).
type Section struct {
	Name      string `json:"name"`      // heading as plain text, or HeaderName
	Canonical string `json:"canonical"` // normalized name used for storage
	Level     int    `json:"level"`     // 1-4 for headings, 0 for the preamble
	Ordinal   int    `json:"ordinal"`
	StartLine int    `json:"start_line"` // 0-based line of the heading
	Content   string `json:"content"`    // all lines of the section, heading included
}

// Segment splits a markdown document into sections.
//
// Lines matching "#".."####" followed by text open a new section unless the
// heading is noise (empty, bulleted, over 180 characters, or fewer than
// three letters); noisy headings stay in the current section as body text.
// Every line lands in exactly one section, so joining the Content of all
// sections with "\n" reproduces the document.
func Segment(doc string) []Section {
	lines := strings.Split(doc, "\n")
	sections := make([]Section, 0)

	current := Section{Name: HeaderName, Canonical: HeaderName}
	var body []string

	flush := func() {
		if len(body) == 0 {
			return
		}
		current.Ordinal = len(sections)
		current.Content = strings.Join(body, "\n")
		sections = append(sections, current)
	}

	for i, line := range lines {
		level, text, ok := parseHeading(line)
		if !ok || IsNoisyHeading(text) {
			body = append(body, line)
			continue
		}

		flush()
		name := utils.PlainText(text)
		if name == "" {
			name = text
		}
		current = Section{
			Name:      name,
			Canonical: Canonicalize(name),
			Level:     level,
			StartLine: i,
		}
		body = []string{line}
	}
	flush()

	return sections
}

// parseHeading returns the level and text of an ATX heading line.
func parseHeading(line string) (int, string, bool) {
	m := headingPattern.FindStringSubmatch(strings.TrimRight(line, " \t\r"))
	if m == nil {
		return 0, "", false
	}
	text := strings.TrimSpace(m[2])
	if strings.Trim(text, "#") == "" {
		text = ""
	}
	text = closingHashes.ReplaceAllString(text, "")
	return len(m[1]), text, true
}

// IsNoisyHeading reports whether heading text should be treated as body text.
func IsNoisyHeading(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	if len([]rune(text)) > maxHeadingLength {
		return true
	}
	for _, p := range bulletPrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	if first := []rune(text)[0]; strings.ContainsRune(bulletGlyphs, first) {
		return true
	}

	letters := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters < minHeadingLetters
}
