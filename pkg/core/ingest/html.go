package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	fontSizePattern = regexp.MustCompile(`font-size:\s*(\d+)(?:\.\d*)?pt`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	blankLineRun    = regexp.MustCompile(`\n{3,}`)

	sectionHeaderPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^Item\s+\d+[A-C]?\b`),
		regexp.MustCompile(`(?i)^PART\s+[IVX]+\b`),
		regexp.MustCompile(`(?i)^Note\s+\d`),
		regexp.MustCompile(`(?i)^CONSOLIDATED\s+`),
		regexp.MustCompile(`(?i)^FINANCIAL\s+STATEMENTS`),
		regexp.MustCompile(`(?i)^BALANCE\s+SHEETS?`),
		regexp.MustCompile(`(?i)^STATEMENTS?\s+OF`),
	}
	partHeaderPattern = regexp.MustCompile(`(?i)^PART\s+[IVX]+\b`)
)

const maxHeaderText = 150

// blockTags start a new markdown block.
var blockTags = map[string]bool{
	"html": true, "body": true, "div": true, "p": true, "section": true, "article": true,
	"center": true, "blockquote": true, "ul": true, "ol": true, "li": true, "dl": true, "dt": true, "dd": true,
	"form": true, "main": true, "header": true, "footer": true, "pre": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "head": true, "title": true, "noscript": true,
	"ix:header": true, "img": true, "hr": true,
}

const blockSelector = "p, div, table, h1, h2, h3, h4, h5, h6, ul, ol, li, section, article, center, blockquote"

// HTMLToMarkdown converts an EDGAR filing document to markdown: headings
// (including styled and bold "Item N." paragraphs) become # headings,
// tables become pipe tables, and inline XBRL tags are unwrapped to their text.
func HTMLToMarkdown(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	removeNoise(doc)
	fixFakeHeaders(doc)

	w := &markdownWriter{}
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	w.walk(root)
	w.flush()

	out := strings.Join(w.blocks, "\n\n")
	out = blankLineRun.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out) + "\n", nil
}

func removeNoise(doc *goquery.Document) {
	doc.Find("script, style, noscript, ix\\:header").Remove()
	doc.Find(`[style*="display:none"], [style*="display: none"]`).Remove()
}

// fixFakeHeaders turns styled or bold title paragraphs into h2/h3 elements.
func fixFakeHeaders(doc *goquery.Document) {
	doc.Find("p, div").Each(func(_ int, sel *goquery.Selection) {
		if sel.Find(blockSelector).Length() > 0 {
			return
		}
		text := collapse(sel.Text())
		if text == "" || len(text) > maxHeaderText {
			return
		}

		style := strings.ToLower(sel.AttrOr("style", ""))
		bold := isBoldStyle(style)
		if !bold {
			// <p><b>Item 7.</b></p> or a bold span covering the whole paragraph
			inner := sel.Find("b, strong, span[style*='bold'], span[style*='700']")
			bold = inner.Length() > 0 && collapse(inner.Text()) == text
		}

		switch {
		case bold && looksLikeSectionHeader(text):
			if partHeaderPattern.MatchString(text) {
				convertToHeader(sel, "h1")
			} else {
				convertToHeader(sel, "h2")
			}
		case bold && hasFontSize(style, 14):
			convertToHeader(sel, "h2")
		case bold && hasFontSize(style, 12):
			convertToHeader(sel, "h3")
		}
	})
}

func isBoldStyle(style string) bool {
	return strings.Contains(style, "font-weight:bold") ||
		strings.Contains(style, "font-weight: bold") ||
		strings.Contains(style, "font-weight:700") ||
		strings.Contains(style, "font-weight: 700")
}

func hasFontSize(style string, minPt int) bool {
	m := fontSizePattern.FindStringSubmatch(style)
	if len(m) < 2 {
		return false
	}
	size, err := strconv.Atoi(m[1])
	return err == nil && size >= minPt
}

func looksLikeSectionHeader(text string) bool {
	for _, p := range sectionHeaderPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func convertToHeader(sel *goquery.Selection, tag string) {
	inner, err := sel.Html()
	if err != nil {
		return
	}
	sel.ReplaceWithHtml(fmt.Sprintf("<%s>%s</%s>", tag, inner, tag))
}

// markdownWriter accumulates blocks; inline text collects until the next block boundary.
type markdownWriter struct {
	blocks []string
	inline strings.Builder
}

func (w *markdownWriter) walk(sel *goquery.Selection) {
	sel.Contents().Each(func(_ int, n *goquery.Selection) {
		name := goquery.NodeName(n)
		switch {
		case name == "#text":
			w.inline.WriteString(n.Text())
		case skipTags[name]:
		case name == "br":
			w.inline.WriteString(" ")
		case len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6':
			w.flush()
			level := int(name[1] - '0')
			if level > 4 {
				level = 4
			}
			if text := collapse(n.Text()); text != "" {
				w.blocks = append(w.blocks, strings.Repeat("#", level)+" "+text)
			}
		case name == "table":
			w.flush()
			w.table(n)
		case blockTags[name]:
			w.flush()
			w.walk(n)
			w.flush()
		default:
			// span, font, a, b, ix:nonfraction and other inline wrappers
			w.walk(n)
		}
	})
}

func (w *markdownWriter) flush() {
	text := collapse(w.inline.String())
	w.inline.Reset()
	if text == "" {
		return
	}
	if len(text) <= maxHeaderText && looksLikeSectionHeader(text) && strings.HasPrefix(strings.ToLower(text), "item") {
		w.blocks = append(w.blocks, "## "+text)
		return
	}
	w.blocks = append(w.blocks, text)
}

// table renders a layout table as text and a data table as a pipe table.
func (w *markdownWriter) table(sel *goquery.Selection) {
	grid := tableGrid(sel)
	if len(grid) == 0 {
		return
	}
	if len(grid) < 2 || len(grid[0]) < 2 {
		for _, row := range grid {
			if text := collapse(strings.Join(row, " ")); text != "" {
				w.blocks = append(w.blocks, text)
			}
		}
		return
	}
	w.blocks = append(w.blocks, renderPipeTable(grid))
}

// tableGrid builds a virtual grid honouring colspan and rowspan, then drops
// the empty spacer rows and columns EDGAR tables are padded with.
func tableGrid(table *goquery.Selection) [][]string {
	rows := table.Find("tr")
	if rows.Length() == 0 {
		return nil
	}

	maxCols := 0
	rows.Each(func(_ int, tr *goquery.Selection) {
		cols := 0
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			cols += span(cell, "colspan")
		})
		if cols > maxCols {
			maxCols = cols
		}
	})
	if maxCols == 0 {
		return nil
	}

	rowCount := rows.Length()
	grid := make([][]string, rowCount)
	taken := make([][]bool, rowCount)
	for i := range grid {
		grid[i] = make([]string, maxCols)
		taken[i] = make([]bool, maxCols)
	}

	rows.Each(func(rowIdx int, tr *goquery.Selection) {
		colIdx := 0
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			for colIdx < maxCols && taken[rowIdx][colIdx] {
				colIdx++
			}
			if colIdx >= maxCols {
				return
			}
			colspan, rowspan := span(cell, "colspan"), span(cell, "rowspan")
			text := cellText(cell)
			for r := 0; r < rowspan && rowIdx+r < rowCount; r++ {
				for c := 0; c < colspan && colIdx+c < maxCols; c++ {
					taken[rowIdx+r][colIdx+c] = true
				}
			}
			grid[rowIdx][colIdx] = text
			colIdx += colspan
		})
	})

	return compactGrid(grid)
}

func compactGrid(grid [][]string) [][]string {
	if len(grid) == 0 {
		return nil
	}
	width := len(grid[0])
	keepCol := make([]bool, width)
	for _, row := range grid {
		for c, cell := range row {
			if cell != "" {
				keepCol[c] = true
			}
		}
	}

	out := make([][]string, 0, len(grid))
	for _, row := range grid {
		compact := make([]string, 0, width)
		empty := true
		for c, cell := range row {
			if !keepCol[c] {
				continue
			}
			if cell != "" {
				empty = false
			}
			compact = append(compact, cell)
		}
		if !empty {
			out = append(out, compact)
		}
	}
	return out
}

func renderPipeTable(grid [][]string) string {
	var sb strings.Builder
	for i, row := range grid {
		sb.WriteString("|")
		for _, cell := range row {
			if cell == "" {
				cell = " "
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteString("\n")
		if i == 0 {
			sb.WriteString("|")
			for range row {
				sb.WriteString(" --- |")
			}
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func span(cell *goquery.Selection, attr string) int {
	n, err := strconv.Atoi(strings.TrimSpace(cell.AttrOr(attr, "1")))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func cellText(cell *goquery.Selection) string {
	text := collapse(cell.Text())
	return strings.ReplaceAll(text, "|", "&#124;")
}

// collapse folds whitespace runs, including non-breaking spaces, to single spaces.
func collapse(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
