package utils

import (
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// inlineGuard is prepended before parsing so that heading text such as
// "1. Business" or "- Overview" is read as inline content, not as a list.
const inlineGuard = "x "

// PlainText renders a single line of markdown (a heading, a table label) to
// plain text: emphasis, links, code spans and inline HTML are unwrapped,
// entities decoded and whitespace collapsed.
func PlainText(input string) string {
	line := strings.TrimSpace(strings.ReplaceAll(input, "\n", " "))
	if line == "" {
		return ""
	}

	src := []byte(inlineGuard + line)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.AutoLink:
			b.Write(node.Label(src))
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	out := strings.TrimPrefix(b.String(), inlineGuard)
	out = html.UnescapeString(out)
	return strings.Join(strings.Fields(out), " ")
}

// CleanMarkdown strips an outer ``` fence from a stored markdown filing.
func CleanMarkdown(input string) string {
	cleaned := strings.TrimSpace(input)

	if strings.HasPrefix(cleaned, "```markdown") && strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```markdown")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	} else if strings.HasPrefix(cleaned, "```") && strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	return cleaned
}
