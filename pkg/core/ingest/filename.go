package ingest

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"edgar_rag/pkg/models"
)

var fileDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// ParseFilename resolves identity from a path laid out as
// {TICKER}/{10K|10Q}_{YYYY-MM-DD}.md. The ticker is the parent directory,
// uppercased; the form type comes from the filename prefix (UNKNOWN otherwise)
// and the date from the first YYYY-MM-DD anywhere in the stem. An
// unparseable date leaves FilingDate zero.
func ParseFilename(path string) Ref {
	ref := Ref{Path: path}

	dir := filepath.Base(filepath.Dir(path))
	if dir != "." && dir != string(filepath.Separator) {
		ref.Ticker = strings.ToUpper(dir)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	upper := strings.ToUpper(stem)
	switch {
	case strings.HasPrefix(upper, "10K"), strings.HasPrefix(upper, "10-K"):
		ref.FormType = models.Form10K
	case strings.HasPrefix(upper, "10Q"), strings.HasPrefix(upper, "10-Q"):
		ref.FormType = models.Form10Q
	default:
		ref.FormType = models.FormUnknown
	}

	if m := fileDatePattern.FindString(stem); m != "" {
		if d, err := time.Parse(models.DateLayout, m); err == nil {
			ref.FilingDate = d
		}
	}
	return ref
}

// Filename is the inverse of ParseFilename, relative to the data directory.
func Filename(ticker string, form models.FormType, filingDate time.Time) string {
	prefix := strings.ReplaceAll(string(form), "-", "")
	return filepath.Join(strings.ToUpper(ticker), prefix+"_"+filingDate.Format(models.DateLayout)+".md")
}

// statementsPath is the optional structured-statement sidecar of a markdown file.
func statementsPath(markdownPath string) string {
	return strings.TrimSuffix(markdownPath, filepath.Ext(markdownPath)) + ".statements.json"
}
