package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"edgar_rag/pkg/core/facts"
	"edgar_rag/pkg/core/utils"
	"edgar_rag/pkg/models"
)

// LocalSource reads {TICKER}/{10K|10Q}_{date}.md files under Dir.
type LocalSource struct {
	Dir string
	// Tickers, FormTypes, Start and End filter the listing when set. Files
	// whose identity does not resolve are always listed so the pipeline can
	// report them.
	Tickers   []string
	FormTypes []models.FormType
	Start     time.Time
	End       time.Time
}

var _ Source = (*LocalSource)(nil)

// List returns matching files in lexical path order.
func (s *LocalSource) List(ctx context.Context) ([]Ref, error) {
	if _, err := os.Stat(s.Dir); err != nil {
		return nil, fmt.Errorf("data directory %s: %w", s.Dir, err)
	}

	tickers := make(map[string]bool, len(s.Tickers))
	for _, t := range s.Tickers {
		tickers[strings.ToUpper(t)] = true
	}
	forms := make(map[models.FormType]bool, len(s.FormTypes))
	for _, f := range s.FormTypes {
		forms[f] = true
	}

	paths := make([]string, 0)
	err := filepath.WalkDir(s.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", s.Dir, err)
	}
	sort.Strings(paths)

	refs := make([]Ref, 0, len(paths))
	for _, p := range paths {
		ref := ParseFilename(p)
		if len(tickers) > 0 && ref.Ticker != "" && !tickers[ref.Ticker] {
			continue
		}
		if len(forms) > 0 && ref.FormType != models.FormUnknown && !forms[ref.FormType] {
			continue
		}
		if !ref.FilingDate.IsZero() {
			if !s.Start.IsZero() && ref.FilingDate.Before(s.Start) {
				continue
			}
			if !s.End.IsZero() && ref.FilingDate.After(s.End) {
				continue
			}
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Fetch reads the markdown file and its optional statements sidecar.
func (s *LocalSource) Fetch(ctx context.Context, ref Ref) (*Document, error) {
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read filing: %w", err)
	}
	doc := &Document{Ref: ref, Markdown: utils.CleanMarkdown(string(data))}

	sidecar := statementsPath(ref.Path)
	statements, err := LoadStatements(sidecar)
	switch {
	case err == nil:
		doc.Statements = statements
	case errors.Is(err, fs.ErrNotExist):
	default:
		// every statement reports the parse failure; the narrative is still usable
		doc.Statements = brokenStatements{err: err}
	}
	return doc, nil
}

type brokenStatements struct {
	err error
}

func (b brokenStatements) Statement(ctx context.Context, st models.StatementType) (*facts.StatementTable, error) {
	return nil, fmt.Errorf("%s: %w", st, b.err)
}
