// Package ingest provides the filing sources: a local directory of markdown
// files and the SEC EDGAR submissions API.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"edgar_rag/pkg/core/facts"
	"edgar_rag/pkg/models"
)

// ErrStatementUnavailable is returned when a filing has no structured view for a statement type.
var ErrStatementUnavailable = errors.New("statement unavailable")

// Ref identifies one filing before it is fetched. Zero fields are unknown;
// the pipeline decides whether the identity is complete enough to process.
type Ref struct {
	Path       string          `json:"path,omitempty"`
	URL        string          `json:"url,omitempty"`
	Ticker     string          `json:"ticker"`
	FormType   models.FormType `json:"filing_type"`
	FilingDate time.Time       `json:"filing_date"`
	PeriodEnd  *time.Time      `json:"period_end,omitempty"`
	Accession  string          `json:"accession_number,omitempty"`
}

// Name is a short identifier for logs.
func (r Ref) Name() string {
	if r.Path != "" {
		return r.Path
	}
	if r.URL != "" {
		return r.URL
	}
	return fmt.Sprintf("%s %s %s", r.Ticker, r.FormType, r.FilingDate.Format(models.DateLayout))
}

// StatementProvider exposes structured statement tables for one filing.
type StatementProvider interface {
	Statement(ctx context.Context, st models.StatementType) (*facts.StatementTable, error)
}

// Document is a fetched filing.
type Document struct {
	Ref      Ref
	Markdown string
	// Statements is nil when the source has no structured statement data.
	Statements StatementProvider
}

// Source lists and fetches filings.
type Source interface {
	List(ctx context.Context) ([]Ref, error)
	Fetch(ctx context.Context, ref Ref) (*Document, error)
}

// StatementSet is an in-memory StatementProvider.
type StatementSet map[models.StatementType]*facts.StatementTable

func (s StatementSet) Statement(ctx context.Context, st models.StatementType) (*facts.StatementTable, error) {
	table, ok := s[st]
	if !ok || table == nil {
		return nil, fmt.Errorf("%s: %w", st, ErrStatementUnavailable)
	}
	return table, nil
}
