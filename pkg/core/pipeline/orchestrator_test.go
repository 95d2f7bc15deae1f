package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgar_rag/pkg/core/facts"
	"edgar_rag/pkg/core/ingest"
	"edgar_rag/pkg/core/store"
	"edgar_rag/pkg/models"
)

// --- Fakes ---

type fakeSource struct {
	refs []ingest.Ref
	docs map[string]*ingest.Document
}

func (f *fakeSource) List(ctx context.Context) ([]ingest.Ref, error) {
	return f.refs, nil
}

func (f *fakeSource) Fetch(ctx context.Context, ref ingest.Ref) (*ingest.Document, error) {
	doc, ok := f.docs[ref.Path]
	if !ok {
		return nil, fmt.Errorf("%s: not found", ref.Path)
	}
	return doc, nil
}

type fakeStatements struct{}

func (fakeStatements) Statement(ctx context.Context, st models.StatementType) (*facts.StatementTable, error) {
	switch st {
	case models.BalanceSheet:
		return &facts.StatementTable{
			Columns: []string{"2024-06-30"},
			Rows: []facts.StatementRow{
				{Concept: "us-gaap_Assets", Label: "Total assets", Values: map[string]interface{}{"2024-06-30": 100.0}},
				{Concept: "us-gaap_Liabilities", Label: "Total liabilities", Values: map[string]interface{}{"2024-06-30": 60.0}},
				{Concept: "us-gaap_StockholdersEquity", Label: "Total equity", Values: map[string]interface{}{"2024-06-30": 30.0}},
				{Concept: "us-gaap_AssetsAbstract", Label: "Assets", Abstract: true},
			},
		}, nil
	case models.IncomeStatement:
		return nil, fmt.Errorf("%s: %w", st, ingest.ErrStatementUnavailable)
	default:
		panic("corrupt statement tree")
	}
}

type failingWriter struct {
	store.FilingWriter
}

func (failingWriter) InsertFacts(ctx context.Context, fs []models.FinancialFact) (store.WriteResult, error) {
	return store.WriteResult{}, errors.New("connection reset")
}

// --- Fixtures ---

func paragraph(seed string) string {
	return strings.TrimSpace(strings.Repeat(seed+" ", 300/(len(seed)+1)+1))
}

func sampleMarkdown() string {
	return strings.Join([]string{
		"EXAMPLE CORP",
		"",
		"# Item 1A. Risk Factors",
		"",
		paragraph("Competition in cloud services is intense."),
		"",
		paragraph("Our results may fluctuate from quarter to quarter."),
		"",
		"# Consolidated Balance Sheets",
		"",
		"(In millions)",
		"",
		"|  | June 30, 2024 | June 30, 2023 |",
		"|---|---|---|",
		"| Total assets | 512,163 | 411,976 |",
		"| Total liabilities | 243,686 | 205,753 |",
		"| Total stockholders' equity | 268,477 | 206,223 |",
		"| Ab | 1 | 2 |",
		"",
		"# Item 1A. Risk Factors (continued)",
		"",
		paragraph("Cyberattacks could harm our reputation."),
		"",
	}, "\n")
}

func sampleRef() ingest.Ref {
	return ingest.Ref{
		Path:       "MSFT/10K_2024-07-30.md",
		Ticker:     "MSFT",
		FormType:   models.Form10K,
		FilingDate: time.Date(2024, 7, 30, 0, 0, 0, 0, time.UTC),
	}
}

// --- Tests ---

func TestProcessDocumentIsIdempotent(t *testing.T) {
	mem := store.NewMemoryStore()
	o := New(nil, mem, DefaultConfig(), nil)
	doc := &ingest.Document{Ref: sampleRef(), Markdown: sampleMarkdown()}

	first, err := o.ProcessDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, first.New)
	assert.Equal(t, store.WriteResult{Inserted: 6}, first.Facts)
	assert.Equal(t, store.WriteResult{Inserted: 2}, first.Chunks)
	assert.Empty(t, first.Warnings, "balance sheet adds up")
	assert.Equal(t, 1, first.SkipReasons()[facts.SkipShortMetric])
	assert.Zero(t, first.FailedSections())

	second, err := o.ProcessDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, second.New)
	assert.Equal(t, store.WriteResult{Conflicts: 6}, second.Facts)
	assert.Equal(t, store.WriteResult{Conflicts: 2}, second.Chunks)

	assert.Len(t, mem.Facts(), 6)
	assert.Len(t, mem.Chunks(), 2)
}

func TestProcessDocumentSectionRouting(t *testing.T) {
	mem := store.NewMemoryStore()
	o := New(nil, mem, DefaultConfig(), nil)

	fr, err := o.ProcessDocument(context.Background(), &ingest.Document{Ref: sampleRef(), Markdown: sampleMarkdown()})
	require.NoError(t, err)

	require.Len(t, fr.Sections, 4)
	assert.Equal(t, []SectionKind{KindNarrative, KindNarrative, KindTables, KindNarrative}, sectionKinds(fr))
	assert.Equal(t, "Balance Sheets", fr.Sections[2].Canonical)
	assert.Equal(t, 1, fr.Sections[2].Tables)
	assert.Equal(t, 6, fr.Sections[2].Facts)
	assert.Zero(t, fr.Sections[0].Chunks, "short preamble is not chunked")

	// the continued heading keeps numbering within the same canonical section
	chunks := mem.Chunks()
	require.Len(t, chunks, 2)
	for i, c := range chunks {
		assert.Equal(t, "Risk Factors", c.Section)
		assert.Equal(t, i, c.ChunkIndex)
	}
	assert.Contains(t, chunks[1].ChunkText, "Cyberattacks")

	var assets *models.FinancialFact
	for _, f := range mem.Facts() {
		if f.Concept == "Total assets" && f.PeriodDate.Format(models.DateLayout) == "2024-06-30" {
			f := f
			assets = &f
		}
	}
	require.NotNil(t, assets)
	assert.Equal(t, 512163.0, assets.Value)
	assert.Equal(t, models.UnitExplicit, assets.UnitConfidence)
	assert.Equal(t, "Balance Sheets", assets.StatementType)
	assert.True(t, assets.Audited)
}

func sectionKinds(fr *FilingReport) []SectionKind {
	kinds := make([]SectionKind, 0, len(fr.Sections))
	for _, s := range fr.Sections {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

func TestProcessDocumentStructuredStatements(t *testing.T) {
	mem := store.NewMemoryStore()
	o := New(nil, mem, DefaultConfig(), nil)
	doc := &ingest.Document{
		Ref:        sampleRef(),
		Markdown:   "# Consolidated Balance Sheets\n\n| | June 30, 2024 |\n|---|---|\n| Total assets | 5 |\n",
		Statements: fakeStatements{},
	}

	fr, err := o.ProcessDocument(context.Background(), doc)
	require.NoError(t, err, "a failing statement does not fail the filing")

	require.Len(t, fr.Sections, 1)
	assert.Equal(t, KindStructured, fr.Sections[0].Kind)

	require.Len(t, fr.Statements, 3)
	assert.Equal(t, models.BalanceSheet, fr.Statements[0].Type)
	assert.Equal(t, 3, fr.Statements[0].Facts)
	assert.Equal(t, 1, fr.Statements[0].Skipped[facts.SkipAbstract])
	assert.True(t, fr.Statements[1].Unavailable)
	assert.Error(t, fr.Statements[2].Err)
	assert.False(t, fr.Statements[2].Unavailable)
	assert.Equal(t, 1, fr.FailedStatements())

	assert.Equal(t, 3, fr.Facts.Inserted)
	require.Len(t, fr.Warnings, 1, "assets 100 vs liabilities+equity 90")
	assert.Contains(t, fr.Warnings[0], "2024-06-30")

	for _, f := range mem.Facts() {
		assert.Equal(t, string(models.BalanceSheet), f.StatementType)
		assert.Equal(t, models.UnitInferred, f.UnitConfidence)
	}
}

func TestProcessDocumentUnresolvedIdentity(t *testing.T) {
	mem := store.NewMemoryStore()
	o := New(nil, mem, DefaultConfig(), nil)

	ref := sampleRef()
	ref.FilingDate = time.Time{}
	fr, err := o.ProcessDocument(context.Background(), &ingest.Document{Ref: ref, Markdown: sampleMarkdown()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIdentityUnresolved)
	require.NotNil(t, fr)
	assert.Empty(t, mem.Facts())

	ref = sampleRef()
	ref.Ticker = ""
	_, err = o.ProcessDocument(context.Background(), &ingest.Document{Ref: ref, Markdown: sampleMarkdown()})
	assert.ErrorIs(t, err, ErrIdentityUnresolved)
}

func TestProcessDocumentStorageFailure(t *testing.T) {
	o := New(nil, failingWriter{FilingWriter: store.NewMemoryStore()}, DefaultConfig(), nil)

	fr, err := o.ProcessDocument(context.Background(), &ingest.Document{Ref: sampleRef(), Markdown: sampleMarkdown()})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrIdentityUnresolved)
	assert.NotNil(t, fr)
}

func TestRunContinuesPastFailures(t *testing.T) {
	good := sampleRef()
	undated := ingest.Ref{Path: "MSFT/notes.md", Ticker: "MSFT", FormType: models.FormUnknown}
	missing := ingest.Ref{Path: "MSFT/10Q_2024-10-30.md", Ticker: "MSFT", FormType: models.Form10Q,
		FilingDate: time.Date(2024, 10, 30, 0, 0, 0, 0, time.UTC)}

	src := &fakeSource{
		refs: []ingest.Ref{undated, missing, good},
		docs: map[string]*ingest.Document{
			good.Path:    {Ref: good, Markdown: sampleMarkdown()},
			undated.Path: {Ref: undated, Markdown: "# Notes\n\nscratch"},
		},
	}
	mem := store.NewMemoryStore()
	o := New(src, mem, DefaultConfig(), nil)

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Len(t, report.Filings, 3)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Unresolved)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 6, report.Facts.Inserted)
	assert.Equal(t, 2, report.Chunks.Inserted)
	assert.Equal(t, 1, report.SkipReasons[facts.SkipShortMetric])

	// a second run over the same source writes nothing new
	report, err = o.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Facts.Inserted)
	assert.Equal(t, 6, report.Facts.Conflicts)
	assert.Zero(t, report.Chunks.Inserted)
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{refs: []ingest.Ref{sampleRef()}}
	o := New(src, store.NewMemoryStore(), DefaultConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckBalanceSheet(t *testing.T) {
	period := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	fact := func(label string, v float64) models.FinancialFact {
		return models.FinancialFact{StatementType: "Balance Sheets", Concept: label, Label: label, PeriodDate: period, Value: v}
	}

	tests := []struct {
		name  string
		facts []models.FinancialFact
		want  int
	}{
		{"balanced", []models.FinancialFact{fact("Total assets", 100), fact("Total liabilities and equity", 100)}, 0},
		{"within tolerance", []models.FinancialFact{fact("Total assets", 1000), fact("Total liabilities", 600), fact("Total equity", 399.5)}, 0},
		{"out of balance", []models.FinancialFact{fact("Total assets", 100), fact("Total liabilities", 50), fact("Total equity", 30)}, 1},
		{"missing equity", []models.FinancialFact{fact("Total assets", 100), fact("Total liabilities", 50)}, 0},
		{"not a balance sheet", []models.FinancialFact{
			{StatementType: "Risk Factors", Label: "Total assets", PeriodDate: period, Value: 1},
			{StatementType: "Risk Factors", Label: "Total liabilities and equity", PeriodDate: period, Value: 2},
		}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, checkBalanceSheet(tt.facts, 0.1), tt.want)
		})
	}
}

func TestProcessDocumentScaleStatementBeatsProse(t *testing.T) {
	mem := store.NewMemoryStore()
	o := New(nil, mem, DefaultConfig(), nil)
	markdown := strings.Join([]string{
		"# Consolidated Balance Sheets",
		"",
		"(In thousands, except per share data)",
		"",
		"| | December 31, 2025 |",
		"|---|---|",
		"| Total assets | 2,500,000 |",
		"",
		"Includes a $2 million impairment.",
		"",
	}, "\n")

	_, err := o.ProcessDocument(context.Background(), &ingest.Document{Ref: sampleRef(), Markdown: markdown})
	require.NoError(t, err)

	fs := mem.Facts()
	require.Len(t, fs, 1)
	assert.Equal(t, 2500.0, fs[0].Value)
	assert.Equal(t, models.UnitExplicit, fs[0].UnitConfidence)
}

func TestTableUnitHints(t *testing.T) {
	first := "| | 2025 |\n|---|---|\n| Revenue | 10 |"
	second := "| | 2025 |\n|---|---|\n| Shares | 3 |"
	third := "| | 2025 |\n|---|---|\n| Cash | 7 |"
	content := strings.Join([]string{
		"(In millions)", first,
		"Revenue rose by $4 thousand.", second,
		"(Dollars in thousands)", third,
	}, "\n")

	hints := tableUnitHints(content, []string{first, second, third})
	assert.Equal(t, []string{"millions", "millions", "thousands"}, hints)
	assert.Equal(t, []string{""}, tableUnitHints(first, []string{first}))
}
