package pipeline

import (
	"time"

	"edgar_rag/pkg/core/facts"
	"edgar_rag/pkg/core/ingest"
	"edgar_rag/pkg/core/store"
	"edgar_rag/pkg/models"
)

// SectionKind records how a section was handled.
type SectionKind string

const (
	KindNarrative  SectionKind = "narrative"  // split and chunked
	KindTables     SectionKind = "tables"     // markdown tables parsed into facts
	KindStructured SectionKind = "structured" // statement section covered by structured data
)

// SectionResult is the outcome of one section.
type SectionResult struct {
	Name      string                   `json:"name"`
	Canonical string                   `json:"canonical"`
	Ordinal   int                      `json:"ordinal"`
	Kind      SectionKind              `json:"kind"`
	Tables    int                      `json:"tables,omitempty"`
	Facts     int                      `json:"facts,omitempty"`
	Chunks    int                      `json:"chunks,omitempty"`
	Skipped   map[facts.SkipReason]int `json:"skipped,omitempty"`
	Err       error                    `json:"-"`
}

// StatementOutcome is the outcome of one structured statement.
type StatementOutcome struct {
	Type        models.StatementType     `json:"type"`
	Facts       int                      `json:"facts"`
	Skipped     map[facts.SkipReason]int `json:"skipped,omitempty"`
	Unavailable bool                     `json:"unavailable,omitempty"`
	Err         error                    `json:"-"`
}

// FilingReport is the outcome of one filing.
type FilingReport struct {
	Ref        ingest.Ref         `json:"ref"`
	Filing     models.Filing      `json:"filing"`
	New        bool               `json:"new"` // false when the filing row already existed
	Sections   []SectionResult    `json:"sections,omitempty"`
	Statements []StatementOutcome `json:"statements,omitempty"`
	Facts      store.WriteResult  `json:"facts"`
	Chunks     store.WriteResult  `json:"chunks"`
	Warnings   []string           `json:"warnings,omitempty"`
	Duration   time.Duration      `json:"duration"`
	Err        error              `json:"-"`
}

// Failed reports whether the filing was abandoned.
func (r *FilingReport) Failed() bool {
	return r.Err != nil
}

// FailedSections counts sections whose extraction failed.
func (r *FilingReport) FailedSections() int {
	n := 0
	for _, s := range r.Sections {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// FailedStatements counts statements that were present but could not be extracted.
func (r *FilingReport) FailedStatements() int {
	n := 0
	for _, s := range r.Statements {
		if s.Err != nil && !s.Unavailable {
			n++
		}
	}
	return n
}

// SkipReasons merges the skipped-row histograms of all sections and statements.
func (r *FilingReport) SkipReasons() map[facts.SkipReason]int {
	out := make(map[facts.SkipReason]int)
	for _, s := range r.Sections {
		for reason, n := range s.Skipped {
			out[reason] += n
		}
	}
	for _, s := range r.Statements {
		for reason, n := range s.Skipped {
			out[reason] += n
		}
	}
	return out
}

// RunReport aggregates the filings of one run.
type RunReport struct {
	RunID       string                   `json:"run_id"`
	Started     time.Time                `json:"started"`
	Duration    time.Duration            `json:"duration"`
	Filings     []*FilingReport          `json:"filings"`
	Processed   int                      `json:"processed"`
	Failed      int                      `json:"failed"`
	Unresolved  int                      `json:"unresolved"`
	Facts       store.WriteResult        `json:"facts"`
	Chunks      store.WriteResult        `json:"chunks"`
	SkipReasons map[facts.SkipReason]int `json:"skip_reasons"`
}

func newRunReport() *RunReport {
	return &RunReport{
		RunID:       NewRunID(),
		Started:     time.Now(),
		SkipReasons: make(map[facts.SkipReason]int),
	}
}

func (r *RunReport) add(fr *FilingReport) {
	r.Filings = append(r.Filings, fr)
	switch {
	case fr.Err == nil:
		r.Processed++
	case isUnresolved(fr.Err):
		r.Unresolved++
	default:
		r.Failed++
	}
	r.Facts.Add(fr.Facts)
	r.Chunks.Add(fr.Chunks)
	for reason, n := range fr.SkipReasons() {
		r.SkipReasons[reason] += n
	}
}
