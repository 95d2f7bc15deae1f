package models

import (
	"time"
)

// DateLayout is the calendar-date layout used for every persisted date.
const DateLayout = "2006-01-02"

// FormType is the SEC form of a filing.
type FormType string

const (
	Form10K     FormType = "10-K"
	Form10Q     FormType = "10-Q"
	FormUnknown FormType = "UNKNOWN"
)

// ParseFormType maps loose spellings ("10K", "10-q") to a FormType.
func ParseFormType(s string) FormType {
	switch normalizeForm(s) {
	case "10K":
		return Form10K
	case "10Q":
		return Form10Q
	default:
		return FormUnknown
	}
}

func normalizeForm(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '-' || c == ' ' || c == '_':
			continue
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// StatementType identifies a primary financial statement.
type StatementType string

const (
	BalanceSheet    StatementType = "balance_sheet"
	IncomeStatement StatementType = "income_statement"
	CashFlow        StatementType = "cashflow"
)

// StatementTypes lists the statements pulled from structured sources, in processing order.
var StatementTypes = []StatementType{BalanceSheet, IncomeStatement, CashFlow}

// UnitConfidence records how a fact's unit was determined.
type UnitConfidence string

const (
	UnitExplicit UnitConfidence = "explicit" // a unit hint was present and recognized
	UnitInferred UnitConfidence = "inferred" // dollars assumed from statement context
	UnitUnknown  UnitConfidence = "unknown"  // value passed through unscaled
)

// Filing is one ingested SEC document.
type Filing struct {
	Ticker     string     `json:"ticker"`
	FormType   FormType   `json:"filing_type"`
	FilingDate time.Time  `json:"filing_date"`
	Accession  string     `json:"accession_number,omitempty"`
	PeriodEnd  *time.Time `json:"period_end,omitempty"`
	FilePath   string     `json:"file_path,omitempty"`
}

// FilingKey is the uniqueness key of a filing.
type FilingKey struct {
	Ticker     string
	FilingDate string
	FormType   FormType
}

func (f Filing) Key() FilingKey {
	return FilingKey{Ticker: f.Ticker, FilingDate: f.FilingDate.Format(DateLayout), FormType: f.FormType}
}

// FinancialFact is one numeric observation for (ticker, period, concept).
type FinancialFact struct {
	Ticker          string         `json:"ticker"`
	FilingDate      time.Time      `json:"filing_date"`
	FilingType      FormType       `json:"filing_type"`
	PeriodDate      time.Time      `json:"period_date"`
	StatementType   string         `json:"statement_type"` // StatementType, or the source section label for markdown tables
	Concept         string         `json:"concept"`
	Label           string         `json:"label"`
	StandardConcept string         `json:"standard_concept,omitempty"`
	Value           float64        `json:"value"`
	Unit            string         `json:"unit"`
	UnitConfidence  UnitConfidence `json:"unit_confidence"`
	Audited         bool           `json:"audited"`
}

// FactKey is the uniqueness key of a financial fact.
type FactKey struct {
	Ticker        string
	FilingDate    string
	FilingType    FormType
	PeriodDate    string
	StatementType string
	Concept       string
	Unit          string
}

func (f FinancialFact) Key() FactKey {
	return FactKey{
		Ticker:        f.Ticker,
		FilingDate:    f.FilingDate.Format(DateLayout),
		FilingType:    f.FilingType,
		PeriodDate:    f.PeriodDate.Format(DateLayout),
		StatementType: f.StatementType,
		Concept:       f.Concept,
		Unit:          f.Unit,
	}
}

// DocumentChunk is a narrative passage from one section of a filing.
// Embedding is nil until the backfill has processed the chunk.
type DocumentChunk struct {
	ID         int64     `json:"id,omitempty"`
	Ticker     string    `json:"ticker"`
	FilingDate time.Time `json:"filing_date"`
	FilingType FormType  `json:"filing_type"`
	Section    string    `json:"section"`
	ChunkIndex int       `json:"chunk_index"`
	ChunkText  string    `json:"chunk_text"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// ChunkKey is the uniqueness key of a document chunk.
type ChunkKey struct {
	Ticker     string
	FilingDate string
	FilingType FormType
	Section    string
	ChunkIndex int
}

func (c DocumentChunk) Key() ChunkKey {
	return ChunkKey{
		Ticker:     c.Ticker,
		FilingDate: c.FilingDate.Format(DateLayout),
		FilingType: c.FilingType,
		Section:    c.Section,
		ChunkIndex: c.ChunkIndex,
	}
}
