package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"edgar_rag/pkg/core/chunk"
	"edgar_rag/pkg/core/facts"
	"edgar_rag/pkg/core/ingest"
	"edgar_rag/pkg/core/metrics"
	"edgar_rag/pkg/core/normalize"
	"edgar_rag/pkg/core/section"
	"edgar_rag/pkg/core/split"
	"edgar_rag/pkg/core/store"
	"edgar_rag/pkg/models"
)

// ErrIdentityUnresolved marks a filing whose ticker or filing date could not be determined.
var ErrIdentityUnresolved = errors.New("filing identity unresolved")

// ValidationConfig defines the accounting checks run on extracted statements.
// A failed check is reported as a warning; it never drops facts.
type ValidationConfig struct {
	Enabled               bool
	BalanceSheetTolerance float64 // allowed |A - (L + E)| as a percent of assets
}

// Config is the orchestrator's process-wide configuration.
type Config struct {
	Chunk      chunk.Options
	Validation ValidationConfig
}

// DefaultConfig returns the standard chunking options with validation on.
func DefaultConfig() Config {
	return Config{
		Chunk:      chunk.DefaultOptions(),
		Validation: ValidationConfig{Enabled: true, BalanceSheetTolerance: 0.1},
	}
}

// Orchestrator drives filings from a source into a store.
type Orchestrator struct {
	source  ingest.Source
	store   store.FilingWriter
	chunker *chunk.Chunker
	cfg     Config
	logger  *zap.Logger
}

// New creates an orchestrator. A nil logger discards output.
func New(source ingest.Source, w store.FilingWriter, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		source:  source,
		store:   w,
		chunker: chunk.NewChunker(cfg.Chunk),
		cfg:     cfg,
		logger:  logger,
	}
}

// Run lists the source and processes every filing in order. A filing that
// fails is recorded in the report and the run moves on; only a listing
// failure or cancellation ends the run early.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	report := newRunReport()
	defer func() { report.Duration = time.Since(report.Started) }()

	refs, err := o.source.List(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list filings: %w", err)
	}
	o.logger.Info("starting run", zap.String("run_id", report.RunID), zap.Int("filings", len(refs)))

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		doc, err := o.source.Fetch(ctx, ref)
		if err != nil {
			metrics.ExtractionFailuresTotal.WithLabelValues("fetch").Inc()
			metrics.FilingsTotal.WithLabelValues("failed").Inc()
			o.logger.Warn("fetch failed", zap.String("filing", ref.Name()), zap.Error(err))
			report.add(&FilingReport{Ref: ref, Err: fmt.Errorf("fetch: %w", err)})
			continue
		}

		fr, err := o.ProcessDocument(ctx, doc)
		if err != nil {
			fr.Err = err
		}
		report.add(fr)
	}

	o.logger.Info("run complete",
		zap.String("run_id", report.RunID),
		zap.Int("processed", report.Processed),
		zap.Int("failed", report.Failed),
		zap.Int("unresolved", report.Unresolved),
		zap.Int("facts_inserted", report.Facts.Inserted),
		zap.Int("chunks_inserted", report.Chunks.Inserted),
	)
	return report, nil
}

// ProcessDocument extracts facts and chunks from one fetched filing and
// writes them. The returned report is never nil.
//
// Identity resolution failures return ErrIdentityUnresolved. Failures inside
// one section or one statement are recorded on the report and do not stop
// the rest of the filing.
func (o *Orchestrator) ProcessDocument(ctx context.Context, doc *ingest.Document) (*FilingReport, error) {
	start := time.Now()
	fr := &FilingReport{Ref: doc.Ref}
	defer func() { fr.Duration = time.Since(start) }()

	filing, err := resolveIdentity(doc.Ref)
	if err != nil {
		metrics.FilingsTotal.WithLabelValues("unresolved").Inc()
		o.logger.Warn("skipping filing", zap.String("filing", doc.Ref.Name()), zap.Error(err))
		return fr, err
	}
	fr.Filing = filing
	log := o.logger.With(
		zap.String("ticker", filing.Ticker),
		zap.String("filing_type", string(filing.FormType)),
		zap.String("filing_date", filing.FilingDate.Format(models.DateLayout)),
	)

	created, err := o.store.RegisterFiling(ctx, filing)
	if err != nil {
		metrics.FilingsTotal.WithLabelValues("failed").Inc()
		log.Warn("failed to register filing", zap.Error(err))
		return fr, fmt.Errorf("register filing: %w", err)
	}
	fr.New = created

	var allFacts []models.FinancialFact
	var allChunks []models.DocumentChunk
	nextChunk := make(map[string]int)

	for _, sec := range section.Segment(doc.Markdown) {
		res, secFacts, secChunks := o.processSection(filing, sec, doc.Statements != nil, nextChunk)
		if res.Err != nil {
			metrics.ExtractionFailuresTotal.WithLabelValues("section").Inc()
			log.Warn("section extraction failed", zap.String("section", sec.Name), zap.Error(res.Err))
		}
		fr.Sections = append(fr.Sections, res)
		allFacts = append(allFacts, secFacts...)
		allChunks = append(allChunks, secChunks...)
	}

	if doc.Statements != nil {
		for _, st := range models.StatementTypes {
			res, stFacts := o.processStatement(ctx, filing, doc.Statements, st)
			if res.Err != nil {
				if !res.Unavailable {
					metrics.ExtractionFailuresTotal.WithLabelValues("statement").Inc()
				}
				log.Warn("statement extraction failed", zap.String("statement", string(st)), zap.Error(res.Err))
			}
			fr.Statements = append(fr.Statements, res)
			allFacts = append(allFacts, stFacts...)
		}
	}

	if o.cfg.Validation.Enabled {
		for _, w := range checkBalanceSheet(allFacts, o.cfg.Validation.BalanceSheetTolerance) {
			log.Warn("validation", zap.String("check", "balance_sheet"), zap.String("detail", w))
			fr.Warnings = append(fr.Warnings, w)
		}
	}

	fr.Facts, err = o.store.InsertFacts(ctx, allFacts)
	if err != nil {
		metrics.FilingsTotal.WithLabelValues("failed").Inc()
		log.Warn("failed to write facts", zap.Error(err))
		return fr, fmt.Errorf("insert facts: %w", err)
	}
	fr.Chunks, err = o.store.InsertChunks(ctx, allChunks)
	if err != nil {
		metrics.FilingsTotal.WithLabelValues("failed").Inc()
		log.Warn("failed to write chunks", zap.Error(err))
		return fr, fmt.Errorf("insert chunks: %w", err)
	}

	recordWrites("facts", fr.Facts)
	recordWrites("chunks", fr.Chunks)
	for reason, n := range fr.SkipReasons() {
		metrics.RowsSkippedTotal.WithLabelValues(string(reason)).Add(float64(n))
	}
	metrics.FilingsTotal.WithLabelValues("processed").Inc()

	log.Info("filing processed",
		zap.Bool("new", fr.New),
		zap.Int("sections", len(fr.Sections)),
		zap.Int("facts_inserted", fr.Facts.Inserted),
		zap.Int("facts_conflicts", fr.Facts.Conflicts),
		zap.Int("chunks_inserted", fr.Chunks.Inserted),
		zap.Int("chunks_conflicts", fr.Chunks.Conflicts),
	)
	return fr, nil
}

func resolveIdentity(ref ingest.Ref) (models.Filing, error) {
	if ref.Ticker == "" {
		return models.Filing{}, fmt.Errorf("%s: no ticker: %w", ref.Name(), ErrIdentityUnresolved)
	}
	if ref.FilingDate.IsZero() {
		return models.Filing{}, fmt.Errorf("%s: no filing date: %w", ref.Name(), ErrIdentityUnresolved)
	}
	form := ref.FormType
	if form == "" {
		form = models.FormUnknown
	}
	return models.Filing{
		Ticker:     ref.Ticker,
		FormType:   form,
		FilingDate: ref.FilingDate,
		Accession:  ref.Accession,
		PeriodEnd:  ref.PeriodEnd,
		FilePath:   ref.Path,
	}, nil
}

// processSection routes one section to fact extraction or chunking. When
// structured statements are available the markdown tables of statement
// sections are left alone. nextChunk carries the chunk index per canonical
// name so repeated headings continue numbering instead of colliding.
func (o *Orchestrator) processSection(filing models.Filing, sec section.Section, structured bool, nextChunk map[string]int) (res SectionResult, out []models.FinancialFact, chunks []models.DocumentChunk) {
	res = SectionResult{Name: sec.Name, Canonical: sec.Canonical, Ordinal: sec.Ordinal}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic: %v", r)
			out, chunks = nil, nil
		}
	}()

	if section.IsTableDominant(sec.Canonical) {
		if structured {
			res.Kind = KindStructured
			return res, nil, nil
		}
		res.Kind = KindTables
		tc := facts.TableContext{Filing: filing, Section: sec.Canonical}
		if st, ok := section.StatementTypeOf(sec.Canonical); ok {
			tc.StatementType = st
		}
		res.Skipped = make(map[facts.SkipReason]int)
		tables := split.ExtractTables(sec.Content)
		hints := tableUnitHints(sec.Content, tables)
		for i, table := range tables {
			tc.UnitHint = hints[i]
			tr := facts.ParseMarkdownTable(table, tc)
			res.Tables++
			out = append(out, tr.Facts()...)
			for reason, n := range tr.Skipped() {
				res.Skipped[reason] += n
			}
		}
		res.Facts = len(out)
		return res, out, nil
	}

	res.Kind = KindNarrative
	texts := o.chunker.ChunkNarrative(split.ExtractNarrative(sec.Content))
	base := nextChunk[sec.Canonical]
	for i, text := range texts {
		chunks = append(chunks, models.DocumentChunk{
			Ticker:     filing.Ticker,
			FilingDate: filing.FilingDate,
			FilingType: filing.FormType,
			Section:    sec.Canonical,
			ChunkIndex: base + i,
			ChunkText:  text,
		})
	}
	nextChunk[sec.Canonical] = base + len(texts)
	res.Chunks = len(chunks)
	return res, nil, chunks
}

// tableUnitHints returns, for each table of content, the scale statement
// closest above it ("(In thousands, except per share data)"). Prose such as
// "a $2 million charge" is not a scale statement. An empty hint leaves the
// table's own header to decide.
func tableUnitHints(content string, tables []string) []string {
	hints := make([]string, len(tables))
	offset := 0
	for i, table := range tables {
		end := offset
		if at := strings.Index(content[offset:], table); at >= 0 {
			end = offset + at
			offset = end + len(table)
		}
		hints[i] = normalize.ScalePhrase(content[:end])
	}
	return hints
}

func (o *Orchestrator) processStatement(ctx context.Context, filing models.Filing, provider ingest.StatementProvider, st models.StatementType) (res StatementOutcome, out []models.FinancialFact) {
	res = StatementOutcome{Type: st}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic: %v", r)
			out = nil
		}
	}()

	table, err := provider.Statement(ctx, st)
	if err != nil {
		res.Err = err
		res.Unavailable = errors.Is(err, ingest.ErrStatementUnavailable)
		return res, nil
	}

	t := *table
	t.Type = st
	sr := facts.ExtractStatement(t, filing)
	out = sr.Facts()
	res.Facts = len(out)
	res.Skipped = sr.Skipped()
	return res, out
}

func recordWrites(kind string, w store.WriteResult) {
	metrics.RowsWrittenTotal.WithLabelValues(kind, "inserted").Add(float64(w.Inserted))
	metrics.RowsWrittenTotal.WithLabelValues(kind, "conflict").Add(float64(w.Conflicts))
}

// NewRunID returns an identifier for one run.
func NewRunID() string {
	return uuid.NewString()
}
