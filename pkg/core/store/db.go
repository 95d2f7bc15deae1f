package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"edgar_rag/pkg/models"
)

// PostgresStore is the production store: pgx pool with pgvector types registered.
type PostgresStore struct {
	pool      *pgxpool.Pool
	dimension int
}

// NewPostgres opens a pool against databaseURL. The vector extension is
// created first on a single connection so every pooled connection can
// register the pgvector types.
func NewPostgres(ctx context.Context, databaseURL string, dim int) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url not set")
	}
	if dim <= 0 {
		dim = DefaultEmbeddingDimension
	}

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	_, err = conn.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector extension: %w", err)
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	return &PostgresStore{pool: pool, dimension: dim}, nil
}

// Pool exposes the underlying pool for ad-hoc queries.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) ready() error {
	if s == nil || s.pool == nil {
		return ErrNotInitialized
	}
	return nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, stmt := range postgresSchema(s.dimension) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema (%s): %w", firstLine(stmt), err)
		}
	}
	return nil
}

func (s *PostgresStore) RegisterFiling(ctx context.Context, f models.Filing) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO companies (ticker) VALUES ($1) ON CONFLICT (ticker) DO NOTHING`, f.Ticker); err != nil {
		return false, fmt.Errorf("failed to register company %s: %w", f.Ticker, err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO filings (ticker, filing_type, filing_date, accession_number, period_end, file_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ticker, filing_date, filing_type) DO NOTHING`,
		f.Ticker, string(f.FormType), f.FilingDate, nullable(f.Accession), f.PeriodEnd, nullable(f.FilePath))
	if err != nil {
		return false, fmt.Errorf("failed to register filing %s %s: %w", f.Ticker, f.FilingDate.Format(models.DateLayout), err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) InsertFacts(ctx context.Context, facts []models.FinancialFact) (WriteResult, error) {
	if err := s.ready(); err != nil {
		return WriteResult{}, err
	}
	if len(facts) == 0 {
		return WriteResult{}, nil
	}

	const query = `
		INSERT INTO financial_facts (ticker, filing_date, filing_type, period_date, statement_type,
			concept, label, standard_concept, value, unit, unit_confidence, audited)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (ticker, filing_date, filing_type, period_date, statement_type, concept, unit) DO NOTHING`

	batch := &pgx.Batch{}
	for _, f := range facts {
		batch.Queue(query, f.Ticker, f.FilingDate, string(f.FilingType), f.PeriodDate, f.StatementType,
			f.Concept, nullable(f.Label), nullable(f.StandardConcept), f.Value, f.Unit, string(f.UnitConfidence), f.Audited)
	}
	return s.sendInsertBatch(ctx, batch, "facts")
}

func (s *PostgresStore) InsertChunks(ctx context.Context, chunks []models.DocumentChunk) (WriteResult, error) {
	if err := s.ready(); err != nil {
		return WriteResult{}, err
	}
	if len(chunks) == 0 {
		return WriteResult{}, nil
	}

	const query = `
		INSERT INTO document_chunks (ticker, filing_date, filing_type, section, chunk_index, chunk_text)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ticker, filing_date, filing_type, section, chunk_index) DO NOTHING`

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(query, c.Ticker, c.FilingDate, string(c.FilingType), c.Section, c.ChunkIndex, c.ChunkText)
	}
	return s.sendInsertBatch(ctx, batch, "chunks")
}

// sendInsertBatch runs queued ON CONFLICT DO NOTHING inserts; a statement
// that affects no row was a duplicate.
func (s *PostgresStore) sendInsertBatch(ctx context.Context, batch *pgx.Batch, what string) (WriteResult, error) {
	var res WriteResult
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			return res, fmt.Errorf("failed to insert %s: %w", what, err)
		}
		if tag.RowsAffected() > 0 {
			res.Inserted++
		} else {
			res.Conflicts++
		}
	}
	return res, nil
}

func (s *PostgresStore) PendingChunks(ctx context.Context, afterID int64, limit int) ([]models.DocumentChunk, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, ticker, filing_date, filing_type, section, chunk_index, chunk_text
		FROM document_chunks
		WHERE embedding IS NULL AND id > $1
		ORDER BY id
		LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending chunks: %w", err)
	}
	defer rows.Close()

	out := make([]models.DocumentChunk, 0, limit)
	for rows.Next() {
		var c models.DocumentChunk
		var formType string
		if err := rows.Scan(&c.ID, &c.Ticker, &c.FilingDate, &formType, &c.Section, &c.ChunkIndex, &c.ChunkText); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.FilingType = models.FormType(formType)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateEmbeddings(ctx context.Context, updates []EmbeddingUpdate) error {
	if err := s.ready(); err != nil {
		return err
	}
	dim, err := s.EmbeddingDimension(ctx)
	if err != nil {
		return err
	}
	if err := checkDimension(dim, updates); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`UPDATE document_chunks SET embedding = $1 WHERE id = $2`, pgvector.NewVector(u.Vector), u.ChunkID)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to update embedding: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ResetEmbeddings(ctx context.Context, dim int) error {
	if err := s.ready(); err != nil {
		return err
	}
	if dim <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dim)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer tx.Rollback(ctx)

	stmts := []string{
		`DROP INDEX IF EXISTS idx_chunks_embedding`,
		`ALTER TABLE document_chunks DROP COLUMN IF EXISTS embedding`,
		fmt.Sprintf(`ALTER TABLE document_chunks ADD COLUMN embedding vector(%d)`, dim),
		postgresEmbeddingIndex,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to reset embeddings (%s): %w", firstLine(stmt), err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	s.dimension = dim
	return nil
}

// EmbeddingDimension reads the declared vector(N) size; pgvector stores N as the type modifier.
func (s *PostgresStore) EmbeddingDimension(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var typmod int
	err := s.pool.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'document_chunks'::regclass AND attname = 'embedding' AND NOT attisdropped`).Scan(&typmod)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read embedding dimension: %w", err)
	}
	if typmod < 0 {
		return 0, nil
	}
	return typmod, nil
}

func (s *PostgresStore) SearchChunks(ctx context.Context, q SearchQuery) ([]ScoredChunk, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT id, ticker, filing_date, filing_type, section, chunk_index, chunk_text,
			1 - (embedding <=> $1) AS score
		FROM document_chunks
		WHERE embedding IS NOT NULL`
	args := []interface{}{pgvector.NewVector(q.Vector)}
	if q.Ticker != "" {
		args = append(args, q.Ticker)
		query += fmt.Sprintf(" AND ticker = $%d", len(args))
	}
	if q.Section != "" {
		args = append(args, q.Section)
		query += fmt.Sprintf(" AND section = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	out := make([]ScoredChunk, 0, limit)
	for rows.Next() {
		var hit ScoredChunk
		var formType string
		if err := rows.Scan(&hit.ID, &hit.Ticker, &hit.FilingDate, &formType, &hit.Section,
			&hit.ChunkIndex, &hit.ChunkText, &hit.Score); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		hit.FilingType = models.FormType(formType)
		out = append(out, hit)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	stats := &Stats{FactsByConfidence: make(map[models.UnitConfidence]int)}
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM filings`).Scan(&stats.Filings); err != nil {
		return nil, fmt.Errorf("failed to count filings: %w", err)
	}
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*), count(embedding) FROM document_chunks`).Scan(&stats.Chunks, &stats.EmbeddedChunks); err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT unit_confidence, count(*) FROM financial_facts GROUP BY unit_confidence`)
	if err != nil {
		return nil, fmt.Errorf("failed to count facts: %w", err)
	}
	for rows.Next() {
		var conf string
		var n int
		if err := rows.Scan(&conf, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan fact counts: %w", err)
		}
		stats.FactsByConfidence[models.UnitConfidence(conf)] = n
		stats.Facts += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tickers, err := s.pool.Query(ctx, `
		SELECT t.ticker,
			(SELECT count(*) FROM filings f WHERE f.ticker = t.ticker),
			(SELECT count(*) FROM financial_facts ff WHERE ff.ticker = t.ticker),
			(SELECT count(*) FROM document_chunks c WHERE c.ticker = t.ticker),
			(SELECT count(embedding) FROM document_chunks c WHERE c.ticker = t.ticker)
		FROM (SELECT DISTINCT ticker FROM filings) t
		ORDER BY t.ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to compute ticker stats: %w", err)
	}
	defer tickers.Close()
	for tickers.Next() {
		var ts TickerStats
		if err := tickers.Scan(&ts.Ticker, &ts.Filings, &ts.Facts, &ts.Chunks, &ts.Embedded); err != nil {
			return nil, fmt.Errorf("failed to scan ticker stats: %w", err)
		}
		stats.Tickers = append(stats.Tickers, ts)
	}
	if err := tickers.Err(); err != nil {
		return nil, err
	}

	dim, err := s.EmbeddingDimension(ctx)
	if err != nil {
		return nil, err
	}
	stats.EmbeddingDimension = dim
	return stats, nil
}

func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return strings.TrimSpace(stmt[:i])
	}
	return stmt
}
