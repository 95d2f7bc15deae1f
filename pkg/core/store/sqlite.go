package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"edgar_rag/pkg/models"
)

const metaEmbeddingDimension = "embedding_dimension"

// SQLiteStore is a single-file store for local runs. Similarity search is
// computed in Go over the stored blobs.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	dimension int
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(path string, dim int) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	if dim <= 0 {
		dim = DefaultEmbeddingDimension
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db, path: path, dimension: dim}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) ready() error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	return nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema (%s): %w", firstLine(stmt), err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO store_meta (key, value) VALUES (?, ?) ON CONFLICT (key) DO NOTHING`,
		metaEmbeddingDimension, strconv.Itoa(s.dimension))
	if err != nil {
		return fmt.Errorf("recording embedding dimension: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RegisterFiling(ctx context.Context, f models.Filing) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (ticker) VALUES (?) ON CONFLICT (ticker) DO NOTHING`, f.Ticker); err != nil {
		return false, fmt.Errorf("registering company %s: %w", f.Ticker, err)
	}

	var periodEnd interface{}
	if f.PeriodEnd != nil {
		periodEnd = f.PeriodEnd.Format(models.DateLayout)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO filings (ticker, filing_type, filing_date, accession_number, period_end, file_path)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, filing_date, filing_type) DO NOTHING`,
		f.Ticker, string(f.FormType), f.FilingDate.Format(models.DateLayout), nullable(f.Accession), periodEnd, nullable(f.FilePath))
	if err != nil {
		return false, fmt.Errorf("registering filing %s %s: %w", f.Ticker, f.FilingDate.Format(models.DateLayout), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) InsertFacts(ctx context.Context, facts []models.FinancialFact) (WriteResult, error) {
	if err := s.ready(); err != nil {
		return WriteResult{}, err
	}
	return s.insertAll(ctx, `
		INSERT INTO financial_facts (ticker, filing_date, filing_type, period_date, statement_type,
			concept, label, standard_concept, value, unit, unit_confidence, audited)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, filing_date, filing_type, period_date, statement_type, concept, unit) DO NOTHING`,
		len(facts), func(i int) []interface{} {
			f := facts[i]
			return []interface{}{
				f.Ticker, f.FilingDate.Format(models.DateLayout), string(f.FilingType), f.PeriodDate.Format(models.DateLayout),
				f.StatementType, f.Concept, nullable(f.Label), nullable(f.StandardConcept),
				f.Value, f.Unit, string(f.UnitConfidence), f.Audited,
			}
		})
}

func (s *SQLiteStore) InsertChunks(ctx context.Context, chunks []models.DocumentChunk) (WriteResult, error) {
	if err := s.ready(); err != nil {
		return WriteResult{}, err
	}
	return s.insertAll(ctx, `
		INSERT INTO document_chunks (ticker, filing_date, filing_type, section, chunk_index, chunk_text)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, filing_date, filing_type, section, chunk_index) DO NOTHING`,
		len(chunks), func(i int) []interface{} {
			c := chunks[i]
			return []interface{}{
				c.Ticker, c.FilingDate.Format(models.DateLayout), string(c.FilingType), c.Section, c.ChunkIndex, c.ChunkText,
			}
		})
}

// insertAll runs n inserts of query in one transaction, counting duplicates.
func (s *SQLiteStore) insertAll(ctx context.Context, query string, n int, args func(i int) []interface{}) (WriteResult, error) {
	var res WriteResult
	if n == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return res, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		r, err := stmt.ExecContext(ctx, args(i)...)
		if err != nil {
			return WriteResult{}, fmt.Errorf("inserting row %d: %w", i, err)
		}
		affected, err := r.RowsAffected()
		if err != nil {
			return WriteResult{}, err
		}
		if affected > 0 {
			res.Inserted++
		} else {
			res.Conflicts++
		}
	}

	if err := tx.Commit(); err != nil {
		return WriteResult{}, fmt.Errorf("committing inserts: %w", err)
	}
	return res, nil
}

func (s *SQLiteStore) PendingChunks(ctx context.Context, afterID int64, limit int) ([]models.DocumentChunk, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticker, filing_date, filing_type, section, chunk_index, chunk_text
		FROM document_chunks
		WHERE embedding IS NULL AND id > ?
		ORDER BY id
		LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting pending chunks: %w", err)
	}
	defer rows.Close()

	out := make([]models.DocumentChunk, 0)
	for rows.Next() {
		c, err := scanChunk(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateEmbeddings(ctx context.Context, updates []EmbeddingUpdate) error {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		if _, err := tx.ExecContext(ctx,
			`UPDATE document_chunks SET embedding = ? WHERE id = ?`, encodeVector(u.Vector), u.ChunkID); err != nil {
			return fmt.Errorf("updating embedding for chunk %d: %w", u.ChunkID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ResetEmbeddings(ctx context.Context, dim int) error {
	if err := s.ready(); err != nil {
		return err
	}
	if dim <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dim)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE document_chunks SET embedding = NULL`); err != nil {
		return fmt.Errorf("clearing embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO store_meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		metaEmbeddingDimension, strconv.Itoa(dim)); err != nil {
		return fmt.Errorf("recording embedding dimension: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.dimension = dim
	return nil
}

func (s *SQLiteStore) EmbeddingDimension(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, metaEmbeddingDimension).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading embedding dimension: %w", err)
	}
	dim, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid stored embedding dimension %q: %w", value, err)
	}
	return dim, nil
}

func (s *SQLiteStore) SearchChunks(ctx context.Context, q SearchQuery) ([]ScoredChunk, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, ticker, filing_date, filing_type, section, chunk_index, chunk_text, embedding
		FROM document_chunks
		WHERE embedding IS NOT NULL`
	args := make([]interface{}, 0, 2)
	if q.Ticker != "" {
		query += " AND ticker = ?"
		args = append(args, q.Ticker)
	}
	if q.Section != "" {
		query += " AND section = ?"
		args = append(args, q.Section)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	candidates := make([]ScoredChunk, 0)
	for rows.Next() {
		c, err := scanChunk(rows, true)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, ScoredChunk{DocumentChunk: c})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}
	return rankChunks(candidates, q.Vector, limit), nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	stats := &Stats{FactsByConfidence: make(map[models.UnitConfidence]int)}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM filings`).Scan(&stats.Filings); err != nil {
		return nil, fmt.Errorf("counting filings: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*), count(embedding) FROM document_chunks`).Scan(&stats.Chunks, &stats.EmbeddedChunks); err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT unit_confidence, count(*) FROM financial_facts GROUP BY unit_confidence`)
	if err != nil {
		return nil, fmt.Errorf("counting facts: %w", err)
	}
	for rows.Next() {
		var conf string
		var n int
		if err := rows.Scan(&conf, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning fact counts: %w", err)
		}
		stats.FactsByConfidence[models.UnitConfidence(conf)] = n
		stats.Facts += n
	}
	rows.Close()

	tickers, err := s.db.QueryContext(ctx, `
		SELECT t.ticker,
			(SELECT count(*) FROM filings f WHERE f.ticker = t.ticker),
			(SELECT count(*) FROM financial_facts ff WHERE ff.ticker = t.ticker),
			(SELECT count(*) FROM document_chunks c WHERE c.ticker = t.ticker),
			(SELECT count(embedding) FROM document_chunks c WHERE c.ticker = t.ticker)
		FROM (SELECT DISTINCT ticker FROM filings) t
		ORDER BY t.ticker`)
	if err != nil {
		return nil, fmt.Errorf("computing ticker stats: %w", err)
	}
	defer tickers.Close()
	for tickers.Next() {
		var ts TickerStats
		if err := tickers.Scan(&ts.Ticker, &ts.Filings, &ts.Facts, &ts.Chunks, &ts.Embedded); err != nil {
			return nil, fmt.Errorf("scanning ticker stats: %w", err)
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

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChunk(row rowScanner, withEmbedding bool) (models.DocumentChunk, error) {
	var c models.DocumentChunk
	var filingDate, formType string
	dest := []interface{}{&c.ID, &c.Ticker, &filingDate, &formType, &c.Section, &c.ChunkIndex, &c.ChunkText}
	var blob []byte
	if withEmbedding {
		dest = append(dest, &blob)
	}
	if err := row.Scan(dest...); err != nil {
		return c, fmt.Errorf("scanning chunk: %w", err)
	}

	d, err := time.Parse(models.DateLayout, filingDate)
	if err != nil {
		return c, fmt.Errorf("chunk %d has invalid filing date %q: %w", c.ID, filingDate, err)
	}
	c.FilingDate = d
	c.FilingType = models.FormType(formType)

	if blob == nil {
		return c, nil
	}
	v, err := decodeVector(blob)
	if err != nil {
		return c, fmt.Errorf("chunk %d: %w", c.ID, err)
	}
	c.Embedding = v
	return c, nil
}
