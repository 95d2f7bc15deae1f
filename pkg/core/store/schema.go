package store

import "fmt"

// DefaultEmbeddingDimension matches voyage-3-lite.
const DefaultEmbeddingDimension = 512

// postgresSchema returns the Postgres DDL with the embedding column sized to dim.
func postgresSchema(dim int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS companies (
			ticker TEXT PRIMARY KEY,
			cik TEXT,
			name TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS filings (
			id BIGSERIAL PRIMARY KEY,
			ticker TEXT NOT NULL,
			filing_type TEXT NOT NULL,
			filing_date DATE NOT NULL,
			accession_number TEXT,
			period_end DATE,
			file_path TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (ticker, filing_date, filing_type)
		)`,
		`CREATE TABLE IF NOT EXISTS financial_facts (
			id BIGSERIAL PRIMARY KEY,
			ticker TEXT NOT NULL,
			filing_date DATE NOT NULL,
			filing_type TEXT NOT NULL,
			period_date DATE NOT NULL,
			statement_type TEXT NOT NULL DEFAULT '',
			concept TEXT NOT NULL,
			label TEXT,
			standard_concept TEXT,
			value DOUBLE PRECISION NOT NULL,
			unit TEXT NOT NULL,
			unit_confidence TEXT NOT NULL,
			audited BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (ticker, filing_date, filing_type, period_date, statement_type, concept, unit)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_financial_facts_lookup ON financial_facts (ticker, concept, period_date)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id BIGSERIAL PRIMARY KEY,
			ticker TEXT NOT NULL,
			filing_date DATE NOT NULL,
			filing_type TEXT NOT NULL,
			section TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			chunk_text TEXT NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (ticker, filing_date, filing_type, section, chunk_index)
		)`, dim),
		`CREATE INDEX IF NOT EXISTS idx_chunks_ticker ON document_chunks (ticker, filing_date)`,
		postgresEmbeddingIndex,
		postgresCleanView,
	}
}

const postgresEmbeddingIndex = `CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON document_chunks
	USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`

// postgresCleanView keeps one fact per (ticker, period, concept): annual
// filings first, then the most recent filing. Facts of unknown unit are left out.
const postgresCleanView = `CREATE OR REPLACE VIEW financial_facts_clean AS
	SELECT DISTINCT ON (ticker, period_date, concept)
		ticker, period_date, concept, label, standard_concept, statement_type,
		value, unit, unit_confidence, audited, filing_type, filing_date
	FROM financial_facts
	WHERE unit_confidence <> 'unknown'
	ORDER BY ticker, period_date, concept,
		CASE WHEN filing_type = '10-K' THEN 0 ELSE 1 END,
		filing_date DESC`

// sqliteSchema mirrors the Postgres layout; vectors are little-endian float32 blobs.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS companies (
		ticker TEXT PRIMARY KEY,
		cik TEXT,
		name TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS filings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker TEXT NOT NULL,
		filing_type TEXT NOT NULL,
		filing_date TEXT NOT NULL,
		accession_number TEXT,
		period_end TEXT,
		file_path TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (ticker, filing_date, filing_type)
	)`,
	`CREATE TABLE IF NOT EXISTS financial_facts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker TEXT NOT NULL,
		filing_date TEXT NOT NULL,
		filing_type TEXT NOT NULL,
		period_date TEXT NOT NULL,
		statement_type TEXT NOT NULL DEFAULT '',
		concept TEXT NOT NULL,
		label TEXT,
		standard_concept TEXT,
		value REAL NOT NULL,
		unit TEXT NOT NULL,
		unit_confidence TEXT NOT NULL,
		audited INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (ticker, filing_date, filing_type, period_date, statement_type, concept, unit)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_financial_facts_lookup ON financial_facts (ticker, concept, period_date)`,
	`CREATE TABLE IF NOT EXISTS document_chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker TEXT NOT NULL,
		filing_date TEXT NOT NULL,
		filing_type TEXT NOT NULL,
		section TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		chunk_text TEXT NOT NULL,
		embedding BLOB,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (ticker, filing_date, filing_type, section, chunk_index)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_ticker ON document_chunks (ticker, filing_date)`,
	`CREATE VIEW IF NOT EXISTS financial_facts_clean AS
	SELECT ticker, period_date, concept, label, standard_concept, statement_type,
		value, unit, unit_confidence, audited, filing_type, filing_date
	FROM (
		SELECT *, ROW_NUMBER() OVER (
			PARTITION BY ticker, period_date, concept
			ORDER BY CASE WHEN filing_type = '10-K' THEN 0 ELSE 1 END, filing_date DESC
		) AS rn
		FROM financial_facts
		WHERE unit_confidence <> 'unknown'
	)
	WHERE rn = 1`,
}
