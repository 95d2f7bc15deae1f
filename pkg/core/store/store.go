// Package store persists filings, financial facts and document chunks.
//
// Every write is insert-if-absent on the record's uniqueness key, so
// re-running ingestion over the same input leaves the stored state unchanged.
package store

import (
	"context"
	"errors"

	"edgar_rag/pkg/models"
)

var (
	// ErrNotInitialized is returned when a store is used before it is opened.
	ErrNotInitialized = errors.New("store not initialized")
	// ErrDimensionMismatch is returned when a vector does not match the stored embedding dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// WriteResult counts rows written and rows dropped as duplicates.
type WriteResult struct {
	Inserted  int `json:"inserted"`
	Conflicts int `json:"conflicts"`
}

// Add accumulates another result.
func (w *WriteResult) Add(other WriteResult) {
	w.Inserted += other.Inserted
	w.Conflicts += other.Conflicts
}

// EmbeddingUpdate assigns a vector to a stored chunk.
type EmbeddingUpdate struct {
	ChunkID int64
	Vector  []float32
}

// SearchQuery selects chunks nearest to a query vector.
type SearchQuery struct {
	Vector  []float32
	Ticker  string // optional filter
	Section string // optional filter on canonical section name
	Limit   int
}

// ScoredChunk is a search hit; Score is cosine similarity.
type ScoredChunk struct {
	models.DocumentChunk
	Score float64 `json:"score"`
}

// TickerStats summarizes what is stored for one ticker.
type TickerStats struct {
	Ticker   string `json:"ticker"`
	Filings  int    `json:"filings"`
	Facts    int    `json:"facts"`
	Chunks   int    `json:"chunks"`
	Embedded int    `json:"embedded"`
}

// Stats summarizes the store.
type Stats struct {
	Filings            int                           `json:"filings"`
	Facts              int                           `json:"facts"`
	FactsByConfidence  map[models.UnitConfidence]int `json:"facts_by_confidence"`
	Chunks             int                           `json:"chunks"`
	EmbeddedChunks     int                           `json:"embedded_chunks"`
	EmbeddingDimension int                           `json:"embedding_dimension"`
	Tickers            []TickerStats                 `json:"tickers"`
}

// Coverage is the fraction of chunks that carry an embedding.
func (s *Stats) Coverage() float64 {
	if s.Chunks == 0 {
		return 0
	}
	return float64(s.EmbeddedChunks) / float64(s.Chunks)
}

// FilingWriter is what ingestion needs from a store.
type FilingWriter interface {
	RegisterFiling(ctx context.Context, filing models.Filing) (bool, error)
	InsertFacts(ctx context.Context, facts []models.FinancialFact) (WriteResult, error)
	InsertChunks(ctx context.Context, chunks []models.DocumentChunk) (WriteResult, error)
}

// ChunkEmbedder is what the embedding backfill needs from a store.
type ChunkEmbedder interface {
	// PendingChunks returns up to limit chunks without an embedding whose id
	// is greater than afterID, ordered by id.
	PendingChunks(ctx context.Context, afterID int64, limit int) ([]models.DocumentChunk, error)
	// UpdateEmbeddings sets vectors on chunks. Chunk text is never modified.
	UpdateEmbeddings(ctx context.Context, updates []EmbeddingUpdate) error
	// ResetEmbeddings drops all stored vectors and sets the column dimension.
	ResetEmbeddings(ctx context.Context, dim int) error
	// EmbeddingDimension returns the stored vector dimension, 0 when unset.
	EmbeddingDimension(ctx context.Context) (int, error)
}

// Store is the full storage surface.
type Store interface {
	FilingWriter
	ChunkEmbedder
	EnsureSchema(ctx context.Context) error
	SearchChunks(ctx context.Context, q SearchQuery) ([]ScoredChunk, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}
