package store

import (
	"context"
	"sort"
	"sync"

	"edgar_rag/pkg/models"
)

// =============================================================================
// IN-MEMORY STORE (dry runs and tests)
// =============================================================================

// MemoryStore implements Store with maps keyed by each record's uniqueness key.
type MemoryStore struct {
	mu        sync.RWMutex
	filings   map[models.FilingKey]models.Filing
	facts     map[models.FactKey]models.FinancialFact
	chunks    map[models.ChunkKey]*models.DocumentChunk
	chunkByID map[int64]*models.DocumentChunk
	nextID    int64
	dimension int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		filings:   make(map[models.FilingKey]models.Filing),
		facts:     make(map[models.FactKey]models.FinancialFact),
		chunks:    make(map[models.ChunkKey]*models.DocumentChunk),
		chunkByID: make(map[int64]*models.DocumentChunk),
	}
}

func (s *MemoryStore) EnsureSchema(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) RegisterFiling(ctx context.Context, filing models.Filing) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := filing.Key()
	if _, exists := s.filings[key]; exists {
		return false, nil
	}
	s.filings[key] = filing
	return true, nil
}

func (s *MemoryStore) InsertFacts(ctx context.Context, facts []models.FinancialFact) (WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res WriteResult
	for _, f := range facts {
		key := f.Key()
		if _, exists := s.facts[key]; exists {
			res.Conflicts++
			continue
		}
		s.facts[key] = f
		res.Inserted++
	}
	return res, nil
}

func (s *MemoryStore) InsertChunks(ctx context.Context, chunks []models.DocumentChunk) (WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res WriteResult
	for _, c := range chunks {
		key := c.Key()
		if _, exists := s.chunks[key]; exists {
			res.Conflicts++
			continue
		}
		s.nextID++
		stored := c
		stored.ID = s.nextID
		stored.Embedding = nil
		s.chunks[key] = &stored
		s.chunkByID[stored.ID] = &stored
		res.Inserted++
	}
	return res, nil
}

func (s *MemoryStore) PendingChunks(ctx context.Context, afterID int64, limit int) ([]models.DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0)
	for id, c := range s.chunkByID {
		if id > afterID && c.Embedding == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]models.DocumentChunk, 0, len(ids))
	for _, id := range ids {
		c := *s.chunkByID[id]
		out = append(out, c)
	}
	return out, nil
}

func (s *MemoryStore) UpdateEmbeddings(ctx context.Context, updates []EmbeddingUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkDimension(s.dimension, updates); err != nil {
		return err
	}
	for _, u := range updates {
		if c, ok := s.chunkByID[u.ChunkID]; ok {
			c.Embedding = append([]float32(nil), u.Vector...)
		}
	}
	return nil
}

func (s *MemoryStore) ResetEmbeddings(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.chunkByID {
		c.Embedding = nil
	}
	s.dimension = dim
	return nil
}

func (s *MemoryStore) EmbeddingDimension(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension, nil
}

func (s *MemoryStore) SearchChunks(ctx context.Context, q SearchQuery) ([]ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]ScoredChunk, 0)
	for _, c := range s.chunkByID {
		if c.Embedding == nil {
			continue
		}
		if q.Ticker != "" && c.Ticker != q.Ticker {
			continue
		}
		if q.Section != "" && c.Section != q.Section {
			continue
		}
		candidates = append(candidates, ScoredChunk{DocumentChunk: *c})
	}
	// map order is random; rank from a stable base order
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return rankChunks(candidates, q.Vector, q.Limit), nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		Filings:            len(s.filings),
		Facts:              len(s.facts),
		FactsByConfidence:  make(map[models.UnitConfidence]int),
		Chunks:             len(s.chunks),
		EmbeddingDimension: s.dimension,
	}

	perTicker := make(map[string]*TickerStats)
	ticker := func(t string) *TickerStats {
		ts, ok := perTicker[t]
		if !ok {
			ts = &TickerStats{Ticker: t}
			perTicker[t] = ts
		}
		return ts
	}

	for _, f := range s.filings {
		ticker(f.Ticker).Filings++
	}
	for _, f := range s.facts {
		stats.FactsByConfidence[f.UnitConfidence]++
		ticker(f.Ticker).Facts++
	}
	for _, c := range s.chunks {
		ts := ticker(c.Ticker)
		ts.Chunks++
		if c.Embedding != nil {
			ts.Embedded++
			stats.EmbeddedChunks++
		}
	}

	for _, ts := range perTicker {
		stats.Tickers = append(stats.Tickers, *ts)
	}
	sort.Slice(stats.Tickers, func(i, j int) bool { return stats.Tickers[i].Ticker < stats.Tickers[j].Ticker })
	return stats, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Facts returns a snapshot of stored facts, for inspection in tests and dry runs.
func (s *MemoryStore) Facts() []models.FinancialFact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.FinancialFact, 0, len(s.facts))
	for _, f := range s.facts {
		out = append(out, f)
	}
	return out
}

// Chunks returns a snapshot of stored chunks ordered by id.
func (s *MemoryStore) Chunks() []models.DocumentChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.DocumentChunk, 0, len(s.chunkByID))
	for _, c := range s.chunkByID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
