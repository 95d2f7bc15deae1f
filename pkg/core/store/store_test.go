package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgar_rag/pkg/models"
)

func date(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleFiling() models.Filing {
	return models.Filing{
		Ticker:     "MSFT",
		FormType:   models.Form10K,
		FilingDate: date("2024-07-30"),
		Accession:  "0000950170-24-087843",
		FilePath:   "MSFT/10K_2024-07-30.md",
	}
}

func sampleFacts() []models.FinancialFact {
	base := models.FinancialFact{
		Ticker:         "MSFT",
		FilingDate:     date("2024-07-30"),
		FilingType:     models.Form10K,
		StatementType:  string(models.IncomeStatement),
		Concept:        "Revenue",
		Label:          "Revenue",
		Unit:           "millions",
		UnitConfidence: models.UnitExplicit,
		Audited:        true,
	}
	a, b, c := base, base, base
	a.PeriodDate, a.Value = date("2024-06-30"), 245122
	b.PeriodDate, b.Value = date("2023-06-30"), 211915
	c.PeriodDate, c.Concept, c.Label, c.Value, c.UnitConfidence = date("2024-06-30"), "Headcount", "Headcount", 228000, models.UnitUnknown
	return []models.FinancialFact{a, b, c}
}

func sampleChunks() []models.DocumentChunk {
	mk := func(section string, idx int, text string) models.DocumentChunk {
		return models.DocumentChunk{
			Ticker:     "MSFT",
			FilingDate: date("2024-07-30"),
			FilingType: models.Form10K,
			Section:    section,
			ChunkIndex: idx,
			ChunkText:  text,
		}
	}
	return []models.DocumentChunk{
		mk("Risk Factors", 0, "Competition in cloud services is intense."),
		mk("Risk Factors", 1, "Cybersecurity incidents could harm our reputation."),
		mk("Business", 0, "We develop software and devices."),
	}
}

func runStoreSuite(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx), "schema must be re-appliable")

	t.Run("register filing once", func(t *testing.T) {
		inserted, err := s.RegisterFiling(ctx, sampleFiling())
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = s.RegisterFiling(ctx, sampleFiling())
		require.NoError(t, err)
		assert.False(t, inserted)
	})

	t.Run("facts are insert-if-absent", func(t *testing.T) {
		res, err := s.InsertFacts(ctx, sampleFacts())
		require.NoError(t, err)
		assert.Equal(t, WriteResult{Inserted: 3}, res)

		res, err = s.InsertFacts(ctx, sampleFacts())
		require.NoError(t, err)
		assert.Equal(t, WriteResult{Conflicts: 3}, res)

		res, err = s.InsertFacts(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, WriteResult{}, res)
	})

	t.Run("chunks are insert-if-absent", func(t *testing.T) {
		res, err := s.InsertChunks(ctx, sampleChunks())
		require.NoError(t, err)
		assert.Equal(t, WriteResult{Inserted: 3}, res)

		res, err = s.InsertChunks(ctx, sampleChunks())
		require.NoError(t, err)
		assert.Equal(t, WriteResult{Conflicts: 3}, res)
	})

	require.NoError(t, s.ResetEmbeddings(ctx, 3))
	dim, err := s.EmbeddingDimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, dim)

	var pending []models.DocumentChunk
	t.Run("pending chunks are ordered by id", func(t *testing.T) {
		pending, err = s.PendingChunks(ctx, 0, 10)
		require.NoError(t, err)
		require.Len(t, pending, 3)
		for i := 1; i < len(pending); i++ {
			assert.Less(t, pending[i-1].ID, pending[i].ID)
		}

		page, err := s.PendingChunks(ctx, pending[0].ID, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, pending[1].ID, page[0].ID)
	})
	require.Len(t, pending, 3)

	t.Run("dimension mismatch is rejected", func(t *testing.T) {
		err := s.UpdateEmbeddings(ctx, []EmbeddingUpdate{{ChunkID: pending[0].ID, Vector: []float32{1, 0}}})
		assert.ErrorIs(t, err, ErrDimensionMismatch)

		left, err := s.PendingChunks(ctx, 0, 10)
		require.NoError(t, err)
		assert.Len(t, left, 3)
	})

	t.Run("embeddings update and search", func(t *testing.T) {
		updates := []EmbeddingUpdate{
			{ChunkID: pending[0].ID, Vector: []float32{1, 0, 0}},
			{ChunkID: pending[1].ID, Vector: []float32{0, 1, 0}},
		}
		require.NoError(t, s.UpdateEmbeddings(ctx, updates))

		left, err := s.PendingChunks(ctx, 0, 10)
		require.NoError(t, err)
		require.Len(t, left, 1)
		assert.Equal(t, pending[2].ID, left[0].ID)

		hits, err := s.SearchChunks(ctx, SearchQuery{Vector: []float32{0.1, 0.9, 0}, Limit: 1})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "Cybersecurity incidents could harm our reputation.", hits[0].ChunkText)
		assert.Greater(t, hits[0].Score, 0.9)

		hits, err = s.SearchChunks(ctx, SearchQuery{Vector: []float32{1, 0, 0}, Ticker: "AMZN"})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Filings)
		assert.Equal(t, 3, stats.Facts)
		assert.Equal(t, 2, stats.FactsByConfidence[models.UnitExplicit])
		assert.Equal(t, 1, stats.FactsByConfidence[models.UnitUnknown])
		assert.Equal(t, 3, stats.Chunks)
		assert.Equal(t, 2, stats.EmbeddedChunks)
		assert.Equal(t, 3, stats.EmbeddingDimension)
		assert.InDelta(t, 2.0/3.0, stats.Coverage(), 1e-9)
		require.Len(t, stats.Tickers, 1)
		assert.Equal(t, TickerStats{Ticker: "MSFT", Filings: 1, Facts: 3, Chunks: 3, Embedded: 2}, stats.Tickers[0])
	})

	t.Run("reset clears vectors", func(t *testing.T) {
		require.NoError(t, s.ResetEmbeddings(ctx, 4))
		left, err := s.PendingChunks(ctx, 0, 10)
		require.NoError(t, err)
		assert.Len(t, left, 3)
		dim, err := s.EmbeddingDimension(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, dim)
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	runStoreSuite(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "edgar.db"), 3)
	require.NoError(t, err)
	defer s.Close()
	runStoreSuite(t, s)
}

func TestSQLiteCleanView(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "edgar.db"), 3)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.EnsureSchema(ctx))

	annual := sampleFacts()[0]
	quarterly := annual
	quarterly.FilingType = models.Form10Q
	quarterly.FilingDate = date("2024-10-30")
	quarterly.Value = 1
	_, err = s.InsertFacts(ctx, []models.FinancialFact{annual, quarterly, sampleFacts()[2]})
	require.NoError(t, err)

	rows, err := s.db.QueryContext(ctx, `SELECT concept, filing_type, value FROM financial_facts_clean ORDER BY concept`)
	require.NoError(t, err)
	defer rows.Close()

	type cleanRow struct {
		concept, form string
		value         float64
	}
	got := make([]cleanRow, 0)
	for rows.Next() {
		var r cleanRow
		require.NoError(t, rows.Scan(&r.concept, &r.form, &r.value))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []cleanRow{{concept: "Revenue", form: "10-K", value: 245122}}, got)
}

func TestNotInitialized(t *testing.T) {
	var pg *PostgresStore
	_, err := pg.Stats(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)

	var lite *SQLiteStore
	_, err = lite.RegisterFiling(context.Background(), sampleFiling())
	assert.ErrorIs(t, err, ErrNotInitialized)
}
