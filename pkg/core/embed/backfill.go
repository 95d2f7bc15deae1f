package embed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"edgar_rag/pkg/core/metrics"
	"edgar_rag/pkg/core/store"
)

// maxConsecutiveFailures stops a sweep against a provider that keeps failing.
const maxConsecutiveFailures = 3

// BackfillReport summarizes one sweep.
type BackfillReport struct {
	RunID         string        `json:"run_id"`
	Model         string        `json:"model"`
	Dimension     int           `json:"dimension"`
	Batches       int           `json:"batches"`
	Embedded      int           `json:"embedded"`
	FailedBatches int           `json:"failed_batches"`
	FailedChunks  int           `json:"failed_chunks"`
	Duration      time.Duration `json:"duration"`
}

// Backfill embeds every stored chunk that has no vector yet.
//
// Chunks are selected by id in keyset order, so a batch the provider rejects
// stays NULL and is picked up by the next run rather than re-selected in this one.
type Backfill struct {
	Store     store.ChunkEmbedder
	Embedder  Embedder
	BatchSize int
	// Reset drops existing vectors and resizes the column to the probed dimension.
	Reset  bool
	Logger *zap.Logger
}

// Run performs one sweep. A dimension mismatch stops the sweep with
// ErrDimensionMismatch and nothing from that batch is written.
func (b *Backfill) Run(ctx context.Context) (*BackfillReport, error) {
	log := b.Logger
	if log == nil {
		log = zap.NewNop()
	}
	batchSize := b.BatchSize
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	start := time.Now()
	report := &BackfillReport{RunID: uuid.NewString(), Model: b.Embedder.Model()}
	log = log.With(zap.String("run_id", report.RunID), zap.String("model", report.Model))
	defer func() { report.Duration = time.Since(start) }()

	dim, err := ProbeDimension(ctx, b.Embedder)
	if err != nil {
		return report, err
	}
	report.Dimension = dim

	stored, err := b.Store.EmbeddingDimension(ctx)
	if err != nil {
		return report, fmt.Errorf("reading stored dimension: %w", err)
	}
	switch {
	case b.Reset || stored == 0:
		if err := b.Store.ResetEmbeddings(ctx, dim); err != nil {
			return report, fmt.Errorf("resetting embeddings to %d: %w", dim, err)
		}
		log.Info("embedding column sized", zap.Int("dimension", dim))
	case stored != dim:
		return report, fmt.Errorf("%w: model %s produces %d, store holds %d; rerun with reset",
			ErrDimensionMismatch, report.Model, dim, stored)
	}

	var afterID int64
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		chunks, err := b.Store.PendingChunks(ctx, afterID, batchSize)
		if err != nil {
			return report, fmt.Errorf("selecting pending chunks: %w", err)
		}
		if len(chunks) == 0 {
			break
		}
		afterID = chunks[len(chunks)-1].ID
		report.Batches++

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.ChunkText
		}

		vectors, err := b.Embedder.Embed(ctx, texts)
		if err != nil {
			report.FailedBatches++
			report.FailedChunks += len(chunks)
			failures++
			log.Warn("embedding batch failed",
				zap.Int64("first_chunk_id", chunks[0].ID),
				zap.Int("size", len(chunks)),
				zap.Error(err))
			if failures >= maxConsecutiveFailures {
				return report, fmt.Errorf("stopping after %d consecutive failed batches: %w", failures, err)
			}
			continue
		}
		failures = 0

		if len(vectors) != len(chunks) {
			return report, fmt.Errorf("%w: %d vectors for %d chunks", ErrProvider, len(vectors), len(chunks))
		}

		updates := make([]store.EmbeddingUpdate, len(chunks))
		for i, c := range chunks {
			if len(vectors[i]) != dim {
				return report, fmt.Errorf("%w: chunk %d got %d values, expected %d",
					ErrDimensionMismatch, c.ID, len(vectors[i]), dim)
			}
			updates[i] = store.EmbeddingUpdate{ChunkID: c.ID, Vector: vectors[i]}
		}

		if err := b.Store.UpdateEmbeddings(ctx, updates); err != nil {
			if errors.Is(err, ErrDimensionMismatch) {
				return report, err
			}
			return report, fmt.Errorf("storing embeddings: %w", err)
		}
		report.Embedded += len(updates)
		metrics.EmbeddedChunksTotal.Add(float64(len(updates)))
		log.Debug("embedding batch stored", zap.Int64("last_chunk_id", afterID), zap.Int("size", len(updates)))
	}

	log.Info("embedding sweep complete",
		zap.Int("embedded", report.Embedded),
		zap.Int("failed_chunks", report.FailedChunks),
		zap.Int("batches", report.Batches))
	return report, nil
}
