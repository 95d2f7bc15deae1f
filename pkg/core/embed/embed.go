// Package embed turns chunk text into vectors and back-fills stored chunks.
package embed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"edgar_rag/pkg/core/metrics"
	"edgar_rag/pkg/core/store"
)

// MaxBatchSize is the largest batch any provider accepts in one call.
const MaxBatchSize = 128

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderVoyage = "voyage"
)

var (
	// ErrProvider wraps every failure reported by an embedding API.
	ErrProvider = errors.New("embedding provider error")
	// ErrDimensionMismatch is the store's sentinel, so a mismatch found on
	// either side satisfies errors.Is.
	ErrDimensionMismatch = store.ErrDimensionMismatch
)

// Embedder maps a batch of texts to one vector per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Config selects and configures a provider.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	Dimension int
}

// New builds the Embedder for cfg.Provider.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case ProviderGemini:
		return NewGemini(ctx, cfg)
	case ProviderOpenAI, ProviderVoyage:
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

const probeText = "Quarterly revenue increased compared with the prior year."

// ProbeDimension embeds one short text and returns the vector length.
func ProbeDimension(ctx context.Context, e Embedder) (int, error) {
	vectors, err := e.Embed(ctx, []string{probeText})
	if err != nil {
		return 0, fmt.Errorf("probing %s: %w", e.Model(), err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return 0, fmt.Errorf("probing %s: empty embedding: %w", e.Model(), ErrProvider)
	}
	return len(vectors[0]), nil
}

func checkBatch(texts []string) error {
	if len(texts) > MaxBatchSize {
		return fmt.Errorf("batch of %d texts exceeds limit of %d", len(texts), MaxBatchSize)
	}
	return nil
}

// observe records one provider call.
func observe(provider, model string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, model, status).Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())
}
