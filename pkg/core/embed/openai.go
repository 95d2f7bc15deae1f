package embed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultVoyageModel = "voyage-3-lite"
	VoyageBaseURL      = "https://api.voyageai.com/v1"
)

// OpenAI embeds through any OpenAI-compatible /embeddings endpoint.
// Voyage AI is served by the same client with its own base URL.
type OpenAI struct {
	client    *openai.Client
	provider  string
	model     openai.EmbeddingModel
	dimension int
}

var _ Embedder = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI-compatible embedder. The API key falls back to
// OPENAI_API_KEY, or VOYAGE_API_KEY for the voyage provider.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}

	apiKey, model, baseURL := cfg.APIKey, cfg.Model, cfg.BaseURL
	switch provider {
	case ProviderVoyage:
		if apiKey == "" {
			apiKey = os.Getenv("VOYAGE_API_KEY")
		}
		if model == "" {
			model = DefaultVoyageModel
		}
		if baseURL == "" {
			baseURL = VoyageBaseURL
		}
	default:
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if model == "" {
			model = DefaultOpenAIModel
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for %s embeddings", provider)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	return &OpenAI{
		client:    openai.NewClientWithConfig(clientCfg),
		provider:  provider,
		model:     openai.EmbeddingModel(model),
		dimension: cfg.Dimension,
	}, nil
}

func (e *OpenAI) Model() string {
	return string(e.model)
}

func (e *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	}
	// Voyage rejects both fields; its models have a fixed output size.
	if e.provider != ProviderVoyage {
		req.EncodingFormat = openai.EmbeddingEncodingFormatFloat
		if e.dimension > 0 {
			req.Dimensions = e.dimension
		}
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	observe(e.provider, string(e.model), start, err)
	if err != nil {
		return nil, parseAPIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%s returned %d embeddings for %d texts: %w", e.provider, len(resp.Data), len(texts), ErrProvider)
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%s returned embedding index %d out of range: %w", e.provider, d.Index, ErrProvider)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("%s returned no embedding for text %d: %w", e.provider, i, ErrProvider)
		}
	}
	return out, nil
}

// parseAPIError extracts a readable message and wraps ErrProvider.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, detail, ErrProvider)
		}
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), ErrProvider)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, ErrProvider)
	}

	return fmt.Errorf("embedding request failed: %v: %w", err, ErrProvider)
}

// extractDetail reads the "detail" field Voyage uses for error bodies.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
