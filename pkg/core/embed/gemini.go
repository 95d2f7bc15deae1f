package embed

import (
	"context"
	"fmt"
	"os"
	"time"

	"google.golang.org/genai"
)

const (
	DefaultGeminiModel = "gemini-embedding-001"
	geminiTaskType     = "RETRIEVAL_DOCUMENT"
)

// Gemini embeds through the Gemini API using the GenAI SDK.
type Gemini struct {
	client    *genai.Client
	model     string
	dimension int
}

var _ Embedder = (*Gemini)(nil)

// NewGemini creates a Gemini embedder. The API key falls back to GEMINI_API_KEY.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{client: client, model: model, dimension: cfg.Dimension}, nil
}

func (g *Gemini) Model() string {
	return g.model
}

func (g *Gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.Text(t)...)
	}

	config := &genai.EmbedContentConfig{TaskType: geminiTaskType}
	if g.dimension > 0 {
		config.OutputDimensionality = genai.Ptr(int32(g.dimension))
	}

	start := time.Now()
	resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, config)
	observe(ProviderGemini, g.model, start, err)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %v: %w", err, ErrProvider)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts: %w", len(resp.Embeddings), len(texts), ErrProvider)
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("gemini returned no embedding for text %d: %w", i, ErrProvider)
		}
		out[i] = e.Values
	}
	return out, nil
}
