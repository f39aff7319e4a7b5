package embedder

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kbase/kbase/internal/metrics"
)

const (
	// DefaultOpenAIModel is the default embedding model.
	DefaultOpenAIModel = "text-embedding-3-small"

	// DefaultOpenAIDimension is the dimension served by text-embedding-3-small.
	DefaultOpenAIDimension = 1536
)

// OpenAIConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIConfig struct {
	// APIKey authenticates against the provider.
	APIKey string

	// BaseURL overrides the API endpoint. Any OpenAI-compatible provider works.
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-3-small).
	Model string

	// Dimension is the embedding dimension (default: 1536).
	Dimension int
}

// OpenAIEmbedder implements the Embedder interface against an
// OpenAI-compatible embeddings API.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
}

// NewOpenAIEmbedder creates a new OpenAI-compatible embedder.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = DefaultOpenAIDimension
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     openai.EmbeddingModel(model),
		dimension: dimension,
	}
}

// Embed generates an embedding vector for a single text input.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embedding vectors for multiple text inputs in one request.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}

	timer := metrics.ObserveEmbedding("openai", string(e.model))
	resp, err := e.client.CreateEmbeddings(ctx, req)
	timer.Done(err)
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// Responses are not guaranteed to arrive in input order; the index field is.
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("empty embedding returned for input %d", i)
		}
	}

	return vectors, nil
}

// Dimension returns the dimensionality of the embedding vectors.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

// ModelName returns the name of the embedding model being used.
func (e *OpenAIEmbedder) ModelName() string {
	return string(e.model)
}

// Ensure OpenAIEmbedder implements Embedder interface.
var _ Embedder = (*OpenAIEmbedder)(nil)
