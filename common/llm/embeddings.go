package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"veritas.app/relay/internal/domain"
)

// Embedder encodes query text into the dense vector the vector retrieval
// backend searches with. Only the OpenAI provider exposes an embeddings
// endpoint; the chat provider and the embedding provider may differ.
type Embedder struct {
	client openai.Client
	model  string
}

// NewEmbedder constructs an Embedder from cfg. The provider is always
// OpenAI-shaped; a BaseURL override points it at any compatible server.
func NewEmbedder(cfg Config) *Embedder {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	return &Embedder{client: openai.NewClient(opts...), model: model}
}

// Embed returns the embedding vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding request: %v", domain.ErrLLMFailed, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: embedding response has no data", domain.ErrLLMFailed)
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}
