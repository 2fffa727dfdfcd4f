package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OllamaEmbedder requests embeddings from an Ollama server.
type OllamaEmbedder struct {
	client     *api.Client
	model      string
	dimensions int
}

// NewOllamaEmbedder creates a client for baseURL. A nil httpClient uses http.DefaultClient.
func NewOllamaEmbedder(baseURL, model string, dimensions int, httpClient *http.Client) (*OllamaEmbedder, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ollama url %q: %v", models.ErrValidation, baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaEmbedder{
		client:     api.NewClient(u, httpClient),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed returns the model's embedding for text, L2-normalized.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  e.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ollama embeddings: %v", models.ErrProvider, err)
	}
	if len(resp.Embedding) != e.dimensions {
		return nil, fmt.Errorf("%w: ollama returned %d values, want %d", ErrDimensionMismatch, len(resp.Embedding), e.dimensions)
	}
	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the configured dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client is shared.
func (e *OllamaEmbedder) Close() error {
	return nil
}
