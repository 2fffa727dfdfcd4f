// Package embedding turns text into fixed-length, L2-normalized vectors.
//
// The hash embedder is always available. External providers (ONNX, Ollama)
// are wrapped in a Fallback so callers never see a provider failure.
package embedding

import (
	"context"
	"errors"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// ErrDimensionMismatch is returned when a provider yields a vector of the wrong length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// embedEach implements EmbedBatch on top of Embed.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
