package embedding

import (
	"context"
	"unicode/utf16"

	"github.com/hyperjump/kotae/internal/textnorm"
	"github.com/hyperjump/kotae/pkg/utils"
)

// HashEmbedder is the deterministic bag-of-words fallback. Each normalized
// word increments the bucket Hash32(word) mod D; the counts are L2-normalized.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hash embedder of the given dimension (256 when <= 0).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the normalized bucket counts of text. Text without words yields a zero vector.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)
	for _, word := range textnorm.Tokenize(text) {
		vec[Bucket(word, e.dimensions)]++
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}

// Hash32 is the 31-multiplier rolling hash over UTF-16 code units with
// 32-bit wrap-around, h = h*31 + unit.
func Hash32(s string) int32 {
	var h int32
	for _, unit := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(unit)
	}
	return h
}

// Bucket maps a word to an index in [0, dimensions).
func Bucket(word string, dimensions int) int {
	h := int64(Hash32(word))
	if h < 0 {
		h = -h
	}
	return int(h % int64(dimensions))
}
