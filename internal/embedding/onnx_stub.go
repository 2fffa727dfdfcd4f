//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
)

// ONNXEmbedder is unavailable without cgo.
type ONNXEmbedder struct{}

// NewONNXEmbedder always fails when built without cgo. The factory then
// keeps the hash embedder as the only provider.
func NewONNXEmbedder(_ string, _, _ int) (*ONNXEmbedder, error) {
	return nil, fmt.Errorf("%w: onnx embedder requires CGO_ENABLED=1 and onnxruntime", models.ErrProvider)
}

func (e *ONNXEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, models.ErrProvider
}

func (e *ONNXEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, models.ErrProvider
}

func (e *ONNXEmbedder) Dimensions() int { return 0 }

func (e *ONNXEmbedder) Close() error { return nil }
