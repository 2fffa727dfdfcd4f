package vector

import "context"

// Index stores one vector per document ID and answers nearest-neighbour
// queries over them.
type Index interface {
	Upsert(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int, allow func(id string) bool) ([]Result, error)
	Remove(ctx context.Context, ids []string) error
	Size() int
	Dimensions() int
}

// Result is a single vector search hit. Score is the inner product, which is
// the cosine similarity for normalized vectors.
type Result struct {
	ID    string
	Score float64
}
