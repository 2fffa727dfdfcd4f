// Package keyword provides full-text search over knowledge documents.
package keyword

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// SearchOptions tunes a keyword search. Nil means defaults.
type SearchOptions struct {
	// TitleBoost multiplies title matches relative to body matches. Values <= 1 mean no boost.
	TitleBoost float64
	// Category restricts hits to one category when set.
	Category models.Category
	// Fuzzy matches terms within Fuzziness edits (1 or 2, default 1).
	Fuzzy     bool
	Fuzziness int
}

// Hit is one keyword search result.
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Index is the keyword search contract. Results are always tenant scoped;
// role filtering is left to the document store.
type Index interface {
	IndexDocuments(ctx context.Context, docs []*models.KnowledgeDocument) error
	Search(ctx context.Context, tenantID, query string, limit int, opts *SearchOptions) ([]Hit, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// TermDictionary exposes indexed terms with their document frequency.
type TermDictionary interface {
	Terms() (map[string]int, error)
}
