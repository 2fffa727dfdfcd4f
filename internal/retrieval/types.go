package retrieval

import (
	"time"

	"github.com/hyperjump/kotae/internal/intent"
	"github.com/hyperjump/kotae/internal/models"
)

// ScoredDocument is a candidate with its score breakdown. It lives for one request.
type ScoredDocument struct {
	Document       *models.KnowledgeDocument `json:"document"`
	RelevanceScore float64                   `json:"relevance_score"`
	EmbeddingScore float64                   `json:"embedding_score"`
	KeywordScore   float64                   `json:"keyword_score"`
	CategoryBoost  float64                   `json:"category_boost"`
	PriorityBoost  float64                   `json:"priority_boost"`
	// ImportantMatch reports whether the document passed the important-keyword check.
	ImportantMatch bool `json:"important_match"`
}

// Result is the retriever's output, best document first.
type Result struct {
	Documents   []ScoredDocument   `json:"documents"`
	Scores      map[string]float64 `json:"scores"`
	BestMatchID string             `json:"best_match_id,omitempty"`
	Intent      intent.Intent      `json:"intent"`
	// Confidence is the best document's relevance, or 0.
	Confidence float64 `json:"confidence"`
}

// IDs returns the document ids in rank order.
func (r *Result) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, len(r.Documents))
	for i, d := range r.Documents {
		ids[i] = d.Document.ID
	}
	return ids
}

// DocumentHit is one returned document in a RetrievalEvent.
type DocumentHit struct {
	ID    string
	Score float64
}

// RetrievalEvent announces the documents an answer was built from.
type RetrievalEvent struct {
	TenantID string
	Hits     []DocumentHit
	At       time.Time
}

// Publisher receives retrieval events. Publish must not block; it reports
// whether the event was accepted.
type Publisher interface {
	Publish(ev RetrievalEvent) bool
}
