package retrieval

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rules"
	"github.com/hyperjump/kotae/internal/textnorm"
	"github.com/hyperjump/kotae/internal/vector"
)

// Similar is a document related to another one.
type Similar struct {
	Document   *models.KnowledgeDocument `json:"document"`
	Similarity float64                   `json:"similarity"`
}

// SimilarDocuments returns the documents visible to user whose content
// resembles the document id, best first. Similarity blends the Dice
// coefficient of the normalized content (60%) with embedding cosine (40%).
func (r *Retriever) SimilarDocuments(ctx context.Context, id string, user models.UserContext, limit int) ([]Similar, error) {
	src, err := r.docs.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}
	if !user.CanAccess(src.TenantID, src.AllowedRoles) {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	if limit <= 0 {
		limit = r.cfg.TopK
	}

	docs, err := r.docs.FindDocuments(ctx, models.DocumentFilter{
		TenantID:   user.Tenant(),
		ActiveOnly: true,
		Roles:      user.AccessRoles(),
	})
	if err != nil {
		return nil, err
	}

	others := make([]*models.KnowledgeDocument, 0, len(docs))
	for _, doc := range docs {
		if doc.ID != src.ID && doc.IsActive && user.CanAccess(doc.TenantID, doc.AllowedRoles) {
			others = append(others, doc)
		}
	}
	if len(others) == 0 {
		return nil, nil
	}

	srcVec, vecs := r.vectors(ctx, DocumentText(src), others)
	srcText := textnorm.Normalize(src.Content)
	out := make([]Similar, 0, len(others))
	for i, doc := range others {
		sim := 0.6*rules.DiceCoefficient(srcText, textnorm.Normalize(doc.Content)) +
			0.4*max(vector.CosineSimilarity(srcVec, vecs[i]), 0)
		if sim >= r.cfg.SimilarityThreshold {
			out = append(out, Similar{Document: doc, Similarity: sim})
		}
	}
	sortSimilar(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortSimilar(s []Similar) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && lessSimilar(s[j], s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func lessSimilar(a, b Similar) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	return a.Document.ID < b.Document.ID
}
