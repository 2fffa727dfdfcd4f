package search

import (
	"sort"

	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

// FusedResult holds a document ID with its weighted and per-source scores.
type FusedResult struct {
	DocumentID    string
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores scales keyword scores into [0,1] by the best hit.
// BM25 scores have no fixed range, so only their ratios are meaningful.
func NormalizeKeywordScores(hits []keyword.Hit) map[string]float64 {
	normalized := make(map[string]float64, len(hits))
	var best float64
	for _, h := range hits {
		best = max(best, h.Score)
	}
	for _, h := range hits {
		if best > 0 {
			normalized[h.ID] = h.Score / best
		} else {
			normalized[h.ID] = 0
		}
	}
	return normalized
}

// NormalizeSemanticScores clamps cosine scores into [0,1]; opposed vectors
// count as unrelated rather than negative evidence.
func NormalizeSemanticScores(results []vector.Result) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	for _, r := range results {
		normalized[r.ID] = utils.Clamp01(r.Score)
	}
	return normalized
}

// Fuse merges keyword and semantic scores with the given weights. Results are
// ordered by fused score, then by ID so equal scores page deterministically.
func Fuse(keywordScores, semanticScores map[string]float64, keywordWeight, semanticWeight float64) []*FusedResult {
	byID := make(map[string]*FusedResult, len(keywordScores)+len(semanticScores))
	get := func(id string) *FusedResult {
		r, ok := byID[id]
		if !ok {
			r = &FusedResult{DocumentID: id}
			byID[id] = r
		}
		return r
	}
	for id, s := range keywordScores {
		get(id).KeywordScore = s
	}
	for id, s := range semanticScores {
		get(id).SemanticScore = s
	}

	total := keywordWeight + semanticWeight
	results := make([]*FusedResult, 0, len(byID))
	for _, r := range byID {
		if total > 0 {
			r.Score = (keywordWeight*r.KeywordScore + semanticWeight*r.SemanticScore) / total
		}
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocumentID < results[j].DocumentID
	})
	return results
}
