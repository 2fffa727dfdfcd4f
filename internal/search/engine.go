// Package search provides hybrid keyword and semantic search over the
// knowledge documents a user is allowed to see.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

const (
	maxQueryLength = 500
	snippetLength  = 240
	// semanticFloor drops vector neighbours that share nothing with the query;
	// a brute-force scan returns every visible document otherwise.
	semanticFloor = 0.2
)

// DocumentSource lists the documents visible to a user.
type DocumentSource interface {
	FindDocuments(ctx context.Context, filter models.DocumentFilter) ([]*models.KnowledgeDocument, error)
}

// Embedder embeds the search query.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Request is a document search.
type Request struct {
	Query    string `json:"query"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
	Category string `json:"category"`
	Fuzzy    bool   `json:"fuzzy"`
	// KeywordWeight and SemanticWeight both zero means the configured weights.
	KeywordWeight  float64 `json:"keyword_weight"`
	SemanticWeight float64 `json:"semantic_weight"`
	MinScore       float64 `json:"min_score"`
}

// Result is one ranked document.
type Result struct {
	Document      *models.KnowledgeDocument `json:"document"`
	Score         float64                   `json:"score"`
	KeywordScore  float64                   `json:"keyword_score"`
	SemanticScore float64                   `json:"semantic_score"`
	Rank          int                       `json:"rank"`
	Snippet       string                    `json:"snippet"`
}

// Response is a page of results.
type Response struct {
	Query   string    `json:"query"`
	Results []*Result `json:"results"`
	Total   int       `json:"total"`
	// Suggestion is a corrected query, offered only when nothing matched.
	Suggestion string `json:"suggestion,omitempty"`
	TookMS     int64  `json:"took_ms"`
}

// IndexStats describes the search indexes.
type IndexStats struct {
	KeywordDocuments uint64 `json:"keyword_documents"`
	VectorDocuments  int    `json:"vector_documents"`
}

// Engine runs hybrid search.
type Engine struct {
	docs      DocumentSource
	keyword   keyword.Index
	embedder  Embedder
	vectors   vector.Index
	suggester *keyword.Suggester
	config    config.SearchConfig
	logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithVectorIndex enables semantic search. Without it only keyword search runs.
func WithVectorIndex(v vector.Index) Option {
	return func(e *Engine) { e.vectors = v }
}

// WithSuggester offers spelling corrections for queries with no results.
func WithSuggester(s *keyword.Suggester) Option {
	return func(e *Engine) { e.suggester = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine.
func NewEngine(docs DocumentSource, kw keyword.Index, embedder Embedder, cfg config.SearchConfig, opts ...Option) *Engine {
	e := &Engine{docs: docs, keyword: kw, embedder: embedder, config: cfg}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e
}

// normalize validates req and fills defaults from the engine config.
func (e *Engine) normalize(req *Request) error {
	req.Query = strings.TrimSpace(req.Query)
	switch {
	case req.Query == "":
		return fmt.Errorf("%w: query is required", models.ErrValidation)
	case utf8.RuneCountInString(req.Query) > maxQueryLength:
		return fmt.Errorf("%w: query longer than %d characters", models.ErrValidation, maxQueryLength)
	case req.Offset < 0:
		return fmt.Errorf("%w: offset must not be negative", models.ErrValidation)
	case req.Limit < 0:
		return fmt.Errorf("%w: limit must not be negative", models.ErrValidation)
	case req.KeywordWeight < 0 || req.SemanticWeight < 0:
		return fmt.Errorf("%w: weights must not be negative", models.ErrValidation)
	case req.MinScore < 0 || req.MinScore > 1:
		return fmt.Errorf("%w: min_score must be in [0,1]", models.ErrValidation)
	case req.Category != "" && !models.Category(req.Category).Valid():
		return fmt.Errorf("%w: unknown category %q", models.ErrValidation, req.Category)
	}
	if req.Limit == 0 {
		req.Limit = e.config.DefaultLimit
	}
	req.Limit = min(req.Limit, e.config.MaxLimit)
	if req.KeywordWeight == 0 && req.SemanticWeight == 0 {
		req.KeywordWeight = e.config.KeywordWeight
		req.SemanticWeight = e.config.SemanticWeight
	}
	if e.vectors == nil || e.embedder == nil {
		req.SemanticWeight = 0
		if req.KeywordWeight == 0 {
			req.KeywordWeight = 1
		}
	}
	return nil
}

// Search runs keyword and semantic search concurrently over the documents
// user can access and fuses the two rankings.
func (e *Engine) Search(ctx context.Context, user models.UserContext, req Request) (*Response, error) {
	started := time.Now()
	if err := e.normalize(&req); err != nil {
		return nil, err
	}

	visible, err := e.visibleDocuments(ctx, user, models.Category(req.Category))
	if err != nil {
		return nil, err
	}

	var (
		keywordHits     []keyword.Hit
		semanticResults []vector.Result
		errChan         = make(chan error, 2)
		wg              sync.WaitGroup
	)
	if req.KeywordWeight > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := e.keyword.Search(ctx, user.Tenant(), req.Query, e.config.TopKCandidates, &keyword.SearchOptions{
				TitleBoost: e.config.KeywordTitleBoost,
				Category:   models.Category(req.Category),
				Fuzzy:      req.Fuzzy,
			})
			if err != nil {
				errChan <- fmt.Errorf("keyword search: %w", err)
				return
			}
			keywordHits = hits
		}()
	}
	if req.SemanticWeight > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vec, err := e.embedder.Embed(ctx, req.Query)
			if err != nil {
				errChan <- fmt.Errorf("embed query: %w", err)
				return
			}
			allow := func(id string) bool { _, ok := visible[id]; return ok }
			results, err := e.vectors.Search(ctx, vec, e.config.TopKCandidates, allow)
			if err != nil {
				errChan <- fmt.Errorf("vector search: %w", err)
				return
			}
			for _, r := range results {
				if r.Score >= semanticFloor {
					semanticResults = append(semanticResults, r)
				}
			}
		}()
	}
	wg.Wait()
	close(errChan)
	if err, failed := <-errChan; failed {
		return nil, err
	}

	// The keyword index is tenant scoped only; roles are enforced here.
	allowedHits := make([]keyword.Hit, 0, len(keywordHits))
	for _, h := range keywordHits {
		if _, ok := visible[h.ID]; ok {
			allowedHits = append(allowedHits, h)
		}
	}
	fused := Fuse(NormalizeKeywordScores(allowedHits), NormalizeSemanticScores(semanticResults), req.KeywordWeight, req.SemanticWeight)
	if req.MinScore > 0 {
		kept := fused[:0]
		for _, r := range fused {
			if r.Score >= req.MinScore {
				kept = append(kept, r)
			}
		}
		fused = kept
	}

	start := min(req.Offset, len(fused))
	end := min(start+req.Limit, len(fused))
	resp := &Response{
		Query:   req.Query,
		Results: make([]*Result, 0, end-start),
		Total:   len(fused),
	}
	for i, f := range fused[start:end] {
		doc := visible[f.DocumentID]
		resp.Results = append(resp.Results, &Result{
			Document:      doc,
			Score:         f.Score,
			KeywordScore:  f.KeywordScore,
			SemanticScore: f.SemanticScore,
			Rank:          start + i + 1,
			Snippet:       Snippet(doc.Content, req.Query, snippetLength),
		})
	}
	if resp.Total == 0 && e.suggester != nil {
		if corrected, changed := e.suggester.CorrectQuery(req.Query); changed {
			resp.Suggestion = corrected
		}
	}
	resp.TookMS = time.Since(started).Milliseconds()
	e.logger.Debug("document search",
		zap.String("tenant", user.Tenant()),
		zap.Int("keyword_hits", len(allowedHits)),
		zap.Int("semantic_hits", len(semanticResults)),
		zap.Int("total", resp.Total),
		zap.Int64("took_ms", resp.TookMS))
	return resp, nil
}

func (e *Engine) visibleDocuments(ctx context.Context, user models.UserContext, category models.Category) (map[string]*models.KnowledgeDocument, error) {
	docs, err := e.docs.FindDocuments(ctx, models.DocumentFilter{
		TenantID:   user.Tenant(),
		ActiveOnly: true,
		Roles:      user.AccessRoles(),
	})
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	visible := make(map[string]*models.KnowledgeDocument, len(docs))
	for _, d := range docs {
		if !user.CanAccess(d.TenantID, d.AllowedRoles) {
			continue
		}
		if category != "" && d.Category != category {
			continue
		}
		visible[d.ID] = d
	}
	return visible, nil
}

// RefreshSuggestions reloads the spelling vocabulary after documents change.
func (e *Engine) RefreshSuggestions() error {
	if e.suggester == nil {
		return nil
	}
	return e.suggester.Refresh()
}

// Stats reports index sizes.
func (e *Engine) Stats() (IndexStats, error) {
	n, err := e.keyword.DocCount()
	if err != nil {
		return IndexStats{}, fmt.Errorf("keyword doc count: %w", err)
	}
	stats := IndexStats{KeywordDocuments: n}
	if e.vectors != nil {
		stats.VectorDocuments = e.vectors.Size()
	}
	return stats, nil
}
