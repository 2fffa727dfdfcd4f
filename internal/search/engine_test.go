package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

const dims = 128

func testConfig() config.SearchConfig {
	return config.SearchConfig{
		DefaultLimit:      10,
		MaxLimit:          3,
		KeywordWeight:     0.3,
		SemanticWeight:    0.7,
		TopKCandidates:    50,
		KeywordTitleBoost: 2,
		ChunkSize:         50,
		ChunkOverlap:      10,
	}
}

func newTestEngine(t *testing.T, docs ...indexer.Input) *Engine {
	t.Helper()
	ctx := context.Background()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "kotae.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	kw, err := keyword.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = kw.Close() })
	vecs, err := vector.NewMemoryIndex(dims)
	require.NoError(t, err)
	emb := embedding.NewHashEmbedder(dims)

	idx := indexer.NewIndexer(store, emb, kw, testConfig(), indexer.WithVectorIndex(vecs))
	for _, d := range docs {
		_, err := idx.IndexDocument(ctx, d)
		require.NoError(t, err)
	}
	return NewEngine(store, kw, emb, testConfig(),
		WithVectorIndex(vecs),
		WithSuggester(keyword.NewSuggester(kw)))
}

var inactive = false

func corpus() []indexer.Input {
	return []indexer.Input{
		{ID: "leave", Title: "Annual leave policy", Content: "Employees receive twelve days of annual leave each year.", Category: "policy"},
		{ID: "parking", Title: "Parking", Content: "Visitor parking is on level two.", Category: "guide"},
		{ID: "payroll", Title: "Payroll schedule", Content: "Salaries are paid on the last working day.", Category: "faq", AllowedRoles: []string{"finance"}},
		{ID: "old-leave", Title: "Leave policy 2019", Content: "Employees receive ten days of annual leave.", Category: "policy", IsActive: &inactive},
		{ID: "other-tenant", TenantID: "globex", Title: "Annual leave", Content: "Globex staff get annual leave too."},
	}
}

func TestEngine_Search(t *testing.T) {
	e := newTestEngine(t, corpus()...)
	user := models.UserContext{ID: "u1", TenantID: models.DefaultTenant}

	resp, err := e.Search(context.Background(), user, Request{Query: "annual leave"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)

	top := resp.Results[0]
	assert.Equal(t, "leave", top.Document.ID)
	assert.Equal(t, 1, top.Rank)
	assert.Greater(t, top.KeywordScore, 0.0)
	assert.Greater(t, top.SemanticScore, 0.0)
	assert.Contains(t, top.Snippet, "annual leave")
	for _, r := range resp.Results {
		assert.NotEqual(t, "old-leave", r.Document.ID, "inactive documents are hidden")
		assert.NotEqual(t, "other-tenant", r.Document.ID, "other tenants are hidden")
	}
	assert.Empty(t, resp.Suggestion)
}

func TestEngine_RoleFiltering(t *testing.T) {
	e := newTestEngine(t, corpus()...)
	req := Request{Query: "salaries paid", KeywordWeight: 1}

	resp, err := e.Search(context.Background(), models.UserContext{ID: "u1"}, req)
	require.NoError(t, err)
	assert.Zero(t, resp.Total)

	resp, err = e.Search(context.Background(), models.UserContext{ID: "u2", Roles: []string{"finance"}}, req)
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "payroll", resp.Results[0].Document.ID)
}

func TestEngine_CategoryFilter(t *testing.T) {
	e := newTestEngine(t, corpus()...)
	resp, err := e.Search(context.Background(), models.UserContext{}, Request{Query: "parking level", Category: "policy"})
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.Equal(t, models.CategoryPolicy, r.Document.Category)
	}
}

func TestEngine_Paging(t *testing.T) {
	var docs []indexer.Input
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		docs = append(docs, indexer.Input{ID: id, Title: "Canteen menu " + id, Content: "The canteen menu changes weekly."})
	}
	e := newTestEngine(t, docs...)
	user := models.UserContext{}

	page1, err := e.Search(context.Background(), user, Request{Query: "canteen menu", Limit: 2, KeywordWeight: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, page1.Total)
	require.Len(t, page1.Results, 2)

	page2, err := e.Search(context.Background(), user, Request{Query: "canteen menu", Limit: 2, Offset: 2, KeywordWeight: 1})
	require.NoError(t, err)
	require.Len(t, page2.Results, 2)
	assert.Equal(t, 3, page2.Results[0].Rank)
	assert.NotEqual(t, page1.Results[0].Document.ID, page2.Results[0].Document.ID)

	capped, err := e.Search(context.Background(), user, Request{Query: "canteen menu", Limit: 50, KeywordWeight: 1})
	require.NoError(t, err)
	assert.Len(t, capped.Results, 3, "limit is capped at max_limit")

	past, err := e.Search(context.Background(), user, Request{Query: "canteen menu", Offset: 99, KeywordWeight: 1})
	require.NoError(t, err)
	assert.Empty(t, past.Results)
	assert.Equal(t, 5, past.Total)
}

func TestEngine_MinScore(t *testing.T) {
	e := newTestEngine(t, corpus()...)
	resp, err := e.Search(context.Background(), models.UserContext{}, Request{Query: "annual leave", MinScore: 1})
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.GreaterOrEqual(t, r.Score, 1.0)
	}
}

func TestEngine_Suggestion(t *testing.T) {
	e := newTestEngine(t, corpus()...)
	resp, err := e.Search(context.Background(), models.UserContext{}, Request{Query: "parkign", KeywordWeight: 1})
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
	assert.Equal(t, "parking", resp.Suggestion)
}

func TestEngine_Validation(t *testing.T) {
	e := newTestEngine(t)
	tests := []struct {
		name string
		req  Request
	}{
		{"empty query", Request{Query: "   "}},
		{"negative offset", Request{Query: "x", Offset: -1}},
		{"negative limit", Request{Query: "x", Limit: -1}},
		{"negative weight", Request{Query: "x", KeywordWeight: -1}},
		{"min score above one", Request{Query: "x", MinScore: 2}},
		{"unknown category", Request{Query: "x", Category: "memes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Search(context.Background(), models.UserContext{}, tt.req)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

type brokenDocs struct{}

func (brokenDocs) FindDocuments(context.Context, models.DocumentFilter) ([]*models.KnowledgeDocument, error) {
	return nil, errors.New("db down")
}

func TestEngine_StoreError(t *testing.T) {
	kw, err := keyword.NewMemoryIndex()
	require.NoError(t, err)
	defer kw.Close()
	e := NewEngine(brokenDocs{}, kw, nil, testConfig())
	_, err = e.Search(context.Background(), models.UserContext{}, Request{Query: "x"})
	assert.Error(t, err)
}

func TestEngine_KeywordOnlyWithoutVectors(t *testing.T) {
	e := newTestEngine(t, corpus()...)
	e.vectors = nil
	resp, err := e.Search(context.Background(), models.UserContext{}, Request{Query: "visitor parking"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "parking", resp.Results[0].Document.ID)
	assert.Zero(t, resp.Results[0].SemanticScore)
}

func TestEngine_Stats(t *testing.T) {
	e := newTestEngine(t, corpus()...)
	stats, err := e.Stats()
	require.NoError(t, err)
	// The inactive document is in neither index.
	assert.EqualValues(t, 4, stats.KeywordDocuments)
	assert.Equal(t, 4, stats.VectorDocuments)
	assert.NoError(t, e.RefreshSuggestions())
}
