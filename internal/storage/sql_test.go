package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(config.StorageConfig{Driver: "mysql"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestRebind(t *testing.T) {
	s := &SQLStore{driver: "postgres"}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)",
		s.rebind("SELECT * FROM t WHERE a = ? AND b IN (?, ?)"))

	s.driver = "sqlite3"
	assert.Equal(t, "a = ?", s.rebind("a = ?"))
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestSQLStore_Documents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := &models.KnowledgeDocument{
		ID:           "doc1",
		Title:        "Quy chế đào tạo",
		Content:      "Nội dung quy chế",
		Category:     models.CategoryRegulation,
		Embedding:    []float32{0.6, 0.8},
		Tags:         []string{"quy che"},
		Priority:     12,
		AllowedRoles: nil,
		IsActive:     true,
	}
	require.NoError(t, store.UpsertDocument(ctx, doc))
	assert.False(t, doc.CreatedAt.IsZero())
	assert.Equal(t, models.DefaultTenant, doc.TenantID)
	assert.Equal(t, 10, doc.Priority, "priority is clamped")

	got, err := store.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "Quy chế đào tạo", got.Title)
	assert.Equal(t, models.CategoryRegulation, got.Category)
	assert.Equal(t, []float32{0.6, 0.8}, got.Embedding)
	assert.Equal(t, []string{"quy che"}, got.Tags)
	assert.True(t, got.IsActive)
	assert.Nil(t, got.LastRetrievedAt)

	doc.Title = "Updated"
	require.NoError(t, store.UpsertDocument(ctx, doc))
	got, err = store.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Title)

	n, err := store.CountDocuments(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, store.DeleteDocument(ctx, "doc1"))
	_, err = store.GetDocument(ctx, "doc1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSQLStore_FindDocumentsRBAC(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed := []*models.KnowledgeDocument{
		{ID: "open", TenantID: "t1", Title: "a", Content: "a", IsActive: true},
		{ID: "staff", TenantID: "t1", Title: "b", Content: "b", AllowedRoles: []string{"staff"}, IsActive: true},
		{ID: "inactive", TenantID: "t1", Title: "c", Content: "c", IsActive: false},
		{ID: "other", TenantID: "t2", Title: "d", Content: "d", IsActive: true},
	}
	for _, d := range seed {
		require.NoError(t, store.UpsertDocument(ctx, d))
	}

	ids := func(docs []*models.KnowledgeDocument) []string {
		var out []string
		for _, d := range docs {
			out = append(out, d.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter models.DocumentFilter
		want   []string
	}{
		{"student", models.DocumentFilter{TenantID: "t1", ActiveOnly: true, Roles: []string{"student"}}, []string{"open"}},
		{"staff", models.DocumentFilter{TenantID: "t1", ActiveOnly: true, Roles: []string{"student", "staff"}}, []string{"open", "staff"}},
		{"no roles", models.DocumentFilter{TenantID: "t1", ActiveOnly: true, Roles: []string{}}, []string{"open"}},
		{"unfiltered roles", models.DocumentFilter{TenantID: "t1"}, []string{"inactive", "open", "staff"}},
		{"by ids", models.DocumentFilter{IDs: []string{"other", "open"}}, []string{"open", "other"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := store.FindDocuments(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(docs))
		})
	}
}

func TestSQLStore_UpdateCounters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.UpsertDocument(ctx, &models.KnowledgeDocument{ID: "d", Title: "t", Content: "c", IsActive: true}))

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.UpdateCounters(ctx, "d", models.CounterDelta{Retrievals: 2, ConfidenceSum: 1.0, LastRetrievedAt: now}))
	require.NoError(t, store.UpdateCounters(ctx, "d", models.CounterDelta{Retrievals: 2, ConfidenceSum: 2.0, LastRetrievedAt: now}))
	require.NoError(t, store.UpdateCounters(ctx, "d", models.CounterDelta{}))

	got, err := store.GetDocument(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.RetrievalCount)
	assert.InDelta(t, 0.75, got.AvgConfidenceScore, 1e-9)
	require.NotNil(t, got.LastRetrievedAt)
	assert.True(t, got.LastRetrievedAt.Equal(now))

	err = store.UpdateCounters(ctx, "missing", models.CounterDelta{Retrievals: 1})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSQLStore_Rules(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRule(ctx, &models.Rule{
		ID: "r1", Pattern: "đăng ký", Keywords: []string{"đăng ký"}, ResponseTemplate: "Vào mục Hoạt động.",
		Priority: 9, IsActive: true,
	}))
	require.NoError(t, store.UpsertRule(ctx, &models.Rule{
		ID: "r2", Pattern: "học phí", ResponseTemplate: "Xem thông báo.", Priority: 3, IsActive: true,
		AllowedRoles: []string{"admin"},
	}))
	require.NoError(t, store.UpsertRule(ctx, &models.Rule{ID: "r3", Pattern: "x", ResponseTemplate: "y", IsActive: false}))

	rules, err := store.FindRules(ctx, models.RuleFilter{TenantID: models.DefaultTenant, ActiveOnly: true, Roles: []string{"student"}})
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "r1", rules[0].ID)
	assert.Equal(t, []string{"đăng ký"}, rules[0].Keywords)

	rules, err = store.FindRules(ctx, models.RuleFilter{TenantID: models.DefaultTenant, ActiveOnly: true, Roles: []string{"admin"}})
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "r1", rules[0].ID, "ordered by priority")

	n, err := store.CountRules(ctx, models.DefaultTenant)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, store.DeleteRule(ctx, "r3"))
	n, _ = store.CountRules(ctx, "")
	assert.Equal(t, int64(2), n)

	assert.ErrorIs(t, store.UpsertRule(ctx, &models.Rule{}), models.ErrValidation)
}

func TestSQLStore_MessagesAndFeedback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	msgs := []*models.MessageRecord{
		{ID: "m1", UserID: "u1", TenantID: "t1", Query: "q1", Answer: "a1", Source: models.SourceRule,
			Confidence: 0.8, RuleScore: 0.8, MatchedRuleID: "r1", ResponseTime: 100 * time.Millisecond},
		{ID: "m2", UserID: "u1", TenantID: "t1", Query: "q2", Answer: "a2", Source: models.SourceRAG,
			Confidence: 0.5, RuleScore: 0.2, RAGScore: 0.5, RetrievedDocumentIDs: []string{"d1", "d2"},
			ResponseTime: 300 * time.Millisecond, UsedGenerativeModel: true, GenerativeModel: "llama3.2",
			DetectedLanguage: "vi", LanguageConfidence: 0.9},
		{ID: "m3", TenantID: "t1", Query: "", Answer: "empty", Source: models.SourceFallback,
			FallbackReason: models.ReasonEmptyQuery},
	}
	for _, m := range msgs {
		require.NoError(t, store.AppendMessage(ctx, m))
	}

	got, err := store.GetMessage(ctx, "m2")
	require.NoError(t, err)
	assert.Equal(t, models.SourceRAG, got.Source)
	assert.Equal(t, []string{"d1", "d2"}, got.RetrievedDocumentIDs)
	assert.Equal(t, 300*time.Millisecond, got.ResponseTime)
	assert.True(t, got.UsedGenerativeModel)
	assert.Equal(t, "vi", got.DetectedLanguage)

	got, err = store.GetMessage(ctx, "m3")
	require.NoError(t, err)
	assert.Equal(t, models.ReasonEmptyQuery, got.FallbackReason)

	_, err = store.GetMessage(ctx, "nope")
	assert.True(t, errors.Is(err, models.ErrNotFound))

	require.NoError(t, store.AddFeedback(ctx, &models.Feedback{ID: "f1", MessageID: "m1", TenantID: "t1", Rating: 5, IsHelpful: true}))
	require.NoError(t, store.AddFeedback(ctx, &models.Feedback{ID: "f2", MessageID: "m1", TenantID: "t1", Rating: 2, Comment: "meh"}))

	fbs, err := store.ListFeedback(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, fbs, 2)

	stats, err := store.MessageStats(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalMessages)
	assert.Equal(t, int64(1), stats.BySource[models.SourceRule])
	assert.Equal(t, int64(1), stats.BySource[models.SourceRAG])
	assert.Equal(t, int64(1), stats.BySource[models.SourceFallback])
	assert.InDelta(t, 133.33, stats.AvgResponseTimeMs, 0.01)
	assert.Equal(t, int64(1), stats.GenerativeAnswers)
	assert.Equal(t, int64(2), stats.FeedbackCount)
	assert.InDelta(t, 3.5, stats.AvgFeedbackRating, 1e-9)
	assert.InDelta(t, 50, stats.HelpfulFeedbackPct, 1e-9)

	empty, err := store.MessageStats(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, empty.TotalMessages)
	assert.Empty(t, empty.BySource)
}
