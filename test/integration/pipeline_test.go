// Package integration runs the chat pipeline against real storage and indexes.
package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kotae/internal/analytics"
	"github.com/hyperjump/kotae/internal/chatbot"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/feedback"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/intent"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/rules"
	"github.com/hyperjump/kotae/internal/seed"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/synthesis"
	"github.com/hyperjump/kotae/internal/vector"
)

const fixture = `
tenant_id: school-a
rules:
  - id: wifi
    keywords: ["mật khẩu wifi"]
    response_template: Mật khẩu wifi được gửi qua email trường vào đầu mỗi tháng.
    priority: 8
documents:
  - id: fee
    title: Học phí
    category: faq
    content: Sinh viên đóng học phí mỗi học kỳ bằng chuyển khoản ngân hàng trước ngày 15 của tháng đầu tiên.
  - id: library
    title: Thư viện trung tâm
    category: guide
    content: Thư viện trung tâm mở cửa từ 7 giờ sáng đến 21 giờ tối, kể cả thứ bảy.
`

func TestIntegration_SeedChatFeedbackAnalytics(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			DatabasePath:     filepath.Join(dir, "kotae.db"),
			KeywordIndexPath: filepath.Join(dir, "bleve"),
		},
	}
	config.ApplyDefaults(cfg)
	ctx := context.Background()

	store, err := storage.Open(cfg.Storage)
	require.NoError(t, err)
	defer store.Close()
	kw, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	require.NoError(t, err)
	defer kw.Close()
	embedder := embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
	vectors, err := vector.NewMemoryIndex(embedder.Dimensions())
	require.NoError(t, err)
	idx := indexer.NewIndexer(store, embedder, kw, cfg.Search, indexer.WithVectorIndex(vectors))

	f, err := seed.Parse([]byte(fixture))
	require.NoError(t, err)
	rep, err := seed.Apply(ctx, f, store, idx)
	require.NoError(t, err)
	assert.Equal(t, seed.Report{Rules: 1, Documents: 2}, rep)

	consumer := analytics.NewConsumer(store, cfg.Analytics)
	consumer.Start(ctx)
	retriever := retrieval.NewRetriever(store, embedder, intent.NewClassifier(intent.DefaultDictionary()),
		retrieval.WithPublisher(consumer))
	orch := chatbot.NewOrchestrator(rules.NewMatcher(store), retriever,
		synthesis.NewSynthesizer(cfg.Chatbot.MaxResponseLength),
		chatbot.WithSettings(chatbot.SettingsFromConfig(cfg.Chatbot)),
		chatbot.WithMessageLog(store))

	user := models.UserContext{ID: "sv-001", TenantID: "school-a", Roles: []string{"student"}}
	ruleRes := orch.Handle(ctx, "mật khẩu wifi", user)
	assert.Equal(t, models.SourceRule, ruleRes.Source)
	assert.Equal(t, "wifi", ruleRes.MatchedRuleID)

	ragRes := orch.Handle(ctx, "đóng học phí bằng chuyển khoản ngân hàng trước ngày nào", user)
	require.Equal(t, models.SourceRAG, ragRes.Source)
	assert.Contains(t, ragRes.RetrievedDocumentIDs, "fee")

	other := orch.Handle(ctx, "mật khẩu wifi", models.UserContext{ID: "x", TenantID: "school-b"})
	assert.NotEqual(t, models.SourceRule, other.Source)

	orch.Close()
	consumer.Close()

	fee, err := store.GetDocument(ctx, "fee")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, fee.RetrievalCount, int64(1))
	assert.NotNil(t, fee.LastRetrievedAt)

	fb := feedback.NewService(store, nil)
	_, err = fb.Submit(ctx, user, feedback.Submission{MessageID: ragRes.MessageID, Rating: 5})
	require.NoError(t, err)
	_, err = fb.Submit(ctx, models.UserContext{ID: "x", TenantID: "school-b"}, feedback.Submission{MessageID: ragRes.MessageID, Rating: 1})
	assert.ErrorIs(t, err, models.ErrNotFound)

	report, err := analytics.Summarize(ctx, store, "school-a", consumer, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, report.Documents)
	assert.EqualValues(t, 1, report.Rules)
	assert.EqualValues(t, 2, report.Messages.TotalMessages)
	assert.EqualValues(t, 1, report.Messages.FeedbackCount)
	assert.EqualValues(t, 5, report.Messages.AvgFeedbackRating)
	assert.Positive(t, report.Counters.Applied)
}
