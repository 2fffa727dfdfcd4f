package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/kotae/internal/chatbot"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/intent"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/rules"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/textnorm"
	"github.com/hyperjump/kotae/internal/vector"
)

func BenchmarkFuse(b *testing.B) {
	kw := make(map[string]float64)
	sem := make(map[string]float64)
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("doc-%03d", i)
		kw[id] = float64(i) / 100
		sem[id] = float64(100-i) / 100
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = search.Fuse(kw, sem, 0.4, 0.6)
	}
}

func BenchmarkMemoryIndexSearch(b *testing.B) {
	const dims, n = 256, 1000
	idx, _ := vector.NewMemoryIndex(dims)
	ctx := context.Background()
	e := embedding.NewHashEmbedder(dims)
	ids := make([]string, n)
	vecs := make([][]float32, n)
	for i := range n {
		ids[i] = fmt.Sprintf("doc-%04d", i)
		vecs[i], _ = e.Embed(ctx, fmt.Sprintf("tài liệu số %d về học phí và học bổng kỳ %d", i, i%8))
	}
	_ = idx.Upsert(ctx, ids, vecs)
	query, _ := e.Embed(ctx, "học bổng kỳ 3")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, query, 10, nil)
	}
}

func BenchmarkHashEmbedder_Embed(b *testing.B) {
	e := embedding.NewHashEmbedder(256)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "thủ tục xin bảo lưu kết quả học tập như thế nào")
	}
}

func BenchmarkNormalize(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = textnorm.Normalize("Quy định về Điểm Rèn Luyện (ĐRL) năm học 2024-2025!")
	}
}

type docs []*models.KnowledgeDocument

func (d docs) FindDocuments(context.Context, models.DocumentFilter) ([]*models.KnowledgeDocument, error) {
	return d, nil
}

func (d docs) GetDocument(_ context.Context, id string) (*models.KnowledgeDocument, error) {
	for _, doc := range d {
		if doc.ID == id {
			return doc, nil
		}
	}
	return nil, models.ErrNotFound
}

type ruleList []*models.Rule

func (r ruleList) FindRules(context.Context, models.RuleFilter) ([]*models.Rule, error) {
	return r, nil
}

func BenchmarkOrchestratorHandle(b *testing.B) {
	ctx := context.Background()
	e := embedding.NewHashEmbedder(256)
	corpus := make(docs, 200)
	for i := range corpus {
		content := fmt.Sprintf("Hướng dẫn số %d: sinh viên nộp hồ sơ tại phòng công tác sinh viên trong tuần %d.", i, i%15)
		vec, _ := e.Embed(ctx, content)
		corpus[i] = &models.KnowledgeDocument{
			ID: fmt.Sprintf("doc-%03d", i), TenantID: models.DefaultTenant, Title: fmt.Sprintf("Hướng dẫn %d", i),
			Content: content, Category: models.CategoryGuide, Priority: 5, IsActive: true, Embedding: vec,
		}
	}
	rl := ruleList{{ID: "wifi", TenantID: models.DefaultTenant, Keywords: []string{"mật khẩu wifi"},
		ResponseTemplate: "Xem email trường.", Priority: 8, IsActive: true}}
	retriever := retrieval.NewRetriever(corpus, e, intent.NewClassifier(intent.DefaultDictionary()))
	orch := chatbot.NewOrchestrator(rules.NewMatcher(rl), retriever, nil)
	defer orch.Close()
	user := models.UserContext{ID: "bench"}

	b.Run("rule", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = orch.Handle(ctx, "mật khẩu wifi", user)
		}
	})
	b.Run("rag", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = orch.Handle(ctx, "nộp hồ sơ tại phòng công tác sinh viên tuần 7", user)
		}
	})
}
