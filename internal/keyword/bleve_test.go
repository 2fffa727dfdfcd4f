package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func seedIndex(t *testing.T, idx *BleveIndex) {
	t.Helper()
	docs := []*models.KnowledgeDocument{
		{ID: "reg", Title: "Quy chế đánh giá rèn luyện", Content: "Mục đích của quy định là đánh giá sinh viên tham gia.",
			Category: models.CategoryRegulation, IsActive: true},
		{ID: "act", Title: "Hướng dẫn đăng ký hoạt động", Content: "Sinh viên tham gia hoạt động bằng nút đăng ký.",
			Category: models.CategoryActivity, Tags: []string{"registration"}, IsActive: true},
		{ID: "other-tenant", TenantID: "t2", Title: "Quy chế", Content: "quy định khác", IsActive: true},
		{ID: "inactive", Title: "Quy chế cũ", Content: "quy định cũ", IsActive: false},
	}
	if err := idx.IndexDocuments(context.Background(), docs); err != nil {
		t.Fatalf("IndexDocuments: %v", err)
	}
}

func TestBleveIndex_SearchIsTenantScoped(t *testing.T) {
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer func() { _ = idx.Close() }()
	seedIndex(t, idx)

	hits, err := idx.Search(context.Background(), "", "quy định", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "reg" {
		t.Errorf("hits = %+v, want only reg", hits)
	}

	hits, err = idx.Search(context.Background(), "t2", "quy định", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "other-tenant" {
		t.Errorf("tenant t2 hits = %+v", hits)
	}

	n, err := idx.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("DocCount = %d, want 3 (inactive skipped)", n)
	}
}

func TestBleveIndex_DiacriticInsensitive(t *testing.T) {
	idx, err := NewMemoryIndex()
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	seedIndex(t, idx)

	hits, err := idx.Search(context.Background(), models.DefaultTenant, "dang ky hoat dong", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 || hits[0].ID != "act" {
		t.Errorf("hits = %+v, want act first", hits)
	}

	// tags are searchable
	hits, _ = idx.Search(context.Background(), models.DefaultTenant, "registration", 10, nil)
	if len(hits) != 1 || hits[0].ID != "act" {
		t.Errorf("tag hits = %+v", hits)
	}
}

func TestBleveIndex_CategoryAndFuzzy(t *testing.T) {
	idx, err := NewMemoryIndex()
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	seedIndex(t, idx)
	ctx := context.Background()

	hits, err := idx.Search(ctx, "", "tham gia", 10, &SearchOptions{Category: models.CategoryRegulation})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "reg" {
		t.Errorf("category hits = %+v", hits)
	}

	hits, err = idx.Search(ctx, "", "luyen", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("exact hits = %+v", hits)
	}
	hits, err = idx.Search(ctx, "", "luyenn", 10, &SearchOptions{Fuzzy: true, Fuzziness: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "reg" {
		t.Errorf("fuzzy hits = %+v", hits)
	}
}

func TestBleveIndex_EmptyQueryAndDelete(t *testing.T) {
	idx, err := NewMemoryIndex()
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	seedIndex(t, idx)
	ctx := context.Background()

	hits, err := idx.Search(ctx, "", "  ?? ", 10, nil)
	if err != nil || hits != nil {
		t.Errorf("empty query: %v, %v", hits, err)
	}

	if err := idx.Delete(ctx, "reg"); err != nil {
		t.Fatal(err)
	}
	hits, _ = idx.Search(ctx, "", "quy định", 10, nil)
	if len(hits) != 0 {
		t.Errorf("hits after delete = %+v", hits)
	}
}

func TestBleveIndex_ReopenExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bleve")
	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	seedIndex(t, idx)
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewBleveIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	n, _ := reopened.DocCount()
	if n != 3 {
		t.Errorf("DocCount after reopen = %d, want 3", n)
	}
}
