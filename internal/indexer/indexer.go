// Package indexer keeps the document store, the keyword index and the vector
// index in step when knowledge documents are added, changed or removed.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/fileid"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

// Store is the part of the document store the indexer writes to.
type Store interface {
	FindDocuments(ctx context.Context, filter models.DocumentFilter) ([]*models.KnowledgeDocument, error)
	GetDocument(ctx context.Context, id string) (*models.KnowledgeDocument, error)
	UpsertDocument(ctx context.Context, doc *models.KnowledgeDocument) error
	DeleteDocument(ctx context.Context, id string) error
}

// Embedder turns chunk text into vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Input is a knowledge document as submitted by an administrator or a seed
// file. Zero values are filled in by IndexDocument.
type Input struct {
	ID           string   `json:"id" yaml:"id"`
	TenantID     string   `json:"tenant_id" yaml:"tenant_id"`
	Title        string   `json:"title" yaml:"title"`
	Content      string   `json:"content" yaml:"content"`
	Category     string   `json:"category" yaml:"category"`
	Tags         []string `json:"tags" yaml:"tags"`
	Priority     int      `json:"priority" yaml:"priority"`
	AllowedRoles []string `json:"allowed_roles" yaml:"allowed_roles"`
	// IsActive defaults to true.
	IsActive *bool `json:"is_active" yaml:"is_active"`
}

// Indexer writes documents through to every index.
type Indexer struct {
	store     Store
	embedder  Embedder
	keyword   keyword.Index
	vectors   vector.Index
	chunker   *Chunker
	extractor *extract.Extractor
	logger    *zap.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// WithVectorIndex also maintains a vector index for semantic search.
func WithVectorIndex(v vector.Index) Option {
	return func(idx *Indexer) { idx.vectors = v }
}

// WithExtractor sets the extractor used by IngestFile.
func WithExtractor(e *extract.Extractor) Option {
	return func(idx *Indexer) { idx.extractor = e }
}

// NewIndexer creates an indexer. Chunking follows cfg.
func NewIndexer(store Store, embedder Embedder, kw keyword.Index, cfg config.SearchConfig, opts ...Option) *Indexer {
	idx := &Indexer{
		store:     store,
		embedder:  embedder,
		keyword:   kw,
		chunker:   NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		extractor: &extract.Extractor{MaxBytes: cfg.MaxFileBytes},
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.OrNop(idx.logger)
	return idx
}

// IndexDocument validates in, embeds it and writes it to the store and the
// indexes. An existing document with the same ID is replaced; its retrieval
// counters are kept by the store.
func (idx *Indexer) IndexDocument(ctx context.Context, in Input) (*models.KnowledgeDocument, error) {
	doc, err := in.document()
	if err != nil {
		return nil, err
	}
	vec, err := idx.embed(ctx, retrieval.DocumentText(doc))
	if err != nil {
		return nil, err
	}
	doc.Embedding = vec

	if err := idx.store.UpsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("store document %s: %w", doc.ID, err)
	}
	if err := idx.indexAll(ctx, []*models.KnowledgeDocument{doc}); err != nil {
		return nil, err
	}
	idx.logger.Debug("document indexed",
		zap.String("id", doc.ID),
		zap.String("tenant", doc.TenantID),
		zap.String("category", string(doc.Category)))
	return doc, nil
}

func (in Input) document() (*models.KnowledgeDocument, error) {
	title := strings.TrimSpace(in.Title)
	content := Preprocess(in.Content)
	if title == "" {
		return nil, fmt.Errorf("%w: document title is required", models.ErrValidation)
	}
	if content == "" {
		return nil, fmt.Errorf("%w: document content is required", models.ErrValidation)
	}
	category := models.ParseCategory(strings.ToLower(strings.TrimSpace(in.Category)))
	if in.Category != "" && string(category) != strings.ToLower(strings.TrimSpace(in.Category)) {
		return nil, fmt.Errorf("%w: unknown category %q", models.ErrValidation, in.Category)
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	tenant := strings.TrimSpace(in.TenantID)
	if tenant == "" {
		tenant = models.DefaultTenant
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return &models.KnowledgeDocument{
		ID:           id,
		TenantID:     tenant,
		Title:        title,
		Content:      content,
		Category:     category,
		Tags:         cleanTags(in.Tags),
		Priority:     models.ClampPriority(in.Priority),
		AllowedRoles: cleanTags(in.AllowedRoles),
		IsActive:     active,
	}, nil
}

// embed returns one normalized vector for text. Long text is embedded per
// chunk and the chunk vectors are averaged, so no part of a long document is
// cut off by the provider's input limit.
func (idx *Indexer) embed(ctx context.Context, text string) ([]float32, error) {
	chunks := idx.chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: nothing to embed", models.ErrValidation)
	}
	vecs, err := idx.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed document: %w", err)
	}
	if len(vecs) == 1 {
		return vecs[0], nil
	}
	avg := make([]float32, idx.embedder.Dimensions())
	for _, v := range vecs {
		for i := range avg {
			if i < len(v) {
				avg[i] += v[i]
			}
		}
	}
	utils.NormalizeL2(avg)
	return avg, nil
}

func (idx *Indexer) indexAll(ctx context.Context, docs []*models.KnowledgeDocument) error {
	if err := idx.keyword.IndexDocuments(ctx, docs); err != nil {
		return fmt.Errorf("keyword index: %w", err)
	}
	if idx.vectors == nil {
		return nil
	}
	// Inactive documents leave both indexes, matching the keyword index.
	var ids, stale []string
	var vecs [][]float32
	for _, d := range docs {
		if !d.IsActive || len(d.Embedding) != idx.vectors.Dimensions() {
			stale = append(stale, d.ID)
			continue
		}
		ids = append(ids, d.ID)
		vecs = append(vecs, d.Embedding)
	}
	if err := idx.vectors.Remove(ctx, stale); err != nil {
		return fmt.Errorf("vector index: %w", err)
	}
	if err := idx.vectors.Upsert(ctx, ids, vecs); err != nil {
		return fmt.Errorf("vector index: %w", err)
	}
	return nil
}

// DeleteDocument removes a document everywhere. The store is checked first
// so deleting an unknown ID reports ErrNotFound.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) error {
	if _, err := idx.store.GetDocument(ctx, id); err != nil {
		return err
	}
	if err := idx.keyword.Delete(ctx, id); err != nil {
		return fmt.Errorf("keyword index: %w", err)
	}
	if idx.vectors != nil {
		if err := idx.vectors.Remove(ctx, []string{id}); err != nil {
			return fmt.Errorf("vector index: %w", err)
		}
	}
	if err := idx.store.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	idx.logger.Debug("document deleted", zap.String("id", id))
	return nil
}

// Rebuild loads every stored document into the keyword and vector indexes.
// Documents whose stored embedding does not match the current embedder are
// re-embedded and written back. It returns the number of documents indexed.
func (idx *Indexer) Rebuild(ctx context.Context) (int, error) {
	docs, err := idx.store.FindDocuments(ctx, models.DocumentFilter{})
	if err != nil {
		return 0, fmt.Errorf("load documents: %w", err)
	}
	reembedded := 0
	for _, d := range docs {
		if len(d.Embedding) == idx.embedder.Dimensions() {
			continue
		}
		vec, err := idx.embed(ctx, retrieval.DocumentText(d))
		if err != nil {
			return 0, err
		}
		d.Embedding = vec
		if err := idx.store.UpsertDocument(ctx, d); err != nil {
			return 0, fmt.Errorf("store document %s: %w", d.ID, err)
		}
		reembedded++
	}
	if len(docs) > 0 {
		if err := idx.indexAll(ctx, docs); err != nil {
			return 0, err
		}
	}
	idx.logger.Info("indexes rebuilt", zap.Int("documents", len(docs)), zap.Int("reembedded", reembedded))
	return len(docs), nil
}

// IngestFile extracts the file at path and indexes it with the metadata in
// meta. The ID is derived from the tenant and the path relative to root, so
// ingesting the same file again updates the existing document. The extracted
// title is used unless meta carries one.
func (idx *Indexer) IngestFile(ctx context.Context, root, path string, meta Input) (*models.KnowledgeDocument, error) {
	ex, err := idx.extractor.Extract(path)
	if err != nil {
		return nil, err
	}
	in := meta
	if strings.TrimSpace(in.TenantID) == "" {
		in.TenantID = models.DefaultTenant
	}
	in.ID = fileid.DocumentID(in.TenantID, root, path)
	if in.Title == "" {
		in.Title = ex.Title
	}
	in.Content = ex.Content
	return idx.IndexDocument(ctx, in)
}

// IngestReport summarizes a directory ingest.
type IngestReport struct {
	Indexed int      `json:"indexed"`
	Skipped []string `json:"skipped,omitempty"`
	Failed  []string `json:"failed,omitempty"`
}

// IngestDirectory ingests every supported file under dir. Files that fail to
// extract or index are reported and do not stop the walk; a cancelled
// context does.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string, meta Input) (*IngestReport, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", models.ErrValidation, dir)
	}
	report := &IngestReport{}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !extract.Supported(path) {
			report.Skipped = append(report.Skipped, path)
			return nil
		}
		if _, err := idx.IngestFile(ctx, dir, path, meta); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			idx.logger.Warn("ingest failed", zap.String("path", path), zap.Error(err))
			report.Failed = append(report.Failed, path)
			return nil
		}
		report.Indexed++
		return nil
	})
	return report, err
}
