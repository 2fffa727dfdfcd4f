package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/textnorm"
)

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

var (
	_ Index          = (*BleveIndex)(nil)
	_ TermDictionary = (*BleveIndex)(nil)
)

// indexedDocument is what Bleve stores. Title and body are pre-normalized so
// diacritic variants of a query match.
type indexedDocument struct {
	TenantID string `json:"tenant_id"`
	Category string `json:"category"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}

// NewBleveIndex creates or opens a Bleve index at path.
// An existing index is reopened as is; remove the directory after changing the mapping.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemoryIndex creates an index that lives only in memory.
func NewMemoryIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer only lowercases and tokenizes; stemming would mangle Vietnamese syllables.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("body", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("tenant_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("category", keywordFieldMapping)
	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping
	return im
}

func toIndexed(doc *models.KnowledgeDocument) indexedDocument {
	tenant := doc.TenantID
	if tenant == "" {
		tenant = models.DefaultTenant
	}
	body := doc.Content
	if len(doc.Tags) > 0 {
		body += " " + strings.Join(doc.Tags, " ")
	}
	return indexedDocument{
		TenantID: tenant,
		Category: string(doc.Category),
		Title:    textnorm.Normalize(doc.Title),
		Body:     textnorm.Normalize(body),
	}
}

// IndexDocuments indexes docs in one batch. Inactive documents are removed instead.
func (b *BleveIndex) IndexDocuments(ctx context.Context, docs []*models.KnowledgeDocument) error {
	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !doc.IsActive {
			batch.Delete(doc.ID)
			continue
		}
		if err := batch.Index(doc.ID, toIndexed(doc)); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

// Search matches the normalized query against title and body within one tenant.
func (b *BleveIndex) Search(ctx context.Context, tenantID, query string, limit int, opts *SearchOptions) ([]Hit, error) {
	normalized := textnorm.Normalize(query)
	if normalized == "" {
		return nil, nil
	}
	if tenantID == "" {
		tenantID = models.DefaultTenant
	}
	if limit <= 0 {
		limit = 10
	}
	if opts == nil {
		opts = &SearchOptions{}
	}
	titleBoost := opts.TitleBoost
	if titleBoost < 1 {
		titleBoost = 1
	}

	tenantQuery := bleve.NewTermQuery(tenantID)
	tenantQuery.SetField("tenant_id")
	text := bleve.NewDisjunctionQuery(
		b.fieldQuery(normalized, "title", titleBoost, opts),
		b.fieldQuery(normalized, "body", 1, opts),
	)
	must := []blevequery.Query{tenantQuery, text}
	if opts.Category != "" {
		cq := bleve.NewTermQuery(string(opts.Category))
		cq.SetField("category")
		must = append(must, cq)
	}

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(must...))
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]Hit, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = Hit{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// fieldQuery builds a match query, or a disjunction of per-term fuzzy queries.
func (b *BleveIndex) fieldQuery(normalized, field string, boost float64, opts *SearchOptions) blevequery.Query {
	if !opts.Fuzzy {
		mq := bleve.NewMatchQuery(normalized)
		mq.SetField(field)
		mq.SetBoost(boost)
		return mq
	}
	fuzziness := opts.Fuzziness
	if fuzziness <= 0 || fuzziness > 2 {
		fuzziness = 1
	}
	terms := strings.Fields(normalized)
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		fq.SetBoost(boost)
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Delete removes a document from the index.
func (b *BleveIndex) Delete(_ context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the number of indexed documents.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Terms returns every title and body term with its document frequency.
func (b *BleveIndex) Terms() (map[string]int, error) {
	terms := make(map[string]int)
	for _, field := range []string{"title", "body"} {
		dict, err := b.index.FieldDict(field)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s dictionary: %w", field, err)
		}
		for {
			entry, err := dict.Next()
			if err != nil || entry == nil {
				break
			}
			if int(entry.Count) > terms[entry.Term] {
				terms[entry.Term] = int(entry.Count)
			}
		}
		_ = dict.Close()
	}
	return terms, nil
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
