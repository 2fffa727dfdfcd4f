package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

const documentColumns = `id, tenant_id, title, content, category, embedding, tags, priority, allowed_roles,
	is_active, retrieval_count, avg_confidence_score, last_retrieved_at, created_at, updated_at`

// UpsertDocument inserts doc or replaces its content fields. Analytics counters are preserved.
func (s *SQLStore) UpsertDocument(ctx context.Context, doc *models.KnowledgeDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: document id is required", models.ErrValidation)
	}
	embeddingJSON, err := marshalJSON(doc.Embedding)
	if err != nil {
		return err
	}
	tagsJSON, err := marshalJSON(doc.Tags)
	if err != nil {
		return err
	}
	rolesJSON, err := marshalJSON(doc.AllowedRoles)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	doc.TenantID = tenantOrDefault(doc.TenantID)
	doc.Priority = models.ClampPriority(doc.Priority)
	doc.Category = models.ParseCategory(string(doc.Category))

	_, err = s.exec(ctx,
		`INSERT INTO knowledge_documents (id, tenant_id, title, content, category, embedding, tags, priority,
			allowed_roles, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			title = excluded.title,
			content = excluded.content,
			category = excluded.category,
			embedding = excluded.embedding,
			tags = excluded.tags,
			priority = excluded.priority,
			allowed_roles = excluded.allowed_roles,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		doc.ID, doc.TenantID, doc.Title, doc.Content, string(doc.Category), embeddingJSON, tagsJSON,
		doc.Priority, rolesJSON, doc.IsActive, doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

// GetDocument returns a document by id.
func (s *SQLStore) GetDocument(ctx context.Context, id string) (*models.KnowledgeDocument, error) {
	row := s.queryRow(ctx, `SELECT `+documentColumns+` FROM knowledge_documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, notFound("document", id, err)
	}
	return doc, nil
}

// FindDocuments filters by tenant and active flag in SQL and by roles in Go.
func (s *SQLStore) FindDocuments(ctx context.Context, filter models.DocumentFilter) ([]*models.KnowledgeDocument, error) {
	var where []string
	var args []any
	if filter.TenantID != "" {
		where = append(where, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.ActiveOnly {
		where = append(where, "is_active = ?")
		args = append(args, true)
	}
	if len(filter.IDs) > 0 {
		where = append(where, "id IN ("+placeholders(len(filter.IDs))+")")
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}
	q := `SELECT ` + documentColumns + ` FROM knowledge_documents`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id"

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.KnowledgeDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrStore, err)
		}
		if !rolesAllowed(doc.AllowedRoles, filter.Roles) {
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	return docs, nil
}

// DeleteDocument removes a document by id.
func (s *SQLStore) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.exec(ctx, `DELETE FROM knowledge_documents WHERE id = ?`, id)
	return err
}

// UpdateCounters folds delta into the running average confidence and retrieval count.
func (s *SQLStore) UpdateCounters(ctx context.Context, id string, delta models.CounterDelta) error {
	if delta.Retrievals <= 0 {
		return nil
	}
	last := delta.LastRetrievedAt
	if last.IsZero() {
		last = time.Now()
	}
	res, err := s.exec(ctx,
		`UPDATE knowledge_documents SET
			avg_confidence_score = (avg_confidence_score * retrieval_count + ?) / (retrieval_count + ?),
			retrieval_count = retrieval_count + ?,
			last_retrieved_at = ?
		 WHERE id = ?`,
		delta.ConfidenceSum, delta.Retrievals, delta.Retrievals, last.UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// CountDocuments returns the number of documents for tenantID, or all when empty.
func (s *SQLStore) CountDocuments(ctx context.Context, tenantID string) (int64, error) {
	return s.count(ctx, "knowledge_documents", tenantID)
}

func (s *SQLStore) count(ctx context.Context, table, tenantID string) (int64, error) {
	var count int64
	var err error
	if tenantID == "" {
		err = s.queryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count)
	} else {
		err = s.queryRow(ctx, `SELECT COUNT(*) FROM `+table+` WHERE tenant_id = ?`, tenantID).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (*models.KnowledgeDocument, error) {
	var doc models.KnowledgeDocument
	var category string
	var embeddingJSON, tagsJSON, rolesJSON sql.NullString
	var last sql.NullTime
	err := sc.Scan(&doc.ID, &doc.TenantID, &doc.Title, &doc.Content, &category, &embeddingJSON, &tagsJSON,
		&doc.Priority, &rolesJSON, &doc.IsActive, &doc.RetrievalCount, &doc.AvgConfidenceScore, &last,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.Category = models.ParseCategory(category)
	if last.Valid {
		t := last.Time
		doc.LastRetrievedAt = &t
	}
	if err := unmarshalJSON(embeddingJSON, &doc.Embedding); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(tagsJSON, &doc.Tags); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(rolesJSON, &doc.AllowedRoles); err != nil {
		return nil, err
	}
	return &doc, nil
}
