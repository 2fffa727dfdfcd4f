package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

// AppendMessage writes one message record.
func (s *SQLStore) AppendMessage(ctx context.Context, rec *models.MessageRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: message id is required", models.ErrValidation)
	}
	rolesJSON, err := marshalJSON(rec.UserRoles)
	if err != nil {
		return err
	}
	docsJSON, err := marshalJSON(rec.RetrievedDocumentIDs)
	if err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.TenantID = tenantOrDefault(rec.TenantID)

	_, err = s.exec(ctx,
		`INSERT INTO messages (id, user_id, tenant_id, user_roles, query, answer, source, confidence,
			fallback_reason, rule_score, rag_score, matched_rule_id, retrieved_document_ids, response_time_ms,
			detected_language, language_confidence, used_generative_model, generative_model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.TenantID, rolesJSON, rec.Query, rec.Answer, string(rec.Source), rec.Confidence,
		string(rec.FallbackReason), rec.RuleScore, rec.RAGScore, rec.MatchedRuleID, docsJSON,
		rec.ResponseTime.Milliseconds(), rec.DetectedLanguage, rec.LanguageConfidence, rec.UsedGenerativeModel,
		rec.GenerativeModel, rec.CreatedAt,
	)
	return err
}

// GetMessage returns a message record by id.
func (s *SQLStore) GetMessage(ctx context.Context, id string) (*models.MessageRecord, error) {
	var rec models.MessageRecord
	var source, reason string
	var userID, matchedRule, lang, genModel sql.NullString
	var rolesJSON, docsJSON sql.NullString
	var responseMs int64
	err := s.queryRow(ctx,
		`SELECT id, user_id, tenant_id, user_roles, query, answer, source, confidence, fallback_reason,
			rule_score, rag_score, matched_rule_id, retrieved_document_ids, response_time_ms, detected_language,
			language_confidence, used_generative_model, generative_model, created_at
		 FROM messages WHERE id = ?`, id,
	).Scan(&rec.ID, &userID, &rec.TenantID, &rolesJSON, &rec.Query, &rec.Answer, &source, &rec.Confidence,
		&reason, &rec.RuleScore, &rec.RAGScore, &matchedRule, &docsJSON, &responseMs, &lang,
		&rec.LanguageConfidence, &rec.UsedGenerativeModel, &genModel, &rec.CreatedAt)
	if err != nil {
		return nil, notFound("message", id, err)
	}
	rec.UserID = userID.String
	rec.Source = models.Source(source)
	rec.FallbackReason = models.FallbackReason(reason)
	rec.MatchedRuleID = matchedRule.String
	rec.DetectedLanguage = lang.String
	rec.GenerativeModel = genModel.String
	rec.ResponseTime = time.Duration(responseMs) * time.Millisecond
	if err := unmarshalJSON(rolesJSON, &rec.UserRoles); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(docsJSON, &rec.RetrievedDocumentIDs); err != nil {
		return nil, err
	}
	return &rec, nil
}

// AddFeedback stores one feedback entry.
func (s *SQLStore) AddFeedback(ctx context.Context, fb *models.Feedback) error {
	if fb.ID == "" || fb.MessageID == "" {
		return fmt.Errorf("%w: feedback id and message id are required", models.ErrValidation)
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	fb.TenantID = tenantOrDefault(fb.TenantID)
	_, err := s.exec(ctx,
		`INSERT INTO feedback (id, message_id, user_id, tenant_id, rating, is_helpful, comment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.MessageID, fb.UserID, fb.TenantID, fb.Rating, fb.IsHelpful, fb.Comment, fb.CreatedAt,
	)
	return err
}

// ListFeedback returns the feedback for one message, oldest first.
func (s *SQLStore) ListFeedback(ctx context.Context, messageID string) ([]*models.Feedback, error) {
	rows, err := s.query(ctx,
		`SELECT id, message_id, user_id, tenant_id, rating, is_helpful, comment, created_at
		 FROM feedback WHERE message_id = ? ORDER BY created_at, id`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Feedback
	for rows.Next() {
		var fb models.Feedback
		var userID, comment sql.NullString
		if err := rows.Scan(&fb.ID, &fb.MessageID, &userID, &fb.TenantID, &fb.Rating, &fb.IsHelpful, &comment,
			&fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrStore, err)
		}
		fb.UserID = userID.String
		fb.Comment = comment.String
		out = append(out, &fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	return out, nil
}

// MessageStats aggregates messages and feedback for tenantID.
func (s *SQLStore) MessageStats(ctx context.Context, tenantID string) (*models.MessageStats, error) {
	tenantID = tenantOrDefault(tenantID)
	stats := &models.MessageStats{BySource: make(map[models.Source]int64)}

	err := s.queryRow(ctx,
		`SELECT COUNT(*),
			COALESCE(AVG(response_time_ms), 0),
			COALESCE(AVG(rule_score), 0),
			COALESCE(AVG(rag_score), 0),
			COALESCE(SUM(CASE WHEN used_generative_model THEN 1 ELSE 0 END), 0)
		 FROM messages WHERE tenant_id = ?`, tenantID,
	).Scan(&stats.TotalMessages, &stats.AvgResponseTimeMs, &stats.AvgRuleScore, &stats.AvgRAGScore,
		&stats.GenerativeAnswers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStore, err)
	}

	rows, err := s.query(ctx, `SELECT source, COUNT(*) FROM messages WHERE tenant_id = ? GROUP BY source`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var n int64
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrStore, err)
		}
		stats.BySource[models.Source(source)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStore, err)
	}

	err = s.queryRow(ctx,
		`SELECT COUNT(*),
			COALESCE(AVG(rating), 0),
			COALESCE(AVG(CASE WHEN is_helpful THEN 100.0 ELSE 0.0 END), 0)
		 FROM feedback WHERE tenant_id = ?`, tenantID,
	).Scan(&stats.FeedbackCount, &stats.AvgFeedbackRating, &stats.HelpfulFeedbackPct)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	return stats, nil
}
