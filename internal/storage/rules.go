package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

// UpsertRule inserts rule or replaces it.
func (s *SQLStore) UpsertRule(ctx context.Context, rule *models.Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", models.ErrValidation)
	}
	keywordsJSON, err := marshalJSON(rule.Keywords)
	if err != nil {
		return err
	}
	rolesJSON, err := marshalJSON(rule.AllowedRoles)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	rule.TenantID = tenantOrDefault(rule.TenantID)
	rule.Priority = models.ClampPriority(rule.Priority)

	_, err = s.exec(ctx,
		`INSERT INTO rules (id, tenant_id, pattern, keywords, response_template, priority, allowed_roles,
			is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			pattern = excluded.pattern,
			keywords = excluded.keywords,
			response_template = excluded.response_template,
			priority = excluded.priority,
			allowed_roles = excluded.allowed_roles,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		rule.ID, rule.TenantID, rule.Pattern, keywordsJSON, rule.ResponseTemplate, rule.Priority, rolesJSON,
		rule.IsActive, rule.CreatedAt, rule.UpdatedAt,
	)
	return err
}

// FindRules returns rules matching filter ordered by priority, highest first.
func (s *SQLStore) FindRules(ctx context.Context, filter models.RuleFilter) ([]*models.Rule, error) {
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
	q := `SELECT id, tenant_id, pattern, keywords, response_template, priority, allowed_roles, is_active,
		created_at, updated_at FROM rules`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY priority DESC, created_at DESC, id"

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*models.Rule
	for rows.Next() {
		var r models.Rule
		var keywordsJSON, rolesJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Pattern, &keywordsJSON, &r.ResponseTemplate, &r.Priority,
			&rolesJSON, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrStore, err)
		}
		if err := unmarshalJSON(keywordsJSON, &r.Keywords); err != nil {
			return nil, fmt.Errorf("%w: rule %s: %v", models.ErrStore, r.ID, err)
		}
		if err := unmarshalJSON(rolesJSON, &r.AllowedRoles); err != nil {
			return nil, fmt.Errorf("%w: rule %s: %v", models.ErrStore, r.ID, err)
		}
		if !rolesAllowed(r.AllowedRoles, filter.Roles) {
			continue
		}
		rules = append(rules, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	return rules, nil
}

// DeleteRule removes a rule by id.
func (s *SQLStore) DeleteRule(ctx context.Context, id string) error {
	_, err := s.exec(ctx, `DELETE FROM rules WHERE id = ?`, id)
	return err
}

// CountRules returns the number of rules for tenantID, or all when empty.
func (s *SQLStore) CountRules(ctx context.Context, tenantID string) (int64, error) {
	return s.count(ctx, "rules", tenantID)
}
