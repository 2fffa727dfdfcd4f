// Package seed loads rules and knowledge documents from a YAML fixture.
package seed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
	"gopkg.in/yaml.v3"
)

// Rule is a rule as written in a fixture. IsActive defaults to true.
type Rule struct {
	ID               string   `yaml:"id"`
	TenantID         string   `yaml:"tenant_id"`
	Pattern          string   `yaml:"pattern"`
	Keywords         []string `yaml:"keywords"`
	ResponseTemplate string   `yaml:"response_template"`
	Priority         int      `yaml:"priority"`
	AllowedRoles     []string `yaml:"allowed_roles"`
	IsActive         *bool    `yaml:"is_active"`
}

// Fixture is the content of a seed file.
type Fixture struct {
	// TenantID applies to every entry that names no tenant.
	TenantID  string          `yaml:"tenant_id"`
	Rules     []Rule          `yaml:"rules"`
	Documents []indexer.Input `yaml:"documents"`
}

// RuleWriter stores rules.
type RuleWriter interface {
	UpsertRule(ctx context.Context, rule *models.Rule) error
}

// DocumentWriter indexes documents.
type DocumentWriter interface {
	IndexDocument(ctx context.Context, in indexer.Input) (*models.KnowledgeDocument, error)
}

// Report counts what Apply wrote.
type Report struct {
	Rules     int `json:"rules"`
	Documents int `json:"documents"`
}

// Load reads and validates the fixture at path.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return Parse(data)
}

// Parse decodes a fixture. Rules need a response and at least a pattern or a keyword.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: failed to parse fixture: %v", models.ErrValidation, err)
	}
	for i, r := range f.Rules {
		if strings.TrimSpace(r.ResponseTemplate) == "" {
			return nil, fmt.Errorf("%w: rule %d (%s) has no response_template", models.ErrValidation, i, r.ID)
		}
		if strings.TrimSpace(r.Pattern) == "" && len(r.Keywords) == 0 {
			return nil, fmt.Errorf("%w: rule %d (%s) needs a pattern or keywords", models.ErrValidation, i, r.ID)
		}
	}
	return &f, nil
}

// Apply writes the fixture's rules to rules and its documents to docs.
// Entries without an ID get a random one, so applying such a fixture twice
// duplicates them.
func Apply(ctx context.Context, f *Fixture, rules RuleWriter, docs DocumentWriter) (Report, error) {
	var rep Report
	for _, r := range f.Rules {
		rule := r.model(f.TenantID)
		if err := rules.UpsertRule(ctx, rule); err != nil {
			return rep, fmt.Errorf("seed rule %s: %w", rule.ID, err)
		}
		rep.Rules++
	}
	for _, in := range f.Documents {
		if in.TenantID == "" {
			in.TenantID = f.TenantID
		}
		if _, err := docs.IndexDocument(ctx, in); err != nil {
			return rep, fmt.Errorf("seed document %q: %w", in.Title, err)
		}
		rep.Documents++
	}
	return rep, nil
}

func (r Rule) model(defaultTenant string) *models.Rule {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = uuid.NewString()
	}
	tenant := r.TenantID
	if tenant == "" {
		tenant = defaultTenant
	}
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &models.Rule{
		ID:               id,
		TenantID:         tenant,
		Pattern:          strings.TrimSpace(r.Pattern),
		Keywords:         r.Keywords,
		ResponseTemplate: strings.TrimSpace(r.ResponseTemplate),
		Priority:         r.Priority,
		AllowedRoles:     r.AllowedRoles,
		IsActive:         active,
	}
}
