// Package models defines the data structures shared by the question-answering pipeline.
package models

import "time"

// Category classifies a knowledge document.
type Category string

const (
	CategoryFAQ        Category = "faq"
	CategoryGuide      Category = "guide"
	CategoryPolicy     Category = "policy"
	CategoryRegulation Category = "regulation"
	CategoryProcedure  Category = "procedure"
	CategoryOther      Category = "other"
	// CategoryActivity marks event and registration material. It is what
	// regulation-intent queries must never be answered with.
	CategoryActivity Category = "activity"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryFAQ, CategoryGuide, CategoryPolicy, CategoryRegulation, CategoryProcedure, CategoryOther, CategoryActivity:
		return true
	}
	return false
}

// ParseCategory returns the category for s, or CategoryOther when s is unknown.
func ParseCategory(s string) Category {
	c := Category(s)
	if c.Valid() {
		return c
	}
	return CategoryOther
}

// KnowledgeDocument is a stored passage eligible for retrieval.
type KnowledgeDocument struct {
	ID                 string     `json:"id" yaml:"id"`
	TenantID           string     `json:"tenant_id" yaml:"tenant_id"`
	Title              string     `json:"title" yaml:"title"`
	Content            string     `json:"content" yaml:"content"`
	Category           Category   `json:"category" yaml:"category"`
	Embedding          []float32  `json:"-" yaml:"-"`
	Tags               []string   `json:"tags" yaml:"tags"`
	Priority           int        `json:"priority" yaml:"priority"`
	AllowedRoles       []string   `json:"allowed_roles" yaml:"allowed_roles"`
	IsActive           bool       `json:"is_active" yaml:"is_active"`
	RetrievalCount     int64      `json:"retrieval_count" yaml:"-"`
	AvgConfidenceScore float64    `json:"avg_confidence_score" yaml:"-"`
	LastRetrievedAt    *time.Time `json:"last_retrieved_at,omitempty" yaml:"-"`
	CreatedAt          time.Time  `json:"created_at" yaml:"-"`
	UpdatedAt          time.Time  `json:"updated_at" yaml:"-"`
}

// Rule is a curated pattern to response mapping.
type Rule struct {
	ID               string    `json:"id" yaml:"id"`
	TenantID         string    `json:"tenant_id" yaml:"tenant_id"`
	Pattern          string    `json:"pattern" yaml:"pattern"`
	Keywords         []string  `json:"keywords" yaml:"keywords"`
	ResponseTemplate string    `json:"response_template" yaml:"response_template"`
	Priority         int       `json:"priority" yaml:"priority"`
	AllowedRoles     []string  `json:"allowed_roles" yaml:"allowed_roles"`
	IsActive         bool      `json:"is_active" yaml:"is_active"`
	CreatedAt        time.Time `json:"created_at" yaml:"-"`
	UpdatedAt        time.Time `json:"updated_at" yaml:"-"`
}

// ClampPriority keeps a priority inside the 1..10 range; zero means the neutral 5.
func ClampPriority(p int) int {
	switch {
	case p == 0:
		return 5
	case p < 1:
		return 1
	case p > 10:
		return 10
	}
	return p
}

// CounterDelta is an aggregated analytics increment for one document.
type CounterDelta struct {
	Retrievals      int64
	ConfidenceSum   float64
	LastRetrievedAt time.Time
}
