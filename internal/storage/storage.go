// Package storage defines the persistence contracts of the question-answering
// pipeline and an SQL implementation of them.
package storage

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// DocumentStore holds knowledge documents.
type DocumentStore interface {
	// FindDocuments returns documents matching filter ordered by id.
	FindDocuments(ctx context.Context, filter models.DocumentFilter) ([]*models.KnowledgeDocument, error)
	GetDocument(ctx context.Context, id string) (*models.KnowledgeDocument, error)
	UpsertDocument(ctx context.Context, doc *models.KnowledgeDocument) error
	DeleteDocument(ctx context.Context, id string) error
	// UpdateCounters adds delta to the document's analytics counters.
	UpdateCounters(ctx context.Context, id string, delta models.CounterDelta) error
	CountDocuments(ctx context.Context, tenantID string) (int64, error)
}

// RuleStore holds curated rules.
type RuleStore interface {
	FindRules(ctx context.Context, filter models.RuleFilter) ([]*models.Rule, error)
	UpsertRule(ctx context.Context, rule *models.Rule) error
	DeleteRule(ctx context.Context, id string) error
	CountRules(ctx context.Context, tenantID string) (int64, error)
}

// MessageLog is the append-only record of handled queries.
type MessageLog interface {
	AppendMessage(ctx context.Context, rec *models.MessageRecord) error
	GetMessage(ctx context.Context, id string) (*models.MessageRecord, error)
}

// FeedbackStore records user ratings of answers.
type FeedbackStore interface {
	AddFeedback(ctx context.Context, fb *models.Feedback) error
	ListFeedback(ctx context.Context, messageID string) ([]*models.Feedback, error)
}

// StatsStore aggregates the message log and feedback.
type StatsStore interface {
	MessageStats(ctx context.Context, tenantID string) (*models.MessageStats, error)
}

// Store is everything the server needs from persistence.
type Store interface {
	DocumentStore
	RuleStore
	MessageLog
	FeedbackStore
	StatsStore
	Close() error
}
