// Package feedback validates and records user ratings of answers.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// MaxCommentLength bounds the stored comment in characters.
const MaxCommentLength = 1000

// Store is what the service needs from persistence.
type Store interface {
	GetMessage(ctx context.Context, id string) (*models.MessageRecord, error)
	AddFeedback(ctx context.Context, fb *models.Feedback) error
	ListFeedback(ctx context.Context, messageID string) ([]*models.Feedback, error)
}

// Submission is a rating sent by a user.
type Submission struct {
	MessageID string `json:"message_id"`
	Rating    int    `json:"rating"`
	// IsHelpful defaults to Rating >= 4 when omitted.
	IsHelpful *bool  `json:"is_helpful,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

// Service records feedback on logged messages.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a feedback service.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: utils.OrNop(logger)}
}

// Submit validates s and stores it. The message must exist and belong to the
// user's tenant; otherwise ErrNotFound is returned.
func (s *Service) Submit(ctx context.Context, user models.UserContext, sub Submission) (*models.Feedback, error) {
	sub.MessageID = strings.TrimSpace(sub.MessageID)
	if sub.MessageID == "" {
		return nil, fmt.Errorf("message_id is required: %w", models.ErrValidation)
	}
	if sub.Rating < 1 || sub.Rating > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5, got %d: %w", sub.Rating, models.ErrValidation)
	}

	msg, err := s.store.GetMessage(ctx, sub.MessageID)
	if err != nil {
		return nil, err
	}
	if msg.TenantID != user.Tenant() {
		return nil, fmt.Errorf("message %s: %w", sub.MessageID, models.ErrNotFound)
	}

	helpful := sub.Rating >= 4
	if sub.IsHelpful != nil {
		helpful = *sub.IsHelpful
	}
	fb := &models.Feedback{
		ID:        uuid.NewString(),
		MessageID: sub.MessageID,
		UserID:    user.ID,
		TenantID:  user.Tenant(),
		Rating:    sub.Rating,
		IsHelpful: helpful,
		Comment:   utils.Truncate(strings.TrimSpace(sub.Comment), MaxCommentLength),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AddFeedback(ctx, fb); err != nil {
		return nil, err
	}
	s.logger.Debug("Recorded feedback",
		zap.String("message_id", fb.MessageID), zap.Int("rating", fb.Rating), zap.Bool("helpful", fb.IsHelpful))
	return fb, nil
}

// List returns the feedback on a message of the user's tenant.
func (s *Service) List(ctx context.Context, user models.UserContext, messageID string) ([]*models.Feedback, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.TenantID != user.Tenant() {
		return nil, fmt.Errorf("message %s: %w", messageID, models.ErrNotFound)
	}
	return s.store.ListFeedback(ctx, messageID)
}

// IsClientError reports whether err was caused by the submission rather than the store.
func IsClientError(err error) bool {
	return errors.Is(err, models.ErrValidation) || errors.Is(err, models.ErrNotFound)
}
