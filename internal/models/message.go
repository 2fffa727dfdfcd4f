package models

import "time"

// MessageRecord is the append-only log entry written once per handled query.
type MessageRecord struct {
	ID                   string
	UserID               string
	TenantID             string
	UserRoles            []string
	Query                string
	Answer               string
	Source               Source
	Confidence           float64
	FallbackReason       FallbackReason
	RuleScore            float64
	RAGScore             float64
	MatchedRuleID        string
	RetrievedDocumentIDs []string
	ResponseTime         time.Duration
	DetectedLanguage     string
	LanguageConfidence   float64
	UsedGenerativeModel  bool
	GenerativeModel      string
	CreatedAt            time.Time
}

// Feedback is a user's rating of one answered message.
type Feedback struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	Rating    int       `json:"rating"`
	IsHelpful bool      `json:"is_helpful"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageStats aggregates the message log for one tenant.
type MessageStats struct {
	TotalMessages      int64            `json:"total_messages"`
	BySource           map[Source]int64 `json:"by_source"`
	AvgResponseTimeMs  float64          `json:"avg_response_time_ms"`
	AvgRuleScore       float64          `json:"avg_rule_score"`
	AvgRAGScore        float64          `json:"avg_rag_score"`
	GenerativeAnswers  int64            `json:"generative_answers"`
	FeedbackCount      int64            `json:"feedback_count"`
	AvgFeedbackRating  float64          `json:"avg_feedback_rating"`
	HelpfulFeedbackPct float64          `json:"helpful_feedback_pct"`
}
