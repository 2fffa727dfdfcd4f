package models

import "time"

// Source identifies which pipeline stage produced an answer.
type Source string

const (
	SourceRule     Source = "rule"
	SourceRAG      Source = "rag"
	SourceFallback Source = "fallback"
)

// FallbackReason keys the canned fallback responses.
type FallbackReason string

const (
	ReasonNone                FallbackReason = ""
	ReasonNoMatch             FallbackReason = "no_match"
	ReasonEmptyQuery          FallbackReason = "empty_query"
	ReasonError               FallbackReason = "error"
	ReasonTimeout             FallbackReason = "timeout"
	ReasonInsufficientContext FallbackReason = "insufficient_context"
	ReasonMaintenance         FallbackReason = "maintenance"
)

// Scores holds the per-stage confidence that was observed while handling a query.
type Scores struct {
	RuleScore float64 `json:"rule_score"`
	RAGScore  float64 `json:"rag_score"`
}

// QueryResult is the answer returned to callers. It is built once and not mutated.
type QueryResult struct {
	MessageID            string         `json:"message_id,omitempty"`
	Answer               string         `json:"answer"`
	Source               Source         `json:"source"`
	Confidence           float64        `json:"confidence"`
	MatchedRuleID        string         `json:"matched_rule_id,omitempty"`
	RetrievedDocumentIDs []string       `json:"retrieved_document_ids"`
	Scores               Scores         `json:"scores"`
	FallbackReason       FallbackReason `json:"fallback_reason,omitempty"`
	UsedGenerativeModel  bool           `json:"used_generative_model"`
	DetectedLanguage     string         `json:"detected_language,omitempty"`
	ResponseTime         time.Duration  `json:"response_time_ns"`
}
