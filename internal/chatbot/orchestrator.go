// Package chatbot routes a question through the rule matcher, the retriever
// and the canned fallbacks, and records every answer.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/rules"
	"github.com/hyperjump/kotae/internal/synthesis"
	"github.com/hyperjump/kotae/internal/textnorm"
	"github.com/hyperjump/kotae/pkg/utils"
)

// RuleMatcher finds the curated rule that answers a query.
type RuleMatcher interface {
	Match(ctx context.Context, query string, user models.UserContext) *rules.MatchResult
}

// Retriever ranks knowledge documents for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, user models.UserContext) *retrieval.Result
}

// UsageRecorder counts the documents behind a RAG answer. A Retriever that
// implements it is told about every answer it contributed to.
type UsageRecorder interface {
	Record(tenantID string, res *retrieval.Result)
}

// Synthesizer writes an answer from retrieved documents.
type Synthesizer interface {
	Answer(ctx context.Context, query string, docs []retrieval.ScoredDocument) synthesis.Answer
}

// MessageLog records handled queries.
type MessageLog interface {
	AppendMessage(ctx context.Context, rec *models.MessageRecord) error
}

// Settings are the orchestrator's switches and floors.
type Settings struct {
	EnableRules       bool
	EnableRAG         bool
	LogMessages       bool
	Maintenance       bool
	RuleMinConfidence float64
	RAGMinConfidence  float64
	RAGTimeout        time.Duration
}

// SettingsFromConfig maps the chatbot config section.
func SettingsFromConfig(c config.ChatbotConfig) Settings {
	return Settings{
		EnableRules:       c.RulesEnabled(),
		EnableRAG:         c.RAGEnabled(),
		LogMessages:       c.MessageLogEnabled(),
		Maintenance:       c.Maintenance,
		RuleMinConfidence: c.RuleFloor(),
		RAGMinConfidence:  c.RAGFloor(),
		RAGTimeout:        c.RAGTimeout,
	}
}

// DefaultSettings enables every stage with the standard floors.
func DefaultSettings() Settings {
	return Settings{
		EnableRules:       true,
		EnableRAG:         true,
		LogMessages:       true,
		RuleMinConfidence: rules.DefaultMinConfidence,
		RAGMinConfidence:  0.15,
		RAGTimeout:        5 * time.Second,
	}
}

// Orchestrator answers questions. Handle never fails: every error becomes a
// fallback answer.
type Orchestrator struct {
	rules       RuleMatcher
	retriever   Retriever
	synthesizer Synthesizer
	log         MessageLog
	settings    Settings
	logger      *zap.Logger

	maintenance atomic.Bool
	pending     sync.WaitGroup
	closed      atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = utils.OrNop(l)
	}
}

// WithMessageLog sets where answers are recorded.
func WithMessageLog(log MessageLog) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// WithSettings replaces DefaultSettings.
func WithSettings(s Settings) Option {
	return func(o *Orchestrator) {
		o.settings = s
	}
}

// NewOrchestrator creates an orchestrator. A nil matcher or retriever disables that stage.
func NewOrchestrator(matcher RuleMatcher, retriever Retriever, synthesizer Synthesizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		rules:       matcher,
		retriever:   retriever,
		synthesizer: synthesizer,
		settings:    DefaultSettings(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.synthesizer == nil {
		o.synthesizer = synthesis.NewSynthesizer(synthesis.DefaultMaxLength)
	}
	o.maintenance.Store(o.settings.Maintenance)
	return o
}

// SetMaintenance toggles maintenance mode at runtime.
func (o *Orchestrator) SetMaintenance(on bool) {
	o.maintenance.Store(on)
}

// Maintenance reports whether maintenance mode is on.
func (o *Orchestrator) Maintenance() bool {
	return o.maintenance.Load()
}

type state int

const (
	stateStart state = iota
	stateRuleCheck
	stateRAGCheck
	stateFallback
	stateDone
)

func (s state) String() string {
	switch s {
	case stateStart:
		return "start"
	case stateRuleCheck:
		return "rule_check"
	case stateRAGCheck:
		return "rag_check"
	case stateFallback:
		return "fallback"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// turn is the mutable state of one Handle call.
type turn struct {
	query    string
	user     models.UserContext
	started  time.Time
	state    state
	language textnorm.Language
	langConf float64

	answer     string
	source     models.Source
	confidence float64
	reason     models.FallbackReason
	ruleScore  float64
	ragScore   float64
	ruleID     string
	docIDs     []string
	generated  bool
	model      string
}

// Handle answers query for user.
func (o *Orchestrator) Handle(ctx context.Context, query string, user models.UserContext) (result *models.QueryResult) {
	t := &turn{query: query, user: user, started: time.Now(), state: stateStart}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Recovered panic while answering",
				zap.String("state", t.state.String()), zap.Any("panic", r))
			t.fallback(models.ReasonError)
			result = o.done(t)
		}
	}()

	for t.state != stateDone {
		switch t.state {
		case stateStart:
			o.start(t)
		case stateRuleCheck:
			o.ruleCheck(ctx, t)
		case stateRAGCheck:
			o.ragCheck(ctx, t)
		case stateFallback:
			t.answer = FallbackMessage(t.reason)
			t.source = models.SourceFallback
			t.confidence = 0
			t.docIDs = nil
			t.state = stateDone
		}
	}
	return o.done(t)
}

func (o *Orchestrator) start(t *turn) {
	t.query = strings.TrimSpace(t.query)
	if t.query == "" {
		t.fallback(models.ReasonEmptyQuery)
		return
	}
	t.language, t.langConf = textnorm.DetectLanguage(t.query)
	if o.maintenance.Load() {
		t.fallback(models.ReasonMaintenance)
		return
	}
	t.state = stateRuleCheck
}

func (o *Orchestrator) ruleCheck(ctx context.Context, t *turn) {
	t.state = stateRAGCheck
	if !o.settings.EnableRules || o.rules == nil {
		return
	}
	m := o.rules.Match(ctx, t.query, t.user)
	if m == nil {
		return
	}
	t.ruleScore = m.Confidence
	if m.Confidence < o.settings.RuleMinConfidence {
		return
	}
	t.answer = m.Rule.ResponseTemplate
	t.source = models.SourceRule
	t.confidence = m.Confidence
	t.ruleID = m.Rule.ID
	t.state = stateDone
}

type ragOutcome struct {
	result *retrieval.Result
	err    error
}

func (o *Orchestrator) ragCheck(ctx context.Context, t *turn) {
	if !o.settings.EnableRAG || o.retriever == nil {
		t.fallback(models.ReasonNoMatch)
		return
	}

	res, err := o.retrieve(ctx, t.query, t.user)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		o.logger.Warn("Retrieval timed out", zap.Duration("timeout", o.settings.RAGTimeout))
		t.fallback(models.ReasonTimeout)
		return
	case err != nil:
		o.logger.Warn("Retrieval failed", zap.Error(err))
		t.fallback(models.ReasonError)
		return
	}

	t.ragScore = res.Confidence
	if len(res.Documents) == 0 || res.Confidence < o.settings.RAGMinConfidence {
		t.fallback(models.ReasonNoMatch)
		return
	}
	ans := o.synthesizer.Answer(ctx, t.query, res.Documents)
	if !ans.Generated && ans.Text == synthesis.NoInformationMessage {
		t.fallback(models.ReasonInsufficientContext)
		return
	}
	t.answer = ans.Text
	t.source = models.SourceRAG
	t.confidence = res.Confidence
	t.docIDs = res.IDs()
	t.generated = ans.Generated
	t.model = ans.Model
	t.state = stateDone
	if rec, ok := o.retriever.(UsageRecorder); ok {
		rec.Record(t.user.Tenant(), res)
	}
}

// retrieve runs the retriever under the RAG timeout. The retriever runs on
// its own goroutine so a stalled store cannot hold the request past the deadline.
func (o *Orchestrator) retrieve(ctx context.Context, query string, user models.UserContext) (*retrieval.Result, error) {
	if o.settings.RAGTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.settings.RAGTimeout)
		defer cancel()
	}

	done := make(chan ragOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- ragOutcome{err: fmt.Errorf("retrieval panic: %v", r)}
			}
		}()
		res := o.retriever.Retrieve(ctx, query, user)
		if res == nil {
			done <- ragOutcome{err: errors.New("retriever returned no result")}
			return
		}
		done <- ragOutcome{result: res}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *turn) fallback(reason models.FallbackReason) {
	t.reason = reason
	t.state = stateFallback
}

// done builds the result and records it without waiting for the write.
func (o *Orchestrator) done(t *turn) *models.QueryResult {
	t.state = stateDone
	if t.source == "" {
		t.answer = FallbackMessage(t.reason)
		t.source = models.SourceFallback
	}
	res := &models.QueryResult{
		Answer:               t.answer,
		Source:               t.source,
		Confidence:           t.confidence,
		MatchedRuleID:        t.ruleID,
		RetrievedDocumentIDs: t.docIDs,
		Scores:               models.Scores{RuleScore: t.ruleScore, RAGScore: t.ragScore},
		FallbackReason:       t.reason,
		UsedGenerativeModel:  t.generated,
		DetectedLanguage:     string(t.language),
		ResponseTime:         time.Since(t.started),
	}
	if res.RetrievedDocumentIDs == nil {
		res.RetrievedDocumentIDs = []string{}
	}
	if t.source != models.SourceFallback {
		res.FallbackReason = models.ReasonNone
	}
	o.logger.Debug("Answered query",
		zap.String("source", string(res.Source)),
		zap.Float64("confidence", res.Confidence),
		zap.String("reason", string(res.FallbackReason)),
		zap.Duration("elapsed", res.ResponseTime))

	if o.settings.LogMessages && o.log != nil && !o.closed.Load() && t.query != "" {
		res.MessageID = uuid.NewString()
		o.record(t, res)
	}
	return res
}

func (o *Orchestrator) record(t *turn, res *models.QueryResult) {
	rec := &models.MessageRecord{
		ID:                   res.MessageID,
		UserID:               t.user.ID,
		TenantID:             t.user.Tenant(),
		UserRoles:            t.user.Roles,
		Query:                t.query,
		Answer:               res.Answer,
		Source:               res.Source,
		Confidence:           res.Confidence,
		FallbackReason:       res.FallbackReason,
		RuleScore:            res.Scores.RuleScore,
		RAGScore:             res.Scores.RAGScore,
		MatchedRuleID:        res.MatchedRuleID,
		RetrievedDocumentIDs: res.RetrievedDocumentIDs,
		ResponseTime:         res.ResponseTime,
		DetectedLanguage:     string(t.language),
		LanguageConfidence:   t.langConf,
		UsedGenerativeModel:  t.generated,
		GenerativeModel:      t.model,
		CreatedAt:            time.Now().UTC(),
	}
	o.pending.Add(1)
	go func() {
		defer o.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("Recovered panic while logging message", zap.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.log.AppendMessage(ctx, rec); err != nil {
			o.logger.Warn("Failed to log message",
				zap.String("message_id", rec.ID), zap.Error(fmt.Errorf("%w: %w", models.ErrLogging, err)))
		}
	}()
}

// Close waits for pending message log writes. Answers handled afterwards are not logged.
func (o *Orchestrator) Close() {
	o.closed.Store(true)
	o.pending.Wait()
}
