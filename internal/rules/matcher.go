// Package rules matches queries against curated pattern to response rules.
package rules

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/textnorm"
	"github.com/hyperjump/kotae/pkg/utils"
)

const (
	// DefaultMinConfidence is the rule confidence floor.
	DefaultMinConfidence = 0.35
	substringBonus       = 0.1
	priorityStep         = 0.05
	neutralPriority      = 5
)

// RuleSource loads candidate rules.
type RuleSource interface {
	FindRules(ctx context.Context, filter models.RuleFilter) ([]*models.Rule, error)
}

// MatchResult is the winning rule and how it scored.
type MatchResult struct {
	Rule *models.Rule
	// RawScore is the best keyword similarity including the substring bonus.
	RawScore float64
	// AdjustedScore is RawScore weighted by priority, possibly above 1.
	AdjustedScore float64
	// Confidence is AdjustedScore clamped to [0,1].
	Confidence float64
}

// Matcher scores queries against the rules visible to a user.
type Matcher struct {
	source        RuleSource
	comparator    Comparator
	minConfidence float64
	logger        *zap.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithComparator replaces the Dice comparator.
func WithComparator(c Comparator) Option {
	return func(m *Matcher) {
		if c != nil {
			m.comparator = c
		}
	}
}

// WithMinConfidence sets the floor below which no rule is returned.
func WithMinConfidence(v float64) Option {
	return func(m *Matcher) { m.minConfidence = v }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Matcher) { m.logger = l }
}

// NewMatcher creates a Matcher over source.
func NewMatcher(source RuleSource, opts ...Option) *Matcher {
	m := &Matcher{
		source:        source,
		comparator:    ComparatorFunc(DiceCoefficient),
		minConfidence: DefaultMinConfidence,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = utils.OrNop(m.logger)
	return m
}

// Match returns the best rule for query, or nil when none reaches the floor.
// Store errors are logged and reported as no match.
func (m *Matcher) Match(ctx context.Context, query string, user models.UserContext) *MatchResult {
	normalized := textnorm.Normalize(query)
	if normalized == "" {
		return nil
	}
	rules, err := m.source.FindRules(ctx, models.RuleFilter{
		TenantID:   user.Tenant(),
		ActiveOnly: true,
		Roles:      user.AccessRoles(),
	})
	if err != nil {
		m.logger.Warn("rule lookup failed, treating as no match", zap.Error(err))
		return nil
	}

	var best *MatchResult
	for _, rule := range rules {
		// the store already filters, but a rule must never leak across tenants or roles
		if !rule.IsActive || !user.CanAccess(rule.TenantID, rule.AllowedRoles) {
			continue
		}
		raw := m.ruleScore(normalized, rule)
		cand := &MatchResult{Rule: rule, RawScore: raw, AdjustedScore: AdjustForPriority(raw, rule.Priority)}
		if best == nil || outranks(cand, best) {
			cand.Confidence = utils.Clamp01(cand.AdjustedScore)
			best = cand
		}
	}
	if best == nil {
		return nil
	}
	m.logger.Debug("best rule",
		zap.String("rule_id", best.Rule.ID),
		zap.Float64("raw", best.RawScore),
		zap.Float64("confidence", best.Confidence))
	if best.Confidence < m.minConfidence {
		return nil
	}
	return best
}

// outranks orders matches by adjusted score, then priority, then the newer
// rule, then id, so the winner does not depend on store order.
func outranks(a, b *MatchResult) bool {
	if a.AdjustedScore != b.AdjustedScore {
		return a.AdjustedScore > b.AdjustedScore
	}
	if a.Rule.Priority != b.Rule.Priority {
		return a.Rule.Priority > b.Rule.Priority
	}
	if !a.Rule.CreatedAt.Equal(b.Rule.CreatedAt) {
		return a.Rule.CreatedAt.After(b.Rule.CreatedAt)
	}
	return a.Rule.ID < b.Rule.ID
}

// ruleScore is the best similarity between the query and any keyword, or the pattern.
func (m *Matcher) ruleScore(normalizedQuery string, rule *models.Rule) float64 {
	candidates := rule.Keywords
	if len(candidates) == 0 {
		candidates = []string{rule.Pattern}
	}
	best := 0.0
	for _, c := range candidates {
		kw := textnorm.Normalize(c)
		if kw == "" {
			continue
		}
		score := m.comparator.Compare(normalizedQuery, kw)
		if strings.Contains(normalizedQuery, kw) || strings.Contains(kw, normalizedQuery) {
			score = min(score+substringBonus, 1)
		}
		if score > best {
			best = score
		}
	}
	return best
}

// AdjustForPriority weights score by 5% per priority step away from 5.
func AdjustForPriority(score float64, priority int) float64 {
	p := models.ClampPriority(priority)
	return score * (1 + float64(p-neutralPriority)*priorityStep)
}
