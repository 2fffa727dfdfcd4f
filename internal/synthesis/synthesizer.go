package synthesis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Generator completes a prompt with a generative model.
type Generator interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Model() string
}

// Answer is a synthesized response.
type Answer struct {
	Text string
	// Generated is true when a generative model produced Text.
	Generated bool
	Model     string
}

// Synthesizer prefers the generator and degrades to concatenation.
type Synthesizer struct {
	generator Generator
	concat    Concatenator
	timeout   time.Duration
	logger    *zap.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithGenerator sets the generative model. Without one, answers are concatenated.
func WithGenerator(g Generator) Option {
	return func(s *Synthesizer) {
		s.generator = g
	}
}

// WithTimeout bounds a generator call.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		s.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synthesizer) {
		s.logger = utils.OrNop(l)
	}
}

// NewSynthesizer creates a synthesizer whose answers are at most maxLength characters.
func NewSynthesizer(maxLength int, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		concat:  Concatenator{MaxLength: maxLength},
		timeout: 30 * time.Second,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize returns the answer text for query.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, docs []retrieval.ScoredDocument) string {
	return s.Answer(ctx, query, docs).Text
}

// Answer builds an answer from docs. It never fails: generator errors,
// timeouts, empty completions and panics all fall back to concatenation.
func (s *Synthesizer) Answer(ctx context.Context, query string, docs []retrieval.ScoredDocument) Answer {
	if s.generator == nil {
		return Answer{Text: s.concat.Concatenate(docs)}
	}
	selected := selectDocuments(docs)
	if len(selected) == 0 {
		return Answer{Text: NoInformationMessage}
	}

	text, err := s.generate(ctx, query, selected)
	if err != nil {
		s.logger.Warn("Generation failed, concatenating documents",
			zap.String("model", s.generator.Model()), zap.Error(err))
		return Answer{Text: s.concat.Concatenate(docs)}
	}
	return Answer{
		Text:      utils.Truncate(text, s.concat.maxLength()),
		Generated: true,
		Model:     s.generator.Model(),
	}
}

func (s *Synthesizer) generate(ctx context.Context, query string, docs []retrieval.ScoredDocument) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generator panic: %v: %w", r, models.ErrProvider)
		}
	}()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	text, err = s.generator.Complete(ctx, systemPrompt, userPrompt(query, docs))
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty completion: %w", models.ErrProvider)
	}
	return text, nil
}

func (c Concatenator) maxLength() int {
	if c.MaxLength <= 0 {
		return DefaultMaxLength
	}
	return c.MaxLength
}
