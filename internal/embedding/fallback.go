package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/pkg/utils"
)

// Fallback tries primary under a timeout and answers from secondary when it
// errors, times out or returns a vector of the wrong length. Embed never
// fails as long as secondary does not.
type Fallback struct {
	primary   Embedder
	secondary Embedder
	timeout   time.Duration
	logger    *zap.Logger
	failures  atomic.Int64
}

// NewFallback builds the provider chain. A timeout <= 0 means no deadline.
func NewFallback(primary, secondary Embedder, timeout time.Duration, logger *zap.Logger) *Fallback {
	return &Fallback{
		primary:   primary,
		secondary: secondary,
		timeout:   timeout,
		logger:    utils.OrNop(logger),
	}
}

// Embed returns the primary embedding when usable, the secondary otherwise.
func (f *Fallback) Embed(ctx context.Context, text string) ([]float32, error) {
	pctx, cancel := f.primaryContext(ctx)
	vec, err := f.primary.Embed(pctx, text)
	cancel()
	if err == nil && len(vec) == f.secondary.Dimensions() {
		return vec, nil
	}
	f.recordFailure(err, len(vec))
	return f.secondary.Embed(ctx, text)
}

// EmbedBatch embeds the whole batch with primary, or falls back for the whole batch.
func (f *Fallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	pctx, cancel := f.primaryContext(ctx)
	vecs, err := f.primary.EmbedBatch(pctx, texts)
	cancel()
	if err == nil && len(vecs) == len(texts) && f.allSized(vecs) {
		return vecs, nil
	}
	f.recordFailure(err, -1)
	return f.secondary.EmbedBatch(ctx, texts)
}

// Failures returns how many primary calls have been replaced by the secondary.
func (f *Fallback) Failures() int64 {
	return f.failures.Load()
}

// Dimensions is the secondary's dimension; the primary must match it.
func (f *Fallback) Dimensions() int {
	return f.secondary.Dimensions()
}

// Close closes both embedders.
func (f *Fallback) Close() error {
	return errors.Join(f.primary.Close(), f.secondary.Close())
}

func (f *Fallback) primaryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.timeout)
}

func (f *Fallback) allSized(vecs [][]float32) bool {
	for _, v := range vecs {
		if len(v) != f.secondary.Dimensions() {
			return false
		}
	}
	return true
}

func (f *Fallback) recordFailure(err error, got int) {
	f.failures.Add(1)
	if err == nil {
		err = ErrDimensionMismatch
	}
	f.logger.Warn("primary embedder failed, using hash embedder",
		zap.Error(err),
		zap.Int("got_dimensions", got),
		zap.Int("want_dimensions", f.secondary.Dimensions()),
	)
}
