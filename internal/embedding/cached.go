package embedding

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/kotae/pkg/utils"
)

// ErrCacheMiss is returned by a SecondTier when the key is absent.
var ErrCacheMiss = errors.New("embedding cache miss")

// SecondTier is a shared cache consulted after the in-process Cache.
type SecondTier interface {
	Get(ctx context.Context, key string) ([]float32, error)
	Set(ctx context.Context, key string, value []float32, ttl time.Duration) error
}

// CachedEmbedder fronts an Embedder with the process cache, an optional second
// tier and per-text request coalescing.
type CachedEmbedder struct {
	inner  Embedder
	cache  *Cache
	tier   SecondTier
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// CachedOption configures a CachedEmbedder.
type CachedOption func(*CachedEmbedder)

// WithSecondTier adds a shared cache such as RedisCache.
func WithSecondTier(tier SecondTier, ttl time.Duration) CachedOption {
	return func(c *CachedEmbedder) {
		c.tier = tier
		c.ttl = ttl
	}
}

// WithCacheLogger sets the logger used for second-tier errors.
func WithCacheLogger(logger *zap.Logger) CachedOption {
	return func(c *CachedEmbedder) {
		c.logger = logger
	}
}

// NewCachedEmbedder wraps inner with cache.
func NewCachedEmbedder(inner Embedder, cache *Cache, opts ...CachedOption) *CachedEmbedder {
	c := &CachedEmbedder{inner: inner, cache: cache}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	return c
}

// Embed returns a cached embedding or computes it once for all concurrent callers.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	key := ContentKey(text)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if c.tier != nil {
			vec, err := c.tier.Get(ctx, key)
			if err == nil && len(vec) == c.inner.Dimensions() {
				c.cache.Set(text, vec)
				return vec, nil
			}
			if err != nil && !errors.Is(err, ErrCacheMiss) {
				c.logger.Debug("second-tier cache get failed", zap.Error(err))
			}
		}
		vec, err := c.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, text, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// EmbedBatch serves hits from the cache and sends only the misses to the inner embedder.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if v, ok := c.cache.Get(text); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, ErrDimensionMismatch
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		c.store(ctx, ContentKey(missTexts[j]), missTexts[j], vecs[j])
	}
	return out, nil
}

// Warmup embeds texts ahead of traffic and returns how many were newly computed.
func (c *CachedEmbedder) Warmup(ctx context.Context, texts []string) int {
	computed := 0
	for _, text := range texts {
		if ctx.Err() != nil {
			break
		}
		if _, ok := c.cache.Get(text); ok {
			continue
		}
		if _, err := c.Embed(ctx, text); err != nil {
			c.logger.Warn("embedding warmup failed", zap.Error(err))
			continue
		}
		computed++
	}
	return computed
}

func (c *CachedEmbedder) store(ctx context.Context, key, text string, vec []float32) {
	c.cache.Set(text, vec)
	if c.tier == nil {
		return
	}
	if err := c.tier.Set(ctx, key, vec, c.ttl); err != nil {
		c.logger.Debug("second-tier cache set failed", zap.Error(err))
	}
}

// Dimensions returns the inner embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Close closes the inner embedder and a closable second tier. The process
// cache is owned by the caller.
func (c *CachedEmbedder) Close() error {
	err := c.inner.Close()
	if closer, ok := c.tier.(io.Closer); ok {
		err = errors.Join(err, closer.Close())
	}
	return err
}
