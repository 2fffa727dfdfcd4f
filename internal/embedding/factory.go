package embedding

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/pkg/utils"
)

// New builds the embedder described by cfg and returns it with its process cache.
// Without UseExternal the hash embedder is returned directly. Otherwise the
// provider is cached and wrapped in a Fallback onto the hash embedder. A provider
// that cannot be constructed is logged and skipped.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, *Cache, error) {
	logger = utils.OrNop(logger)
	hash := NewHashEmbedder(cfg.Dimensions)
	cache := NewCache(cfg.CacheSize, cfg.CacheTTL)
	if !cfg.UseExternal {
		return NewCachedEmbedder(hash, cache, WithCacheLogger(logger)), cache, nil
	}

	provider, err := newProvider(cfg)
	if err != nil {
		logger.Warn("external embedder unavailable, using hash embedder",
			zap.String("provider", cfg.Provider), zap.Error(err))
		return NewCachedEmbedder(hash, cache, WithCacheLogger(logger)), cache, nil
	}

	opts := []CachedOption{WithCacheLogger(logger)}
	if cfg.Redis.Addr != "" {
		rc, err := NewRedisCache(cfg.Redis)
		if err != nil {
			logger.Warn("redis embedding cache unavailable", zap.Error(err))
		} else {
			opts = append(opts, WithSecondTier(rc, cfg.CacheTTL))
		}
	}
	cached := NewCachedEmbedder(provider, cache, opts...)
	return NewFallback(cached, hash, cfg.Timeout, logger), cache, nil
}

func newProvider(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "onnx":
		return NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	case "ollama":
		return NewOllamaEmbedder(cfg.OllamaURL, cfg.OllamaModel, cfg.Dimensions, &http.Client{Timeout: cfg.Timeout})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
