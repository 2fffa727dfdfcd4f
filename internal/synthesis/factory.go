package synthesis

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

// NewGenerator builds the configured generator, or nil when generation is disabled.
func NewGenerator(cfg config.GenerationConfig, logger *zap.Logger) (Generator, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Provider {
	case "ollama":
		g, err := NewOllamaGenerator(cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.MaxTokens, httpClient)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "openai":
		retry := DefaultRetryConfig()
		retry.MaxRetries = cfg.MaxRetries
		return NewOpenAIGenerator(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens, retry, httpClient, logger), nil
	}
	return nil, fmt.Errorf("unknown generation provider %q: %w", cfg.Provider, models.ErrValidation)
}
