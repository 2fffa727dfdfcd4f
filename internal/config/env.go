package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg fields from CHATBOT_* environment variables.
// Durations ending in _MS are milliseconds. Malformed values are reported together.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	e := envReader{lookup: lookup}

	e.boolPtr("CHATBOT_ENABLE_RULES", &cfg.Chatbot.EnableRules)
	e.boolPtr("CHATBOT_ENABLE_RAG", &cfg.Chatbot.EnableRAG)
	e.boolPtr("CHATBOT_LOG_MESSAGES", &cfg.Chatbot.LogMessages)
	e.floatPtr("CHATBOT_RULE_MIN_CONFIDENCE", &cfg.Chatbot.RuleMinConfidence)
	e.floatPtr("CHATBOT_RAG_MIN_CONFIDENCE", &cfg.Chatbot.RAGMinConfidence)
	e.int("CHATBOT_RAG_TOP_K", &cfg.Chatbot.RAGTopK)
	e.millis("CHATBOT_RAG_TIMEOUT_MS", &cfg.Chatbot.RAGTimeout)
	e.int("CHATBOT_MAX_RESPONSE_LENGTH", &cfg.Chatbot.MaxResponseLength)
	e.int("CHATBOT_MAX_RETRIEVED_DOCS", &cfg.Chatbot.MaxRetrievedDocs)
	e.float("CHATBOT_SIMILARITY_THRESHOLD", &cfg.Chatbot.SimilarityThreshold)
	e.str("CHATBOT_RULE_COMPARATOR", &cfg.Chatbot.RuleComparator)
	e.bool("CHATBOT_MAINTENANCE", &cfg.Chatbot.Maintenance)

	e.int("CHATBOT_EMBEDDING_DIMENSION", &cfg.Embedding.Dimensions)
	e.bool("CHATBOT_USE_EXTERNAL_EMBEDDING", &cfg.Embedding.UseExternal)
	e.str("CHATBOT_EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	e.str("CHATBOT_EMBEDDING_MODEL", &cfg.Embedding.OllamaModel)
	e.str("OLLAMA_HOST", &cfg.Embedding.OllamaURL)
	e.int("CHATBOT_EMBEDDING_CACHE_SIZE", &cfg.Embedding.CacheSize)
	e.millis("CHATBOT_EMBEDDING_CACHE_TTL", &cfg.Embedding.CacheTTL)
	e.str("CHATBOT_REDIS_ADDR", &cfg.Embedding.Redis.Addr)
	e.str("CHATBOT_REDIS_PASSWORD", &cfg.Embedding.Redis.Password)

	e.bool("CHATBOT_USE_LLM_FOR_RAG", &cfg.Generation.Enabled)
	e.str("CHATBOT_LLM_PROVIDER", &cfg.Generation.Provider)
	e.str("CHATBOT_LLM_MODEL", &cfg.Generation.Model)
	e.str("CHATBOT_LLM_BASE_URL", &cfg.Generation.BaseURL)
	e.str("CHATBOT_LLM_API_KEY", &cfg.Generation.APIKey)
	e.float("CHATBOT_LLM_TEMPERATURE", &cfg.Generation.Temperature)
	e.int("CHATBOT_LLM_MAX_TOKENS", &cfg.Generation.MaxTokens)
	e.millis("CHATBOT_LLM_TIMEOUT_MS", &cfg.Generation.Timeout)

	e.int("CHATBOT_ANALYTICS_BUFFER_SIZE", &cfg.Analytics.BufferSize)
	e.millis("CHATBOT_ANALYTICS_FLUSH_INTERVAL", &cfg.Analytics.FlushInterval)

	e.str("CHATBOT_DATABASE_DRIVER", &cfg.Storage.Driver)
	e.str("CHATBOT_DATABASE_DSN", &cfg.Storage.DSN)
	e.str("CHATBOT_INTENT_DICTIONARY", &cfg.Intent.DictionaryPath)

	if len(e.errs) > 0 {
		return fmt.Errorf("invalid environment: %w", errors.Join(e.errs...))
	}
	return nil
}

type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) fail(key, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, v, err))
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) bool(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) boolPtr(key string, dst **bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = &b
	}
}

func (e *envReader) int(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) floatPtr(key string, dst **float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = &f
	}
}

func (e *envReader) millis(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = time.Duration(n) * time.Millisecond
	}
}
