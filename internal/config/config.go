// Package config provides configuration loading and structs for the kotae server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Chatbot    ChatbotConfig    `yaml:"chatbot"`
	Generation GenerationConfig `yaml:"generation"`
	Intent     IntentConfig     `yaml:"intent"`
	Analytics  AnalyticsConfig  `yaml:"analytics"`
	Search     SearchConfig     `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig selects the SQL driver and index locations.
type StorageConfig struct {
	// Driver is "sqlite3" or "postgres".
	Driver string `yaml:"driver"`
	// DatabasePath is the SQLite file; ignored for postgres.
	DatabasePath string `yaml:"database_path"`
	// DSN is the postgres connection string.
	DSN              string `yaml:"dsn"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	Dimensions int `yaml:"dimensions"`
	// UseExternal switches from the hash embedder to Provider.
	UseExternal bool `yaml:"use_external"`
	// Provider is "onnx" or "ollama".
	Provider    string        `yaml:"provider"`
	ModelPath   string        `yaml:"model_path"`
	MaxTokens   int           `yaml:"max_tokens"`
	OllamaURL   string        `yaml:"ollama_url"`
	OllamaModel string        `yaml:"ollama_model"`
	Timeout     time.Duration `yaml:"timeout"`
	CacheSize   int           `yaml:"cache_size"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	Redis       RedisConfig   `yaml:"redis"`
}

// RedisConfig configures the optional shared embedding cache. Empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ChatbotConfig holds the pipeline knobs.
type ChatbotConfig struct {
	EnableRules         *bool         `yaml:"enable_rules"`
	EnableRAG           *bool         `yaml:"enable_rag"`
	LogMessages         *bool         `yaml:"log_messages"`
	RuleMinConfidence   *float64      `yaml:"rule_min_confidence"`
	RAGMinConfidence    *float64      `yaml:"rag_min_confidence"`
	RAGTopK             int           `yaml:"rag_top_k"`
	RAGTimeout          time.Duration `yaml:"rag_timeout"`
	MaxResponseLength   int           `yaml:"max_response_length"`
	MaxRetrievedDocs    int           `yaml:"max_retrieved_docs"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	// RuleComparator is "dice" or "levenshtein".
	RuleComparator string `yaml:"rule_comparator"`
	// Maintenance answers every query with the maintenance message.
	Maintenance bool `yaml:"maintenance"`
}

// RulesEnabled defaults to true when unset.
func (c *ChatbotConfig) RulesEnabled() bool { return boolOr(c.EnableRules, true) }

// RAGEnabled defaults to true when unset.
func (c *ChatbotConfig) RAGEnabled() bool { return boolOr(c.EnableRAG, true) }

// MessageLogEnabled defaults to true when unset.
func (c *ChatbotConfig) MessageLogEnabled() bool { return boolOr(c.LogMessages, true) }

// RuleFloor is the rule confidence floor, 0.35 when unset. An explicit 0
// accepts every match.
func (c *ChatbotConfig) RuleFloor() float64 { return floatOr(c.RuleMinConfidence, 0.35) }

// RAGFloor is the retrieval confidence floor, 0.15 when unset. An explicit 0
// accepts every retrieved document.
func (c *ChatbotConfig) RAGFloor() float64 { return floatOr(c.RAGMinConfidence, 0.15) }

func floatOr(f *float64, def float64) float64 {
	if f != nil {
		return *f
	}
	return def
}

func boolOr(b *bool, def bool) bool {
	if b != nil {
		return *b
	}
	return def
}

// GenerationConfig configures the optional generative-model provider.
type GenerationConfig struct {
	// Enabled turns on model synthesis; concatenation is used otherwise.
	Enabled bool `yaml:"enabled"`
	// Provider is "ollama" or "openai" (any OpenAI-compatible endpoint).
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

// IntentConfig points at the phrase dictionary used by the intent classifier.
type IntentConfig struct {
	DictionaryPath string `yaml:"dictionary_path"`
	Watch          bool   `yaml:"watch"`
}

// AnalyticsConfig tunes the retrieval counter consumer.
type AnalyticsConfig struct {
	BufferSize    int           `yaml:"buffer_size"`
	QueueSize     int           `yaml:"queue_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// SearchConfig tunes the document search endpoint and ingestion chunking.
type SearchConfig struct {
	DefaultLimit      int     `yaml:"default_limit"`
	MaxLimit          int     `yaml:"max_limit"`
	KeywordWeight     float64 `yaml:"keyword_weight"`
	SemanticWeight    float64 `yaml:"semantic_weight"`
	TopKCandidates    int     `yaml:"top_k_candidates"`
	KeywordTitleBoost float64 `yaml:"keyword_title_boost"`
	// ChunkSize and ChunkOverlap are in words.
	ChunkSize    int   `yaml:"chunk_size"`
	ChunkOverlap int   `yaml:"chunk_overlap"`
	MaxFileBytes int64 `yaml:"max_file_bytes"`
}

// Load reads the YAML config at path, loads a sibling .env file when present,
// applies CHATBOT_* environment overrides, fills defaults and validates.
// An empty path yields the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	var cfg Config
	configDir := "."
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		configDir = filepath.Dir(path)
	}

	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Intent.DictionaryPath != "" {
		cfg.Intent.DictionaryPath = expandPath(cfg.Intent.DictionaryPath, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks value ranges after defaults have been applied.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	cb := c.Chatbot
	check(cb.RuleFloor() >= 0 && cb.RuleFloor() <= 1, "chatbot.rule_min_confidence must be in [0,1], got %v", cb.RuleFloor())
	check(cb.RAGFloor() >= 0 && cb.RAGFloor() <= 1, "chatbot.rag_min_confidence must be in [0,1], got %v", cb.RAGFloor())
	check(cb.SimilarityThreshold >= 0 && cb.SimilarityThreshold <= 1, "chatbot.similarity_threshold must be in [0,1], got %v", cb.SimilarityThreshold)
	check(cb.RAGTopK >= 1, "chatbot.rag_top_k must be >= 1, got %d", cb.RAGTopK)
	check(cb.MaxResponseLength >= 1, "chatbot.max_response_length must be >= 1, got %d", cb.MaxResponseLength)
	sc := c.Search
	check(sc.KeywordWeight >= 0 && sc.SemanticWeight >= 0 && sc.KeywordWeight+sc.SemanticWeight > 0, "search weights must be non-negative and not both zero")
	check(sc.ChunkOverlap < sc.ChunkSize, "search.chunk_overlap must be smaller than chunk_size")
	check(sc.DefaultLimit <= sc.MaxLimit, "search.default_limit must not exceed max_limit")
	check(cb.RuleComparator == "dice" || cb.RuleComparator == "levenshtein", "chatbot.rule_comparator must be dice or levenshtein, got %q", cb.RuleComparator)
	check(c.Embedding.Dimensions >= 1, "embedding.dimensions must be >= 1, got %d", c.Embedding.Dimensions)
	if c.Embedding.UseExternal {
		check(c.Embedding.Provider == "onnx" || c.Embedding.Provider == "ollama", "embedding.provider must be onnx or ollama, got %q", c.Embedding.Provider)
	}
	if c.Generation.Enabled {
		check(c.Generation.Provider == "ollama" || c.Generation.Provider == "openai", "generation.provider must be ollama or openai, got %q", c.Generation.Provider)
	}
	check(c.Generation.Temperature >= 0 && c.Generation.Temperature <= 2, "generation.temperature must be in [0,2], got %v", c.Generation.Temperature)
	check(c.Storage.Driver == "sqlite3" || c.Storage.Driver == "postgres", "storage.driver must be sqlite3 or postgres, got %q", c.Storage.Driver)
	if c.Storage.Driver == "postgres" {
		check(c.Storage.DSN != "", "storage.dsn is required for postgres")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
