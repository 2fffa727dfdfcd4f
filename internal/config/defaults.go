package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite3"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/db/kotae.db"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "/usr/local/var/kotae/data/indices/bleve"
	}

	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 256
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.OllamaURL == "" {
		cfg.Embedding.OllamaURL = "http://localhost:11434"
	}
	if cfg.Embedding.OllamaModel == "" {
		cfg.Embedding.OllamaModel = "nomic-embed-text"
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 3 * time.Second
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.CacheTTL == 0 {
		cfg.Embedding.CacheTTL = 24 * time.Hour
	}
	if cfg.Embedding.Redis.Prefix == "" {
		cfg.Embedding.Redis.Prefix = "kotae:emb:"
	}

	if cfg.Chatbot.RuleMinConfidence == nil {
		v := cfg.Chatbot.RuleFloor()
		cfg.Chatbot.RuleMinConfidence = &v
	}
	if cfg.Chatbot.RAGMinConfidence == nil {
		v := cfg.Chatbot.RAGFloor()
		cfg.Chatbot.RAGMinConfidence = &v
	}
	if cfg.Chatbot.RAGTopK == 0 {
		cfg.Chatbot.RAGTopK = 5
	}
	if cfg.Chatbot.RAGTimeout == 0 {
		cfg.Chatbot.RAGTimeout = 5 * time.Second
	}
	if cfg.Chatbot.MaxResponseLength == 0 {
		cfg.Chatbot.MaxResponseLength = 2000
	}
	if cfg.Chatbot.MaxRetrievedDocs == 0 {
		cfg.Chatbot.MaxRetrievedDocs = 10
	}
	if cfg.Chatbot.SimilarityThreshold == 0 {
		cfg.Chatbot.SimilarityThreshold = 0.75
	}
	if cfg.Chatbot.RuleComparator == "" {
		cfg.Chatbot.RuleComparator = "dice"
	}

	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "ollama"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "llama3.2"
	}
	if cfg.Generation.BaseURL == "" {
		switch cfg.Generation.Provider {
		case "openai":
			cfg.Generation.BaseURL = "https://api.openai.com/v1"
		default:
			cfg.Generation.BaseURL = "http://localhost:11434"
		}
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.3
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 500
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 10 * time.Second
	}
	if cfg.Generation.MaxRetries == 0 {
		cfg.Generation.MaxRetries = 2
	}

	if cfg.Analytics.BufferSize == 0 {
		cfg.Analytics.BufferSize = 10
	}
	if cfg.Analytics.QueueSize == 0 {
		cfg.Analytics.QueueSize = 1024
	}
	if cfg.Analytics.FlushInterval == 0 {
		cfg.Analytics.FlushInterval = 5 * time.Second
	}

	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.KeywordWeight == 0 && cfg.Search.SemanticWeight == 0 {
		cfg.Search.KeywordWeight = 0.3
		cfg.Search.SemanticWeight = 0.7
	}
	if cfg.Search.TopKCandidates == 0 {
		cfg.Search.TopKCandidates = 100
	}
	if cfg.Search.KeywordTitleBoost == 0 {
		cfg.Search.KeywordTitleBoost = 3.0
	}
	if cfg.Search.ChunkSize == 0 {
		cfg.Search.ChunkSize = 200
	}
	if cfg.Search.ChunkOverlap == 0 {
		cfg.Search.ChunkOverlap = 40
	}
	if cfg.Search.MaxFileBytes == 0 {
		cfg.Search.MaxFileBytes = 32 << 20
	}
}
