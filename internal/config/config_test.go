package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
chatbot:
  rag_top_k: 3
  rag_timeout: 2s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Chatbot.RAGTopK != 3 {
		t.Errorf("rag_top_k = %d, want 3", cfg.Chatbot.RAGTopK)
	}
	if cfg.Chatbot.RAGTimeout != 2*time.Second {
		t.Errorf("rag_timeout = %v, want 2s", cfg.Chatbot.RAGTimeout)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "debug: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
	cb := cfg.Chatbot
	if cb.RuleFloor() != 0.35 || cb.RAGFloor() != 0.15 || cb.RAGTopK != 5 || cb.MaxResponseLength != 2000 {
		t.Errorf("unexpected chatbot defaults: %+v", cb)
	}
	if !cb.RulesEnabled() || !cb.RAGEnabled() || !cb.MessageLogEnabled() {
		t.Error("feature flags should default to true")
	}
	if cfg.Embedding.Dimensions != 256 || cfg.Embedding.UseExternal {
		t.Errorf("unexpected embedding defaults: %+v", cfg.Embedding)
	}
	if cfg.Generation.Enabled {
		t.Error("generation should be off by default")
	}
	if cfg.Storage.Driver != "sqlite3" {
		t.Errorf("driver = %q, want sqlite3", cfg.Storage.Driver)
	}
	if cfg.Search.DefaultLimit != 10 || cfg.Search.SemanticWeight != 0.7 || cfg.Search.ChunkSize != 200 {
		t.Errorf("unexpected search defaults: %+v", cfg.Search)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/db/kotae.db"
intent:
  dictionary_path: "./intent.yaml"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Dir(path)
	if want := filepath.Join(dir, "data", "db", "kotae.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %q, want %q", cfg.Storage.DatabasePath, want)
	}
	if want := filepath.Join(dir, "intent.yaml"); cfg.Intent.DictionaryPath != want {
		t.Errorf("dictionary_path = %q, want %q", cfg.Intent.DictionaryPath, want)
	}
}

func TestLoad_DotEnvOverrides(t *testing.T) {
	path := writeConfig(t, "chatbot:\n  rag_top_k: 3\n")
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := os.WriteFile(envPath, []byte("CHATBOT_RAG_TOP_K=7\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("CHATBOT_RAG_TOP_K") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chatbot.RAGTopK != 7 {
		t.Errorf("rag_top_k = %d, want 7 from .env", cfg.Chatbot.RAGTopK)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "server: [")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_ExplicitZeroFloors(t *testing.T) {
	cfg, err := Load(writeConfig(t, "chatbot:\n  rule_min_confidence: 0\n  rag_min_confidence: 0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chatbot.RuleFloor() != 0 || cfg.Chatbot.RAGFloor() != 0 {
		t.Errorf("explicit zero floors replaced: rule=%v rag=%v", cfg.Chatbot.RuleFloor(), cfg.Chatbot.RAGFloor())
	}

	var fromEnv Config
	env := map[string]string{"CHATBOT_RAG_MIN_CONFIDENCE": "0"}
	if err := ApplyEnv(&fromEnv, func(k string) (string, bool) { v, ok := env[k]; return v, ok }); err != nil {
		t.Fatal(err)
	}
	ApplyDefaults(&fromEnv)
	if fromEnv.Chatbot.RAGFloor() != 0 {
		t.Errorf("rag floor from env = %v, want 0", fromEnv.Chatbot.RAGFloor())
	}
	if fromEnv.Chatbot.RuleFloor() != 0.35 {
		t.Errorf("unset rule floor = %v, want 0.35", fromEnv.Chatbot.RuleFloor())
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CHATBOT_ENABLE_RAG":             "false",
		"CHATBOT_RULE_MIN_CONFIDENCE":    "0.5",
		"CHATBOT_RAG_TIMEOUT_MS":         "1500",
		"CHATBOT_USE_EXTERNAL_EMBEDDING": "true",
		"CHATBOT_EMBEDDING_PROVIDER":     "ollama",
		"CHATBOT_USE_LLM_FOR_RAG":        "true",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	var cfg Config
	if err := ApplyEnv(&cfg, lookup); err != nil {
		t.Fatal(err)
	}
	if cfg.Chatbot.RAGEnabled() {
		t.Error("CHATBOT_ENABLE_RAG=false should disable RAG")
	}
	if cfg.Chatbot.RuleFloor() != 0.5 {
		t.Errorf("rule floor = %v", cfg.Chatbot.RuleFloor())
	}
	if cfg.Chatbot.RAGTimeout != 1500*time.Millisecond {
		t.Errorf("rag timeout = %v", cfg.Chatbot.RAGTimeout)
	}
	if !cfg.Embedding.UseExternal || cfg.Embedding.Provider != "ollama" || !cfg.Generation.Enabled {
		t.Errorf("provider switches not applied: %+v %+v", cfg.Embedding, cfg.Generation)
	}
}

func TestApplyEnv_Malformed(t *testing.T) {
	env := map[string]string{"CHATBOT_RAG_TOP_K": "five", "CHATBOT_ENABLE_RULES": "maybe"}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }
	var cfg Config
	err := ApplyEnv(&cfg, lookup)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"CHATBOT_RAG_TOP_K", "CHATBOT_ENABLE_RULES"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q should mention %s", err, key)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults valid", func(*Config) {}, ""},
		{"rule floor above one", func(c *Config) { v := 1.5; c.Chatbot.RuleMinConfidence = &v }, "rule_min_confidence"},
		{"negative rag floor", func(c *Config) { v := -0.1; c.Chatbot.RAGMinConfidence = &v }, "rag_min_confidence"},
		{"zero top k", func(c *Config) { c.Chatbot.RAGTopK = -1 }, "rag_top_k"},
		{"unknown provider", func(c *Config) { c.Embedding.UseExternal = true; c.Embedding.Provider = "bert" }, "embedding.provider"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }, "storage.dsn"},
		{"chunk overlap too large", func(c *Config) { c.Search.ChunkOverlap = c.Search.ChunkSize }, "chunk_overlap"},
		{"negative search weight", func(c *Config) { c.Search.KeywordWeight = -1 }, "search weights"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			ApplyDefaults(&cfg)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	cfg.Server.Port = 9191
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := Save(path, &cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9191 {
		t.Errorf("port = %d, want 9191", loaded.Server.Port)
	}
}
