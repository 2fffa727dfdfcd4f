package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kotae/internal/analytics"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/storage"
)

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{"flags after query are moved first", []string{"học phí", "-limit", "5"}, []string{"-limit", "5", "học phí"}},
		{"flags first returns unchanged", []string{"-limit", "5", "học phí"}, []string{"-limit", "5", "học phí"}},
		{"query only returns unchanged", []string{"học phí"}, []string{"học phí"}},
		{"empty args returns unchanged", []string{}, []string{}},
		{"multiple positionals then flags", []string{"one", "two", "-fuzzy"}, []string{"-fuzzy", "one", "two"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, searchArgsReorder(tt.args))
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"học"}, "học"},
		{"multiple words", []string{"học", "phí"}, "học phí"},
		{"single quoted phrase", []string{"học phí"}, "học phí"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildSearchQuery(tt.args))
		})
	}
}

func TestIdentity(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	who := identityFlags(fs)
	require.NoError(t, fs.Parse([]string{"-user", "u7", "-tenant", "school-a", "-roles", "student, ,admin"}))

	user := who.context()
	assert.Equal(t, "u7", user.ID)
	assert.Equal(t, "school-a", user.Tenant())
	assert.Equal(t, []string{"student", "admin"}, user.Roles)
	assert.Equal(t, "student, ,admin", who.header().Get("X-User-Roles"))
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
storage:
  database_path: "test.db"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	origWd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { _ = os.Chdir(origWd) }()
	require.NoError(t, os.Chdir(dir))

	cfg, resolved, err := loadConfig(defaultConfigPath)
	require.NoError(t, err)
	// cwd may differ from t.TempDir() by a symlink on macOS.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	assert.Equal(t, configPathCanon, resolvedCanon)
	assert.True(t, cfg.Debug)
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	cfg, resolved, err := loadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, configPath, resolved)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			DatabasePath:     filepath.Join(dir, "kotae.db"),
			KeywordIndexPath: filepath.Join(dir, "bleve"),
		},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestInitializeComponents(t *testing.T) {
	cfg := testConfig(t)
	c, err := initializeComponents(cfg, nil)
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	_, err = c.Indexer.IndexDocument(ctx, indexer.Input{
		ID: "fee", Title: "Học phí", Content: "Học phí học kỳ đóng qua ngân hàng trước ngày 15.", Category: "faq",
	})
	require.NoError(t, err)
	require.NoError(t, c.Store.UpsertRule(ctx, &models.Rule{
		ID: "reg", Keywords: []string{"đăng ký"}, ResponseTemplate: "Vào mục Hoạt động và bấm Đăng ký.", Priority: 9, IsActive: true,
	}))

	res := c.Orchestrator.Handle(ctx, "đăng ký hoạt động như thế nào", models.UserContext{ID: "u1"})
	assert.Equal(t, models.SourceRule, res.Source)

	res = c.Orchestrator.Handle(ctx, "học phí học kỳ đóng qua ngân hàng nào", models.UserContext{ID: "u1"})
	assert.Equal(t, models.SourceRAG, res.Source)
	assert.Contains(t, res.RetrievedDocumentIDs, "fee")

	resp, err := c.Engine.Search(ctx, models.UserContext{}, search.Request{Query: "học phí"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "fee", resp.Results[0].Document.ID)
	assert.NotNil(t, c.ServerDeps().Orchestrator)
}

func TestComponents_WarmReloadsIndexes(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	first, err := initializeComponents(cfg, nil)
	require.NoError(t, err)
	_, err = first.Indexer.IndexDocument(ctx, indexer.Input{ID: "wifi", Title: "Wifi", Content: "The campus wifi password changes monthly."})
	require.NoError(t, err)
	first.Close()

	second, err := initializeComponents(cfg, nil)
	require.NoError(t, err)
	defer second.Close()
	assert.Zero(t, second.VectorIndex.Size(), "vectors live in memory only")
	n, err := second.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, second.VectorIndex.Size())
}

func TestInitializeComponents_BadDictionary(t *testing.T) {
	cfg := testConfig(t)
	cfg.Intent.DictionaryPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := initializeComponents(cfg, nil)
	assert.Error(t, err)
}

func TestWriteStatsText(t *testing.T) {
	stats := &statsResponse{
		Report: &analytics.Report{
			TenantID:  models.DefaultTenant,
			Documents: 3,
			Rules:     2,
			Messages: &models.MessageStats{
				TotalMessages: 5,
				BySource:      map[models.Source]int64{models.SourceRule: 5},
				FeedbackCount: 1, AvgFeedbackRating: 4,
			},
		},
		Index:     &search.IndexStats{KeywordDocuments: 3, VectorDocuments: 3},
		Footprint: &storage.Footprint{DatabaseBytes: 100, KeywordIndexBytes: 20},
	}
	var buf bytes.Buffer
	writeStatsText(&buf, stats)
	out := buf.String()
	for _, sub := range []string{"documents:          3", "messages:           5", "rule", "keyword_index:      3 documents", "disk_usage_bytes:   120"} {
		assert.Contains(t, out, sub)
	}
}
