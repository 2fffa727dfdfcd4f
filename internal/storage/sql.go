package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

// SQLStore implements Store on SQLite or PostgreSQL.
type SQLStore struct {
	db     *sql.DB
	driver string
}

var _ Store = (*SQLStore)(nil)

// Open connects to the database described by cfg and initializes the schema.
func Open(cfg config.StorageConfig) (*SQLStore, error) {
	switch cfg.Driver {
	case "", "sqlite3":
		return NewSQLiteStore(cfg.DatabasePath)
	case "postgres":
		return NewPostgresStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: unsupported storage driver %q", models.ErrValidation, cfg.Driver)
	}
}

// NewSQLiteStore opens or creates a SQLite database at dbPath.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	return newSQLStore(db, "sqlite3")
}

// NewPostgresStore connects to dsn.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return newSQLStore(db, "postgres")
}

func newSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// The schema sticks to types both engines accept. Arrays and embeddings are JSON text.
func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS knowledge_documents (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		category TEXT NOT NULL,
		embedding TEXT,
		tags TEXT,
		priority INTEGER NOT NULL DEFAULT 5,
		allowed_roles TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		retrieval_count BIGINT NOT NULL DEFAULT 0,
		avg_confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_retrieved_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_tenant_active ON knowledge_documents(tenant_id, is_active);

	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		pattern TEXT NOT NULL,
		keywords TEXT,
		response_template TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 5,
		allowed_roles TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rules_tenant_active ON rules(tenant_id, is_active);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		tenant_id TEXT NOT NULL,
		user_roles TEXT,
		query TEXT NOT NULL,
		answer TEXT NOT NULL,
		source TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		fallback_reason TEXT,
		rule_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		rag_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		matched_rule_id TEXT,
		retrieved_document_ids TEXT,
		response_time_ms BIGINT NOT NULL DEFAULT 0,
		detected_language TEXT,
		language_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		used_generative_model BOOLEAN NOT NULL DEFAULT FALSE,
		generative_model TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_tenant_created ON messages(tenant_id, created_at);

	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL,
		user_id TEXT,
		tenant_id TEXT NOT NULL,
		rating INTEGER NOT NULL,
		is_helpful BOOLEAN NOT NULL,
		comment TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_message ON feedback(message_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_tenant ON feedback(tenant_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Driver returns "sqlite3" or "postgres".
func (s *SQLStore) Driver() string {
	return s.driver
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	return res, nil
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStore, err)
	}
	return rows, nil
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func tenantOrDefault(t string) string {
	if t == "" {
		return models.DefaultTenant
	}
	return t
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal: %w", err)
	}
	return string(data), nil
}

func unmarshalJSON[T any](s sql.NullString, dst *T) error {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(s.String), dst); err != nil {
		return fmt.Errorf("failed to unmarshal: %w", err)
	}
	return nil
}

// rolesAllowed applies the RBAC rule: no restriction, or a shared role.
// nil roles means the caller did not ask for role filtering.
func rolesAllowed(allowed, roles []string) bool {
	if roles == nil || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		for _, r := range roles {
			if a == r {
				return true
			}
		}
	}
	return false
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	return fmt.Errorf("%w: %v", models.ErrStore, err)
}
