package database

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Supported database types
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Config selects and locates the database
type Config struct {
	Type       string // "sqlite" or "postgres"
	SQLitePath string // file path, or ":memory:"
	URL        string // postgres connection string
}

// Connect establishes a connection to the database and creates the schema
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch cfg.Type {
	case TypePostgres:
		if cfg.URL == "" {
			return nil, errors.New("postgres selected but DATABASE_URL is empty")
		}
		db, err = sqlx.ConnectContext(ctx, "postgres", cfg.URL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to postgres")
		}
	case TypeSQLite, "":
		db, err = connectSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("unsupported database type %q", cfg.Type)
	}

	if err := InitializeSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func connectSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	if path == "" {
		path = filepath.Join("data", "fasecards.db")
	}
	if path != ":memory:" {
		// Create data directory if it doesn't exist
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create data directory")
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to sqlite")
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable foreign keys")
	}

	// SQLite doesn't support multiple writers; one connection also keeps :memory: databases alive
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return db, nil
}

// InitializeSchema creates necessary tables if they don't exist
func InitializeSchema(ctx context.Context, db *sqlx.DB) error {
	serial, float, ts := "INTEGER PRIMARY KEY AUTOINCREMENT", "REAL", "TIMESTAMP"
	if db.DriverName() == "postgres" {
		serial, float, ts = "BIGSERIAL PRIMARY KEY", "DOUBLE PRECISION", "TIMESTAMPTZ"
	}

	statements := []struct {
		table string
		ddl   string
	}{
		{"learners", `
			CREATE TABLE IF NOT EXISTS learners (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL DEFAULT '',
				telegram_chat_id BIGINT NOT NULL DEFAULT 0,
				created_at ` + ts + ` NOT NULL
			)`},
		{"collections", `
			CREATE TABLE IF NOT EXISTS collections (
				id TEXT PRIMARY KEY,
				kind TEXT NOT NULL DEFAULT 'deck',
				title TEXT NOT NULL UNIQUE,
				phase INTEGER NOT NULL DEFAULT 0,
				theme TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				created_at ` + ts + ` NOT NULL
			)`},
		{"collections phase index", `
			CREATE UNIQUE INDEX IF NOT EXISTS idx_collections_kind_phase ON collections (kind, phase) WHERE phase > 0`},
		{"items", `
			CREATE TABLE IF NOT EXISTS items (
				id TEXT PRIMARY KEY,
				collection_id TEXT NOT NULL REFERENCES collections(id),
				position INTEGER NOT NULL,
				prompt TEXT NOT NULL,
				answer TEXT NOT NULL,
				practice_example TEXT NOT NULL DEFAULT '',
				explanation TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL DEFAULT '',
				difficulty TEXT NOT NULL DEFAULT '',
				UNIQUE(collection_id, prompt)
			)`},
		{"private_collections", `
			CREATE TABLE IF NOT EXISTS private_collections (
				learner_id TEXT NOT NULL REFERENCES learners(id),
				collection_id TEXT NOT NULL REFERENCES collections(id),
				kind TEXT NOT NULL DEFAULT 'deck',
				title TEXT NOT NULL,
				phase INTEGER NOT NULL DEFAULT 0,
				score ` + float + ` NOT NULL DEFAULT 0,
				is_locked BOOLEAN NOT NULL DEFAULT TRUE,
				last_accessed ` + ts + ` NOT NULL,
				next_review_date ` + ts + `,
				created_at ` + ts + ` NOT NULL,
				updated_at ` + ts + ` NOT NULL,
				PRIMARY KEY (learner_id, collection_id)
			)`},
		{"session_responses", `
			CREATE TABLE IF NOT EXISTS session_responses (
				seq ` + serial + `,
				id TEXT NOT NULL UNIQUE,
				learner_id TEXT NOT NULL,
				collection_id TEXT NOT NULL,
				item_ids TEXT NOT NULL,
				score ` + float + ` NOT NULL,
				created_at ` + ts + ` NOT NULL,
				FOREIGN KEY (learner_id, collection_id) REFERENCES private_collections(learner_id, collection_id)
			)`},
		{"item_metrics", `
			CREATE TABLE IF NOT EXISTS item_metrics (
				id ` + serial + `,
				response_id TEXT NOT NULL REFERENCES session_responses(id),
				learner_id TEXT NOT NULL,
				item_id TEXT NOT NULL REFERENCES items(id),
				attempts INTEGER NOT NULL,
				ease_factor ` + float + ` NOT NULL,
				review_quality INTEGER NOT NULL,
				next_review_date ` + ts + ` NOT NULL,
				last_attempt ` + ts + ` NOT NULL
			)`},
		{"item_metrics index", `
			CREATE INDEX IF NOT EXISTS idx_item_metrics_learner_item ON item_metrics (learner_id, item_id)`},
	}

	for _, st := range statements {
		if _, err := db.ExecContext(ctx, st.ddl); err != nil {
			return errors.Wrapf(err, "failed to create %s", st.table)
		}
	}
	return nil
}
