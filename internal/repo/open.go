package repo

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/mlevan/autopost/internal/config"
)

//go:embed schema_postgres.sql schema_sqlite.sql
var schemaFS embed.FS

// Open opens the configured database, applies the schema and returns the
// handle plus the driver name ("postgres" or "sqlite").
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, string, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := sql.Open("pgx", cfg.PostgresURL)
		if err != nil {
			return nil, "", err
		}
		if err := migrate(ctx, db, "schema_postgres.sql"); err != nil {
			_ = db.Close()
			return nil, "", err
		}
		return db, "postgres", nil

	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, "", err
			}
		}
		db, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, "", err
		}
		return db, "sqlite", nil

	default:
		return nil, "", fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

// OpenSQLite opens a sqlite database at the given path (":memory:" works)
// and applies the schema. SQLite prefers a single writer, so the pool is
// capped at one connection.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON")

	if err := migrate(ctx, db, "schema_sqlite.sql"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB, file string) error {
	b, err := schemaFS.ReadFile(file)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("apply schema %s: %w", file, err)
	}
	return nil
}
