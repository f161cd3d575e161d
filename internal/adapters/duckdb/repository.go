package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/adityak74/weatherweave/internal/core/ports"
)

// Repository stores the run journal and user settings in DuckDB.
type Repository struct {
	db *sql.DB
}

// Ensure Repository implements Repository interface
var _ ports.Repository = (*Repository)(nil)

// NewRepository opens (or creates) the database at path and applies
// migrations. An empty path opens an in-memory database.
func NewRepository(path string) (*Repository, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	// DuckDB allows one writer per process; serialize through one conn so
	// an in-memory database is shared by every query.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	r := &Repository{db: db}
	if err := r.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return r, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS runs (
				id          VARCHAR PRIMARY KEY,
				run_trigger VARCHAR NOT NULL,
				status      VARCHAR NOT NULL,
				theme       VARCHAR NOT NULL,
				prompt      VARCHAR,
				artifact_id VARCHAR,
				strategy    VARCHAR,
				error       VARCHAR,
				start_time  TIMESTAMP NOT NULL,
				end_time    TIMESTAMP,
				duration_ms BIGINT
			)`,
			`CREATE TABLE IF NOT EXISTS run_stages (
				run_id      VARCHAR NOT NULL,
				seq         INTEGER NOT NULL,
				name        VARCHAR NOT NULL,
				status      VARCHAR NOT NULL,
				error       VARCHAR,
				attributes  VARCHAR,
				start_time  TIMESTAMP NOT NULL,
				end_time    TIMESTAMP,
				duration_ms BIGINT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_runs_start ON runs(start_time)`,
		},
	},
	{
		version: 2,
		name:    "settings",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS settings (
				key        VARCHAR PRIMARY KEY,
				value      VARCHAR NOT NULL,
				updated_at TIMESTAMP NOT NULL DEFAULT current_timestamp
			)`,
		},
	},
}

func (r *Repository) migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       VARCHAR NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func (r *Repository) apply(ctx context.Context, m migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
		return err
	}
	return tx.Commit()
}
