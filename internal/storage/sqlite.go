package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	-- Validation runs
	CREATE TABLE IF NOT EXISTS runs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		version TEXT NOT NULL,
		passed INTEGER NOT NULL,
		triggered_by TEXT NOT NULL,
		chains_failed INTEGER NOT NULL DEFAULT 0,
		contracts_failed INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);

	-- Per-chain outcomes
	CREATE TABLE IF NOT EXISTS chain_results (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		chain_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		rpc_url TEXT,
		status TEXT NOT NULL,
		error TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, chain_id)
	);

	-- Per-contract outcomes
	CREATE TABLE IF NOT EXISTS contract_results (
		run_id TEXT NOT NULL,
		chain_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		code_size INTEGER NOT NULL DEFAULT 0,
		code_hash TEXT,
		PRIMARY KEY (run_id, chain_id, name),
		FOREIGN KEY (run_id, chain_id) REFERENCES chain_results(run_id, chain_id) ON DELETE CASCADE
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_runs_version ON runs(version, seq);
	CREATE INDEX IF NOT EXISTS idx_contract_results_address ON contract_results(address);
`

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Pragmas are per connection
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return &SQLiteStore{sqlStore{
		db:     db,
		logger: logger,
		dialect: dialect{
			name:    "sqlite",
			schema:  sqliteSchema,
			bind:    func(q string) string { return q },
			timeArg: func(t time.Time) any { return textTime(t) },
			isUnique: func(err error) bool {
				return strings.Contains(err.Error(), "UNIQUE constraint failed")
			},
		},
	}}, nil
}
