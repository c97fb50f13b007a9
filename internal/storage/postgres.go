package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresSchema = `
	-- Validation runs
	CREATE TABLE IF NOT EXISTS runs (
		seq BIGSERIAL PRIMARY KEY,
		id UUID NOT NULL UNIQUE,
		version TEXT NOT NULL,
		passed BOOLEAN NOT NULL,
		triggered_by TEXT NOT NULL,
		chains_failed INTEGER NOT NULL DEFAULT 0,
		contracts_failed INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	);

	-- Per-chain outcomes
	CREATE TABLE IF NOT EXISTS chain_results (
		run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		chain_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		rpc_url TEXT,
		status TEXT NOT NULL,
		error TEXT,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, chain_id)
	);

	-- Per-contract outcomes
	CREATE TABLE IF NOT EXISTS contract_results (
		run_id UUID NOT NULL,
		chain_id BIGINT NOT NULL,
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

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{sqlStore{
		db:     db,
		logger: logger,
		dialect: dialect{
			name:    "postgres",
			schema:  postgresSchema,
			bind:    rebind,
			timeArg: func(t time.Time) any { return t.UTC() },
			isUnique: func(err error) bool {
				var pgErr *pgconn.PgError
				return errors.As(err, &pgErr) && pgErr.Code == "23505"
			},
		},
	}}, nil
}
