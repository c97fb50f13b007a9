package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// dialect captures the differences between the supported databases.
type dialect struct {
	name     string
	schema   string
	bind     func(string) string
	timeArg  func(time.Time) any
	isUnique func(error) bool
}

// sqlStore implements RunStore on database/sql for any dialect.
type sqlStore struct {
	db      *sql.DB
	logger  *slog.Logger
	dialect dialect
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate runs database migrations
func (s *sqlStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	s.logger.Info("database migrations complete", "dialect", s.dialect.name)
	return nil
}

// RecordRun stores a run with all chain and contract results in one transaction
func (s *sqlStore) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = GenerateID()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, s.dialect.bind(`
		INSERT INTO runs (id, version, passed, triggered_by, chains_failed, contracts_failed, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), run.ID, run.Version, run.Passed, run.TriggeredBy, run.ChainsFailed, run.ContractsFailed,
		s.dialect.timeArg(run.StartedAt), s.dialect.timeArg(run.FinishedAt))
	if err != nil {
		if s.dialect.isUnique(err) {
			return ErrRunExists
		}
		return fmt.Errorf("inserting run: %w", err)
	}

	chainStmt, err := tx.PrepareContext(ctx, s.dialect.bind(`
		INSERT INTO chain_results (run_id, chain_id, name, rpc_url, status, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return fmt.Errorf("preparing chain insert: %w", err)
	}
	defer chainStmt.Close()

	contractStmt, err := tx.PrepareContext(ctx, s.dialect.bind(`
		INSERT INTO contract_results (run_id, chain_id, name, address, status, error, code_size, code_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return fmt.Errorf("preparing contract insert: %w", err)
	}
	defer contractStmt.Close()

	for _, c := range run.Chains {
		chainID := int64(c.ChainID)
		if _, err := chainStmt.ExecContext(ctx, run.ID, chainID, c.Name, c.RPCURL, c.Status, c.Error, c.DurationMS); err != nil {
			return fmt.Errorf("inserting chain %d: %w", c.ChainID, err)
		}
		for _, ct := range c.Contracts {
			if _, err := contractStmt.ExecContext(ctx, run.ID, chainID, ct.Name, ct.Address, ct.Status, ct.Error, ct.CodeSize, ct.CodeHash); err != nil {
				return fmt.Errorf("inserting contract %s on chain %d: %w", ct.Name, c.ChainID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

const runColumns = `seq, id, version, passed, triggered_by, chains_failed, contracts_failed, started_at, finished_at`

// GetRun retrieves a run with its chain and contract results
func (s *sqlStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.bind(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id)
	run, _, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadChains(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// LatestRun retrieves the most recent run, optionally for a single version
func (s *sqlStore) LatestRun(ctx context.Context, version string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if version != "" {
		query += ` WHERE version = ?`
		args = append(args, version)
	}
	query += ` ORDER BY seq DESC LIMIT 1`

	run, _, err := scanRun(s.db.QueryRowContext(ctx, s.dialect.bind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadChains(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns lists runs newest first without chain details
func (s *sqlStore) ListRuns(ctx context.Context, filter RunFilter, pagination PaginationParams) (*PaginatedResult[Run], error) {
	if pagination.Limit <= 0 {
		pagination.Limit = 20
	}

	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any
	if filter.Version != "" {
		query += ` AND version = ?`
		args = append(args, filter.Version)
	}
	if filter.Passed != nil {
		query += ` AND passed = ?`
		args = append(args, *filter.Passed)
	}
	if pagination.Cursor != "" {
		seq, err := strconv.ParseInt(pagination.Cursor, 10, 64)
		if err != nil {
			return nil, ErrInvalidCursor
		}
		query += ` AND seq < ?`
		args = append(args, seq)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, pagination.Limit+1)

	rows, err := s.db.QueryContext(ctx, s.dialect.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	var seqs []int64
	for rows.Next() {
		run, seq, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &PaginatedResult[Run]{Data: runs}
	if len(runs) > pagination.Limit {
		result.Data = runs[:pagination.Limit]
		result.HasMore = true
		result.NextCursor = strconv.FormatInt(seqs[pagination.Limit-1], 10)
	}
	return result, nil
}

func (s *sqlStore) loadChains(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx, s.dialect.bind(`
		SELECT chain_id, name, rpc_url, status, error, duration_ms
		FROM chain_results WHERE run_id = ? ORDER BY chain_id
	`), run.ID)
	if err != nil {
		return fmt.Errorf("loading chain results: %w", err)
	}

	index := map[uint64]int{}
	for rows.Next() {
		var c ChainRun
		var chainID int64
		var rpcURL, errText sql.NullString
		if err := rows.Scan(&chainID, &c.Name, &rpcURL, &c.Status, &errText, &c.DurationMS); err != nil {
			rows.Close()
			return err
		}
		c.ChainID = uint64(chainID)
		c.RPCURL = rpcURL.String
		c.Error = errText.String
		index[c.ChainID] = len(run.Chains)
		run.Chains = append(run.Chains, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx, s.dialect.bind(`
		SELECT chain_id, name, address, status, error, code_size, code_hash
		FROM contract_results WHERE run_id = ? ORDER BY chain_id, name
	`), run.ID)
	if err != nil {
		return fmt.Errorf("loading contract results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ct ContractRun
		var chainID int64
		var errText, codeHash sql.NullString
		if err := rows.Scan(&chainID, &ct.Name, &ct.Address, &ct.Status, &errText, &ct.CodeSize, &codeHash); err != nil {
			return err
		}
		ct.Error = errText.String
		ct.CodeHash = codeHash.String
		if i, ok := index[uint64(chainID)]; ok {
			run.Chains[i].Contracts = append(run.Chains[i].Contracts, ct)
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, int64, error) {
	var run Run
	var seq int64
	var started, finished dbTime
	if err := row.Scan(&seq, &run.ID, &run.Version, &run.Passed, &run.TriggeredBy,
		&run.ChainsFailed, &run.ContractsFailed, &started, &finished); err != nil {
		return nil, 0, err
	}
	run.StartedAt = started.Time
	run.FinishedAt = finished.Time
	return &run, seq, nil
}
