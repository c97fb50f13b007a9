// Package storage persists validation run history.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pendergraft/delegation-deployments/internal/config"
)

// RunStore handles validation run history
type RunStore interface {
	RecordRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter, pagination PaginationParams) (*PaginatedResult[Run], error)
	LatestRun(ctx context.Context, version string) (*Run, error)
}

// Store combines the storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	RunStore

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
}

// Run is a stored validation run
type Run struct {
	ID              string
	Version         string
	Passed          bool
	TriggeredBy     string // "cli", "api" or "schedule"
	ChainsFailed    int
	ContractsFailed int
	StartedAt       time.Time
	FinishedAt      time.Time
	Chains          []ChainRun // empty in list results
}

// ChainRun is the stored outcome of one chain in a run
type ChainRun struct {
	ChainID    uint64
	Name       string
	RPCURL     string
	Status     string
	Error      string
	DurationMS int64
	Contracts  []ContractRun
}

// ContractRun is the stored outcome of one contract check
type ContractRun struct {
	Name     string
	Address  string
	Status   string
	Error    string
	CodeSize int
	CodeHash string
}

// RunFilter contains filter options for listing runs
type RunFilter struct {
	Version string
	Passed  *bool
}

// PaginationParams contains pagination options
type PaginationParams struct {
	Limit  int
	Cursor string
}

// PaginatedResult contains paginated results
type PaginatedResult[T any] struct {
	Data       []T
	HasMore    bool
	NextCursor string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
