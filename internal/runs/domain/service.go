package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/pendergraft/delegation-deployments/internal/checker"
	"github.com/pendergraft/delegation-deployments/internal/observability/metrics"
	"github.com/pendergraft/delegation-deployments/internal/storage"
	"github.com/pendergraft/delegation-deployments/internal/validation"
)

// Common errors returned by the runs service.
var (
	ErrNotFound       = errors.New("run not found")
	ErrInvalidVersion = errors.New("invalid version")
	ErrInvalidRequest = errors.New("invalid validation request")
	ErrInvalidCursor  = errors.New("invalid cursor")
	ErrRunInProgress  = errors.New("a validation run is already in progress")
)

// Service defines the runs service interface.
type Service interface {
	// Trigger runs a validation of version (latest when empty) and stores it.
	Trigger(ctx context.Context, version, triggeredBy string) (*Run, error)

	// Get retrieves a run with its chain results.
	Get(ctx context.Context, id string) (*Run, error)

	// List lists runs without chain results, newest first.
	List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error)

	// Latest returns the newest run, optionally for one version.
	Latest(ctx context.Context, version string) (*Run, error)
}

// Validator runs a deployment validation.
type Validator interface {
	Run(ctx context.Context, version string) (*checker.Report, error)
}

// RunStore defines the storage operations needed by the runs domain.
type RunStore interface {
	RecordRun(ctx context.Context, run *storage.Run) error
	GetRun(ctx context.Context, id string) (*storage.Run, error)
	ListRuns(ctx context.Context, filter storage.RunFilter, pagination storage.PaginationParams) (*storage.PaginatedResult[storage.Run], error)
	LatestRun(ctx context.Context, version string) (*storage.Run, error)
}

// Option configures the service.
type Option func(*service)

// WithCache caches latest-run lookups for ttl.
func WithCache(ttl time.Duration) Option {
	return func(s *service) {
		if ttl > 0 {
			s.latest = cache.New(ttl, 2*ttl)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

type service struct {
	validator Validator
	store     RunStore
	latest    *cache.Cache
	logger    *slog.Logger

	// running serializes triggers; a second trigger fails fast.
	running sync.Mutex
}

// NewService creates a new runs service.
func NewService(validator Validator, store RunStore, opts ...Option) *service {
	s := &service{
		validator: validator,
		store:     store,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger runs a validation and records it.
func (s *service) Trigger(ctx context.Context, version, triggeredBy string) (*Run, error) {
	if version != "" {
		if err := validation.ValidateVersion(version); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidVersion, err)
		}
		version = validation.NormalizeVersion(version)
	}

	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	rep, err := s.validator.Run(ctx, version)
	if err != nil {
		if errors.Is(err, checker.ErrConfiguration) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("running validation: %w", err)
	}

	run := FromReport(rep, triggeredBy)
	if err := s.store.RecordRun(ctx, run); err != nil {
		metrics.RunRecorded("error")
		return nil, fmt.Errorf("recording run: %w", err)
	}
	metrics.RunRecorded(runStatus(run.Passed))

	if s.latest != nil {
		s.latest.Delete(latestKey(""))
		s.latest.Delete(latestKey(run.Version))
	}
	return fromStorage(run), nil
}

// Get retrieves a run by id.
func (s *service) Get(ctx context.Context, id string) (*Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting run: %w", err)
	}
	return fromStorage(run), nil
}

// List lists runs.
func (s *service) List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error) {
	if filter.Version != "" {
		filter.Version = validation.NormalizeVersion(filter.Version)
	}

	result, err := s.store.ListRuns(ctx, storage.RunFilter{
		Version: filter.Version,
		Passed:  filter.Passed,
	}, storage.PaginationParams{
		Limit:  pagination.Limit,
		Cursor: pagination.Cursor,
	})
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCursor) {
			return nil, ErrInvalidCursor
		}
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	runs := make([]Run, len(result.Data))
	for i := range result.Data {
		runs[i] = *fromStorage(&result.Data[i])
	}
	return &ListResult{
		Runs:       runs,
		HasMore:    result.HasMore,
		NextCursor: result.NextCursor,
	}, nil
}

// Latest returns the newest run.
func (s *service) Latest(ctx context.Context, version string) (*Run, error) {
	if version != "" {
		version = validation.NormalizeVersion(version)
	}

	key := latestKey(version)
	if s.latest != nil {
		if cached, ok := s.latest.Get(key); ok {
			return cached.(*Run), nil
		}
	}

	stored, err := s.store.LatestRun(ctx, version)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting latest run: %w", err)
	}

	run := fromStorage(stored)
	if s.latest != nil {
		s.latest.SetDefault(key, run)
	}
	return run, nil
}

func latestKey(version string) string {
	return "latest:" + version
}

func runStatus(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
