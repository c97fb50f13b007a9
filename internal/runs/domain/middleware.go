package domain

import (
	"context"
	"log/slog"
	"time"
)

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) Trigger(ctx context.Context, version, triggeredBy string) (*Run, error) {
	start := time.Now()
	run, err := m.next.Trigger(ctx, version, triggeredBy)
	attrs := []any{
		"version", version,
		"triggeredBy", triggeredBy,
		"duration", time.Since(start),
		"error", err,
	}
	if run != nil {
		attrs = append(attrs, "id", run.ID, "passed", run.Passed)
	}
	m.logger.Info("Trigger", attrs...)
	return run, err
}

func (m *loggingMiddleware) Get(ctx context.Context, id string) (*Run, error) {
	start := time.Now()
	run, err := m.next.Get(ctx, id)
	m.logger.Debug("Get",
		"id", id,
		"duration", time.Since(start),
		"error", err,
	)
	return run, err
}

func (m *loggingMiddleware) List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error) {
	start := time.Now()
	result, err := m.next.List(ctx, filter, pagination)
	m.logger.Debug("List",
		"version", filter.Version,
		"limit", pagination.Limit,
		"duration", time.Since(start),
		"error", err,
	)
	return result, err
}

func (m *loggingMiddleware) Latest(ctx context.Context, version string) (*Run, error) {
	start := time.Now()
	run, err := m.next.Latest(ctx, version)
	m.logger.Debug("Latest",
		"version", version,
		"duration", time.Since(start),
		"error", err,
	)
	return run, err
}
