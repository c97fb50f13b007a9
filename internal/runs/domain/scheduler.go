package domain

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler triggers a validation of the latest version on a fixed interval.
type Scheduler struct {
	svc      Service
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler. Start returns immediately when interval is not positive.
func NewScheduler(svc Service, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{svc: svc, interval: interval, logger: logger}
}

// Start runs until ctx is cancelled. The first run happens after one interval.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduled validation enabled", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.svc.Trigger(ctx, "", TriggerSchedule)
	switch {
	case err == nil:
	case errors.Is(err, ErrRunInProgress):
		s.logger.Debug("skipping scheduled validation", "reason", err)
	case ctx.Err() != nil:
	default:
		s.logger.Error("scheduled validation failed", "error", err)
	}
}
