package cleanup

import (
	"context"
	"log/slog"
	"time"

	"pastebin/internal/ratelimit/metrics"
	"pastebin/internal/ratelimit/monitoring"
)

// Cleaner prunes expired event log and rollup keys.
type Cleaner interface {
	Cleanup(ctx context.Context) (monitoring.CleanupResult, error)
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// Service runs Cleanup on a fixed interval until its context ends.
type Service struct {
	cleaner  Cleaner
	logger   *slog.Logger
	interval time.Duration
	metrics  *metrics.Metrics
}

func New(cleaner Cleaner, opts ...Option) *Service {
	service := &Service{
		cleaner:  cleaner,
		logger:   slog.Default(),
		interval: time.Hour,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			s.logger.Info("ratelimit cleanup worker stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce executes a single cleanup run and records its outcome. Failures
// are logged and retried on the next tick.
func (s *Service) RunOnce(ctx context.Context) (monitoring.CleanupResult, error) {
	start := time.Now()
	res, err := s.cleaner.Cleanup(ctx)
	duration := time.Since(start)
	s.metrics.ObserveCleanupDuration(duration.Seconds())

	if err != nil {
		s.logger.ErrorContext(ctx, "ratelimit_cleanup_failed",
			"error", err,
			"events_deleted", res.EventsDeleted,
			"metrics_deleted", res.MetricsDeleted,
			"duration_ms", duration.Milliseconds(),
		)
		s.metrics.IncrementCleanupRuns("error")
		return res, err
	}

	s.logger.InfoContext(ctx, "ratelimit_cleanup_run",
		"duration_ms", duration.Milliseconds(),
	)
	s.metrics.IncrementCleanupRuns("success")
	return res, nil
}
