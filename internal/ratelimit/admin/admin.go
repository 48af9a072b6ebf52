// Package admin implements the operator actions on rate limit state:
// reading reports and patterns, inspecting bans and clearing them.
package admin

import (
	"context"
	"errors"
	"log/slog"

	"pastebin/internal/ratelimit/models"
	"pastebin/internal/ratelimit/observability"
	dErrors "pastebin/pkg/domain-errors"
)

//go:generate mockgen -source=admin.go -destination=mocks/mocks.go -package=mocks

// BanRegistry reads and lifts bans.
type BanRegistry interface {
	Get(ctx context.Context, identifier string) (*models.Ban, error)
	Lift(ctx context.Context, identifier string) (bool, error)
}

// CounterStore deletes abuse counters.
type CounterStore interface {
	Del(ctx context.Context, keys ...string) (int64, error)
}

// Reporter builds monitoring reports.
type Reporter interface {
	GetMetrics(ctx context.Context, days int) (*models.MetricsReport, error)
}

// PatternDetector scans the recent event log.
type PatternDetector interface {
	DetectAbusePatterns(ctx context.Context) ([]models.AbusePattern, error)
}

// ClearResult describes what ClearBan removed.
type ClearResult struct {
	Identifier    string `json:"identifier"`
	BanLifted     bool   `json:"banLifted"`
	CountersReset int64  `json:"countersReset"`
}

type Service struct {
	bans     BanRegistry
	counters CounterStore
	reporter Reporter
	patterns PatternDetector
	audit    observability.AuditPublisher
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAuditPublisher(publisher observability.AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func New(bans BanRegistry, counters CounterStore, reporter Reporter, patterns PatternDetector, opts ...Option) (*Service, error) {
	if bans == nil {
		return nil, errors.New("ban registry is required")
	}
	if counters == nil {
		return nil, errors.New("counter store is required")
	}
	if reporter == nil {
		return nil, errors.New("reporter is required")
	}
	if patterns == nil {
		return nil, errors.New("pattern detector is required")
	}
	svc := &Service{
		bans:     bans,
		counters: counters,
		reporter: reporter,
		patterns: patterns,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func (s *Service) Metrics(ctx context.Context, days int) (*models.MetricsReport, error) {
	return s.reporter.GetMetrics(ctx, days)
}

func (s *Service) Patterns(ctx context.Context) ([]models.AbusePattern, error) {
	patterns, err := s.patterns.DetectAbusePatterns(ctx)
	if err != nil {
		return nil, err
	}
	if patterns == nil {
		patterns = []models.AbusePattern{}
	}
	return patterns, nil
}

// Ban returns the active ban of identifier. A missing ban is CodeNotFound.
func (s *Service) Ban(ctx context.Context, identifier string) (*models.Ban, error) {
	identifier, err := models.ParseIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	return s.bans.Get(ctx, identifier)
}

// ClearBan lifts the ban of identifier and resets every abuse counter, so
// the next denial does not immediately ban again.
func (s *Service) ClearBan(ctx context.Context, identifier string) (*ClearResult, error) {
	identifier, err := models.ParseIdentifier(identifier)
	if err != nil {
		return nil, err
	}

	lifted, err := s.bans.Lift(ctx, identifier)
	if err != nil {
		return nil, err
	}

	keys := []string{
		models.AbuseKey(models.AbuseExcessiveRequests, identifier),
		models.AbuseKey(models.AbuseRapidFire, identifier),
		models.AbuseKey(models.AbuseSuspiciousPatterns, identifier),
	}
	reset, err := s.counters.Del(ctx, keys...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to reset abuse counters")
	}

	observability.LogAudit(ctx, s.logger, s.audit, "ratelimit_ban_cleared",
		"identifier", identifier,
		"ban_lifted", lifted,
		"counters_reset", reset,
		"decision", "allowed",
	)
	return &ClearResult{Identifier: identifier, BanLifted: lifted, CountersReset: reset}, nil
}
