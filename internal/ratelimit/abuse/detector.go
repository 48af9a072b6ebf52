// Package abuse counts abuse signals per identifier and escalates them into
// temporary bans.
package abuse

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pastebin/internal/platform/privacy"
	"pastebin/internal/ratelimit/config"
	"pastebin/internal/ratelimit/metrics"
	"pastebin/internal/ratelimit/models"
	dErrors "pastebin/pkg/domain-errors"
)

// CounterStore is the subset of the key-value store abuse counters need.
type CounterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Banner imposes bans; satisfied by *ban.Registry.
type Banner interface {
	Impose(ctx context.Context, identifier string, abuseType models.AbuseType, duration time.Duration, count int64, metadata map[string]any) (*models.Ban, error)
}

type Detector struct {
	store   CounterStore
	bans    Banner
	config  *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Detector)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Detector) {
		d.metrics = m
	}
}

func New(st CounterStore, bans Banner, cfg *config.Config, opts ...Option) (*Detector, error) {
	if st == nil {
		return nil, errors.New("counter store is required")
	}
	if bans == nil {
		return nil, errors.New("ban registry is required")
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	d := &Detector{
		store:  st,
		bans:   bans,
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// RecordAttempt bumps the abuse counter of identifier for abuseType and bans
// the identifier once the counter reaches the type's threshold. The counter
// window starts with the first attempt and is not extended by later ones.
//
// Concurrent callers can both cross the threshold; each then writes the same
// ban again, which is harmless.
func (d *Detector) RecordAttempt(ctx context.Context, identifier string, abuseType models.AbuseType, metadata map[string]any) (*models.Ban, error) {
	key := models.AbuseKey(abuseType, identifier)
	count, err := d.store.Incr(ctx, key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "increment abuse counter")
	}
	if count == 1 {
		if err := d.store.Expire(ctx, key, d.config.AbuseCounterTTL); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "set abuse counter ttl")
		}
	}
	d.metrics.IncrementAbuseAttempts(string(abuseType))

	rule, ok := d.config.Rule(abuseType)
	if !ok || count < rule.Threshold {
		return nil, nil
	}

	duration := config.ParseDuration(rule.BanDuration)
	d.logger.WarnContext(ctx, "abuse_threshold_exceeded",
		"identifier", privacy.AnonymizeIdentifier(identifier),
		"type", abuseType,
		"count", count,
		"threshold", rule.Threshold,
		"ban_duration", duration.String(),
		"metadata", metadata,
	)
	return d.bans.Impose(ctx, identifier, abuseType, duration, count, metadata)
}
