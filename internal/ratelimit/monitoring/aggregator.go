// Package monitoring turns the event log rollups into reports and prunes
// what has outlived its retention.
package monitoring

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"pastebin/internal/ratelimit/config"
	"pastebin/internal/ratelimit/metrics"
	"pastebin/internal/ratelimit/models"
	dErrors "pastebin/pkg/domain-errors"
)

const (
	DefaultDays = 7
	MaxDays     = 30

	topAbusersLimit = 10
	deleteBatchSize = 500
)

// Store is the slice of store.Store the aggregator reads and prunes.
type Store interface {
	Keys(ctx context.Context, pattern string) ([]string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) (int64, error)
}

// PatternDetector supplies the recent abuse patterns of a report.
type PatternDetector interface {
	DetectAbusePatterns(ctx context.Context) ([]models.AbusePattern, error)
}

// CleanupResult counts what one Cleanup call removed.
type CleanupResult struct {
	EventsDeleted  int
	MetricsDeleted int
}

type Aggregator struct {
	store    Store
	patterns PatternDetector
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	limiter  *rate.Limiter
}

type Option func(*Aggregator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithPatternDetector adds recent patterns to reports.
func WithPatternDetector(p PatternDetector) Option {
	return func(a *Aggregator) {
		a.patterns = p
	}
}

// WithDeleteLimiter paces cleanup deletions, one token per batch.
func WithDeleteLimiter(l *rate.Limiter) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.limiter = l
		}
	}
}

func New(st Store, cfg *config.Config, opts ...Option) (*Aggregator, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	a := &Aggregator{
		store:   st,
		cfg:     cfg,
		logger:  slog.Default(),
		now:     time.Now,
		limiter: rate.NewLimiter(rate.Limit(20), 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// GetMetrics reports the last days days, oldest first. days <= 0 means
// DefaultDays; anything above MaxDays is capped.
func (a *Aggregator) GetMetrics(ctx context.Context, days int) (*models.MetricsReport, error) {
	if days <= 0 {
		days = DefaultDays
	}
	days = min(days, MaxDays)

	report := &models.MetricsReport{
		Daily:          make([]models.DailyMetrics, 0, days),
		ByAction:       make(map[models.Action]models.ActionMetrics),
		TopAbusers:     []models.AbuserCount{},
		RecentPatterns: []models.AbusePattern{},
	}
	blockedBy := make(map[string]int64)

	today := a.now().UTC()
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)

		fields, err := a.store.HGetAll(ctx, models.DailyMetricsKey(day))
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read daily metrics")
		}
		report.Daily = append(report.Daily, dailyFrom(day, fields, report.ByAction))

		abusers, err := a.store.HGetAll(ctx, models.AbusersKey(day))
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read abuser counts")
		}
		for identifier, raw := range abusers {
			blockedBy[identifier] += parseCount(raw)
		}
	}
	report.TopAbusers = topAbusers(blockedBy, topAbusersLimit)

	if a.patterns != nil {
		patterns, err := a.patterns.DetectAbusePatterns(ctx)
		if err != nil {
			a.logger.WarnContext(ctx, "ratelimit_pattern_detection_failed", "error", err)
		} else if patterns != nil {
			report.RecentPatterns = patterns
		}
	}
	return report, nil
}

func dailyFrom(day time.Time, fields map[string]string, byAction map[models.Action]models.ActionMetrics) models.DailyMetrics {
	d := models.DailyMetrics{Date: day.Format(time.DateOnly)}
	for field, raw := range fields {
		n := parseCount(raw)
		switch field {
		case models.FieldTotalRequests:
			d.TotalRequests = n
		case models.FieldBlockedRequests:
			d.BlockedRequests = n
		case models.FieldAbuseAttempts:
			d.AbuseAttempts = n
		default:
			action, blocked, ok := models.ParseActionField(field)
			if !ok {
				continue
			}
			m := byAction[action]
			if blocked {
				m.BlockedRequests += n
			} else {
				m.TotalRequests += n
			}
			byAction[action] = m
		}
	}
	return d
}

func parseCount(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func topAbusers(counts map[string]int64, limit int) []models.AbuserCount {
	out := make([]models.AbuserCount, 0, len(counts))
	for identifier, n := range counts {
		if n > 0 {
			out = append(out, models.AbuserCount{Identifier: identifier, BlockedRequests: n})
		}
	}
	slices.SortFunc(out, func(a, b models.AbuserCount) int {
		if c := cmp.Compare(b.BlockedRequests, a.BlockedRequests); c != 0 {
			return c
		}
		return strings.Compare(a.Identifier, b.Identifier)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Cleanup deletes events older than the event retention and rollups whose
// period ended before the metrics retention. Keys that do not parse are
// left alone.
func (a *Aggregator) Cleanup(ctx context.Context) (CleanupResult, error) {
	now := a.now()
	var res CleanupResult

	eventKeys, err := a.store.Keys(ctx, models.EventKeyPrefix+"*")
	if err != nil {
		return res, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list events")
	}
	eventCutoff := now.Add(-a.cfg.EventTTL)
	staleEvents := slices.DeleteFunc(eventKeys, func(key string) bool {
		at, ok := models.EventKeyTime(key)
		return !ok || !at.Before(eventCutoff)
	})
	res.EventsDeleted, err = a.deleteAll(ctx, staleEvents)
	a.metrics.AddCleanupKeysDeleted("events", res.EventsDeleted)
	if err != nil {
		return res, err
	}

	metricKeys, err := a.store.Keys(ctx, models.MetricsKeyPrefix+"*")
	if err != nil {
		return res, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list metrics")
	}
	metricsCutoff := now.Add(-a.cfg.MetricsTTL)
	staleMetrics := slices.DeleteFunc(metricKeys, func(key string) bool {
		start, ok := models.MetricsKeyTime(key)
		if !ok {
			return true
		}
		period := 24 * time.Hour
		if strings.HasPrefix(key, models.HourlyMetricsKeyPrefix) {
			period = time.Hour
		}
		return start.Add(period).After(metricsCutoff)
	})
	res.MetricsDeleted, err = a.deleteAll(ctx, staleMetrics)
	a.metrics.AddCleanupKeysDeleted("metrics", res.MetricsDeleted)
	if err != nil {
		return res, err
	}

	a.logger.InfoContext(ctx, "ratelimit_cleanup_completed",
		"events_deleted", res.EventsDeleted,
		"metrics_deleted", res.MetricsDeleted,
	)
	return res, nil
}

func (a *Aggregator) deleteAll(ctx context.Context, keys []string) (int, error) {
	deleted := 0
	for batch := range slices.Chunk(keys, deleteBatchSize) {
		if err := a.limiter.Wait(ctx); err != nil {
			return deleted, err
		}
		n, err := a.store.Del(ctx, batch...)
		if err != nil {
			return deleted, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to delete expired keys")
		}
		deleted += int(n)
	}
	return deleted, nil
}
