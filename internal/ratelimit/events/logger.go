// Package events records gate decisions and scans them for abuse patterns.
//
// Each decision is stored as its own key with a seven day TTL, and daily and
// hourly rollup hashes are bumped alongside it. Logging is fire-and-forget:
// LogEvent enqueues onto a bounded queue and drops the event when the queue
// is full, so a slow store never slows down requests.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"pastebin/internal/platform/privacy"
	"pastebin/internal/ratelimit/config"
	"pastebin/internal/ratelimit/metrics"
	"pastebin/internal/ratelimit/models"
	dErrors "pastebin/pkg/domain-errors"
)

const (
	defaultQueueSize = 1024
	defaultWorkers   = 2
)

// EventStore is the subset of the key-value store the logger writes to.
type EventStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	HIncrBy(ctx context.Context, key, field string, n int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Publisher mirrors persisted events to an external stream.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

type Logger struct {
	store     EventStore
	config    *config.Config
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	newSuffix func() string

	queueSize int
	workers   int

	mu     sync.RWMutex
	queue  chan models.Event
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Logger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Logger) {
		l.metrics = m
	}
}

func WithPublisher(p Publisher) Option {
	return func(l *Logger) {
		l.publisher = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

func WithQueueSize(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.queueSize = n
		}
	}
}

func WithWorkers(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.workers = n
		}
	}
}

func NewLogger(st EventStore, cfg *config.Config, opts ...Option) (*Logger, error) {
	if st == nil {
		return nil, errors.New("event store is required")
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	l := &Logger{
		store:     st,
		config:    cfg,
		logger:    slog.Default(),
		now:       time.Now,
		newSuffix: func() string { return uuid.NewString() },
		queueSize: defaultQueueSize,
		workers:   defaultWorkers,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.queue = make(chan models.Event, l.queueSize)
	return l, nil
}

// Start launches the write workers. They exit once Close drains the queue.
func (l *Logger) Start(ctx context.Context) {
	for range l.workers {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			for event := range l.queue {
				if err := l.Write(context.WithoutCancel(ctx), event); err != nil {
					l.logger.WarnContext(ctx, "ratelimit_event_write_failed",
						"identifier", privacy.AnonymizeIdentifier(event.Identifier),
						"action", event.Action,
						"error", err,
					)
				}
			}
		}()
	}
}

// LogEvent enqueues event without blocking. Events are dropped when the
// queue is full or the logger is closed.
func (l *Logger) LogEvent(event models.Event) {
	if event.Timestamp == 0 {
		event.Timestamp = l.now().UnixMilli()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.metrics.IncrementEventsDropped()
		return
	}
	select {
	case l.queue <- event:
	default:
		l.metrics.IncrementEventsDropped()
		l.logger.Debug("ratelimit_event_dropped", "action", event.Action)
	}
}

// Close stops accepting events and waits for queued ones to be written, or
// for ctx to end.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Write persists one event and its rollups synchronously.
func (l *Logger) Write(ctx context.Context, event models.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = l.now().UnixMilli()
	}
	at := time.UnixMilli(event.Timestamp)

	payload, err := json.Marshal(event)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode event")
	}
	if err := l.store.Set(ctx, models.EventKey(at, l.newSuffix()), string(payload), l.config.EventTTL); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "write event")
	}

	if err := l.rollup(ctx, at, event); err != nil {
		return err
	}
	l.metrics.IncrementEventsWritten()

	if l.publisher != nil {
		if err := l.publisher.Publish(ctx, event); err != nil {
			l.logger.WarnContext(ctx, "ratelimit_event_publish_failed", "error", err)
		}
	}
	return nil
}

func (l *Logger) rollup(ctx context.Context, at time.Time, event models.Event) error {
	counters := []string{models.FieldTotalRequests}
	if !event.Success {
		counters = append(counters, models.FieldBlockedRequests)
	}
	if event.IsAbuse {
		counters = append(counters, models.FieldAbuseAttempts)
	}

	daily := models.DailyMetricsKey(at)
	dailyFields := append(slices.Clone(counters), models.ActionField(event.Action, false))
	if !event.Success {
		dailyFields = append(dailyFields, models.ActionField(event.Action, true))
	}
	if err := l.bump(ctx, daily, dailyFields...); err != nil {
		return err
	}
	if err := l.bump(ctx, models.HourlyMetricsKey(at), counters...); err != nil {
		return err
	}
	if !event.Success {
		if err := l.bump(ctx, models.AbusersKey(at), event.Identifier); err != nil {
			return err
		}
	}
	return nil
}

// bump increments fields of a rollup hash and refreshes its TTL.
func (l *Logger) bump(ctx context.Context, key string, fields ...string) error {
	for _, field := range fields {
		if _, err := l.store.HIncrBy(ctx, key, field, 1); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "increment rollup")
		}
	}
	if err := l.store.Expire(ctx, key, l.config.MetricsTTL); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "expire rollup")
	}
	return nil
}
