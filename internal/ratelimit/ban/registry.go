// Package ban stores and checks temporary bans.
//
// A ban lives under ban:<identifier> with a store TTL matching its duration.
// Check also compares the stored expiry with the clock and deletes records
// the store has not evicted yet, so a ban never outlives its expiry.
package ban

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"pastebin/internal/ratelimit/metrics"
	"pastebin/internal/ratelimit/models"
	"pastebin/internal/ratelimit/observability"
	"pastebin/internal/ratelimit/store"
	dErrors "pastebin/pkg/domain-errors"
)

// ErrNotBanned is returned by Get when no active ban exists.
var ErrNotBanned = dErrors.New(dErrors.CodeNotFound, "identifier is not banned")

// Store is the subset of the key-value store bans need.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
}

type Registry struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   observability.AuditPublisher
	now     func() time.Time
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

func WithAuditPublisher(p observability.AuditPublisher) Option {
	return func(r *Registry) {
		r.audit = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func New(st Store, opts ...Option) (*Registry, error) {
	if st == nil {
		return nil, errors.New("ban store is required")
	}
	r := &Registry{
		store:  st,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Check reports whether identifier is currently banned. Store errors are
// returned; a malformed record is logged and treated as no ban.
func (r *Registry) Check(ctx context.Context, identifier string) (models.BanStatus, error) {
	ban, err := r.load(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotBanned) {
			return models.BanStatus{}, nil
		}
		return models.BanStatus{}, err
	}
	return models.BanStatus{IsBanned: true, BanExpiry: ban.Expiry, Ban: ban}, nil
}

// Get returns the active ban of identifier or ErrNotBanned.
func (r *Registry) Get(ctx context.Context, identifier string) (*models.Ban, error) {
	return r.load(ctx, identifier)
}

func (r *Registry) load(ctx context.Context, identifier string) (*models.Ban, error) {
	key := models.BanKey(identifier)
	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotBanned
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "read ban record")
	}

	var ban models.Ban
	if err := json.Unmarshal([]byte(raw), &ban); err != nil {
		r.logger.WarnContext(ctx, "ratelimit_ban_record_malformed",
			"key", key,
			"error", err,
		)
		return nil, ErrNotBanned
	}

	if r.now().UnixMilli() >= ban.Expiry {
		if _, err := r.store.Del(ctx, key); err != nil {
			r.logger.WarnContext(ctx, "ratelimit_ban_cleanup_failed", "key", key, "error", err)
		}
		return nil, ErrNotBanned
	}
	return &ban, nil
}

// Impose bans identifier for duration. count is the abuse counter value
// that triggered the ban.
func (r *Registry) Impose(ctx context.Context, identifier string, abuseType models.AbuseType, duration time.Duration, count int64, metadata map[string]any) (*models.Ban, error) {
	if duration <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "ban duration must be positive")
	}
	now := r.now()
	ban := &models.Ban{
		Type:      abuseType,
		Count:     count,
		Expiry:    now.Add(duration).UnixMilli(),
		Metadata:  metadata,
		Timestamp: now.UnixMilli(),
	}
	payload, err := json.Marshal(ban)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode ban record")
	}
	if err := r.store.Set(ctx, models.BanKey(identifier), string(payload), store.TTLSeconds(duration)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "write ban record")
	}

	r.metrics.IncrementBans(string(abuseType))
	observability.LogAudit(ctx, r.logger, r.audit, "ratelimit_ban_imposed",
		"identifier", identifier,
		"reason", string(abuseType),
		"count", count,
		"duration", duration.String(),
		"expiry", ban.Expiry,
	)
	return ban, nil
}

// Lift removes a ban early. It reports whether a record existed.
func (r *Registry) Lift(ctx context.Context, identifier string) (bool, error) {
	n, err := r.store.Del(ctx, models.BanKey(identifier))
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "delete ban record")
	}
	if n > 0 {
		observability.LogAudit(ctx, r.logger, r.audit, "ratelimit_ban_lifted",
			"identifier", identifier,
			"decision", "allowed",
		)
	}
	return n > 0, nil
}
