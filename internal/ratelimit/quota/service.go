// Package quota meters per-action sliding window quotas.
package quota

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"pastebin/internal/ratelimit/config"
	"pastebin/internal/ratelimit/models"
	"pastebin/internal/ratelimit/store"
	dErrors "pastebin/pkg/domain-errors"
)

// ErrUnknownAction is returned for actions missing from the quota table.
var ErrUnknownAction = dErrors.New(dErrors.CodeNotFound, "no quota configured for action")

// WindowStore is the part of the store the quota service needs.
type WindowStore interface {
	SlidingWindow(ctx context.Context, key string, limit int, window time.Duration) (store.WindowResult, error)
}

// limiter is the resolved quota for one (action, identity class) pair.
type limiter struct {
	action models.Action
	class  models.IdentityClass
	limit  int
	window time.Duration
}

type limiterKey struct {
	action        models.Action
	authenticated bool
}

// Service consumes quota units. Limiters are built lazily and cached per
// (action, authenticated) pair.
type Service struct {
	store    WindowStore
	config   *config.Config
	limiters sync.Map // limiterKey -> *limiter
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(st WindowStore, cfg *config.Config, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("window store is required")
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	svc := &Service{
		store:  st,
		config: cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Consume takes one unit of the caller's quota for action.
//
// A zero quota denies without touching the store. Store failures never
// surface as errors: they resolve to an allow under FailOpen and to a 60
// second denial under FailClosed. The only error is ErrUnknownAction.
func (s *Service) Consume(ctx context.Context, identifier string, action models.Action, authenticated bool, policy models.FailurePolicy) (models.QuotaResult, error) {
	lim, err := s.limiterFor(action, authenticated)
	if err != nil {
		return models.QuotaResult{}, err
	}

	now := s.now()
	if lim.limit == 0 {
		return models.QuotaResult{
			Success: false,
			Limit:   0,
			Reset:   now.Add(lim.window).UnixMilli(),
		}, nil
	}

	key := models.QuotaKey(lim.action, lim.class, identifier)
	res, err := s.store.SlidingWindow(ctx, key, lim.limit, lim.window)
	if err != nil {
		s.logger.WarnContext(ctx, "ratelimit_quota_store_error",
			"action", action,
			"fail_closed", policy == models.FailClosed,
			"error", err,
		)
		return Degraded(policy), nil
	}

	return models.QuotaResult{
		Success:   res.Allowed,
		Limit:     lim.limit,
		Remaining: max(lim.limit-res.Count, 0),
		Reset:     res.Reset.UnixMilli(),
	}, nil
}

// Limit returns the configured quota without consuming anything.
func (s *Service) Limit(action models.Action, authenticated bool) (int, time.Duration, error) {
	lim, err := s.limiterFor(action, authenticated)
	if err != nil {
		return 0, 0, err
	}
	return lim.limit, lim.window, nil
}

func (s *Service) limiterFor(action models.Action, authenticated bool) (*limiter, error) {
	key := limiterKey{action: action, authenticated: authenticated}
	if cached, ok := s.limiters.Load(key); ok {
		return cached.(*limiter), nil
	}
	l, ok := s.config.Lookup(action, authenticated)
	if !ok {
		return nil, ErrUnknownAction
	}
	built := &limiter{
		action: action,
		class:  models.ClassFor(authenticated),
		limit:  l.Requests,
		window: l.WindowDuration(),
	}
	actual, _ := s.limiters.LoadOrStore(key, built)
	return actual.(*limiter), nil
}

// Degraded is the decision used when the store cannot answer.
func Degraded(policy models.FailurePolicy) models.QuotaResult {
	if policy == models.FailClosed {
		return models.QuotaResult{Success: false, RetryAfter: models.FailClosedRetryAfter, Degraded: true}
	}
	return models.QuotaResult{Success: true, Degraded: true}
}
