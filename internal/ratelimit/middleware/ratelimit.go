package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pastebin/internal/ratelimit/gate"
	"pastebin/internal/ratelimit/legacy"
	"pastebin/internal/ratelimit/models"
	"pastebin/pkg/platform/httputil"
)

// Checker is the gate as seen by the HTTP boundary.
type Checker interface {
	Check(ctx context.Context, req gate.CheckRequest) models.RateLimitResult
}

// CurrentUser looks up the signed-in user of a request. An empty string
// means the caller is anonymous.
type CurrentUser interface {
	CurrentUserID(r *http.Request) string
}

// CurrentUserFunc adapts a function to CurrentUser.
type CurrentUserFunc func(r *http.Request) string

func (f CurrentUserFunc) CurrentUserID(r *http.Request) string {
	return f(r)
}

// DeniedFunc replaces the default 429 response.
type DeniedFunc func(w http.ResponseWriter, r *http.Request, result models.RateLimitResult)

type Middleware struct {
	gate        Checker
	currentUser CurrentUser
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Middleware)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Middleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithCurrentUser sets the lookup used when a route does not pass a user ID.
func WithCurrentUser(cu CurrentUser) Option {
	return func(m *Middleware) {
		m.currentUser = cu
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Middleware) {
		if now != nil {
			m.now = now
		}
	}
}

func New(checker Checker, opts ...Option) (*Middleware, error) {
	if checker == nil {
		return nil, errors.New("rate limit gate is required")
	}
	m := &Middleware{
		gate:   checker,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

type handlerConfig struct {
	userID         string
	onRateLimited  DeniedFunc
	failurePolicy  models.FailurePolicy
	skipAbuseCheck bool
}

// HandlerOption tunes a single rate limited route.
type HandlerOption func(*handlerConfig)

// WithUserID pins the user ID instead of asking the CurrentUser lookup.
func WithUserID(userID string) HandlerOption {
	return func(c *handlerConfig) {
		c.userID = userID
	}
}

// WithOnRateLimited replaces the default 429 response on denial.
func WithOnRateLimited(fn DeniedFunc) HandlerOption {
	return func(c *handlerConfig) {
		c.onRateLimited = fn
	}
}

// WithFailClosed denies the route while the store is unavailable.
func WithFailClosed() HandlerOption {
	return func(c *handlerConfig) {
		c.failurePolicy = models.FailClosed
	}
}

// WithoutAbuseCheck skips ban checks and abuse recording for the route.
func WithoutAbuseCheck() HandlerOption {
	return func(c *handlerConfig) {
		c.skipAbuseCheck = true
	}
}

// WithRateLimit gates next under action. Denied requests never reach next;
// allowed ones get X-RateLimit-* headers before next writes its response.
func (m *Middleware) WithRateLimit(action models.Action, next http.Handler, opts ...HandlerOption) http.Handler {
	cfg := handlerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := cfg.userID
		if userID == "" && m.currentUser != nil {
			userID = m.currentUser.CurrentUserID(r)
		}

		result := m.gate.Check(r.Context(), gate.CheckRequest{
			UserID:         userID,
			Action:         action,
			Header:         r.Header,
			UserAgent:      r.UserAgent(),
			FailurePolicy:  cfg.failurePolicy,
			SkipAbuseCheck: cfg.skipAbuseCheck,
		})

		if !result.Success {
			if cfg.onRateLimited != nil {
				cfg.onRateLimited(w, r, result)
				return
			}
			m.WriteDenied(w, result)
			return
		}

		if result.HasQuota() {
			SetHeaders(w, result, m.now())
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit is the decorator form of WithRateLimit for router middleware
// chains. The user comes from the CurrentUser lookup.
func (m *Middleware) RateLimit(action models.Action, opts ...HandlerOption) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.WithRateLimit(action, next, opts...)
	}
}

// RateLimitLegacy accepts the action names of older clients.
//
// Deprecated: use RateLimit with a models.Action.
func (m *Middleware) RateLimitLegacy(name string, opts ...HandlerOption) func(http.Handler) http.Handler {
	action, err := legacy.Translate(name)
	if err != nil {
		// The gate treats unknown actions as allowed and warns on each call.
		m.logger.Warn("ratelimit_legacy_action_unknown", "name", name)
		action = models.Action(strings.ToUpper(strings.TrimSpace(name)))
	}
	return m.RateLimit(action, opts...)
}

// WriteDenied writes the default 429 response for result.
func (m *Middleware) WriteDenied(w http.ResponseWriter, result models.RateLimitResult) {
	SetHeaders(w, result, m.now())

	body := &models.RateLimitExceededResponse{
		Error:      "Too many requests. Please try again later.",
		Code:       models.CodeRateLimited,
		RetryAfter: result.RetryAfter,
	}
	if result.IsAbuse {
		body.Error = "Access temporarily restricted due to suspicious activity."
		body.Code = models.CodeAbuseDetected
		body.BanExpiry = result.BanExpiry
	}
	httputil.WriteJSON(w, http.StatusTooManyRequests, body)
}

// SetHeaders writes the X-RateLimit-* headers, plus Retry-After on a
// denial. Reset is epoch seconds; a denial without window accounting resets
// when the ban or backoff ends, counted from now.
func SetHeaders(w http.ResponseWriter, result models.RateLimitResult, now time.Time) {
	reset := result.Reset
	switch {
	case result.IsAbuse && result.BanExpiry > 0:
		reset = max(reset, result.BanExpiry)
	case reset == 0 && result.RetryAfter > 0:
		reset = now.Add(time.Duration(result.RetryAfter) * time.Second).UnixMilli()
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(ceilSeconds(reset), 10))
	if !result.Success && result.RetryAfter > 0 {
		h.Set("Retry-After", strconv.Itoa(result.RetryAfter))
	}
}

func ceilSeconds(epochMs int64) int64 {
	if epochMs <= 0 {
		return 0
	}
	return (epochMs + 999) / 1000
}
