// Package gate decides whether a request may proceed.
//
// Check runs a fixed sequence for every request: resolve the identity, check
// bans on both the primary and the IP identifier, consume quota, and record
// abuse on denial. A banned caller never spends quota. Internal failures
// never escape Check; they resolve to the caller's FailurePolicy.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pastebin/internal/platform/privacy"
	"pastebin/internal/ratelimit/clientinfo"
	"pastebin/internal/ratelimit/metrics"
	"pastebin/internal/ratelimit/models"
	"pastebin/internal/ratelimit/quota"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// IdentityResolver derives the rate limit subject of a request.
type IdentityResolver interface {
	Resolve(h http.Header, userID string) models.Identity
}

// BanChecker answers whether an identifier is banned.
type BanChecker interface {
	Check(ctx context.Context, identifier string) (models.BanStatus, error)
}

// QuotaConsumer takes one unit of an identifier's quota.
type QuotaConsumer interface {
	Consume(ctx context.Context, identifier string, action models.Action, authenticated bool, policy models.FailurePolicy) (models.QuotaResult, error)
}

// AbuseRecorder counts abuse signals and escalates them into bans.
type AbuseRecorder interface {
	RecordAttempt(ctx context.Context, identifier string, abuseType models.AbuseType, metadata map[string]any) (*models.Ban, error)
}

// EventSink receives one event per decision. It must not block.
type EventSink interface {
	LogEvent(event models.Event)
}

// CheckRequest is one decision request. The zero values of FailurePolicy
// and SkipAbuseCheck give the default behaviour: fail open, check abuse.
type CheckRequest struct {
	UserID         string
	Action         models.Action
	Header         http.Header
	UserAgent      string
	FailurePolicy  models.FailurePolicy
	SkipAbuseCheck bool
}

// Decision outcomes used for metrics and spans.
const (
	outcomeAllowed  = "allowed"
	outcomeDenied   = "denied"
	outcomeBanned   = "banned"
	outcomeDegraded = "degraded"
	outcomeUnknown  = "unknown_action"
)

type Service struct {
	resolver IdentityResolver
	bans     BanChecker
	quota    QuotaConsumer
	abuse    AbuseRecorder
	events   EventSink
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time

	dualTracking bool
	unconfigured bool
	warnOnce     sync.Once
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithEventSink(sink EventSink) Option {
	return func(s *Service) {
		s.events = sink
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
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

// WithDualTracking controls whether a denied authenticated caller is also
// recorded against its IP identifier. On by default; turning it off stops
// penalizing users who share an address with an abuser.
func WithDualTracking(enabled bool) Option {
	return func(s *Service) {
		s.dualTracking = enabled
	}
}

func New(resolver IdentityResolver, bans BanChecker, q QuotaConsumer, abuse AbuseRecorder, opts ...Option) (*Service, error) {
	if resolver == nil {
		return nil, errors.New("identity resolver is required")
	}
	if bans == nil {
		return nil, errors.New("ban checker is required")
	}
	if q == nil {
		return nil, errors.New("quota consumer is required")
	}
	if abuse == nil {
		return nil, errors.New("abuse recorder is required")
	}
	s := newService(opts)
	s.resolver = resolver
	s.bans = bans
	s.quota = q
	s.abuse = abuse
	return s, nil
}

// NewUnconfigured builds a gate for deployments without a store. Every
// check resolves to the caller's FailurePolicy, and the first one logs a
// warning.
func NewUnconfigured(opts ...Option) *Service {
	s := newService(opts)
	s.unconfigured = true
	return s
}

func newService(opts []Option) *Service {
	s := &Service{
		logger:       slog.Default(),
		tracer:       otel.Tracer("pastebin/ratelimit"),
		now:          time.Now,
		dualTracking: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured reports whether the gate has a store behind it.
func (s *Service) Configured() bool {
	return !s.unconfigured
}

// Check decides req. It never returns an error and never panics.
func (s *Service) Check(ctx context.Context, req CheckRequest) (result models.RateLimitResult) {
	if s.unconfigured {
		s.warnOnce.Do(func() {
			s.logger.WarnContext(ctx, "ratelimit_store_not_configured",
				"fail_closed", req.FailurePolicy == models.FailClosed,
			)
		})
		s.metrics.IncrementDecision(string(req.Action), outcomeDegraded)
		return degraded(req.FailurePolicy)
	}

	ctx, span := s.tracer.Start(ctx, "ratelimit.check",
		trace.WithAttributes(attribute.String("ratelimit.action", string(req.Action))))
	defer span.End()

	var identity models.Identity
	defer func() {
		if r := recover(); r != nil {
			result = s.fault(ctx, span, req, identity, fmt.Errorf("panic: %v", r))
		}
	}()

	identity = s.resolver.Resolve(req.Header, req.UserID)
	ipIdentifier := models.IPIdentifier(identity.IP)
	span.SetAttributes(attribute.Bool("ratelimit.authenticated", identity.IsAuthenticated))

	if !req.SkipAbuseCheck {
		banExpiry, err := s.activeBan(ctx, identity.Identifier, ipIdentifier)
		if err != nil {
			return s.fault(ctx, span, req, identity, err)
		}
		if banExpiry > 0 {
			result = models.RateLimitResult{
				Success:    false,
				IsAbuse:    true,
				BanExpiry:  banExpiry,
				RetryAfter: s.secondsUntil(banExpiry),
			}
			s.finish(ctx, span, req, identity, result, outcomeBanned)
			return result
		}
	}

	q, err := s.quota.Consume(ctx, identity.Identifier, req.Action, identity.IsAuthenticated, req.FailurePolicy)
	if err != nil {
		if errors.Is(err, quota.ErrUnknownAction) {
			s.logger.WarnContext(ctx, "ratelimit_unknown_action", "action", req.Action)
			result = models.RateLimitResult{Success: true}
			s.finish(ctx, span, req, identity, result, outcomeUnknown)
			return result
		}
		return s.fault(ctx, span, req, identity, err)
	}

	if q.Degraded {
		result = models.RateLimitResult{Success: q.Success, RetryAfter: q.RetryAfter}
		s.finish(ctx, span, req, identity, result, outcomeDegraded)
		return result
	}

	if !q.Success && !req.SkipAbuseCheck {
		s.recordDenial(ctx, req, identity, ipIdentifier)
	}

	result = models.RateLimitResult{
		Success:   q.Success,
		Limit:     q.Limit,
		Remaining: q.Remaining,
		Reset:     q.Reset,
	}
	outcome := outcomeAllowed
	if !q.Success {
		outcome = outcomeDenied
		result.RetryAfter = q.RetryAfter
		if result.RetryAfter == 0 && q.Reset > 0 {
			result.RetryAfter = s.secondsUntil(q.Reset)
		}
	}
	s.finish(ctx, span, req, identity, result, outcome)
	return result
}

// activeBan returns the latest expiry among active bans on the given
// identifiers, or 0.
func (s *Service) activeBan(ctx context.Context, primary, ip string) (int64, error) {
	identifiers := []string{primary}
	if ip != primary {
		identifiers = append(identifiers, ip)
	}
	var expiry int64
	for _, identifier := range identifiers {
		status, err := s.bans.Check(ctx, identifier)
		if err != nil {
			return 0, err
		}
		if status.IsBanned {
			expiry = max(expiry, status.BanExpiry)
		}
	}
	return expiry, nil
}

func (s *Service) recordDenial(ctx context.Context, req CheckRequest, identity models.Identity, ipIdentifier string) {
	metadata := map[string]any{
		"action":          string(req.Action),
		"isAuthenticated": identity.IsAuthenticated,
		"ip":              privacy.AnonymizeIP(identity.IP),
	}

	targets := []string{identity.Identifier}
	if s.dualTracking && ipIdentifier != identity.Identifier {
		targets = append(targets, ipIdentifier)
	}
	for _, identifier := range targets {
		s.record(ctx, identifier, models.AbuseExcessiveRequests, metadata)
	}
	if req.Action == models.ActionBurst {
		s.record(ctx, identity.Identifier, models.AbuseRapidFire, metadata)
	}
}

func (s *Service) record(ctx context.Context, identifier string, abuseType models.AbuseType, metadata map[string]any) {
	if _, err := s.abuse.RecordAttempt(ctx, identifier, abuseType, metadata); err != nil {
		s.logger.WarnContext(ctx, "ratelimit_abuse_record_failed",
			"type", abuseType,
			"error", err,
		)
	}
}

// fault resolves an internal failure: it is treated as a weak abuse signal
// and answered with the caller's FailurePolicy.
func (s *Service) fault(ctx context.Context, span trace.Span, req CheckRequest, identity models.Identity, err error) models.RateLimitResult {
	span.RecordError(err)
	span.SetStatus(codes.Error, "ratelimit check failed")
	s.logger.ErrorContext(ctx, "ratelimit_check_failed",
		"action", req.Action,
		"fail_closed", req.FailurePolicy == models.FailClosed,
		"error", err,
	)
	if !req.SkipAbuseCheck && identity.Identifier != "" {
		s.record(ctx, identity.Identifier, models.AbuseSuspiciousPatterns, map[string]any{
			"action": string(req.Action),
			"error":  err.Error(),
		})
	}
	result := degraded(req.FailurePolicy)
	s.finish(ctx, span, req, identity, result, outcomeDegraded)
	return result
}

func (s *Service) finish(ctx context.Context, span trace.Span, req CheckRequest, identity models.Identity, result models.RateLimitResult, outcome string) {
	span.SetAttributes(
		attribute.String("ratelimit.outcome", outcome),
		attribute.Int("ratelimit.remaining", result.Remaining),
	)
	s.metrics.IncrementDecision(string(req.Action), outcome)
	if outcome == outcomeDenied || outcome == outcomeBanned {
		s.logger.InfoContext(ctx, "ratelimit_denied",
			"action", req.Action,
			"outcome", outcome,
			"ip", privacy.AnonymizeIP(identity.IP),
			"retry_after", result.RetryAfter,
		)
	}
	if s.events == nil {
		return
	}
	metadata := clientinfo.Metadata(req.UserAgent)
	if outcome == outcomeDegraded {
		if metadata == nil {
			metadata = make(map[string]any, 1)
		}
		metadata[models.EventMetaDegraded] = true
	}
	s.events.LogEvent(models.Event{
		Timestamp:  s.now().UnixMilli(),
		Identifier: identity.Identifier,
		Action:     req.Action,
		Success:    result.Success,
		Remaining:  result.Remaining,
		Limit:      result.Limit,
		IsAbuse:    result.IsAbuse,
		UserAgent:  req.UserAgent,
		IP:         identity.IP,
		UserID:     identity.UserID,
		Metadata:   metadata,
	})
}

// secondsUntil rounds the time left until epochMs up to whole seconds.
func (s *Service) secondsUntil(epochMs int64) int {
	left := epochMs - s.now().UnixMilli()
	if left <= 0 {
		return 0
	}
	return int((left + 999) / 1000)
}

func degraded(policy models.FailurePolicy) models.RateLimitResult {
	q := quota.Degraded(policy)
	return models.RateLimitResult{Success: q.Success, RetryAfter: q.RetryAfter}
}
