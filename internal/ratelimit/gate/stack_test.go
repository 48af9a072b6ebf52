package gate_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"pastebin/internal/ratelimit/abuse"
	"pastebin/internal/ratelimit/ban"
	"pastebin/internal/ratelimit/config"
	"pastebin/internal/ratelimit/gate"
	"pastebin/internal/ratelimit/identity"
	"pastebin/internal/ratelimit/models"
	"pastebin/internal/ratelimit/quota"
	"pastebin/internal/ratelimit/store"
	"pastebin/internal/ratelimit/store/memory"
	"pastebin/internal/ratelimit/store/storetest"
	dErrors "pastebin/pkg/domain-errors"
	"pastebin/pkg/testutil"
)

// =============================================================================
// Gate Stack Test Suite
// =============================================================================
// Justification: these tests run the real resolver, ban registry, quota
// service and abuse detector over the in-memory store, so the properties
// that span components (bans freeze quota, store failures follow the
// policy, thresholds escalate into bans) are checked end to end.

type StackSuite struct {
	suite.Suite
	ctx   context.Context
	now   time.Time
	mem   *memory.Store
	bans  *ban.Registry
	quota *quota.Service
	gate  *gate.Service
}

func TestStackSuite(t *testing.T) {
	suite.Run(t, new(StackSuite))
}

func (s *StackSuite) clock() time.Time { return s.now }

func (s *StackSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.mem = memory.New(memory.WithClock(s.clock))
	s.gate = s.build(s.mem)
}

func (s *StackSuite) build(st store.Store) *gate.Service {
	cfg := config.DefaultConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	bans, err := ban.New(st, ban.WithClock(s.clock), ban.WithLogger(logger))
	s.Require().NoError(err)
	q, err := quota.New(st, cfg, quota.WithClock(s.clock), quota.WithLogger(logger))
	s.Require().NoError(err)
	detector, err := abuse.New(st, bans, cfg, abuse.WithLogger(logger))
	s.Require().NoError(err)
	g, err := gate.New(identity.NewResolver(true), bans, q, detector,
		gate.WithClock(s.clock),
		gate.WithLogger(logger),
	)
	s.Require().NoError(err)

	s.bans = bans
	s.quota = q
	return g
}

func headerFrom(ip string) http.Header {
	h := http.Header{}
	h.Set("X-Real-IP", ip)
	return h
}

func (s *StackSuite) TestAnonymousPasteCreateQuota() {
	req := gate.CheckRequest{Action: models.ActionPasteCreate, Header: headerFrom("203.0.113.5")}

	for i := range 3 {
		res := s.gate.Check(s.ctx, req)
		s.True(res.Success, "request %d", i+1)
		s.Equal(3, res.Limit)
		s.Equal(2-i, res.Remaining)
	}

	res := s.gate.Check(s.ctx, req)
	s.False(res.Success)
	s.False(res.IsAbuse)
	s.Equal(0, res.Remaining)
	s.Greater(res.RetryAfter, 0)
	s.LessOrEqual(res.RetryAfter, 60)

	count, err := s.mem.Get(s.ctx, models.AbuseKey(models.AbuseExcessiveRequests, "ip:203.0.113.5"))
	s.Require().NoError(err)
	s.Equal("1", count)

	s.Run("another address has its own window", func() {
		res := s.gate.Check(s.ctx, gate.CheckRequest{Action: models.ActionPasteCreate, Header: headerFrom("198.51.100.7")})
		s.True(res.Success)
	})
}

func (s *StackSuite) TestBanFreezesQuota() {
	req := gate.CheckRequest{UserID: "u1", Action: models.ActionURLCheck, Header: headerFrom("203.0.113.5")}

	first := s.gate.Check(s.ctx, req)
	s.Require().True(first.Success)

	_, err := s.bans.Impose(s.ctx, "user:u1", models.AbuseRapidFire, 30*time.Second, 20, nil)
	s.Require().NoError(err)

	for range 3 {
		res := s.gate.Check(s.ctx, req)
		s.False(res.Success)
		s.True(res.IsAbuse)
		s.Equal(s.now.Add(30*time.Second).UnixMilli(), res.BanExpiry)
		s.Equal(30, res.RetryAfter)
	}

	s.now = s.now.Add(31 * time.Second)
	after := s.gate.Check(s.ctx, req)
	s.True(after.Success, "ban expires lazily")
	s.Equal(first.Remaining-1, after.Remaining, "banned requests did not spend quota")
}

func (s *StackSuite) TestIPBanCoversSignedInUsers() {
	_, err := s.bans.Impose(s.ctx, "ip:203.0.113.5", models.AbuseExcessiveRequests, 10*time.Minute, 100, nil)
	s.Require().NoError(err)

	res := s.gate.Check(s.ctx, gate.CheckRequest{UserID: "u1", Action: models.ActionGeneralAPI, Header: headerFrom("203.0.113.5")})
	s.False(res.Success)
	s.True(res.IsAbuse)
}

func (s *StackSuite) TestRepeatedDenialsEscalateToBan() {
	req := gate.CheckRequest{Action: models.ActionBurst, Header: headerFrom("203.0.113.5")}
	for range 20 {
		s.Require().True(s.gate.Check(s.ctx, req).Success)
	}
	// Each further call is denied and bumps RAPID_FIRE; the 20th denial bans.
	for range 19 {
		res := s.gate.Check(s.ctx, req)
		s.Require().False(res.IsAbuse)
	}
	res := s.gate.Check(s.ctx, req)
	s.False(res.Success)

	status, err := s.bans.Check(s.ctx, "ip:203.0.113.5")
	s.Require().NoError(err)
	s.True(status.IsBanned)
	s.Equal(models.AbuseRapidFire, status.Ban.Type)

	next := s.gate.Check(s.ctx, req)
	s.True(next.IsAbuse)
	s.Equal(300, next.RetryAfter)
}

func (s *StackSuite) TestUnreachableStore() {
	g := s.build(storetest.Failing{})
	req := gate.CheckRequest{Action: models.ActionPasteCreate, Header: headerFrom("203.0.113.5")}

	s.Run("fails open by default", func() {
		res := g.Check(s.ctx, req)
		s.True(res.Success)
		s.False(res.HasQuota())
	})

	s.Run("fails closed on request", func() {
		closed := req
		closed.FailurePolicy = models.FailClosed
		res := g.Check(s.ctx, closed)
		s.False(res.Success)
		s.Equal(60, res.RetryAfter)
	})
}

// windowDown fails only the sliding window, so ban checks still succeed.
type windowDown struct {
	store.Store
}

func (windowDown) SlidingWindow(context.Context, string, int, time.Duration) (store.WindowResult, error) {
	return store.WindowResult{}, dErrors.New(dErrors.CodeUnavailable, "connection reset")
}

func (s *StackSuite) TestWindowFaultIsNotExcessiveRequests() {
	g := s.build(windowDown{Store: s.mem})
	req := gate.CheckRequest{
		Action:        models.ActionPasteCreate,
		Header:        headerFrom("203.0.113.5"),
		FailurePolicy: models.FailClosed,
	}

	for range 3 {
		res := g.Check(s.ctx, req)
		s.False(res.Success)
		s.Equal(models.FailClosedRetryAfter, res.RetryAfter)
	}

	_, err := s.mem.Get(s.ctx, models.AbuseKey(models.AbuseExcessiveRequests, "ip:203.0.113.5"))
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *StackSuite) TestForbiddenActionSkipsStore() {
	counting := storetest.NewCounting(s.mem)
	g := s.build(counting)

	res := g.Check(s.ctx, gate.CheckRequest{
		Action:         models.ActionPasteUpdate,
		Header:         headerFrom("203.0.113.5"),
		SkipAbuseCheck: true,
	})
	s.False(res.Success)
	s.Equal(0, res.Limit)
	s.Equal(int64(0), counting.Calls())
}

func (s *StackSuite) TestConcurrentCallersNeverExceedTheLimit() {
	limit, _, err := s.quota.Limit(models.ActionPasteCreate, false)
	s.Require().NoError(err)

	res := testutil.RunConcurrent(50, func(int) error {
		result := s.gate.Check(s.ctx, gate.CheckRequest{
			Action: models.ActionPasteCreate,
			Header: headerFrom("198.51.100.20"),
		})
		if !result.Success {
			return dErrors.New(dErrors.CodeRateLimited, "denied")
		}
		return nil
	})

	s.Equal(int32(limit), res.Successes)
	s.Equal(int32(50-limit), res.RateLimited)
	s.Zero(res.Errors)
}
