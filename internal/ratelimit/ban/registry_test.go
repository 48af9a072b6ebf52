package ban

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"pastebin/internal/ratelimit/metrics"
	"pastebin/internal/ratelimit/models"
	"pastebin/internal/ratelimit/observability"
	"pastebin/internal/ratelimit/store/memory"
	"pastebin/internal/ratelimit/store/storetest"
	dErrors "pastebin/pkg/domain-errors"
)

type recordingPublisher struct {
	events []observability.AuditEvent
}

func (p *recordingPublisher) Emit(_ context.Context, e observability.AuditEvent) error {
	p.events = append(p.events, e)
	return nil
}

type RegistrySuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	mem       *memory.Store
	metrics   *metrics.Metrics
	publisher *recordingPublisher
	registry  *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Unix(1_800_000_000, 0)
	clock := func() time.Time { return s.now }
	s.mem = memory.New(memory.WithClock(clock))
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.publisher = &recordingPublisher{}

	var err error
	s.registry, err = New(s.mem,
		WithClock(clock),
		WithMetrics(s.metrics),
		WithAuditPublisher(s.publisher),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
}

func (s *RegistrySuite) TestImposeAndCheck() {
	ban, err := s.registry.Impose(s.ctx, "ip:198.51.100.7", models.AbuseRapidFire, 5*time.Minute, 20,
		map[string]any{"action": "BURST"})
	s.Require().NoError(err)
	s.Equal(s.now.Add(5*time.Minute).UnixMilli(), ban.Expiry)
	s.Equal(s.now.UnixMilli(), ban.Timestamp)

	status, err := s.registry.Check(s.ctx, "ip:198.51.100.7")
	s.Require().NoError(err)
	s.True(status.IsBanned)
	s.Equal(ban.Expiry, status.BanExpiry)
	s.Equal(models.AbuseRapidFire, status.Ban.Type)
	s.EqualValues(20, status.Ban.Count)
	s.Equal("BURST", status.Ban.Metadata["action"])

	ttl, ok := s.mem.TTL(models.BanKey("ip:198.51.100.7"))
	s.True(ok)
	s.Equal(5*time.Minute, ttl)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.RateLimitBansImposedTotal.WithLabelValues("RAPID_FIRE")))
	s.Require().Len(s.publisher.events, 1)
	s.Equal("ratelimit_ban_imposed", s.publisher.events[0].Action)
	s.Equal("ip:198.51.100.7", s.publisher.events[0].Subject)
	s.Equal("RAPID_FIRE", s.publisher.events[0].Reason)
}

func (s *RegistrySuite) TestTTLRoundsUpToWholeSeconds() {
	_, err := s.registry.Impose(s.ctx, "user:u1", models.AbuseExcessiveRequests, 1500*time.Millisecond, 100, nil)
	s.Require().NoError(err)

	ttl, ok := s.mem.TTL(models.BanKey("user:u1"))
	s.True(ok)
	s.Equal(2*time.Second, ttl)
}

func (s *RegistrySuite) TestExpiredBanIsDeletedLazily() {
	key := models.BanKey("user:u2")
	expired := `{"type":"RAPID_FIRE","count":20,"expiry":` +
		strconv.FormatInt(s.now.Add(-time.Second).UnixMilli(), 10) + `,"timestamp":1}`
	// store TTL still running but record expiry already passed
	s.Require().NoError(s.mem.Set(s.ctx, key, expired, time.Hour))

	status, err := s.registry.Check(s.ctx, "user:u2")
	s.Require().NoError(err)
	s.False(status.IsBanned)

	_, err = s.mem.Get(s.ctx, key)
	s.Error(err, "stale record removed")
}

func (s *RegistrySuite) TestMalformedRecordIsSkipped() {
	s.Require().NoError(s.mem.Set(s.ctx, models.BanKey("ip:1"), "{not json", time.Hour))

	status, err := s.registry.Check(s.ctx, "ip:1")
	s.Require().NoError(err)
	s.False(status.IsBanned)
}

func (s *RegistrySuite) TestStoreFailureSurfaces() {
	registry, err := New(storetest.Failing{}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)

	_, err = registry.Check(s.ctx, "ip:1")
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	_, err = registry.Impose(s.ctx, "ip:1", models.AbuseRapidFire, time.Minute, 1, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *RegistrySuite) TestGetAndLift() {
	_, err := s.registry.Get(s.ctx, "user:u3")
	s.ErrorIs(err, ErrNotBanned)

	_, err = s.registry.Impose(s.ctx, "user:u3", models.AbuseSuspiciousPatterns, 30*time.Minute, 5, nil)
	s.Require().NoError(err)

	ban, err := s.registry.Get(s.ctx, "user:u3")
	s.Require().NoError(err)
	s.Equal(models.AbuseSuspiciousPatterns, ban.Type)

	lifted, err := s.registry.Lift(s.ctx, "user:u3")
	s.Require().NoError(err)
	s.True(lifted)

	lifted, err = s.registry.Lift(s.ctx, "user:u3")
	s.Require().NoError(err)
	s.False(lifted)

	status, err := s.registry.Check(s.ctx, "user:u3")
	s.Require().NoError(err)
	s.False(status.IsBanned)
}

func (s *RegistrySuite) TestRejectsNonPositiveDuration() {
	_, err := s.registry.Impose(s.ctx, "ip:1", models.AbuseRapidFire, 0, 1, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *RegistrySuite) TestIdentifiersAreSanitized() {
	_, err := s.registry.Impose(s.ctx, "user:a*b", models.AbuseRapidFire, time.Minute, 1, nil)
	s.Require().NoError(err)

	status, err := s.registry.Check(s.ctx, "user:ab")
	s.Require().NoError(err)
	s.True(status.IsBanned, "glob characters cannot address a different key")
}
