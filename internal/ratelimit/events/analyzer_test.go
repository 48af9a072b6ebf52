package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"pastebin/internal/ratelimit/config"
	"pastebin/internal/ratelimit/metrics"
	"pastebin/internal/ratelimit/models"
	"pastebin/internal/ratelimit/store/memory"
)

// =============================================================================
// Pattern Analyzer Test Suite
// =============================================================================
// Justification: detection output feeds the operator dashboard. Threshold
// boundaries and severity grading are pinned here so a change in heuristics
// is a deliberate one.

type AnalyzerSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	mem      *memory.Store
	metrics  *metrics.Metrics
	analyzer *Analyzer
	seq      int
}

func TestAnalyzerSuite(t *testing.T) {
	suite.Run(t, new(AnalyzerSuite))
}

func (s *AnalyzerSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Unix(1_800_000_000, 0)
	clock := func() time.Time { return s.now }
	s.mem = memory.New(memory.WithClock(clock))
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.seq = 0

	var err error
	s.analyzer, err = NewAnalyzer(s.mem, config.DefaultConfig(),
		WithAnalyzerClock(clock),
		WithAnalyzerMetrics(s.metrics),
		WithAnalyzerLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
}

// put stores an event age ago under a unique key.
func (s *AnalyzerSuite) put(age time.Duration, e models.Event) {
	at := s.now.Add(-age)
	e.Timestamp = at.UnixMilli()
	raw, err := json.Marshal(e)
	s.Require().NoError(err)
	s.seq++
	key := models.EventKey(at, fmt.Sprintf("s%d", s.seq))
	s.Require().NoError(s.mem.Set(s.ctx, key, string(raw), 7*24*time.Hour))
}

func (s *AnalyzerSuite) putN(n int, e models.Event) {
	for i := range n {
		s.put(time.Duration(i)*time.Second, e)
	}
}

func (s *AnalyzerSuite) detect() []models.AbusePattern {
	patterns, err := s.analyzer.DetectAbusePatterns(s.ctx)
	s.Require().NoError(err)
	return patterns
}

func (s *AnalyzerSuite) TestRapidRequests() {
	s.Run("51 events yield one medium pattern", func() {
		s.SetupTest()
		s.putN(51, models.Event{Identifier: "ip:192.0.2.1", Action: models.ActionGeneralAPI, Success: true})

		patterns := s.detect()
		s.Require().Len(patterns, 1)
		p := patterns[0]
		s.Equal(models.PatternRapidRequests, p.Type)
		s.Equal(models.SeverityMedium, p.Severity)
		s.Equal(51, p.RequestCount)
		s.Equal([]string{"ip:192.0.2.1"}, p.Identifiers)
		s.Equal([]models.Action{models.ActionGeneralAPI}, p.Actions)
		s.NotEmpty(p.ID)
		s.Equal(s.now.UnixMilli(), p.EndTime)
		s.Equal(s.now.Add(-50*time.Second).UnixMilli(), p.StartTime)
	})

	s.Run("50 events stay below threshold", func() {
		s.SetupTest()
		s.putN(50, models.Event{Identifier: "ip:192.0.2.1", Action: models.ActionGeneralAPI, Success: true})
		s.Empty(s.detect())
	})

	s.Run("severity grades", func() {
		cases := map[int]models.Severity{
			75:  models.SeverityMedium,
			76:  models.SeverityHigh,
			100: models.SeverityHigh,
			101: models.SeverityCritical,
		}
		for n, want := range cases {
			got := Detect(repeat(n, models.Event{Identifier: "user:u", Action: models.ActionGeneralAPI, Success: true}))
			s.Require().Len(got, 1, "n=%d", n)
			s.Equal(want, got[0].Severity, "n=%d", n)
		}
	})
}

// Justification: failure-policy allows during a store outage say nothing
// about the caller and must not surface as rapid_requests.
func (s *AnalyzerSuite) TestDegradedDecisionsAreIgnored() {
	events := repeat(60, models.Event{
		Identifier: "ip:192.0.2.9",
		Action:     models.ActionGeneralAPI,
		Success:    true,
		Metadata:   map[string]any{models.EventMetaDegraded: true},
	})
	s.Empty(Detect(events))

	events[0].Metadata = nil
	s.Empty(Detect(events), "one real decision is not a pattern")
}

func (s *AnalyzerSuite) TestDistributedAttack() {
	s.Run("11 failing sources on one action", func() {
		s.SetupTest()
		want := make([]string, 0, 11)
		for i := 1; i <= 11; i++ {
			ip := fmt.Sprintf("198.51.100.%d", i)
			s.put(time.Duration(i)*time.Second, models.Event{
				Identifier: models.IPIdentifier(ip),
				IP:         ip,
				Action:     models.ActionAuthAttempt,
				Success:    false,
			})
			want = append(want, models.IPIdentifier(ip))
		}

		patterns := s.detect()
		s.Require().Len(patterns, 1)
		p := patterns[0]
		s.Equal(models.PatternDistributedAttack, p.Type)
		s.Equal(models.SeverityMedium, p.Severity)
		s.ElementsMatch(want, p.Identifiers)
		s.Equal(11, p.RequestCount)
		s.Equal([]models.Action{models.ActionAuthAttempt}, p.Actions)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.RateLimitPatternsDetected.WithLabelValues("distributed_attack")))
	})

	s.Run("successful requests do not count", func() {
		var evts []models.Event
		for i := range 20 {
			ip := fmt.Sprintf("203.0.113.%d", i)
			evts = append(evts, models.Event{Identifier: models.IPIdentifier(ip), IP: ip, Action: models.ActionURLCheck, Success: true})
		}
		s.Empty(Detect(evts))
	})

	s.Run("users behind one ip count once", func() {
		var evts []models.Event
		for i := range 20 {
			evts = append(evts, models.Event{Identifier: fmt.Sprintf("user:u%d", i), IP: "203.0.113.9", Action: models.ActionPasteCreate})
		}
		s.Empty(Detect(evts))
	})

	s.Run("severity grades", func() {
		for n, want := range map[int]models.Severity{26: models.SeverityHigh, 51: models.SeverityCritical} {
			var evts []models.Event
			for i := range n {
				ip := fmt.Sprintf("10.0.%d.%d", i/250, i%250)
				evts = append(evts, models.Event{Identifier: models.IPIdentifier(ip), IP: ip, Action: models.ActionRawAccess})
			}
			got := Detect(evts)
			s.Require().Len(got, 1)
			s.Equal(want, got[0].Severity)
		}
	})
}

func (s *AnalyzerSuite) TestScraping() {
	listing := models.Event{Identifier: "ip:192.0.2.7", Action: models.ActionPublicPastes, Success: true}

	got := Detect(repeat(31, listing))
	s.Require().Len(got, 1)
	s.Equal(models.PatternScraping, got[0].Type)
	s.Equal(models.SeverityMedium, got[0].Severity)

	got = Detect(repeat(61, listing))
	s.Require().Len(got, 2, "61 requests are also rapid")
	s.Equal(models.PatternRapidRequests, got[0].Type)
	s.Equal(models.PatternScraping, got[1].Type)
	s.Equal(models.SeverityHigh, got[1].Severity)

	s.Empty(Detect(repeat(31, models.Event{Identifier: "ip:192.0.2.7", Action: models.ActionPasteCreate, Success: true})),
		"non-listing actions are not scraping")
	s.Empty(Detect(repeat(30, listing)))
}

func (s *AnalyzerSuite) TestCredentialStuffing() {
	failed := models.Event{Identifier: "ip:192.0.2.8", Action: models.ActionAuthAttempt, Success: false}

	s.Empty(Detect(repeat(20, failed)))

	got := Detect(repeat(21, failed))
	s.Require().Len(got, 1)
	s.Equal(models.PatternCredentialStuffing, got[0].Type)
	s.Equal(models.SeverityMedium, got[0].Severity)

	got = Detect(repeat(41, failed))
	s.Require().Len(got, 1)
	s.Equal(models.SeverityHigh, got[0].Severity)
}

func (s *AnalyzerSuite) TestWindowAndMalformedRecords() {
	s.putN(51, models.Event{Identifier: "ip:192.0.2.1", Action: models.ActionGeneralAPI, Success: true})
	for i := range 60 {
		s.put(11*time.Minute+time.Duration(i)*time.Second,
			models.Event{Identifier: "ip:192.0.2.2", Action: models.ActionGeneralAPI, Success: true})
	}
	s.Require().NoError(s.mem.Set(s.ctx, models.EventKey(s.now, "broken"), "{oops", time.Hour))
	s.Require().NoError(s.mem.Set(s.ctx, models.EventKeyPrefix+"not-a-time:x", "{}", time.Hour))

	recent, err := s.analyzer.RecentEvents(s.ctx)
	s.Require().NoError(err)
	s.Len(recent, 51, "old events and malformed records are left out")

	patterns := s.detect()
	s.Require().Len(patterns, 1)
	s.Equal([]string{"ip:192.0.2.1"}, patterns[0].Identifiers)
}

func repeat(n int, e models.Event) []models.Event {
	out := make([]models.Event, n)
	for i := range out {
		out[i] = e
		out[i].Timestamp = int64(1_800_000_000_000 + i)
	}
	return out
}
