package events

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"pastebin/internal/ratelimit/config"
	"pastebin/internal/ratelimit/metrics"
	"pastebin/internal/ratelimit/models"
	dErrors "pastebin/pkg/domain-errors"
)

// Heuristic thresholds. A pattern fires when its count is strictly greater
// than the threshold.
const (
	rapidRequestsThreshold  = 50
	rapidRequestsHigh       = 75
	rapidRequestsCritical   = 100
	distributedIPsThreshold = 10
	distributedIPsHigh      = 25
	distributedIPsCritical  = 50
	stuffingThreshold       = 20
	stuffingHigh            = 40
	scrapingThreshold       = 30
	scrapingHigh            = 60

	mgetBatchSize = 500
)

// EventReader is the subset of the key-value store pattern scans need.
type EventReader interface {
	Keys(ctx context.Context, pattern string) ([]string, error)
	MGet(ctx context.Context, keys ...string) ([]string, error)
}

// Analyzer scans the recent event log for abuse signatures. Results are
// recomputed on every call and never trigger bans on their own.
type Analyzer struct {
	store   EventReader
	window  time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

type AnalyzerOption func(*Analyzer)

func WithAnalyzerLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithAnalyzerMetrics(m *metrics.Metrics) AnalyzerOption {
	return func(a *Analyzer) {
		a.metrics = m
	}
}

func WithAnalyzerClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAnalyzer(st EventReader, cfg *config.Config, opts ...AnalyzerOption) (*Analyzer, error) {
	if st == nil {
		return nil, errors.New("event reader is required")
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	a := &Analyzer{
		store:  st,
		window: cfg.PatternWindow,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// RecentEvents loads every event whose key timestamp falls inside the
// pattern window. Records that fail to parse are skipped.
func (a *Analyzer) RecentEvents(ctx context.Context) ([]models.Event, error) {
	keys, err := a.store.Keys(ctx, models.EventKeyPrefix+"*")
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "list event keys")
	}

	cutoff := a.now().Add(-a.window)
	recent := keys[:0]
	for _, key := range keys {
		if at, ok := models.EventKeyTime(key); ok && !at.Before(cutoff) {
			recent = append(recent, key)
		}
	}

	out := make([]models.Event, 0, len(recent))
	skipped := 0
	for batch := range slices.Chunk(recent, mgetBatchSize) {
		values, err := a.store.MGet(ctx, batch...)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "load events")
		}
		for _, raw := range values {
			if raw == "" {
				continue
			}
			var event models.Event
			if err := json.Unmarshal([]byte(raw), &event); err != nil {
				skipped++
				continue
			}
			out = append(out, event)
		}
	}
	if skipped > 0 {
		a.logger.WarnContext(ctx, "ratelimit_events_malformed_skipped", "count", skipped)
	}
	return out, nil
}

// DetectAbusePatterns runs every heuristic over the recent events.
func (a *Analyzer) DetectAbusePatterns(ctx context.Context) ([]models.AbusePattern, error) {
	recent, err := a.RecentEvents(ctx)
	if err != nil {
		return nil, err
	}
	patterns := Detect(recent)
	for i := range patterns {
		patterns[i].ID = a.newID()
	}

	counts := map[models.PatternType]int{
		models.PatternRapidRequests:      0,
		models.PatternDistributedAttack:  0,
		models.PatternCredentialStuffing: 0,
		models.PatternScraping:           0,
	}
	for _, p := range patterns {
		counts[p.Type]++
	}
	for t, n := range counts {
		a.metrics.SetPatternsDetected(string(t), n)
	}
	return patterns, nil
}

// Detect applies the heuristics to a set of events. Failure-policy
// decisions are ignored. Pattern IDs are left empty. Output order is
// stable: by pattern type, then by subject.
func Detect(events []models.Event) []models.AbusePattern {
	events = slices.DeleteFunc(slices.Clone(events), models.Event.IsDegraded)
	var patterns []models.AbusePattern
	patterns = append(patterns, rapidRequests(events)...)
	patterns = append(patterns, distributedAttacks(events)...)
	patterns = append(patterns, credentialStuffing(events)...)
	patterns = append(patterns, scraping(events)...)
	return patterns
}

// group collects events sharing a key.
type group struct {
	key    string
	events []models.Event
}

func groupBy(events []models.Event, keep func(models.Event) bool, keyOf func(models.Event) string) []*group {
	index := map[string]*group{}
	var groups []*group
	for _, e := range events {
		if !keep(e) {
			continue
		}
		k := keyOf(e)
		g, ok := index[k]
		if !ok {
			g = &group{key: k}
			index[k] = g
			groups = append(groups, g)
		}
		g.events = append(g.events, e)
	}
	slices.SortFunc(groups, func(x, y *group) int { return cmp.Compare(x.key, y.key) })
	return groups
}

func all(models.Event) bool { return true }

func rapidRequests(events []models.Event) []models.AbusePattern {
	var out []models.AbusePattern
	for _, g := range groupBy(events, all, func(e models.Event) string { return e.Identifier }) {
		n := len(g.events)
		if n <= rapidRequestsThreshold {
			continue
		}
		out = append(out, newPattern(models.PatternRapidRequests,
			grade(n, rapidRequestsCritical, rapidRequestsHigh),
			fmt.Sprintf("%d requests from %s within the detection window", n, g.key),
			[]string{g.key}, g.events))
	}
	return out
}

func distributedAttacks(events []models.Event) []models.AbusePattern {
	failing := func(e models.Event) bool { return !e.Success }
	var out []models.AbusePattern
	for _, g := range groupBy(events, failing, func(e models.Event) string { return string(e.Action) }) {
		sources := distinct(g.events, models.Event.SourceIdentifier)
		if len(sources) <= distributedIPsThreshold {
			continue
		}
		out = append(out, newPattern(models.PatternDistributedAttack,
			grade(len(sources), distributedIPsCritical, distributedIPsHigh),
			fmt.Sprintf("%d distinct sources failing on %s", len(sources), g.key),
			sources, g.events))
	}
	return out
}

func credentialStuffing(events []models.Event) []models.AbusePattern {
	failedLogin := func(e models.Event) bool { return !e.Success && e.Action == models.ActionAuthAttempt }
	var out []models.AbusePattern
	for _, g := range groupBy(events, failedLogin, func(e models.Event) string { return e.Identifier }) {
		n := len(g.events)
		if n <= stuffingThreshold {
			continue
		}
		severity := models.SeverityMedium
		if n > stuffingHigh {
			severity = models.SeverityHigh
		}
		out = append(out, newPattern(models.PatternCredentialStuffing, severity,
			fmt.Sprintf("%d failed sign-in attempts from %s", n, g.key),
			[]string{g.key}, g.events))
	}
	return out
}

func scraping(events []models.Event) []models.AbusePattern {
	listingHit := func(e models.Event) bool { return e.Success && e.Action.IsListing() }
	var out []models.AbusePattern
	for _, g := range groupBy(events, listingHit, func(e models.Event) string { return e.Identifier }) {
		n := len(g.events)
		if n <= scrapingThreshold {
			continue
		}
		severity := models.SeverityMedium
		if n > scrapingHigh {
			severity = models.SeverityHigh
		}
		out = append(out, newPattern(models.PatternScraping, severity,
			fmt.Sprintf("%d listing requests from %s", n, g.key),
			[]string{g.key}, g.events))
	}
	return out
}

func grade(n, critical, high int) models.Severity {
	switch {
	case n > critical:
		return models.SeverityCritical
	case n > high:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}

func newPattern(t models.PatternType, severity models.Severity, description string, identifiers []string, events []models.Event) models.AbusePattern {
	p := models.AbusePattern{
		Type:         t,
		Severity:     severity,
		Description:  description,
		Identifiers:  identifiers,
		RequestCount: len(events),
		StartTime:    events[0].Timestamp,
		EndTime:      events[0].Timestamp,
	}
	for _, e := range events {
		p.StartTime = min(p.StartTime, e.Timestamp)
		p.EndTime = max(p.EndTime, e.Timestamp)
	}
	actions := distinct(events, func(e models.Event) string { return string(e.Action) })
	p.Actions = make([]models.Action, len(actions))
	for i, a := range actions {
		p.Actions[i] = models.Action(a)
	}
	return p
}

// distinct returns the sorted set of values keyOf yields over events.
func distinct(events []models.Event, keyOf func(models.Event) string) []string {
	seen := map[string]struct{}{}
	for _, e := range events {
		seen[keyOf(e)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
