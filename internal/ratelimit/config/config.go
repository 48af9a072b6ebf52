package config

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"pastebin/internal/ratelimit/models"
	dErrors "pastebin/pkg/domain-errors"
)

// Limit is a sliding window quota: Requests per Window. Requests == 0 forbids
// the action for the identity class.
type Limit struct {
	Requests int    `yaml:"requests"`
	Window   string `yaml:"window"`
}

// WindowDuration parses Window with ParseDuration.
func (l Limit) WindowDuration() time.Duration {
	return ParseDuration(l.Window)
}

// ActionLimits holds the two identity class quotas of one action.
type ActionLimits struct {
	Anonymous     Limit `yaml:"anonymous"`
	Authenticated Limit `yaml:"authenticated"`
}

// AbuseRule escalates an abuse counter into a ban once Threshold is reached.
type AbuseRule struct {
	Threshold   int64  `yaml:"threshold"`
	BanDuration string `yaml:"ban"`
}

// Config holds rate limiting configuration. It is built once at startup and
// treated as read-only afterwards.
type Config struct {
	Actions map[models.Action]ActionLimits
	Abuse   map[models.AbuseType]AbuseRule

	// AbuseCounterTTL bounds how long an abuse counter accumulates.
	AbuseCounterTTL time.Duration
	// EventTTL is the retention of individual gate events.
	EventTTL time.Duration
	// MetricsTTL is the retention of daily and hourly rollups.
	MetricsTTL time.Duration
	// PatternWindow is how far back pattern detection looks.
	PatternWindow time.Duration
}

// DefaultConfig returns the production quota table.
func DefaultConfig() *Config {
	return &Config{
		Actions: map[models.Action]ActionLimits{
			models.ActionPasteCreate: {
				Anonymous:     Limit{Requests: 3, Window: "1m"},
				Authenticated: Limit{Requests: 20, Window: "1m"},
			},
			models.ActionPasteUpdate: {
				Anonymous:     Limit{Requests: 0, Window: "1m"},
				Authenticated: Limit{Requests: 30, Window: "1m"},
			},
			models.ActionPasteDelete: {
				Anonymous:     Limit{Requests: 0, Window: "1m"},
				Authenticated: Limit{Requests: 20, Window: "1m"},
			},
			models.ActionURLCheck: {
				Anonymous:     Limit{Requests: 10, Window: "1m"},
				Authenticated: Limit{Requests: 30, Window: "1m"},
			},
			models.ActionPublicPastes: {
				Anonymous:     Limit{Requests: 60, Window: "1m"},
				Authenticated: Limit{Requests: 120, Window: "1m"},
			},
			models.ActionRawAccess: {
				Anonymous:     Limit{Requests: 100, Window: "1m"},
				Authenticated: Limit{Requests: 300, Window: "1m"},
			},
			models.ActionAuthAttempt: {
				Anonymous:     Limit{Requests: 5, Window: "15m"},
				Authenticated: Limit{Requests: 10, Window: "15m"},
			},
			models.ActionGeneralAPI: {
				Anonymous:     Limit{Requests: 100, Window: "1m"},
				Authenticated: Limit{Requests: 500, Window: "1m"},
			},
			models.ActionBurst: {
				Anonymous:     Limit{Requests: 20, Window: "10s"},
				Authenticated: Limit{Requests: 50, Window: "10s"},
			},
		},
		Abuse: map[models.AbuseType]AbuseRule{
			models.AbuseExcessiveRequests:  {Threshold: 100, BanDuration: "10m"},
			models.AbuseRapidFire:          {Threshold: 20, BanDuration: "5m"},
			models.AbuseSuspiciousPatterns: {Threshold: 5, BanDuration: "30m"},
		},
		AbuseCounterTTL: 300 * time.Second,
		EventTTL:        7 * 24 * time.Hour,
		MetricsTTL:      30 * 24 * time.Hour,
		PatternWindow:   10 * time.Minute,
	}
}

// Lookup returns the quota of an action for the identity class.
func (c *Config) Lookup(action models.Action, authenticated bool) (Limit, bool) {
	limits, ok := c.Actions[action]
	if !ok {
		return Limit{}, false
	}
	if authenticated {
		return limits.Authenticated, true
	}
	return limits.Anonymous, true
}

// Rule returns the escalation rule of an abuse type.
func (c *Config) Rule(abuseType models.AbuseType) (AbuseRule, bool) {
	rule, ok := c.Abuse[abuseType]
	return rule, ok
}

// DefaultDuration is what ParseDuration returns for input it cannot read.
const DefaultDuration = 60 * time.Second

var durationPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseDuration reads "<number><unit>" with unit s, m, h or d.
// Anything else yields DefaultDuration.
func ParseDuration(s string) time.Duration {
	d, err := parseDuration(s)
	if err != nil {
		return DefaultDuration
	}
	return d
}

func parseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	unit := map[string]time.Duration{
		"s": time.Second,
		"m": time.Minute,
		"h": time.Hour,
		"d": 24 * time.Hour,
	}[m[2]]
	return time.Duration(n) * unit, nil
}

// fileConfig is the YAML shape of RATE_LIMIT_CONFIG_FILE.
type fileConfig struct {
	Actions map[string]ActionLimits `yaml:"actions"`
	Abuse   map[string]AbuseRule    `yaml:"abuse"`
}

// LoadFile overlays the YAML file at path on top of DefaultConfig. Entries
// not mentioned keep their defaults. Unknown names and malformed windows are
// rejected so a typo cannot silently disable a limit.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate limit config: %w", err)
	}
	return Parse(raw)
}

// Parse is LoadFile without the file read.
func Parse(raw []byte) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse rate limit config")
	}

	cfg := DefaultConfig()
	actions := maps.Clone(cfg.Actions)
	for name, limits := range fc.Actions {
		action, err := models.ParseAction(name)
		if err != nil {
			return nil, err
		}
		for _, l := range []Limit{limits.Anonymous, limits.Authenticated} {
			if err := validateLimit(action, l); err != nil {
				return nil, err
			}
		}
		actions[action] = limits
	}

	rules := maps.Clone(cfg.Abuse)
	for name, rule := range fc.Abuse {
		abuseType := models.AbuseType(name)
		if _, known := rules[abuseType]; !known {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown abuse type: "+name)
		}
		if rule.Threshold <= 0 {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "abuse threshold must be positive: "+name)
		}
		if _, err := parseDuration(rule.BanDuration); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid ban duration for "+name)
		}
		rules[abuseType] = rule
	}

	cfg.Actions = actions
	cfg.Abuse = rules
	return cfg, nil
}

func validateLimit(action models.Action, l Limit) error {
	if l.Requests < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "negative request quota for "+string(action))
	}
	window, err := parseDuration(l.Window)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid window for "+string(action))
	}
	if window <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "window must be positive for "+string(action))
	}
	return nil
}
