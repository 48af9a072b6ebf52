package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pastebin/internal/ratelimit/models"
	dErrors "pastebin/pkg/domain-errors"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"30s":  30 * time.Second,
		"10m":  10 * time.Minute,
		"2h":   2 * time.Hour,
		"1d":   24 * time.Hour,
		"0s":   0,
		"":     DefaultDuration,
		"5":    DefaultDuration,
		"5w":   DefaultDuration,
		"1.5m": DefaultDuration,
		"-1m":  DefaultDuration,
		" 1m":  DefaultDuration,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseDuration(in), "input %q", in)
	}
}

func TestDefaultConfigCoversEveryAction(t *testing.T) {
	cfg := DefaultConfig()
	for _, action := range models.AllActions {
		for _, authenticated := range []bool{false, true} {
			limit, ok := cfg.Lookup(action, authenticated)
			require.True(t, ok, "%s missing", action)
			assert.GreaterOrEqual(t, limit.Requests, 0)
			assert.Positive(t, limit.WindowDuration())
		}
	}

	anon, _ := cfg.Lookup(models.ActionPasteDelete, false)
	assert.Zero(t, anon.Requests, "anonymous deletion is forbidden")

	_, ok := cfg.Lookup(models.Action("NOPE"), false)
	assert.False(t, ok)
}

func TestDefaultAbuseRules(t *testing.T) {
	cfg := DefaultConfig()

	rule, ok := cfg.Rule(models.AbuseExcessiveRequests)
	require.True(t, ok)
	assert.EqualValues(t, 100, rule.Threshold)
	assert.Equal(t, 10*time.Minute, ParseDuration(rule.BanDuration))

	rule, _ = cfg.Rule(models.AbuseRapidFire)
	assert.EqualValues(t, 20, rule.Threshold)
	assert.Equal(t, 5*time.Minute, ParseDuration(rule.BanDuration))

	rule, _ = cfg.Rule(models.AbuseSuspiciousPatterns)
	assert.EqualValues(t, 5, rule.Threshold)
	assert.Equal(t, 30*time.Minute, ParseDuration(rule.BanDuration))
}

func TestParseOverrides(t *testing.T) {
	t.Run("overlays named entries only", func(t *testing.T) {
		cfg, err := Parse([]byte(`
actions:
  paste_create:
    anonymous: {requests: 1, window: 30s}
    authenticated: {requests: 5, window: 1m}
abuse:
  RAPID_FIRE: {threshold: 10, ban: 1h}
`))
		require.NoError(t, err)

		limit, _ := cfg.Lookup(models.ActionPasteCreate, false)
		assert.Equal(t, Limit{Requests: 1, Window: "30s"}, limit)

		untouched, _ := cfg.Lookup(models.ActionRawAccess, true)
		assert.Equal(t, 300, untouched.Requests)

		rule, _ := cfg.Rule(models.AbuseRapidFire)
		assert.EqualValues(t, 10, rule.Threshold)

		assert.Equal(t, 3, DefaultConfig().Actions[models.ActionPasteCreate].Anonymous.Requests,
			"defaults are not mutated")
	})

	t.Run("rejects unknown actions", func(t *testing.T) {
		_, err := Parse([]byte("actions:\n  PASTE_EXPLODE:\n    anonymous: {requests: 1, window: 1m}\n"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects malformed windows", func(t *testing.T) {
		_, err := Parse([]byte(`
actions:
  BURST:
    anonymous: {requests: 1, window: soon}
    authenticated: {requests: 1, window: 1m}
`))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects non-positive thresholds", func(t *testing.T) {
		_, err := Parse([]byte("abuse:\n  RAPID_FIRE: {threshold: 0, ban: 1m}\n"))
		assert.Error(t, err)
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte("actions:\n  URL_CHECK:\n    anonymous: {requests: 2, window: 1m}\n    authenticated: {requests: 4, window: 1m}\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	limit, _ := cfg.Lookup(models.ActionURLCheck, true)
	assert.Equal(t, 4, limit.Requests)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
