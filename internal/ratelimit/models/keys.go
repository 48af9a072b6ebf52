package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	dErrors "pastebin/pkg/domain-errors"
)

// KeyPrefix represents the kind of subject an identifier refers to.
type KeyPrefix string

const (
	KeyPrefixIP   KeyPrefix = "ip"
	KeyPrefixUser KeyPrefix = "user"
)

// Storage namespaces. Event and metric keys are scanned by prefix, so the
// layout after the prefix is part of the contract with the cleanup job.
const (
	EventKeyPrefix         = "ratelimit:events:"
	DailyMetricsKeyPrefix  = "ratelimit:metrics:daily:"
	HourlyMetricsKeyPrefix = "ratelimit:metrics:hourly:"
	AbusersKeyPrefix       = "ratelimit:metrics:abusers:"
	MetricsKeyPrefix       = "ratelimit:metrics:"
	BanKeyPrefix           = "ban:"
	AbuseKeyPrefix         = "abuse:"

	dayLayout  = "2006-01-02"
	hourLayout = "2006-01-02:15"
)

// UserIdentifier builds the identifier for an authenticated caller.
func UserIdentifier(userID string) string {
	return fmt.Sprintf("%s:%s", KeyPrefixUser, userID)
}

// IPIdentifier builds the identifier for an anonymous caller.
func IPIdentifier(ip string) string {
	return fmt.Sprintf("%s:%s", KeyPrefixIP, ip)
}

// maxIdentifierLength bounds identifiers accepted from admin requests.
const maxIdentifierLength = 256

// ParseIdentifier validates an identifier supplied from outside, such as an
// admin path parameter. It must carry the ip: or user: prefix.
func ParseIdentifier(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxIdentifierLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid identifier")
	}
	prefix, rest, ok := strings.Cut(s, ":")
	if !ok || rest == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identifier must look like ip:<address> or user:<id>")
	}
	switch KeyPrefix(prefix) {
	case KeyPrefixIP, KeyPrefixUser:
		return s, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "identifier must look like ip:<address> or user:<id>")
}

// Sanitize drops every character outside [A-Za-z0-9_:-] so user-controlled
// identifiers cannot reach into other parts of the key space. Sanitizing an
// already clean identifier returns it unchanged.
//
// Examples:
//   - "ip:203.0.113.5"   → "ip:20301135"
//   - "user:a*b?c"       → "user:abc"
//   - "ip:2001:db8::1"   → "ip:2001:db8::1"
func Sanitize(identifier string) string {
	var b strings.Builder
	b.Grow(len(identifier))
	for i := 0; i < len(identifier); i++ {
		if isKeyChar(identifier[i]) {
			b.WriteByte(identifier[i])
		}
	}
	return b.String()
}

func isKeyChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == ':' || c == '-':
		return true
	}
	return false
}

// QuotaNamespace is the per-(action, class) prefix of sliding window keys.
func QuotaNamespace(action Action, class IdentityClass) string {
	return fmt.Sprintf("ratelimit:%s:%s", strings.ToLower(string(action)), class.keySegment())
}

// QuotaKey is the sliding window key for one identifier and action.
func QuotaKey(action Action, class IdentityClass, identifier string) string {
	return fmt.Sprintf("%s:%s:%s", QuotaNamespace(action, class), Sanitize(identifier), action)
}

// BanKey is where the ban record for an identifier lives.
func BanKey(identifier string) string {
	return BanKeyPrefix + Sanitize(identifier)
}

// AbuseKey is the counter for one abuse type and identifier.
func AbuseKey(abuseType AbuseType, identifier string) string {
	return fmt.Sprintf("%s%s:%s", AbuseKeyPrefix, abuseType, Sanitize(identifier))
}

// EventKey embeds the event time so scans can filter by key alone.
func EventKey(at time.Time, suffix string) string {
	return fmt.Sprintf("%s%d:%s", EventKeyPrefix, at.UnixMilli(), suffix)
}

// EventKeyTime extracts the embedded timestamp from an event key.
func EventKeyTime(key string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(key, EventKeyPrefix)
	if !ok {
		return time.Time{}, false
	}
	msPart, _, _ := strings.Cut(rest, ":")
	ms, err := strconv.ParseInt(msPart, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// DailyMetricsKey is the rollup hash for one UTC day.
func DailyMetricsKey(at time.Time) string {
	return DailyMetricsKeyPrefix + at.UTC().Format(dayLayout)
}

// HourlyMetricsKey is the rollup hash for one UTC hour.
func HourlyMetricsKey(at time.Time) string {
	return HourlyMetricsKeyPrefix + at.UTC().Format(hourLayout)
}

// AbusersKey counts blocked requests per identifier for one UTC day.
func AbusersKey(at time.Time) string {
	return AbusersKeyPrefix + at.UTC().Format(dayLayout)
}

// MetricsKeyTime extracts the day or hour a rollup key refers to.
func MetricsKeyTime(key string) (time.Time, bool) {
	for _, p := range []struct {
		prefix string
		layout string
	}{
		{DailyMetricsKeyPrefix, dayLayout},
		{HourlyMetricsKeyPrefix, hourLayout},
		{AbusersKeyPrefix, dayLayout},
	} {
		if rest, ok := strings.CutPrefix(key, p.prefix); ok {
			t, err := time.ParseInLocation(p.layout, rest, time.UTC)
			if err != nil {
				return time.Time{}, false
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// Rollup hash fields.
const (
	FieldTotalRequests   = "total_requests"
	FieldBlockedRequests = "blocked_requests"
	FieldAbuseAttempts   = "abuse_attempts"
)

// ActionField is the per-action counter inside a daily rollup hash.
func ActionField(action Action, blocked bool) string {
	if blocked {
		return "action:" + string(action) + ":blocked"
	}
	return "action:" + string(action) + ":total"
}

// ParseActionField reverses ActionField.
func ParseActionField(field string) (Action, bool, bool) {
	rest, ok := strings.CutPrefix(field, "action:")
	if !ok {
		return "", false, false
	}
	name, kind, ok := strings.Cut(rest, ":")
	if !ok {
		return "", false, false
	}
	switch kind {
	case "total":
		return Action(name), false, true
	case "blocked":
		return Action(name), true, true
	}
	return "", false, false
}
