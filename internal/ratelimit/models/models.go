package models

import "time"

// Identity is the rate limit subject derived from a request.
type Identity struct {
	Identifier      string `json:"identifier"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	IP              string `json:"ip"`
	UserID          string `json:"userId,omitempty"`
}

// QuotaResult is the outcome of consuming one unit from a sliding window.
// Reset is epoch milliseconds. Degraded marks a policy answer given because
// the store failed; no window was read.
type QuotaResult struct {
	Success    bool  `json:"success"`
	Limit      int   `json:"limit"`
	Remaining  int   `json:"remaining"`
	Reset      int64 `json:"reset"`
	RetryAfter int   `json:"retryAfter,omitempty"`
	Degraded   bool  `json:"-"`
}

// RateLimitResult is the gate's unified decision. Reset and BanExpiry are
// epoch milliseconds; RetryAfter is seconds and only set on denial.
type RateLimitResult struct {
	Success    bool  `json:"success"`
	Limit      int   `json:"limit,omitempty"`
	Remaining  int   `json:"remaining"`
	Reset      int64 `json:"reset,omitempty"`
	RetryAfter int   `json:"retryAfter,omitempty"`
	IsAbuse    bool  `json:"isAbuse,omitempty"`
	BanExpiry  int64 `json:"banExpiry,omitempty"`
}

// HasQuota reports whether the result carries window accounting worth
// exposing as X-RateLimit-* headers.
func (r *RateLimitResult) HasQuota() bool {
	return r != nil && (r.Limit > 0 || r.Reset > 0)
}

// Ban is the record stored under BanKey.
type Ban struct {
	Type      AbuseType      `json:"type"`
	Count     int64          `json:"count"`
	Expiry    int64          `json:"expiry"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// ExpiresAt converts the expiry to a time.
func (b *Ban) ExpiresAt() time.Time {
	return time.UnixMilli(b.Expiry)
}

// BanStatus is the answer to "is this identifier banned right now".
type BanStatus struct {
	IsBanned  bool  `json:"isBanned"`
	BanExpiry int64 `json:"banExpiry,omitempty"`
	Ban       *Ban  `json:"ban,omitempty"`
}

// Event is one gate decision as stored in the event log.
type Event struct {
	Timestamp  int64          `json:"timestamp"`
	Identifier string         `json:"identifier"`
	Action     Action         `json:"action"`
	Success    bool           `json:"success"`
	Remaining  int            `json:"remaining"`
	Limit      int            `json:"limit"`
	IsAbuse    bool           `json:"isAbuse,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	IP         string         `json:"ip,omitempty"`
	UserID     string         `json:"userId,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// EventMetaDegraded flags events whose decision came from the failure
// policy rather than a quota read.
const EventMetaDegraded = "degraded"

// IsDegraded reports whether the event was a failure-policy decision.
func (e Event) IsDegraded() bool {
	degraded, _ := e.Metadata[EventMetaDegraded].(bool)
	return degraded
}

// SourceIdentifier is the ip-based identifier the event came from. Events
// recorded without an IP fall back to their primary identifier.
func (e Event) SourceIdentifier() string {
	if e.IP != "" {
		return IPIdentifier(e.IP)
	}
	return e.Identifier
}

type PatternType string

const (
	PatternRapidRequests      PatternType = "rapid_requests"
	PatternDistributedAttack  PatternType = "distributed_attack"
	PatternCredentialStuffing PatternType = "credential_stuffing"
	PatternScraping           PatternType = "scraping"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AbusePattern is a signature found by scanning recent events. Times are
// epoch milliseconds.
type AbusePattern struct {
	ID           string      `json:"id"`
	Type         PatternType `json:"type"`
	Severity     Severity    `json:"severity"`
	Description  string      `json:"description"`
	Identifiers  []string    `json:"identifiers"`
	StartTime    int64       `json:"startTime"`
	EndTime      int64       `json:"endTime,omitempty"`
	RequestCount int         `json:"requestCount"`
	Actions      []Action    `json:"actions"`
}

// DailyMetrics is one day of rollup counters.
type DailyMetrics struct {
	Date            string `json:"date"`
	TotalRequests   int64  `json:"totalRequests"`
	BlockedRequests int64  `json:"blockedRequests"`
	AbuseAttempts   int64  `json:"abuseAttempts"`
}

// ActionMetrics sums requests per action over the reporting period.
type ActionMetrics struct {
	TotalRequests   int64 `json:"totalRequests"`
	BlockedRequests int64 `json:"blockedRequests"`
}

// AbuserCount ranks identifiers by blocked requests.
type AbuserCount struct {
	Identifier      string `json:"identifier"`
	BlockedRequests int64  `json:"blockedRequests"`
}

// MetricsReport is what the monitoring endpoint returns.
type MetricsReport struct {
	Daily          []DailyMetrics           `json:"daily"`
	ByAction       map[Action]ActionMetrics `json:"byAction"`
	TopAbusers     []AbuserCount            `json:"topAbusers"`
	RecentPatterns []AbusePattern           `json:"recentPatterns"`
}

// Denial codes in 429 bodies.
const (
	CodeRateLimited   = "RATE_LIMITED"
	CodeAbuseDetected = "ABUSE_DETECTED"
)

// RateLimitExceededResponse is the 429 body.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retryAfter,omitempty"`
	BanExpiry  int64  `json:"banExpiry,omitempty"`
}
