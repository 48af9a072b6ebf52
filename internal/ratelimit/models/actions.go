package models

import (
	"strings"

	dErrors "pastebin/pkg/domain-errors"
)

// Action is the operation category a caller is rate limited under.
// Each endpoint selects exactly one action.
type Action string

const (
	ActionPasteCreate  Action = "PASTE_CREATE"
	ActionPasteUpdate  Action = "PASTE_UPDATE"
	ActionPasteDelete  Action = "PASTE_DELETE"
	ActionURLCheck     Action = "URL_CHECK"
	ActionPublicPastes Action = "PUBLIC_PASTES"
	ActionRawAccess    Action = "RAW_ACCESS"
	ActionAuthAttempt  Action = "AUTH_ATTEMPT"
	ActionGeneralAPI   Action = "GENERAL_API"
	ActionBurst        Action = "BURST"
)

// AllActions lists every canonical action in a stable order.
var AllActions = []Action{
	ActionPasteCreate,
	ActionPasteUpdate,
	ActionPasteDelete,
	ActionURLCheck,
	ActionPublicPastes,
	ActionRawAccess,
	ActionAuthAttempt,
	ActionGeneralAPI,
	ActionBurst,
}

func (a Action) IsValid() bool {
	for _, known := range AllActions {
		if a == known {
			return true
		}
	}
	return false
}

func (a Action) String() string {
	return string(a)
}

// IsListing reports whether the action serves bulk-readable content, the
// target of scraping.
func (a Action) IsListing() bool {
	return a == ActionPublicPastes || a == ActionRawAccess
}

// ParseAction validates a canonical action name. Matching is case-insensitive.
func ParseAction(s string) (Action, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "action cannot be empty")
	}
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown action: "+s)
	}
	return a, nil
}

// IdentityClass splits quotas between anonymous and signed-in callers.
type IdentityClass string

const (
	ClassAnonymous     IdentityClass = "ANONYMOUS"
	ClassAuthenticated IdentityClass = "AUTHENTICATED"
)

// ClassFor maps the authenticated flag to its identity class.
func ClassFor(authenticated bool) IdentityClass {
	if authenticated {
		return ClassAuthenticated
	}
	return ClassAnonymous
}

// keySegment is the short form used inside storage keys.
func (c IdentityClass) keySegment() string {
	if c == ClassAuthenticated {
		return "auth"
	}
	return "anon"
}

// AbuseType names an abuse counter and the ban it escalates to.
type AbuseType string

const (
	AbuseExcessiveRequests  AbuseType = "EXCESSIVE_REQUESTS"
	AbuseRapidFire          AbuseType = "RAPID_FIRE"
	AbuseSuspiciousPatterns AbuseType = "SUSPICIOUS_PATTERNS"
)

// FailurePolicy decides the outcome when the store cannot be reached.
// The zero value allows the request.
type FailurePolicy int

const (
	FailOpen FailurePolicy = iota
	FailClosed
)

// FailClosedRetryAfter is the backoff hint, in seconds, returned when a
// fail-closed caller hits an unavailable store.
const FailClosedRetryAfter = 60
