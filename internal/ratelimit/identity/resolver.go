// Package identity derives the rate limit subject of a request.
//
// Authenticated callers are limited as "user:<id>", anonymous callers as
// "ip:<address>". Proxy headers are only honoured when the deployment runs
// behind a proxy that overwrites them; otherwise any client could pick its
// own IP and walk around every limit, so the resolver answers with a fixed
// loopback placeholder instead.
package identity

import (
	"net/http"
	"net/netip"
	"regexp"
	"strings"

	"pastebin/internal/ratelimit/models"
)

// PlaceholderIP is returned when no trustworthy client address is known.
const PlaceholderIP = "127.0.0.1"

// MaxHeaderLength bounds forwarded headers before they are parsed.
const MaxHeaderLength = 500

var (
	ipv4Pattern = regexp.MustCompile(`^((25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)$`)
	ipv6Pattern = regexp.MustCompile(`^[0-9A-Fa-f:]*:[0-9A-Fa-f:.]*$`)
)

// Headers consulted in order when proxy headers are trusted.
var proxyHeaders = []string{
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Real-IP",
	"X-Forwarded-For",
}

// Resolver turns request headers into an Identity. It has no side effects.
type Resolver struct {
	trustProxyHeaders bool
}

// NewResolver creates a resolver. trustProxyHeaders must only be true when
// a proxy in front of the service sets the forwarding headers itself.
func NewResolver(trustProxyHeaders bool) *Resolver {
	return &Resolver{trustProxyHeaders: trustProxyHeaders}
}

// Resolve builds the identity for a request. A non-empty userID makes the
// caller authenticated.
func (r *Resolver) Resolve(h http.Header, userID string) models.Identity {
	ip := r.ClientIP(h)
	if userID != "" {
		return models.Identity{
			Identifier:      models.UserIdentifier(userID),
			IsAuthenticated: true,
			IP:              ip,
			UserID:          userID,
		}
	}
	return models.Identity{
		Identifier: models.IPIdentifier(ip),
		IP:         ip,
	}
}

// ClientIP returns the first valid address from the trusted proxy headers,
// or PlaceholderIP.
func (r *Resolver) ClientIP(h http.Header) string {
	if !r.trustProxyHeaders || h == nil {
		return PlaceholderIP
	}
	for _, name := range proxyHeaders {
		raw := h.Get(name)
		if raw == "" || len(raw) > MaxHeaderLength {
			continue
		}
		if name == "X-Forwarded-For" {
			// first hop is the original client
			raw, _, _ = strings.Cut(raw, ",")
		}
		if ip, ok := ValidIP(strings.TrimSpace(raw)); ok {
			return ip
		}
	}
	return PlaceholderIP
}

// ValidIP checks a candidate against the IPv4 and IPv6 patterns and returns
// its canonical form.
func ValidIP(candidate string) (string, bool) {
	if !ipv4Pattern.MatchString(candidate) && !ipv6Pattern.MatchString(candidate) {
		return "", false
	}
	addr, err := netip.ParseAddr(candidate)
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}

// trustMarkers are environment variables that indicate a managed platform
// whose edge proxy rewrites the forwarding headers.
var trustMarkers = []string{"VERCEL", "FLY_APP_NAME", "RENDER", "K_SERVICE"}

// TrustFromEnv infers proxy trust from the environment. An explicit
// TRUST_PROXY_HEADERS wins; otherwise any platform marker enables trust.
func TrustFromEnv(getenv func(string) string) bool {
	switch strings.ToLower(getenv("TRUST_PROXY_HEADERS")) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	for _, marker := range trustMarkers {
		if getenv(marker) != "" {
			return true
		}
	}
	return false
}
