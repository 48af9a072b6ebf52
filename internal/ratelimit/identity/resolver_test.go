package identity

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"pastebin/internal/ratelimit/models"
)

// =============================================================================
// Identity Resolver Test Suite
// =============================================================================
// Justification: the resolver is the only thing standing between a spoofed
// X-Forwarded-For header and a fresh quota. Trust gating and IP validation
// are tested exhaustively here.

type ResolverSuite struct {
	suite.Suite
	trusted   *Resolver
	untrusted *Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.trusted = NewResolver(true)
	s.untrusted = NewResolver(false)
}

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func (s *ResolverSuite) TestUntrustedDeploymentIgnoresHeaders() {
	h := headers("X-Forwarded-For", "203.0.113.5", "CF-Connecting-IP", "198.51.100.1")
	s.Equal(PlaceholderIP, s.untrusted.ClientIP(h))

	identity := s.untrusted.Resolve(h, "")
	s.Equal("ip:127.0.0.1", identity.Identifier)
	s.False(identity.IsAuthenticated)
}

func (s *ResolverSuite) TestTrustedHeaderPrecedence() {
	s.Run("cloudflare header wins", func() {
		h := headers("X-Forwarded-For", "203.0.113.5", "CF-Connecting-IP", "198.51.100.1")
		s.Equal("198.51.100.1", s.trusted.ClientIP(h))
	})

	s.Run("first forwarded hop is the client", func() {
		h := headers("X-Forwarded-For", "203.0.113.5, 10.0.0.1, 10.0.0.2")
		s.Equal("203.0.113.5", s.trusted.ClientIP(h))
	})

	s.Run("invalid candidates fall through to the next header", func() {
		h := headers("CF-Connecting-IP", "not-an-ip", "X-Real-IP", "192.0.2.44")
		s.Equal("192.0.2.44", s.trusted.ClientIP(h))
	})

	s.Run("oversized header ignored", func() {
		h := headers("X-Forwarded-For", strings.Repeat("1", MaxHeaderLength+1))
		s.Equal(PlaceholderIP, s.trusted.ClientIP(h))
	})

	s.Run("nothing usable yields the placeholder", func() {
		s.Equal(PlaceholderIP, s.trusted.ClientIP(http.Header{}))
		s.Equal(PlaceholderIP, s.trusted.ClientIP(nil))
	})
}

func (s *ResolverSuite) TestValidIP() {
	valid := map[string]string{
		"203.0.113.5":          "203.0.113.5",
		"2001:db8::1":          "2001:db8::1",
		"2001:DB8:0:0:0:0:0:1": "2001:db8::1",
		"::ffff:192.0.2.1":     "192.0.2.1",
	}
	for in, want := range valid {
		got, ok := ValidIP(in)
		s.True(ok, in)
		s.Equal(want, got, in)
	}

	for _, in := range []string{"", "256.1.1.1", "1.2.3", "01.2.3.4x", "evil.example.com", "1.2.3.4:8080", "::g"} {
		_, ok := ValidIP(in)
		s.False(ok, in)
	}
}

func (s *ResolverSuite) TestResolve() {
	h := headers("X-Real-IP", "192.0.2.10")

	s.Run("user id makes the caller authenticated", func() {
		got := s.trusted.Resolve(h, "u-42")
		s.Equal(models.Identity{
			Identifier:      "user:u-42",
			IsAuthenticated: true,
			IP:              "192.0.2.10",
			UserID:          "u-42",
		}, got)
	})

	s.Run("anonymous callers are keyed by ip", func() {
		got := s.trusted.Resolve(h, "")
		s.Equal("ip:192.0.2.10", got.Identifier)
		s.Equal("192.0.2.10", got.IP)
		s.Empty(got.UserID)
	})
}

func (s *ResolverSuite) TestTrustFromEnv() {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}

	s.False(TrustFromEnv(env(nil)))
	s.True(TrustFromEnv(env(map[string]string{"VERCEL": "1"})))
	s.True(TrustFromEnv(env(map[string]string{"TRUST_PROXY_HEADERS": "true"})))
	s.False(TrustFromEnv(env(map[string]string{"TRUST_PROXY_HEADERS": "false", "FLY_APP_NAME": "paste"})))
}
