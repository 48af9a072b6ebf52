package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"pastebin/internal/ratelimit/admin"
	"pastebin/internal/ratelimit/ban"
	"pastebin/internal/ratelimit/gate"
	"pastebin/internal/ratelimit/handler/mocks"
	"pastebin/internal/ratelimit/models"
	dErrors "pastebin/pkg/domain-errors"
)

// =============================================================================
// Rate Limit Handler Test Suite
// =============================================================================
// Justification: handlers translate between HTTP and the admin service and
// gate. Tests cover routing, parameter parsing, status mapping, and that
// store details never leak into error bodies.

type HandlerSuite struct {
	suite.Suite
	router  http.Handler
	ctrl    *gomock.Controller
	admin   *mocks.MockAdminService
	checker *mocks.MockChecker
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.admin = mocks.NewMockAdminService(s.ctrl)
	s.checker = mocks.NewMockChecker(s.ctrl)
	h := New(s.admin, s.checker, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	r := chi.NewRouter()
	h.RegisterAdmin(r)
	h.RegisterDecision(r)
	s.router = r
}

func (s *HandlerSuite) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) body(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *HandlerSuite) TestMetrics() {
	s.Run("days parameter is passed through", func() {
		s.admin.EXPECT().Metrics(gomock.Any(), 14).Return(&models.MetricsReport{
			Daily:      []models.DailyMetrics{{Date: "2026-03-14", TotalRequests: 9}},
			ByAction:   map[models.Action]models.ActionMetrics{},
			TopAbusers: []models.AbuserCount{},
		}, nil)

		rec := s.do(http.MethodGet, "/admin/ratelimit/metrics?days=14", "")
		s.Equal(http.StatusOK, rec.Code)
		daily := s.body(rec)["daily"].([]any)
		s.Equal(float64(9), daily[0].(map[string]any)["totalRequests"])
	})

	s.Run("missing days uses the default", func() {
		s.admin.EXPECT().Metrics(gomock.Any(), 0).Return(&models.MetricsReport{}, nil)
		rec := s.do(http.MethodGet, "/admin/ratelimit/metrics", "")
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("malformed days", func() {
		rec := s.do(http.MethodGet, "/admin/ratelimit/metrics?days=week", "")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("store failure hides details", func() {
		s.admin.EXPECT().Metrics(gomock.Any(), 0).Return(nil, dErrors.New(dErrors.CodeUnavailable, "dial redis-0.internal:6379"))
		rec := s.do(http.MethodGet, "/admin/ratelimit/metrics", "")
		s.Equal(http.StatusServiceUnavailable, rec.Code)
		s.NotContains(rec.Body.String(), "redis-0")
	})
}

func (s *HandlerSuite) TestPatterns() {
	s.admin.EXPECT().Patterns(gomock.Any()).Return([]models.AbusePattern{{ID: "p1", Type: models.PatternScraping}}, nil)

	rec := s.do(http.MethodGet, "/admin/ratelimit/patterns", "")
	s.Equal(http.StatusOK, rec.Code)
	patterns := s.body(rec)["patterns"].([]any)
	s.Len(patterns, 1)
	s.Equal("scraping", patterns[0].(map[string]any)["type"])
}

func (s *HandlerSuite) TestGetBan() {
	s.Run("active", func() {
		s.admin.EXPECT().Ban(gomock.Any(), "ip:203.0.113.5").Return(&models.Ban{Type: models.AbuseExcessiveRequests, Count: 100}, nil)
		rec := s.do(http.MethodGet, "/admin/ratelimit/bans/ip:203.0.113.5", "")
		s.Equal(http.StatusOK, rec.Code)
		body := s.body(rec)
		s.Equal("ip:203.0.113.5", body["identifier"])
		s.Equal("EXCESSIVE_REQUESTS", body["ban"].(map[string]any)["type"])
	})

	s.Run("not banned", func() {
		s.admin.EXPECT().Ban(gomock.Any(), "user:u1").Return(nil, ban.ErrNotBanned)
		rec := s.do(http.MethodGet, "/admin/ratelimit/bans/user:u1", "")
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestClearBan() {
	s.admin.EXPECT().ClearBan(gomock.Any(), "user:u1").Return(&admin.ClearResult{Identifier: "user:u1", BanLifted: true, CountersReset: 3}, nil)

	rec := s.do(http.MethodDelete, "/admin/ratelimit/bans/user:u1", "")
	s.Equal(http.StatusOK, rec.Code)
	body := s.body(rec)
	s.Equal(true, body["banLifted"])
	s.Equal(float64(3), body["countersReset"])
}

func (s *HandlerSuite) TestCheck() {
	s.Run("allowed", func() {
		s.checker.EXPECT().Check(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req gate.CheckRequest) models.RateLimitResult {
				s.Equal(models.ActionPasteCreate, req.Action)
				s.Equal("u1", req.UserID)
				s.Equal(models.FailClosed, req.FailurePolicy)
				return models.RateLimitResult{Success: true, Limit: 20, Remaining: 19}
			})

		rec := s.do(http.MethodPost, "/api/v1/ratelimit/check", `{"action":"paste_create","userId":"u1","failClosed":true}`)
		s.Equal(http.StatusOK, rec.Code)
		body := s.body(rec)
		s.Equal("PASTE_CREATE", body["action"])
		s.Equal(true, body["success"])
		s.Equal(float64(19), body["remaining"])
	})

	s.Run("allowed carries window headers", func() {
		s.checker.EXPECT().Check(gomock.Any(), gomock.Any()).Return(models.RateLimitResult{
			Success: true, Limit: 20, Remaining: 19, Reset: 1_800_000_000_500,
		})
		rec := s.do(http.MethodPost, "/api/v1/ratelimit/check", `{"action":"PASTE_CREATE"}`)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("20", rec.Header().Get("X-RateLimit-Limit"))
		s.Equal("19", rec.Header().Get("X-RateLimit-Remaining"))
		s.Equal("1800000001", rec.Header().Get("X-RateLimit-Reset"))
		s.Empty(rec.Header().Get("Retry-After"))
	})

	s.Run("denied", func() {
		// Justification: API callers get the same 429 contract as routes behind
		// the middleware, including an explicit zero remaining.
		s.checker.EXPECT().Check(gomock.Any(), gomock.Any()).Return(models.RateLimitResult{
			Success: false, RetryAfter: 12, Limit: 3, Remaining: 0, Reset: 1_800_000_012_000,
		})
		rec := s.do(http.MethodPost, "/api/v1/ratelimit/check", `{"action":"PASTE_CREATE"}`)
		s.Equal(http.StatusTooManyRequests, rec.Code)
		s.Equal("12", rec.Header().Get("Retry-After"))
		s.Equal("3", rec.Header().Get("X-RateLimit-Limit"))
		s.Equal("0", rec.Header().Get("X-RateLimit-Remaining"))
		s.Equal("1800000012", rec.Header().Get("X-RateLimit-Reset"))

		body := s.body(rec)
		s.Equal(false, body["success"])
		remaining, ok := body["remaining"]
		s.True(ok, "remaining is present even when zero")
		s.Equal(float64(0), remaining)
	})

	s.Run("denied without a window resets after the backoff", func() {
		s.checker.EXPECT().Check(gomock.Any(), gomock.Any()).Return(models.RateLimitResult{Success: false, RetryAfter: 60})
		before := time.Now().Unix()
		rec := s.do(http.MethodPost, "/api/v1/ratelimit/check", `{"action":"PASTE_CREATE"}`)
		s.Equal(http.StatusTooManyRequests, rec.Code)
		s.Equal("0", rec.Header().Get("X-RateLimit-Remaining"))
		reset, err := strconv.ParseInt(rec.Header().Get("X-RateLimit-Reset"), 10, 64)
		s.Require().NoError(err)
		s.GreaterOrEqual(reset, before+60)
	})

	s.Run("unknown action is rejected before the gate", func() {
		rec := s.do(http.MethodPost, "/api/v1/ratelimit/check", `{"action":"CREATE_PASTE"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("missing action", func() {
		rec := s.do(http.MethodPost, "/api/v1/ratelimit/check", `{}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestLegacyCheck() {
	s.checker.EXPECT().Check(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req gate.CheckRequest) models.RateLimitResult {
			s.Equal(models.ActionPasteCreate, req.Action)
			s.Equal(models.FailOpen, req.FailurePolicy)
			return models.RateLimitResult{Success: true}
		})

	rec := s.do(http.MethodPost, "/api/v1/ratelimit/legacy-check", `{"action":"CREATE_PASTE"}`)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/ratelimit/legacy-check", `{"action":"WARP_DRIVE"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestAdminWithoutStore() {
	h := New(nil, s.checker, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	r := chi.NewRouter()
	h.RegisterAdmin(r)

	for _, target := range []string{"/admin/ratelimit/metrics", "/admin/ratelimit/bans/ip:203.0.113.5"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		s.Equal(http.StatusServiceUnavailable, rec.Code, target)
	}
}
