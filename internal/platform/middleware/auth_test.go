package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"pastebin/internal/platform/metrics"
)

// MockJWTValidator is a testify mock for JWTValidator
type MockJWTValidator struct {
	mock.Mock
}

func (m *MockJWTValidator) ValidateToken(tokenString string) (*JWTClaims, error) {
	args := m.Called(tokenString)
	if claims := args.Get(0); claims != nil {
		return claims.(*JWTClaims), args.Error(1)
	}
	return nil, args.Error(1)
}

// mockHandler captures whether it was called and the context it saw
type mockHandler struct {
	called  bool
	context context.Context
}

func (m *mockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.called = true
	m.context = r.Context()
	w.WriteHeader(http.StatusOK)
}

// AuthMiddlewareTestSuite covers optional bearer authentication and the
// admin token guard.
type AuthMiddlewareTestSuite struct {
	suite.Suite
	validator   *MockJWTValidator
	metrics     *metrics.Metrics
	nextHandler *mockHandler
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareTestSuite))
}

func (s *AuthMiddlewareTestSuite) SetupTest() {
	s.validator = new(MockJWTValidator)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.nextHandler = &mockHandler{}
}

func (s *AuthMiddlewareTestSuite) TearDownTest() {
	s.validator.AssertExpectations(s.T())
}

func (s *AuthMiddlewareTestSuite) serve(mw func(http.Handler) http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mw(s.nextHandler).ServeHTTP(w, req)
	return w
}

func (s *AuthMiddlewareTestSuite) optional(authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/pastes", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	return s.serve(OptionalAuth(s.validator, slog.Default(), s.metrics), req)
}

func (s *AuthMiddlewareTestSuite) TestOptionalAuthValidToken() {
	s.validator.On("ValidateToken", "valid-token").Return(&JWTClaims{UserID: "user-123"}, nil)

	w := s.optional("Bearer valid-token")

	require.True(s.T(), s.nextHandler.called)
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "user-123", GetUserID(s.nextHandler.context))
}

func (s *AuthMiddlewareTestSuite) TestOptionalAuthAnonymous() {
	w := s.optional("")

	require.True(s.T(), s.nextHandler.called, "anonymous callers pass through")
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Empty(s.T(), GetUserID(s.nextHandler.context))
}

func (s *AuthMiddlewareTestSuite) TestOptionalAuthInvalidToken() {
	s.validator.On("ValidateToken", "expired").Return(nil, errors.New("token expired"))

	w := s.optional("Bearer expired")

	assert.False(s.T(), s.nextHandler.called)
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
	assert.JSONEq(s.T(), `{"error":"unauthorized","error_description":"Invalid or expired token"}`, w.Body.String())
	assert.Equal(s.T(), 1.0, testutil.ToFloat64(s.metrics.AuthFailures.WithLabelValues("invalid_token")))
}

func (s *AuthMiddlewareTestSuite) TestOptionalAuthMalformedHeader() {
	w := s.optional("Basic dXNlcjpwYXNz")

	assert.False(s.T(), s.nextHandler.called)
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
	assert.Equal(s.T(), "application/json", w.Header().Get("Content-Type"))
}

func (s *AuthMiddlewareTestSuite) TestRequireAdminToken() {
	mw := RequireAdminToken("op-token", slog.Default(), s.metrics)

	s.Run("matching token", func() {
		s.nextHandler.called = false
		req := httptest.NewRequest(http.MethodGet, "/admin/ratelimit/metrics", nil)
		req.Header.Set("X-Admin-Token", "op-token")
		w := s.serve(mw, req)
		s.True(s.nextHandler.called)
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("wrong token", func() {
		s.nextHandler.called = false
		req := httptest.NewRequest(http.MethodGet, "/admin/ratelimit/metrics", nil)
		req.Header.Set("X-Admin-Token", "op-toke")
		w := s.serve(mw, req)
		s.False(s.nextHandler.called)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("unset server token rejects everything", func() {
		s.nextHandler.called = false
		req := httptest.NewRequest(http.MethodGet, "/admin/ratelimit/metrics", nil)
		w := s.serve(RequireAdminToken("", slog.Default(), s.metrics), req)
		s.False(s.nextHandler.called)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
}

func TestUserIDFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, UserIDFromRequest(req))

	req = req.WithContext(WithUserID(req.Context(), "u1"))
	assert.Equal(t, "u1", UserIDFromRequest(req))
}
