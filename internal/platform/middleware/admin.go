package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"pastebin/internal/platform/metrics"
)

// RequireAdminToken guards operator routes with the X-Admin-Token header.
// An empty expected token rejects every request.
func RequireAdminToken(expectedToken string, logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	expected := []byte(expectedToken)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := []byte(r.Header.Get("X-Admin-Token"))
			if len(expected) == 0 || subtle.ConstantTimeCompare(token, expected) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", GetRequestID(ctx),
					"path", r.URL.Path,
				)
				m.IncrementAuthFailures("admin_token")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
