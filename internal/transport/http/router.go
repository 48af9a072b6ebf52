package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pastebin/internal/platform/health"
	"pastebin/internal/platform/metrics"
	"pastebin/internal/platform/middleware"
	rlhandler "pastebin/internal/ratelimit/handler"
	rlmiddleware "pastebin/internal/ratelimit/middleware"
	"pastebin/internal/ratelimit/models"
)

const maxBodyBytes = 4 << 10

// Deps are the already-built components the router mounts. The router owns
// no business logic; it only decides which middleware guards which routes.
type Deps struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Health     *health.Handler
	RateLimit  *rlhandler.Handler
	Limiter    *rlmiddleware.Middleware
	Validator  middleware.JWTValidator
	AdminToken string
	// MetricsHandler serves /metrics; promhttp.Handler() when nil.
	MetricsHandler http.Handler
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger, d.Metrics))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	d.Health.Register(r)
	metricsHandler := d.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// Operator and service-to-service routes. The decision API trusts the
	// userId in its body, so it sits behind the same token as the admin API.
	r.Group(func(r chi.Router) {
		r.Use(middleware.BodyLimit(maxBodyBytes))
		if d.Validator != nil {
			r.Use(middleware.OptionalAuth(d.Validator, d.Logger, d.Metrics))
		}
		r.Use(middleware.RequireAdminToken(d.AdminToken, d.Logger, d.Metrics))

		r.Group(func(r chi.Router) {
			r.Use(d.Limiter.RateLimit(models.ActionGeneralAPI, rlmiddleware.WithoutAbuseCheck()))
			d.RateLimit.RegisterAdmin(r)
		})
		d.RateLimit.RegisterDecision(r)
	})

	return r
}
