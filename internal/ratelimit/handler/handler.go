package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pastebin/internal/platform/middleware"
	"pastebin/internal/ratelimit/admin"
	"pastebin/internal/ratelimit/gate"
	"pastebin/internal/ratelimit/legacy"
	rlmiddleware "pastebin/internal/ratelimit/middleware"
	"pastebin/internal/ratelimit/models"
	dErrors "pastebin/pkg/domain-errors"
	"pastebin/pkg/platform/httputil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

// AdminService is the operator side of rate limiting.
type AdminService interface {
	Metrics(ctx context.Context, days int) (*models.MetricsReport, error)
	Patterns(ctx context.Context) ([]models.AbusePattern, error)
	Ban(ctx context.Context, identifier string) (*models.Ban, error)
	ClearBan(ctx context.Context, identifier string) (*admin.ClearResult, error)
}

// Checker answers decision requests.
type Checker interface {
	Check(ctx context.Context, req gate.CheckRequest) models.RateLimitResult
}

type Handler struct {
	admin  AdminService
	gate   Checker
	logger *slog.Logger
}

// New builds the handler. adminService may be nil when no store is
// configured; the admin routes then answer 503.
func New(adminService AdminService, checker Checker, logger *slog.Logger) *Handler {
	return &Handler{
		admin:  adminService,
		gate:   checker,
		logger: logger,
	}
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	if h.admin == nil {
		r.HandleFunc("/admin/ratelimit/*", h.handleNoStore)
		return
	}
	r.Get("/admin/ratelimit/metrics", h.HandleMetrics)
	r.Get("/admin/ratelimit/patterns", h.HandlePatterns)
	r.Get("/admin/ratelimit/bans/{identifier}", h.HandleGetBan)
	r.Delete("/admin/ratelimit/bans/{identifier}", h.HandleClearBan)
}

func (h *Handler) handleNoStore(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "rate limit store is not configured"))
}

func (h *Handler) RegisterDecision(r chi.Router) {
	r.Post("/api/v1/ratelimit/check", h.HandleCheck)
	r.Post("/api/v1/ratelimit/legacy-check", h.HandleLegacyCheck)
}

// HandleMetrics implements GET /admin/ratelimit/metrics?days=N.
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "days must be an integer"))
			return
		}
		days = n
	}

	report, err := h.admin.Metrics(ctx, days)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build rate limit metrics",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandlePatterns implements GET /admin/ratelimit/patterns.
func (h *Handler) HandlePatterns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patterns, err := h.admin.Patterns(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to detect abuse patterns",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &patternsResponse{Patterns: patterns})
}

// HandleGetBan implements GET /admin/ratelimit/bans/{identifier}.
func (h *Handler) HandleGetBan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identifier := chi.URLParam(r, "identifier")

	b, err := h.admin.Ban(ctx, identifier)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) && !dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			h.logger.ErrorContext(ctx, "failed to read ban",
				"error", err,
				"request_id", middleware.GetRequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &banResponse{Identifier: identifier, Ban: b})
}

// HandleClearBan implements DELETE /admin/ratelimit/bans/{identifier}.
// It lifts any ban and resets the abuse counters of the identifier.
func (h *Handler) HandleClearBan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.admin.ClearBan(ctx, chi.URLParam(r, "identifier"))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to clear ban",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleCheck implements POST /api/v1/ratelimit/check.
//
// Input: { "action": "PASTE_CREATE", "userId": "u1", "failClosed": false }
// Output: the decision; 429 with the usual headers when denied.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[checkRequest](r.Context(), w, r, h.logger)
	if !ok {
		return
	}
	action, err := models.ParseAction(req.Action)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.decide(w, r, req, action)
}

// HandleLegacyCheck implements POST /api/v1/ratelimit/legacy-check for
// clients that still send the old action names.
func (h *Handler) HandleLegacyCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[checkRequest](r.Context(), w, r, h.logger)
	if !ok {
		return
	}
	action, err := legacy.Translate(req.Action)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.decide(w, r, req, action)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, req *checkRequest, action models.Action) {
	policy := models.FailOpen
	if req.FailClosed {
		policy = models.FailClosed
	}
	userID := req.UserID
	if userID == "" {
		userID = middleware.GetUserID(r.Context())
	}

	result := h.gate.Check(r.Context(), gate.CheckRequest{
		UserID:        userID,
		Action:        action,
		Header:        r.Header,
		UserAgent:     r.UserAgent(),
		FailurePolicy: policy,
	})

	status := http.StatusOK
	if !result.Success {
		status = http.StatusTooManyRequests
	}
	if !result.Success || result.HasQuota() {
		rlmiddleware.SetHeaders(w, result, time.Now())
	}
	httputil.WriteJSON(w, status, &checkResponse{Action: action, RateLimitResult: result})
}

type checkRequest struct {
	Action     string `json:"action"`
	UserID     string `json:"userId,omitempty"`
	FailClosed bool   `json:"failClosed,omitempty"`
}

func (r *checkRequest) Validate() error {
	r.Action = strings.TrimSpace(r.Action)
	if r.Action == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "action is required")
	}
	if len(r.UserID) > 128 {
		return dErrors.New(dErrors.CodeInvalidInput, "userId is too long")
	}
	return nil
}

type checkResponse struct {
	Action models.Action `json:"action"`
	models.RateLimitResult
}

type banResponse struct {
	Identifier string      `json:"identifier"`
	Ban        *models.Ban `json:"ban"`
}

type patternsResponse struct {
	Patterns []models.AbusePattern `json:"patterns"`
}
