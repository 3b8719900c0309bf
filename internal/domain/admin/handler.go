package admin

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/onepay/onepay-api/internal/middleware"
	"github.com/onepay/onepay-api/internal/pkg/response"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// ListAuditLogs returns the audit trail, admin only
func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	var userID *uuid.UUID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(w, "invalid user_id")
			return
		}
		userID = &id
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 500 {
		limit = 100
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	logs, err := h.repo.ListAuditLogs(r.Context(), userID, r.URL.Query().Get("action"), limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"items": logs})
}

// Routes wires the admin endpoints behind auth plus the admin role
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())

	r.Get("/audit-logs", h.ListAuditLogs)

	return r
}
