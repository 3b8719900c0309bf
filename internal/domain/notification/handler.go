package notification

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/onepay/onepay-api/internal/middleware"
	"github.com/onepay/onepay-api/internal/pkg/response"
	"github.com/onepay/onepay-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type registerTokenRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"omitempty,oneof=android ios web"`
}

type sendRequest struct {
	UserIDs []uuid.UUID       `json:"user_ids" validate:"required,min=1"`
	Title   string            `json:"title" validate:"required"`
	Body    string            `json:"body" validate:"required"`
	Data    map[string]string `json:"data"`
}

type broadcastRequest struct {
	Title string            `json:"title" validate:"required"`
	Body  string            `json:"body" validate:"required"`
	Data  map[string]string `json:"data"`
}

// RegisterToken stores the caller's device token
func (h *Handler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req registerTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	if err := h.svc.RegisterToken(r.Context(), userID, req.Token, req.Platform); err != nil {
		response.InternalError(w)
		return
	}
	response.NoContent(w)
}

// Send pushes one message to the devices of the listed users (admin)
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	result, err := h.svc.NotifyUsers(r.Context(), req.UserIDs, req.Title, req.Body, req.Data)
	if err != nil {
		if result != nil {
			// partial delivery: report what went out before the failure
			response.JSON(w, http.StatusBadGateway, result)
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, result)
}

// Broadcast pushes one message to every registered device (admin)
func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	result, err := h.svc.Broadcast(r.Context(), req.Title, req.Body, req.Data)
	if err != nil {
		if result != nil {
			response.JSON(w, http.StatusBadGateway, result)
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, result)
}

// Routes wires token registration for every user and sending for admins
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/fcm-token", h.RegisterToken)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin())
		r.Post("/send", h.Send)
		r.Post("/broadcast", h.Broadcast)
	})

	return r
}
