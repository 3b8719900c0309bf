package ppob

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/onepay/onepay-api/internal/domain/ledger"
	"github.com/onepay/onepay-api/internal/middleware"
	"github.com/onepay/onepay-api/internal/pkg/digiflazz"
	"github.com/onepay/onepay-api/internal/pkg/response"
	"github.com/onepay/onepay-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type topupRequest struct {
	AccountID    uuid.UUID `json:"account_id" validate:"required"`
	PIN          string    `json:"pin" validate:"required,pin"`
	BuyerSKUCode string    `json:"buyer_sku_code" validate:"required"`
	CustomerNo   string    `json:"customer_no" validate:"required"`
	Amount       int64     `json:"amount" validate:"gte=0"`
}

type inquiryPascaRequest struct {
	AccountID    uuid.UUID `json:"account_id" validate:"required"`
	BuyerSKUCode string    `json:"buyer_sku_code" validate:"required"`
	CustomerNo   string    `json:"customer_no" validate:"required"`
}

type payPascaRequest struct {
	RefID string `json:"ref_id" validate:"required"`
	PIN   string `json:"pin" validate:"required,pin"`
}

type inquiryPLNRequest struct {
	CustomerNo string `json:"customer_no" validate:"required"`
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	products, err := h.svc.ListProducts(r.Context(),
		r.URL.Query().Get("category"), r.URL.Query().Get("brand"), limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"items": products})
}

func (h *Handler) CheckBalance(w http.ResponseWriter, r *http.Request) {
	deposit, err := h.svc.CheckBalance(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]float64{"deposit": deposit})
}

func (h *Handler) InquiryPLN(w http.ResponseWriter, r *http.Request) {
	var req inquiryPLNRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	inq, err := h.svc.InquiryPLN(r.Context(), req.CustomerNo)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, inq)
}

func (h *Handler) Topup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req topupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	tx, err := h.svc.Topup(r.Context(), userID, TopupParams{
		AccountID:    req.AccountID,
		PIN:          req.PIN,
		BuyerSKUCode: req.BuyerSKUCode,
		CustomerNo:   req.CustomerNo,
		Amount:       req.Amount,
	})
	if err != nil {
		h.writeTransactionError(w, tx, err)
		return
	}
	response.OK(w, tx)
}

func (h *Handler) InquiryPasca(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req inquiryPascaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	tx, err := h.svc.InquiryPasca(r.Context(), userID, InquiryPascaParams{
		AccountID:    req.AccountID,
		BuyerSKUCode: req.BuyerSKUCode,
		CustomerNo:   req.CustomerNo,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, tx)
}

func (h *Handler) PayPasca(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req payPascaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	tx, err := h.svc.PayPasca(r.Context(), userID, req.RefID, req.PIN)
	if err != nil {
		h.writeTransactionError(w, tx, err)
		return
	}
	response.OK(w, tx)
}

func (h *Handler) CekStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	tx, err := h.svc.CekStatus(r.Context(), userID, chi.URLParam(r, "refID"))
	if err != nil {
		h.writeTransactionError(w, tx, err)
		return
	}
	response.OK(w, tx)
}

func (h *Handler) StatusPasca(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	tx, err := h.svc.StatusPasca(r.Context(), userID, chi.URLParam(r, "refID"))
	if err != nil {
		h.writeTransactionError(w, tx, err)
		return
	}
	response.OK(w, tx)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txs, err := h.svc.ListTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"items": txs})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrPINFormat), errors.Is(err, ledger.ErrInvalidAmount):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ledger.ErrPINMismatch):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, ledger.ErrAccountNotOwned):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrTransactionNotFound),
		errors.Is(err, ledger.ErrAccountNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrProductInactive), errors.Is(err, ErrNotInquired):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrInsufficientDeposit), errors.Is(err, ledger.ErrInsufficientFunds):
		response.PaymentFailed(w, err.Error())
	case errors.Is(err, ErrTransactionFailed):
		response.PaymentFailed(w, err.Error())
	case errors.Is(err, digiflazz.ErrUnavailable):
		response.Error(w, http.StatusBadGateway, "PROVIDER_UNAVAILABLE", "provider is unavailable")
	default:
		response.InternalError(w)
	}
}

// writeTransactionError keeps the partially processed transaction visible to
// the caller: a failed or pending purchase still carries its ref_id, which is
// what the status endpoints need for reconciliation.
func (h *Handler) writeTransactionError(w http.ResponseWriter, tx *Transaction, err error) {
	if tx == nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusPaymentRequired
	code := "PAYMENT_FAILED"
	if errors.Is(err, digiflazz.ErrUnavailable) {
		status = http.StatusBadGateway
		code = "PROVIDER_UNAVAILABLE"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response.Response{
		Success: false,
		Data:    tx,
		Error:   &response.ErrorInfo{Code: code, Message: err.Error()},
	})
}

// Routes wires the provider endpoints; everything requires a verified caller
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/products", h.ListProducts)
	r.Get("/cek-saldo", h.CheckBalance)
	r.Post("/inquiry-pln", h.InquiryPLN)
	r.Post("/topup", h.Topup)
	r.Get("/cek-status/{refID}", h.CekStatus)
	r.Post("/inq-pasca", h.InquiryPasca)
	r.Post("/pay-pasca", h.PayPasca)
	r.Get("/status-pasca/{refID}", h.StatusPasca)
	r.Get("/transactions", h.ListTransactions)

	return r
}
