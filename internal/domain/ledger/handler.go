package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

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

type openAccountRequest struct {
	PIN            string  `json:"pin" validate:"required,pin"`
	InitialBalance float64 `json:"initial_balance" validate:"gte=0"`
}

type updatePINRequest struct {
	NewPIN string `json:"new_pin" validate:"required,pin"`
}

type checkPINRequest struct {
	AccountID uuid.UUID `json:"account_id" validate:"required"`
	PIN       string    `json:"pin" validate:"required,pin"`
}

type verifyAccountRequest struct {
	AccountNo string `json:"account_no" validate:"required"`
}

type cashRequest struct {
	AccountID   uuid.UUID `json:"account_id" validate:"required"`
	Amount      float64   `json:"amount" validate:"required,gt=0"`
	Description string    `json:"description"`
	PIN         string    `json:"pin"` // required for withdraw only
}

type transferRequest struct {
	FromAccountNo string  `json:"from_account_no" validate:"required"`
	ToAccountNo   string  `json:"to_account_no" validate:"required"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	Description   string  `json:"description"`
	PIN           string  `json:"pin" validate:"required,pin"`
}

type postJournalRequest struct {
	AccountID   uuid.UUID `json:"account_id" validate:"required"`
	Debit       float64   `json:"debit" validate:"gte=0"`
	Credit      float64   `json:"credit" validate:"gte=0"`
	Description string    `json:"description"`
}

func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req openAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	acc, err := h.svc.OpenAccount(r.Context(), userID, req.PIN, req.InitialBalance)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, acc)
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	accounts, err := h.svc.ListAccounts(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"items": accounts})
}

func (h *Handler) UpdatePIN(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		response.BadRequest(w, "invalid account id")
		return
	}

	var req updatePINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	if err := h.svc.UpdatePIN(r.Context(), userID, accountID, req.NewPIN); err != nil {
		h.writeError(w, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) CheckPIN(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req checkPINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	valid, err := h.svc.CheckPIN(r.Context(), userID, req.AccountID, req.PIN)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]bool{"valid": valid})
}

// VerifyAccount is public: it resolves an account number before a transfer
func (h *Handler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	var req verifyAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	identity, err := h.svc.VerifyAccount(r.Context(), req.AccountNo)
	if errors.Is(err, ErrAccountNotFound) {
		response.OK(w, AccountIdentity{AccountNo: req.AccountNo, Status: "not_found"})
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, identity)
}

func (h *Handler) CashDeposit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req cashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	m, err := h.svc.CashDeposit(r.Context(), userID, req.AccountID, req.Amount, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, m)
}

func (h *Handler) CashWithdraw(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req cashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	m, err := h.svc.CashWithdraw(r.Context(), userID, req.AccountID, req.Amount, req.Description, req.PIN)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, m)
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	result, err := h.svc.Transfer(r.Context(), userID, req.FromAccountNo, req.ToAccountNo, req.Amount, req.Description, req.PIN)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, result)
}

func (h *Handler) PostJournal(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req postJournalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	j, err := h.svc.PostJournal(r.Context(), userID, req.AccountID, req.Debit, req.Credit, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, j)
}

func (h *Handler) ListJournals(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	accountID, err := uuid.Parse(r.URL.Query().Get("account_id"))
	if err != nil {
		response.BadRequest(w, "invalid account_id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	journals, err := h.svc.ListJournals(r.Context(), userID, accountID, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"items": journals})
}

// GetJournalPublic serves the shareable receipt view, without auth
func (h *Handler) GetJournalPublic(w http.ResponseWriter, r *http.Request) {
	journalID, err := uuid.Parse(chi.URLParam(r, "journalID"))
	if err != nil {
		response.BadRequest(w, "invalid journal id")
		return
	}

	j, err := h.svc.GetJournalPublic(r.Context(), journalID)
	if errors.Is(err, ErrAccountNotFound) {
		response.NotFound(w, "journal not found")
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, j)
}

func (h *Handler) ListJournalsPublic(w http.ResponseWriter, r *http.Request) {
	accountNo := r.URL.Query().Get("account_no")
	if accountNo == "" {
		response.BadRequest(w, "account_no is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	journals, err := h.svc.ListJournalsPublic(r.Context(), accountNo, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, journals)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPINFormat), errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrSameAccount):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrPINMismatch):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, ErrAccountNotOwned):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrAccountNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrInsufficientFunds):
		response.Conflict(w, err.Error())
	default:
		response.InternalError(w)
	}
}

// Routes wires the account/cash/transfer/journal endpoints. Receipt lookups
// and account verification stay public; everything that moves money or
// exposes balances requires auth.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/accounts/verify", h.VerifyAccount)
	r.Get("/journals/public", h.ListJournalsPublic)
	r.Get("/journals/{journalID}", h.GetJournalPublic)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Post("/accounts/open", h.OpenAccount)
		r.Get("/accounts", h.ListAccounts)
		r.Patch("/accounts/{accountID}/pin", h.UpdatePIN)
		r.Post("/accounts/check_pin", h.CheckPIN)
		r.Post("/accounts/deposit", h.CashDeposit)
		r.Post("/accounts/withdraw", h.CashWithdraw)
		r.Post("/transfers", h.Transfer)
		r.Post("/journals", h.PostJournal)
		r.Get("/journals", h.ListJournals)
	})

	return r
}
