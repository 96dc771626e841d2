package funding

import (
	"errors"
	"net/http"
	"strings"

	"lv-bintrade/internal/apperr"
	"lv-bintrade/internal/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type depositInput struct {
	Amount        string `json:"amount"`
	ReferenceCode string `json:"reference_code"`
}

func (h *Handler) SubmitDeposit(w http.ResponseWriter, r *http.Request, accountID string) {
	var req depositInput
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return
	}
	out, err := h.svc.SubmitDepositRequest(r.Context(), accountID, amount, strings.TrimSpace(req.ReferenceCode))
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out)
}

type withdrawalInput struct {
	Amount      string `json:"amount"`
	BankDetails string `json:"bank_details"`
}

func (h *Handler) SubmitWithdrawal(w http.ResponseWriter, r *http.Request, accountID string) {
	var req withdrawalInput
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return
	}
	out, err := h.svc.SubmitWithdrawalRequest(r.Context(), accountID, amount, strings.TrimSpace(req.BankDetails))
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out)
}

func (h *Handler) ApproveDeposit(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ApproveDepositRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) RejectDeposit(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.RejectDepositRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ApproveWithdrawalRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.RejectWithdrawalRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) ListPendingDeposits(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ListPendingDeposits(r.Context(), 100)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) ListPendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ListPendingWithdrawals(r.Context(), 100)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func statusFor(err error) int {
	switch {
	case apperr.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrAlreadyProcessed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
