package trades

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"lv-bintrade/internal/apperr"
	"lv-bintrade/internal/httputil"
	"lv-bintrade/internal/types"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type openTradeInput struct {
	Asset           string `json:"asset"`
	Direction       string `json:"direction"`
	Amount          string `json:"amount"`
	AccountType     string `json:"account_type,omitempty"`
	DurationSeconds int64  `json:"duration_seconds"`
}

func (h *Handler) OpenTrade(w http.ResponseWriter, r *http.Request, accountID string) {
	var req openTradeInput
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.GreaterThan(decimal.Zero) {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return
	}
	t, err := h.engine.OpenTrade(r.Context(), OpenTradeRequest{
		AccountID:       accountID,
		Asset:           strings.TrimSpace(req.Asset),
		Direction:       types.Direction(strings.ToLower(strings.TrimSpace(req.Direction))),
		Amount:          amount,
		AccountType:     types.AccountType(strings.ToLower(strings.TrimSpace(req.AccountType))),
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) GetTrade(w http.ResponseWriter, r *http.Request) {
	t, err := h.engine.GetTrade(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteJSON(w, statusFor(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request, accountID string) {
	list, err := h.engine.ListActiveTrades(r.Context(), accountID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request, accountID string) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	list, err := h.engine.ListTradeHistory(r.Context(), accountID, limit)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
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
