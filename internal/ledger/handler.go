package ledger

import (
	"net/http"
	"strings"

	"lv-bintrade/internal/httputil"
	"lv-bintrade/internal/types"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request, accountID string) {
	b, err := h.svc.GetBalance(r.Context(), accountID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

type switchAccountInput struct {
	AccountType string `json:"account_type"`
}

func (h *Handler) SwitchAccount(w http.ResponseWriter, r *http.Request, accountID string) {
	var req switchAccountInput
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	accountType := types.AccountType(strings.ToLower(strings.TrimSpace(req.AccountType)))
	b, err := h.svc.SwitchAccount(r.Context(), accountID, accountType)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}
