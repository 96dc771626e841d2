package override

import (
	"net/http"
	"strings"

	"lv-bintrade/internal/httputil"
	"lv-bintrade/internal/types"

	"github.com/shopspring/decimal"
)

type Handler struct {
	ctrl *Controller
}

func NewHandler(ctrl *Controller) *Handler {
	return &Handler{ctrl: ctrl}
}

func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.ctrl.Policy())
}

type setPolicyInput struct {
	Mode             string `json:"mode"`
	AlwaysLoss       bool   `json:"always_loss"`
	PayoutMultiplier string `json:"payout_multiplier"`
	MinWager         string `json:"min_wager"`
	MaxWager         string `json:"max_wager"`
}

func (h *Handler) SetPolicy(w http.ResponseWriter, r *http.Request) {
	var req setPolicyInput
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	multiplier, err := decimal.NewFromString(strings.TrimSpace(req.PayoutMultiplier))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid payout_multiplier"})
		return
	}
	minWager, err := decimal.NewFromString(strings.TrimSpace(req.MinWager))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid min_wager"})
		return
	}
	maxWager, err := decimal.NewFromString(strings.TrimSpace(req.MaxWager))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid max_wager"})
		return
	}
	policy := Policy{
		Mode:             types.OverrideMode(strings.ToLower(strings.TrimSpace(req.Mode))),
		AlwaysLoss:       req.AlwaysLoss,
		PayoutMultiplier: multiplier,
		MinWager:         minWager,
		MaxWager:         maxWager,
	}
	if err := h.ctrl.SetPolicy(policy); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.ctrl.Policy())
}
