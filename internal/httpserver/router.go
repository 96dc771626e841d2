package httpserver

import (
	"net/http"
	"strings"

	"lv-bintrade/internal/funding"
	"lv-bintrade/internal/httputil"
	"lv-bintrade/internal/ledger"
	"lv-bintrade/internal/override"
	"lv-bintrade/internal/trades"

	"github.com/go-chi/chi/v5"
)

type RouterDeps struct {
	TradeHandler    *trades.Handler
	LedgerHandler   *ledger.Handler
	FundingHandler  *funding.Handler
	OverrideHandler *override.Handler
	WSHandler       http.Handler
	InternalToken   string
}

// accountHandler adapts handlers that need the caller's account id.
// The id arrives as an opaque header; who the caller is and whether
// they may use that id is the fronting gateway's problem.
func accountHandler(fn func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := strings.TrimSpace(r.Header.Get("X-Account-ID"))
		if accountID == "" {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "missing X-Account-ID"})
			return
		}
		fn(w, r, accountID)
	}
}

func withInternalToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Internal-Token") != token {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Route("/v1", func(r chi.Router) {
		r.Get("/events/ws", d.WSHandler.ServeHTTP)

		r.Post("/trades", accountHandler(d.TradeHandler.OpenTrade))
		r.Get("/trades/active", accountHandler(d.TradeHandler.ListActive))
		r.Get("/trades/history", accountHandler(d.TradeHandler.ListHistory))
		r.Get("/trades/{id}", d.TradeHandler.GetTrade)

		r.Get("/balance", accountHandler(d.LedgerHandler.GetBalance))
		r.Post("/balance/switch", accountHandler(d.LedgerHandler.SwitchAccount))

		r.Post("/deposits", accountHandler(d.FundingHandler.SubmitDeposit))
		r.Post("/withdrawals", accountHandler(d.FundingHandler.SubmitWithdrawal))

		r.Route("/admin", func(r chi.Router) {
			r.Use(withInternalToken(d.InternalToken))
			r.Get("/deposits/pending", d.FundingHandler.ListPendingDeposits)
			r.Post("/deposits/{id}/approve", d.FundingHandler.ApproveDeposit)
			r.Post("/deposits/{id}/reject", d.FundingHandler.RejectDeposit)
			r.Get("/withdrawals/pending", d.FundingHandler.ListPendingWithdrawals)
			r.Post("/withdrawals/{id}/approve", d.FundingHandler.ApproveWithdrawal)
			r.Post("/withdrawals/{id}/reject", d.FundingHandler.RejectWithdrawal)
			r.Get("/override", d.OverrideHandler.GetPolicy)
			r.Put("/override", d.OverrideHandler.SetPolicy)
		})
	})
	return r
}
