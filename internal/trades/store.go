package trades

import (
	"context"
	"time"

	"lv-bintrade/internal/types"

	"github.com/shopspring/decimal"
)

type Trade struct {
	ID              string            `json:"id"`
	AccountID       string            `json:"account_id"`
	Asset           string            `json:"asset"`
	Direction       types.Direction   `json:"direction"`
	WagerAmount     decimal.Decimal   `json:"wager_amount"`
	AccountType     types.AccountType `json:"account_type"`
	EntryPrice      decimal.Decimal   `json:"entry_price"`
	ExitPrice       *decimal.Decimal  `json:"exit_price,omitempty"`
	Payout          *decimal.Decimal  `json:"payout,omitempty"`
	Status          types.TradeStatus `json:"status"`
	OpenedAt        time.Time         `json:"opened_at"`
	DurationSeconds int64             `json:"duration_seconds"`
	SettleAt        time.Time         `json:"settle_at"`
	SettledAt       *time.Time        `json:"settled_at,omitempty"`
}

// Store persists trades. SettleAt doubles as the durable schedule
// entry: recovery re-arms from ListUnsettled, and the settling claim
// is the single serialization point for settlement attempts.
type Store interface {
	Create(ctx context.Context, t Trade) error
	Get(ctx context.Context, id string) (Trade, error)
	// ClaimSettlement moves an active trade to settling and records
	// the exit price it will settle against, as one write. A trade in
	// settling therefore always carries its price, and a resumed
	// settlement never resolves against a different one. Returns false
	// without error when the trade was not active.
	ClaimSettlement(ctx context.Context, id string, exitPrice decimal.Decimal) (bool, error)
	// FinishSettlement moves a settling trade to its terminal status
	// and records the payout. The exit price was fixed at claim time.
	FinishSettlement(ctx context.Context, id string, status types.TradeStatus, payout decimal.Decimal, settledAt time.Time) error
	// ListUnsettled returns every trade not yet in a terminal status.
	ListUnsettled(ctx context.Context) ([]Trade, error)
	ListByAccount(ctx context.Context, accountID string, statuses []types.TradeStatus, limit int) ([]Trade, error)
}
