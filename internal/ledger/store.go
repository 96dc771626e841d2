package ledger

import (
	"context"

	"lv-bintrade/internal/types"

	"github.com/shopspring/decimal"
)

type Balance struct {
	AccountID      string            `json:"account_id"`
	DemoBalance    decimal.Decimal   `json:"demo_balance"`
	RealBalance    decimal.Decimal   `json:"real_balance"`
	TotalDeposits  decimal.Decimal   `json:"total_deposits"`
	CurrentAccount types.AccountType `json:"current_account"`
}

func (b Balance) Field(f types.BalanceField) decimal.Decimal {
	if f == types.BalanceFieldReal {
		return b.RealBalance
	}
	return b.DemoBalance
}

// Store is the authoritative balance ledger. All mutations to one
// account are serialized by the implementation; a debit that would go
// negative is rejected with ErrInsufficientBalance under that same
// serialization point, so no gate outside the store can race it. The
// idempotency key makes re-applying the same delta a no-op: the bool
// result reports whether this call actually applied it.
type Store interface {
	// GetBalance creates the default record on first reference.
	GetBalance(ctx context.Context, accountID string) (Balance, error)
	ApplyDelta(ctx context.Context, accountID string, field types.BalanceField, delta decimal.Decimal, idempotencyKey string) (Balance, bool, error)
	// CreditDeposit credits the real balance and bumps totalDeposits
	// under a single idempotency key; the two never commit apart.
	CreditDeposit(ctx context.Context, accountID string, amount decimal.Decimal, idempotencyKey string) (Balance, bool, error)
	SwitchAccount(ctx context.Context, accountID string, accountType types.AccountType) (Balance, error)
}
