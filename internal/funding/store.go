package funding

import (
	"context"
	"time"

	"lv-bintrade/internal/ledger"
	"lv-bintrade/internal/types"

	"github.com/shopspring/decimal"
)

type DepositRequest struct {
	ID            string              `json:"id"`
	AccountID     string              `json:"account_id"`
	Amount        decimal.Decimal     `json:"amount"`
	ReferenceCode string              `json:"reference_code"`
	Status        types.RequestStatus `json:"status"`
	SubmittedAt   time.Time           `json:"submitted_at"`
	ResolvedAt    *time.Time          `json:"resolved_at,omitempty"`
}

type WithdrawalRequest struct {
	ID          string              `json:"id"`
	AccountID   string              `json:"account_id"`
	Amount      decimal.Decimal     `json:"amount"`
	BankDetails string              `json:"bank_details"`
	Status      types.RequestStatus `json:"status"`
	SubmittedAt time.Time           `json:"submitted_at"`
	ResolvedAt  *time.Time          `json:"resolved_at,omitempty"`
}

// Store persists funding requests. The approve/reject operations are
// compare-and-set on pending status, so two operators racing on one
// request get exactly one winner — and where a resolution carries a
// ledger effect (deposit credit, withdrawal refund), the store commits
// the status flip and the effect as one unit. A request can never read
// back resolved with its ledger effect missing.
type Store interface {
	CreateDeposit(ctx context.Context, req DepositRequest) error
	GetDeposit(ctx context.Context, id string) (DepositRequest, error)
	// ApproveDeposit flips pending→approved and credits the account
	// under the request id key, atomically. bool = this call claimed
	// the resolution.
	ApproveDeposit(ctx context.Context, id string, resolvedAt time.Time) (DepositRequest, ledger.Balance, bool, error)
	RejectDeposit(ctx context.Context, id string, resolvedAt time.Time) (DepositRequest, bool, error)
	ListDepositsByStatus(ctx context.Context, status types.RequestStatus, limit int) ([]DepositRequest, error)

	CreateWithdrawal(ctx context.Context, req WithdrawalRequest) error
	GetWithdrawal(ctx context.Context, id string) (WithdrawalRequest, error)
	// ApproveWithdrawal only finalizes; the reserve debited at submit
	// is the payout.
	ApproveWithdrawal(ctx context.Context, id string, resolvedAt time.Time) (WithdrawalRequest, bool, error)
	// RejectWithdrawal flips pending→rejected and refunds the reserve
	// under "<id>:refund", atomically.
	RejectWithdrawal(ctx context.Context, id string, resolvedAt time.Time) (WithdrawalRequest, ledger.Balance, bool, error)
	ListWithdrawalsByStatus(ctx context.Context, status types.RequestStatus, limit int) ([]WithdrawalRequest, error)
}
