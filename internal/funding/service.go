package funding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lv-bintrade/internal/apperr"
	"lv-bintrade/internal/events"
	"lv-bintrade/internal/ledger"
	"lv-bintrade/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type Config struct {
	MinDeposit   decimal.Decimal
	RefMinLength int
}

// Service runs the deposit and withdrawal request lifecycles. Balance
// effects go through the ledger under request-scoped idempotency keys:
// submit-side reservation uses "<id>:reserve", reject-side refund
// "<id>:refund", and the deposit credit the request id itself. The
// resolutions with a ledger effect are delegated to the store, which
// commits the status flip and the effect together.
type Service struct {
	store  Store
	ledger *ledger.Service
	bus    *events.Bus
	log    zerolog.Logger
	cfg    Config
	now    func() time.Time
}

func NewService(store Store, ledgerSvc *ledger.Service, bus *events.Bus, log zerolog.Logger, cfg Config) *Service {
	return &Service{
		store:  store,
		ledger: ledgerSvc,
		bus:    bus,
		log:    log,
		cfg:    cfg,
		now:    time.Now,
	}
}

func (s *Service) SubmitDepositRequest(ctx context.Context, accountID string, amount decimal.Decimal, referenceCode string) (DepositRequest, error) {
	if accountID == "" {
		return DepositRequest{}, apperr.Validation("account_id", "required")
	}
	if amount.LessThan(s.cfg.MinDeposit) {
		return DepositRequest{}, apperr.Validation("amount", "below minimum deposit")
	}
	if !validReferenceCode(referenceCode, s.cfg.RefMinLength) {
		return DepositRequest{}, apperr.Validation("reference_code", fmt.Sprintf("must be alphanumeric, at least %d characters", s.cfg.RefMinLength))
	}
	req := DepositRequest{
		ID:            uuid.NewString(),
		AccountID:     accountID,
		Amount:        amount,
		ReferenceCode: referenceCode,
		Status:        types.RequestStatusPending,
		SubmittedAt:   s.now().UTC(),
	}
	if err := s.store.CreateDeposit(ctx, req); err != nil {
		return DepositRequest{}, fmt.Errorf("create deposit request: %w", err)
	}
	return req, nil
}

func (s *Service) ApproveDepositRequest(ctx context.Context, requestID string) (DepositRequest, error) {
	req, bal, claimed, err := s.store.ApproveDeposit(ctx, requestID, s.now().UTC())
	if err != nil {
		return DepositRequest{}, err
	}
	if !claimed {
		return req, apperr.ErrAlreadyProcessed
	}
	s.bus.Publish(events.TypeBalanceChanged, events.BalanceChanged{
		AccountID: req.AccountID,
		Field:     types.BalanceFieldReal,
		NewValue:  bal.RealBalance,
	})
	s.bus.Publish(events.TypeDepositResolved, events.DepositResolved{
		RequestID: req.ID,
		Status:    req.Status,
	})
	s.log.Info().Str("request_id", req.ID).Str("amount", req.Amount.String()).Msg("deposit approved")
	return req, nil
}

func (s *Service) RejectDepositRequest(ctx context.Context, requestID string) (DepositRequest, error) {
	req, claimed, err := s.store.RejectDeposit(ctx, requestID, s.now().UTC())
	if err != nil {
		return DepositRequest{}, err
	}
	if !claimed {
		return req, apperr.ErrAlreadyProcessed
	}
	s.bus.Publish(events.TypeDepositResolved, events.DepositResolved{
		RequestID: req.ID,
		Status:    req.Status,
	})
	return req, nil
}

func (s *Service) SubmitWithdrawalRequest(ctx context.Context, accountID string, amount decimal.Decimal, bankDetails string) (WithdrawalRequest, error) {
	if accountID == "" {
		return WithdrawalRequest{}, apperr.Validation("account_id", "required")
	}
	if !amount.GreaterThan(decimal.Zero) {
		return WithdrawalRequest{}, apperr.Validation("amount", "must be positive")
	}
	if bankDetails == "" {
		return WithdrawalRequest{}, apperr.Validation("bank_details", "required")
	}
	req := WithdrawalRequest{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Amount:      amount,
		BankDetails: bankDetails,
		Status:      types.RequestStatusPending,
		SubmittedAt: s.now().UTC(),
	}
	// The reserve debit doubles as the sufficiency check: the ledger
	// rejects an overdraft under the account's serialization point, so
	// concurrent submits cannot both reserve the same funds.
	if _, _, err := s.ledger.ApplyDelta(ctx, accountID, types.BalanceFieldReal, amount.Neg(), req.ID+":reserve"); err != nil {
		if errors.Is(err, apperr.ErrInsufficientBalance) {
			return WithdrawalRequest{}, apperr.ErrInsufficientBalance
		}
		return WithdrawalRequest{}, fmt.Errorf("reserve withdrawal: %w", err)
	}
	if err := s.store.CreateWithdrawal(ctx, req); err != nil {
		if _, _, revErr := s.ledger.ApplyDelta(ctx, accountID, types.BalanceFieldReal, amount, req.ID+":refund"); revErr != nil {
			return WithdrawalRequest{}, fmt.Errorf("create withdrawal failed (%v), refund failed: %w", err, revErr)
		}
		return WithdrawalRequest{}, fmt.Errorf("create withdrawal request: %w", err)
	}
	return req, nil
}

func (s *Service) ApproveWithdrawalRequest(ctx context.Context, requestID string) (WithdrawalRequest, error) {
	// Funds were reserved at submission; approval only finalizes.
	req, claimed, err := s.store.ApproveWithdrawal(ctx, requestID, s.now().UTC())
	if err != nil {
		return WithdrawalRequest{}, err
	}
	if !claimed {
		return req, apperr.ErrAlreadyProcessed
	}
	s.bus.Publish(events.TypeWithdrawalResolved, events.WithdrawalResolved{
		RequestID: req.ID,
		Status:    req.Status,
	})
	s.log.Info().Str("request_id", req.ID).Str("amount", req.Amount.String()).Msg("withdrawal approved")
	return req, nil
}

func (s *Service) RejectWithdrawalRequest(ctx context.Context, requestID string) (WithdrawalRequest, error) {
	req, bal, claimed, err := s.store.RejectWithdrawal(ctx, requestID, s.now().UTC())
	if err != nil {
		return WithdrawalRequest{}, err
	}
	if !claimed {
		return req, apperr.ErrAlreadyProcessed
	}
	s.bus.Publish(events.TypeBalanceChanged, events.BalanceChanged{
		AccountID: req.AccountID,
		Field:     types.BalanceFieldReal,
		NewValue:  bal.RealBalance,
	})
	s.bus.Publish(events.TypeWithdrawalResolved, events.WithdrawalResolved{
		RequestID: req.ID,
		Status:    req.Status,
	})
	return req, nil
}

func (s *Service) ListPendingDeposits(ctx context.Context, limit int) ([]DepositRequest, error) {
	return s.store.ListDepositsByStatus(ctx, types.RequestStatusPending, limit)
}

func (s *Service) ListPendingWithdrawals(ctx context.Context, limit int) ([]WithdrawalRequest, error) {
	return s.store.ListWithdrawalsByStatus(ctx, types.RequestStatusPending, limit)
}

func validReferenceCode(code string, minLen int) bool {
	if len(code) < minLen {
		return false
	}
	for _, r := range code {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}
