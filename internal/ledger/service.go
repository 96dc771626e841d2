package ledger

import (
	"context"

	"lv-bintrade/internal/apperr"
	"lv-bintrade/internal/events"
	"lv-bintrade/internal/types"

	"github.com/shopspring/decimal"
)

// Service fronts the Store and publishes BalanceChanged for every
// delta that actually applied. Duplicate-key no-ops stay silent.
type Service struct {
	store Store
	bus   *events.Bus
}

func NewService(store Store, bus *events.Bus) *Service {
	return &Service{store: store, bus: bus}
}

func (s *Service) GetBalance(ctx context.Context, accountID string) (Balance, error) {
	if accountID == "" {
		return Balance{}, apperr.Validation("account_id", "required")
	}
	return s.store.GetBalance(ctx, accountID)
}

func (s *Service) ApplyDelta(ctx context.Context, accountID string, field types.BalanceField, delta decimal.Decimal, idempotencyKey string) (Balance, bool, error) {
	b, applied, err := s.store.ApplyDelta(ctx, accountID, field, delta, idempotencyKey)
	if err != nil {
		return b, false, err
	}
	if applied {
		s.bus.Publish(events.TypeBalanceChanged, events.BalanceChanged{
			AccountID: accountID,
			Field:     field,
			NewValue:  b.Field(field),
		})
	}
	return b, applied, nil
}

func (s *Service) CreditDeposit(ctx context.Context, accountID string, amount decimal.Decimal, idempotencyKey string) (Balance, bool, error) {
	b, applied, err := s.store.CreditDeposit(ctx, accountID, amount, idempotencyKey)
	if err != nil {
		return b, false, err
	}
	if applied {
		s.bus.Publish(events.TypeBalanceChanged, events.BalanceChanged{
			AccountID: accountID,
			Field:     types.BalanceFieldReal,
			NewValue:  b.RealBalance,
		})
	}
	return b, applied, nil
}

func (s *Service) SwitchAccount(ctx context.Context, accountID string, accountType types.AccountType) (Balance, error) {
	if accountID == "" {
		return Balance{}, apperr.Validation("account_id", "required")
	}
	if accountType != types.AccountTypeDemo && accountType != types.AccountTypeReal {
		return Balance{}, apperr.Validation("account_type", "must be demo or real")
	}
	return s.store.SwitchAccount(ctx, accountID, accountType)
}
