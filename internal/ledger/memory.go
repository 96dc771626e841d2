package ledger

import (
	"context"
	"sync"

	"lv-bintrade/internal/apperr"
	"lv-bintrade/internal/types"

	"github.com/shopspring/decimal"
)

type memoryRecord struct {
	mu      sync.Mutex
	balance Balance
	applied map[string]struct{}
}

// MemoryStore keeps balances in process. Per-account serialization is
// the record mutex; the registry mutex only guards lazy creation.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]*memoryRecord
	demoStart decimal.Decimal
}

func NewMemoryStore(demoStart decimal.Decimal) *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*memoryRecord),
		demoStart: demoStart,
	}
}

func (s *MemoryStore) record(accountID string) *memoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[accountID]
	if !ok {
		rec = &memoryRecord{
			balance: Balance{
				AccountID:      accountID,
				DemoBalance:    s.demoStart,
				RealBalance:    decimal.Zero,
				TotalDeposits:  decimal.Zero,
				CurrentAccount: types.AccountTypeDemo,
			},
			applied: make(map[string]struct{}),
		}
		s.records[accountID] = rec
	}
	return rec
}

func (s *MemoryStore) GetBalance(ctx context.Context, accountID string) (Balance, error) {
	rec := s.record(accountID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.balance, nil
}

func (s *MemoryStore) ApplyDelta(ctx context.Context, accountID string, field types.BalanceField, delta decimal.Decimal, idempotencyKey string) (Balance, bool, error) {
	rec := s.record(accountID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if _, dup := rec.applied[idempotencyKey]; dup {
		return rec.balance, false, nil
	}
	next := rec.balance.Field(field).Add(delta)
	if next.LessThan(decimal.Zero) {
		// Rejected before the key is consumed; a retry after funding
		// the account applies normally.
		return Balance{}, false, apperr.ErrInsufficientBalance
	}
	if field == types.BalanceFieldReal {
		rec.balance.RealBalance = next
	} else {
		rec.balance.DemoBalance = next
	}
	rec.applied[idempotencyKey] = struct{}{}
	return rec.balance, true, nil
}

func (s *MemoryStore) CreditDeposit(ctx context.Context, accountID string, amount decimal.Decimal, idempotencyKey string) (Balance, bool, error) {
	rec := s.record(accountID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if _, dup := rec.applied[idempotencyKey]; dup {
		return rec.balance, false, nil
	}
	rec.balance.RealBalance = rec.balance.RealBalance.Add(amount)
	rec.balance.TotalDeposits = rec.balance.TotalDeposits.Add(amount)
	rec.applied[idempotencyKey] = struct{}{}
	return rec.balance, true, nil
}

func (s *MemoryStore) SwitchAccount(ctx context.Context, accountID string, accountType types.AccountType) (Balance, error) {
	rec := s.record(accountID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.balance.CurrentAccount = accountType
	return rec.balance, nil
}
