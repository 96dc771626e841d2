package trades

import (
	"context"
	"sort"
	"sync"
	"time"

	"lv-bintrade/internal/apperr"
	"lv-bintrade/internal/types"

	"github.com/shopspring/decimal"
)

type MemoryStore struct {
	mu     sync.Mutex
	trades map[string]Trade
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trades: make(map[string]Trade)}
}

func (s *MemoryStore) Create(ctx context.Context, t Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.trades[t.ID]; exists {
		return apperr.ErrAlreadyProcessed
	}
	s.trades[t.ID] = t
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return Trade{}, apperr.ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) ClaimSettlement(ctx context.Context, id string, exitPrice decimal.Decimal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return false, apperr.ErrNotFound
	}
	if t.Status != types.TradeStatusActive {
		return false, nil
	}
	t.Status = types.TradeStatusSettling
	t.ExitPrice = &exitPrice
	s.trades[id] = t
	return true, nil
}

func (s *MemoryStore) FinishSettlement(ctx context.Context, id string, status types.TradeStatus, payout decimal.Decimal, settledAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if t.Status != types.TradeStatusSettling {
		return apperr.ErrAlreadyProcessed
	}
	t.Status = status
	t.Payout = &payout
	t.SettledAt = &settledAt
	s.trades[id] = t
	return nil
}

func (s *MemoryStore) ListUnsettled(ctx context.Context) ([]Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Trade
	for _, t := range s.trades {
		if !t.Status.Terminal() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SettleAt.Before(out[j].SettleAt) })
	return out, nil
}

func (s *MemoryStore) ListByAccount(ctx context.Context, accountID string, statuses []types.TradeStatus, limit int) ([]Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Trade
	for _, t := range s.trades {
		if t.AccountID != accountID {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, t.Status) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func containsStatus(statuses []types.TradeStatus, s types.TradeStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}
