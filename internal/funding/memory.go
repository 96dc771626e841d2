package funding

import (
	"context"
	"sort"
	"sync"
	"time"

	"lv-bintrade/internal/apperr"
	"lv-bintrade/internal/ledger"
	"lv-bintrade/internal/types"
)

// MemoryStore resolves requests under one mutex. The ledger effect
// runs before the status flip, so a failed effect leaves the request
// pending and retriable; the effect's idempotency key keeps the retry
// single-application.
type MemoryStore struct {
	mu          sync.Mutex
	ledger      ledger.Store
	deposits    map[string]DepositRequest
	withdrawals map[string]WithdrawalRequest
}

func NewMemoryStore(ledgerStore ledger.Store) *MemoryStore {
	return &MemoryStore{
		ledger:      ledgerStore,
		deposits:    make(map[string]DepositRequest),
		withdrawals: make(map[string]WithdrawalRequest),
	}
}

func (s *MemoryStore) CreateDeposit(ctx context.Context, req DepositRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deposits[req.ID] = req
	return nil
}

func (s *MemoryStore) GetDeposit(ctx context.Context, id string) (DepositRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.deposits[id]
	if !ok {
		return DepositRequest{}, apperr.ErrNotFound
	}
	return req, nil
}

func (s *MemoryStore) ApproveDeposit(ctx context.Context, id string, resolvedAt time.Time) (DepositRequest, ledger.Balance, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.deposits[id]
	if !ok {
		return DepositRequest{}, ledger.Balance{}, false, apperr.ErrNotFound
	}
	if req.Status != types.RequestStatusPending {
		return req, ledger.Balance{}, false, nil
	}
	bal, _, err := s.ledger.CreditDeposit(ctx, req.AccountID, req.Amount, req.ID)
	if err != nil {
		return DepositRequest{}, ledger.Balance{}, false, err
	}
	req.Status = types.RequestStatusApproved
	req.ResolvedAt = &resolvedAt
	s.deposits[id] = req
	return req, bal, true, nil
}

func (s *MemoryStore) RejectDeposit(ctx context.Context, id string, resolvedAt time.Time) (DepositRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.deposits[id]
	if !ok {
		return DepositRequest{}, false, apperr.ErrNotFound
	}
	if req.Status != types.RequestStatusPending {
		return req, false, nil
	}
	req.Status = types.RequestStatusRejected
	req.ResolvedAt = &resolvedAt
	s.deposits[id] = req
	return req, true, nil
}

func (s *MemoryStore) ListDepositsByStatus(ctx context.Context, status types.RequestStatus, limit int) ([]DepositRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []DepositRequest
	for _, req := range s.deposits {
		if req.Status == status {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CreateWithdrawal(ctx context.Context, req WithdrawalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withdrawals[req.ID] = req
	return nil
}

func (s *MemoryStore) GetWithdrawal(ctx context.Context, id string) (WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.withdrawals[id]
	if !ok {
		return WithdrawalRequest{}, apperr.ErrNotFound
	}
	return req, nil
}

func (s *MemoryStore) ApproveWithdrawal(ctx context.Context, id string, resolvedAt time.Time) (WithdrawalRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.withdrawals[id]
	if !ok {
		return WithdrawalRequest{}, false, apperr.ErrNotFound
	}
	if req.Status != types.RequestStatusPending {
		return req, false, nil
	}
	req.Status = types.RequestStatusApproved
	req.ResolvedAt = &resolvedAt
	s.withdrawals[id] = req
	return req, true, nil
}

func (s *MemoryStore) RejectWithdrawal(ctx context.Context, id string, resolvedAt time.Time) (WithdrawalRequest, ledger.Balance, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.withdrawals[id]
	if !ok {
		return WithdrawalRequest{}, ledger.Balance{}, false, apperr.ErrNotFound
	}
	if req.Status != types.RequestStatusPending {
		return req, ledger.Balance{}, false, nil
	}
	bal, _, err := s.ledger.ApplyDelta(ctx, req.AccountID, types.BalanceFieldReal, req.Amount, req.ID+":refund")
	if err != nil {
		return WithdrawalRequest{}, ledger.Balance{}, false, err
	}
	req.Status = types.RequestStatusRejected
	req.ResolvedAt = &resolvedAt
	s.withdrawals[id] = req
	return req, bal, true, nil
}

func (s *MemoryStore) ListWithdrawalsByStatus(ctx context.Context, status types.RequestStatus, limit int) ([]WithdrawalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []WithdrawalRequest
	for _, req := range s.withdrawals {
		if req.Status == status {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
