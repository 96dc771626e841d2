package funding_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lv-bintrade/internal/apperr"
	"lv-bintrade/internal/events"
	"lv-bintrade/internal/funding"
	"lv-bintrade/internal/ledger"
	"lv-bintrade/internal/types"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc    *funding.Service
	store  *funding.MemoryStore
	ledger *ledger.Service
	bus    *events.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bus := events.NewBus()
	ledgerStore := ledger.NewMemoryStore(decimal.NewFromInt(50000))
	ledgerSvc := ledger.NewService(ledgerStore, bus)
	store := funding.NewMemoryStore(ledgerStore)
	svc := funding.NewService(store, ledgerSvc, bus, zerolog.Nop(), funding.Config{
		MinDeposit:   decimal.NewFromInt(10),
		RefMinLength: 8,
	})
	return &fixture{svc: svc, store: store, ledger: ledgerSvc, bus: bus}
}

func (f *fixture) realBalance(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()
	b, err := f.ledger.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	return b.RealBalance
}

func TestSubmitDepositRequest_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name      string
		accountID string
		amount    decimal.Decimal
		ref       string
		field     string
	}{
		{"missing account", "", decimal.NewFromInt(100), "REF12345", "account_id"},
		{"below minimum", "acct-1", decimal.NewFromInt(5), "REF12345", "amount"},
		{"short reference", "acct-1", decimal.NewFromInt(100), "REF1", "reference_code"},
		{"non alphanumeric reference", "acct-1", decimal.NewFromInt(100), "REF-12345!", "reference_code"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.SubmitDepositRequest(ctx, tc.accountID, tc.amount, tc.ref)
			require.Error(t, err)
			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestApproveDepositRequest_CreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.SubmitDepositRequest(ctx, "acct-1", decimal.NewFromInt(3000), "PAYREF001")
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusPending, req.Status)

	approved, err := f.svc.ApproveDepositRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusApproved, approved.Status)

	b, err := f.ledger.GetBalance(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, b.RealBalance.Equal(decimal.NewFromInt(3000)))
	assert.True(t, b.TotalDeposits.Equal(decimal.NewFromInt(3000)))

	// Second approval is rejected and leaves the balance alone.
	_, err = f.svc.ApproveDepositRequest(ctx, req.ID)
	require.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
	assert.True(t, f.realBalance(t, "acct-1").Equal(decimal.NewFromInt(3000)))
}

func TestApproveDepositRequest_ConcurrentDoubleApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.SubmitDepositRequest(ctx, "acct-1", decimal.NewFromInt(3000), "PAYREF002")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.ApproveDepositRequest(ctx, req.ID)
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrAlreadyProcessed):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)
	assert.True(t, f.realBalance(t, "acct-1").Equal(decimal.NewFromInt(3000)))
}

// flakyApproveStore fails a configured number of deposit approvals
// before delegating, standing in for a storage outage mid-resolution.
type flakyApproveStore struct {
	funding.Store
	mu       sync.Mutex
	failures int
}

func (s *flakyApproveStore) ApproveDeposit(ctx context.Context, id string, resolvedAt time.Time) (funding.DepositRequest, ledger.Balance, bool, error) {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return funding.DepositRequest{}, ledger.Balance{}, false, apperr.ErrStorage
	}
	s.mu.Unlock()
	return s.Store.ApproveDeposit(ctx, id, resolvedAt)
}

func TestApproveDepositRequest_StorageFailureLeavesPending(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	ledgerStore := ledger.NewMemoryStore(decimal.NewFromInt(50000))
	ledgerSvc := ledger.NewService(ledgerStore, bus)
	inner := funding.NewMemoryStore(ledgerStore)
	flaky := &flakyApproveStore{Store: inner, failures: 1}
	svc := funding.NewService(flaky, ledgerSvc, bus, zerolog.Nop(), funding.Config{
		MinDeposit:   decimal.NewFromInt(10),
		RefMinLength: 8,
	})

	req, err := svc.SubmitDepositRequest(ctx, "acct-1", decimal.NewFromInt(3000), "PAYREF010")
	require.NoError(t, err)

	// The failed attempt must not leave an approved request without
	// its credit; the request stays pending and retriable.
	_, err = svc.ApproveDepositRequest(ctx, req.ID)
	require.Error(t, err)
	stored, err := inner.GetDeposit(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusPending, stored.Status)
	b, err := ledgerSvc.GetBalance(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, b.RealBalance.IsZero())

	// Retry succeeds and credits exactly once.
	approved, err := svc.ApproveDepositRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusApproved, approved.Status)
	b, err = ledgerSvc.GetBalance(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, b.RealBalance.Equal(decimal.NewFromInt(3000)))
	assert.True(t, b.TotalDeposits.Equal(decimal.NewFromInt(3000)))
}

func TestRejectDepositRequest_NoBalanceEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.SubmitDepositRequest(ctx, "acct-1", decimal.NewFromInt(500), "PAYREF003")
	require.NoError(t, err)

	rejected, err := f.svc.RejectDepositRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusRejected, rejected.Status)
	assert.True(t, f.realBalance(t, "acct-1").IsZero())

	// A rejected request can never be approved afterwards.
	_, err = f.svc.ApproveDepositRequest(ctx, req.ID)
	require.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
	assert.True(t, f.realBalance(t, "acct-1").IsZero())
}

func TestApproveDepositRequest_UnknownID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ApproveDepositRequest(context.Background(), "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSubmitWithdrawalRequest_ReservesFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedReal(t, f, "acct-1", 1000)

	req, err := f.svc.SubmitWithdrawalRequest(ctx, "acct-1", decimal.NewFromInt(400), "UZ bank 1234")
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusPending, req.Status)
	assert.True(t, f.realBalance(t, "acct-1").Equal(decimal.NewFromInt(600)))
}

func TestSubmitWithdrawalRequest_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedReal(t, f, "acct-1", 100)

	_, err := f.svc.SubmitWithdrawalRequest(ctx, "acct-1", decimal.NewFromInt(400), "UZ bank 1234")
	require.ErrorIs(t, err, apperr.ErrInsufficientBalance)
	assert.True(t, f.realBalance(t, "acct-1").Equal(decimal.NewFromInt(100)))

	pending, err := f.svc.ListPendingWithdrawals(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSubmitWithdrawalRequest_ConcurrentSubmitsCannotOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedReal(t, f, "acct-1", 150)

	var wg sync.WaitGroup
	reqs := make([]funding.WithdrawalRequest, 2)
	errs := make([]error, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			defer wg.Done()
			reqs[i], errs[i] = f.svc.SubmitWithdrawalRequest(ctx, "acct-1", decimal.NewFromInt(100), "UZ bank 1234")
		}(i)
	}
	wg.Wait()

	var ok, short int
	var accepted funding.WithdrawalRequest
	for i, err := range errs {
		switch {
		case err == nil:
			ok++
			accepted = reqs[i]
		case errors.Is(err, apperr.ErrInsufficientBalance):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, short)
	assert.True(t, f.realBalance(t, "acct-1").Equal(decimal.NewFromInt(50)))

	// Rejecting the accepted request restores exactly the seed.
	_, err := f.svc.RejectWithdrawalRequest(ctx, accepted.ID)
	require.NoError(t, err)
	assert.True(t, f.realBalance(t, "acct-1").Equal(decimal.NewFromInt(150)))
}

func TestRejectWithdrawalRequest_RefundsReserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedReal(t, f, "acct-1", 1000)

	req, err := f.svc.SubmitWithdrawalRequest(ctx, "acct-1", decimal.NewFromInt(400), "UZ bank 1234")
	require.NoError(t, err)

	rejected, err := f.svc.RejectWithdrawalRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusRejected, rejected.Status)
	assert.True(t, f.realBalance(t, "acct-1").Equal(decimal.NewFromInt(1000)))

	// Replayed rejection must not refund twice.
	_, err = f.svc.RejectWithdrawalRequest(ctx, req.ID)
	require.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
	assert.True(t, f.realBalance(t, "acct-1").Equal(decimal.NewFromInt(1000)))
}

func TestApproveWithdrawalRequest_FinalizesWithoutDoubleDebit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedReal(t, f, "acct-1", 1000)

	req, err := f.svc.SubmitWithdrawalRequest(ctx, "acct-1", decimal.NewFromInt(400), "UZ bank 1234")
	require.NoError(t, err)

	approved, err := f.svc.ApproveWithdrawalRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusApproved, approved.Status)
	// Debited at submission, not again at approval.
	assert.True(t, f.realBalance(t, "acct-1").Equal(decimal.NewFromInt(600)))

	// Rejecting after approval neither flips the status nor refunds.
	_, err = f.svc.RejectWithdrawalRequest(ctx, req.ID)
	require.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
	assert.True(t, f.realBalance(t, "acct-1").Equal(decimal.NewFromInt(600)))
}

func TestListPendingDeposits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.SubmitDepositRequest(ctx, "acct-1", decimal.NewFromInt(100), "PAYREF004")
	require.NoError(t, err)
	second, err := f.svc.SubmitDepositRequest(ctx, "acct-2", decimal.NewFromInt(200), "PAYREF005")
	require.NoError(t, err)
	_, err = f.svc.ApproveDepositRequest(ctx, first.ID)
	require.NoError(t, err)

	pending, err := f.svc.ListPendingDeposits(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func seedReal(t *testing.T, f *fixture, accountID string, amount int64) {
	t.Helper()
	_, _, err := f.ledger.ApplyDelta(context.Background(), accountID, types.BalanceFieldReal, decimal.NewFromInt(amount), "seed:"+accountID)
	require.NoError(t, err)
}
