package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lv-bintrade/internal/apperr"
	"lv-bintrade/internal/events"
	"lv-bintrade/internal/ledger"
	"lv-bintrade/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() (*ledger.Service, *events.Bus) {
	bus := events.NewBus()
	store := ledger.NewMemoryStore(decimal.NewFromInt(50000))
	return ledger.NewService(store, bus), bus
}

func TestGetBalance_CreatesDefaults(t *testing.T) {
	svc, _ := newService()
	b, err := svc.GetBalance(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.True(t, b.DemoBalance.Equal(decimal.NewFromInt(50000)))
	assert.True(t, b.RealBalance.IsZero())
	assert.True(t, b.TotalDeposits.IsZero())
	assert.Equal(t, types.AccountTypeDemo, b.CurrentAccount)
}

func TestApplyDelta_DebitAndCredit(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	b, applied, err := svc.ApplyDelta(ctx, "acct-1", types.BalanceFieldDemo, decimal.NewFromInt(-100), "k1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, b.DemoBalance.Equal(decimal.NewFromInt(49900)))

	b, applied, err = svc.ApplyDelta(ctx, "acct-1", types.BalanceFieldDemo, decimal.NewFromInt(50), "k2")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, b.DemoBalance.Equal(decimal.NewFromInt(49950)))
}

func TestApplyDelta_DuplicateKeyIsNoOp(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, applied, err := svc.ApplyDelta(ctx, "acct-1", types.BalanceFieldReal, decimal.NewFromInt(500), "dup")
	require.NoError(t, err)
	require.True(t, applied)

	b, applied, err := svc.ApplyDelta(ctx, "acct-1", types.BalanceFieldReal, decimal.NewFromInt(500), "dup")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.True(t, b.RealBalance.Equal(decimal.NewFromInt(500)))
}

func TestApplyDelta_RejectsOverdraft(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, _, err := svc.ApplyDelta(ctx, "acct-1", types.BalanceFieldReal, decimal.NewFromInt(-999), "k1")
	require.ErrorIs(t, err, apperr.ErrInsufficientBalance)

	b, err := svc.GetBalance(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, b.RealBalance.IsZero())

	// The rejected attempt must not consume the key: fund the account
	// and the same debit applies.
	_, applied, err := svc.ApplyDelta(ctx, "acct-1", types.BalanceFieldReal, decimal.NewFromInt(1000), "fund")
	require.NoError(t, err)
	require.True(t, applied)
	b, applied, err = svc.ApplyDelta(ctx, "acct-1", types.BalanceFieldReal, decimal.NewFromInt(-999), "k1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, b.RealBalance.Equal(decimal.NewFromInt(1)))
}

func TestApplyDelta_ConcurrentDebitsCannotOverdraw(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	_, _, err := svc.ApplyDelta(ctx, "acct-1", types.BalanceFieldReal, decimal.NewFromInt(150), "seed")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.ApplyDelta(ctx, "acct-1", types.BalanceFieldReal, decimal.NewFromInt(-100), decimal.NewFromInt(int64(i)).String()+":debit")
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrInsufficientBalance):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)

	b, err := svc.GetBalance(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, b.RealBalance.Equal(decimal.NewFromInt(50)))
}

func TestCreditDeposit_BothEffectsOnce(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	b, applied, err := svc.CreditDeposit(ctx, "acct-1", decimal.NewFromInt(3000), "req-1")
	require.NoError(t, err)
	require.True(t, applied)
	assert.True(t, b.RealBalance.Equal(decimal.NewFromInt(3000)))
	assert.True(t, b.TotalDeposits.Equal(decimal.NewFromInt(3000)))

	b, applied, err = svc.CreditDeposit(ctx, "acct-1", decimal.NewFromInt(3000), "req-1")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.True(t, b.RealBalance.Equal(decimal.NewFromInt(3000)))
	assert.True(t, b.TotalDeposits.Equal(decimal.NewFromInt(3000)))
}

func TestSwitchAccount(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	b, err := svc.SwitchAccount(ctx, "acct-1", types.AccountTypeReal)
	require.NoError(t, err)
	assert.Equal(t, types.AccountTypeReal, b.CurrentAccount)

	_, err = svc.SwitchAccount(ctx, "acct-1", types.AccountType("margin"))
	assert.Error(t, err)
}

func TestApplyDelta_ConcurrentDeltasLinearized(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, _, err := svc.ApplyDelta(ctx, "acct-1", types.BalanceFieldDemo, decimal.NewFromInt(-1), decimal.NewFromInt(int64(i)).String()+":debit")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	b, err := svc.GetBalance(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, b.DemoBalance.Equal(decimal.NewFromInt(50000-n)))
}

func TestApplyDelta_PublishesBalanceChanged(t *testing.T) {
	svc, bus := newService()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	_, _, err := svc.ApplyDelta(context.Background(), "acct-1", types.BalanceFieldReal, decimal.NewFromInt(10), "k1")
	require.NoError(t, err)

	evt := <-sub
	require.Equal(t, events.TypeBalanceChanged, evt.Type)
	payload, ok := evt.Data.(events.BalanceChanged)
	require.True(t, ok)
	assert.Equal(t, "acct-1", payload.AccountID)
	assert.Equal(t, types.BalanceFieldReal, payload.Field)
	assert.True(t, payload.NewValue.Equal(decimal.NewFromInt(10)))
}

func TestApplyDelta_DuplicateDoesNotPublish(t *testing.T) {
	svc, bus := newService()
	ctx := context.Background()
	_, _, err := svc.ApplyDelta(ctx, "acct-1", types.BalanceFieldReal, decimal.NewFromInt(10), "k1")
	require.NoError(t, err)

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)
	_, _, err = svc.ApplyDelta(ctx, "acct-1", types.BalanceFieldReal, decimal.NewFromInt(10), "k1")
	require.NoError(t, err)

	select {
	case evt := <-sub:
		t.Fatalf("unexpected event %q for duplicate delta", evt.Type)
	default:
	}
}
