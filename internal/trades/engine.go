package trades

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lv-bintrade/internal/apperr"
	"lv-bintrade/internal/ledger"
	"lv-bintrade/internal/override"
	"lv-bintrade/internal/pricing"
	"lv-bintrade/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Registrar receives freshly opened trades for future settlement.
type Registrar interface {
	Register(t Trade)
}

// Engine validates and opens wagers. The wager debit and the trade
// record are keyed by the same trade id, so a retry after a partial
// failure converges instead of double-debiting.
type Engine struct {
	store     Store
	ledger    *ledger.Service
	oracle    pricing.Oracle
	policies  *override.Controller
	registrar Registrar
	now       func() time.Time
}

func NewEngine(store Store, ledgerSvc *ledger.Service, oracle pricing.Oracle, policies *override.Controller, registrar Registrar) *Engine {
	return &Engine{
		store:     store,
		ledger:    ledgerSvc,
		oracle:    oracle,
		policies:  policies,
		registrar: registrar,
		now:       time.Now,
	}
}

type OpenTradeRequest struct {
	AccountID       string
	Asset           string
	Direction       types.Direction
	Amount          decimal.Decimal
	AccountType     types.AccountType
	DurationSeconds int64
}

func (e *Engine) OpenTrade(ctx context.Context, req OpenTradeRequest) (Trade, error) {
	if req.AccountID == "" {
		return Trade{}, apperr.Validation("account_id", "required")
	}
	if req.Direction != types.DirectionUp && req.Direction != types.DirectionDown {
		return Trade{}, apperr.Validation("direction", "must be up or down")
	}
	if req.DurationSeconds <= 0 {
		return Trade{}, apperr.Validation("duration_seconds", "must be positive")
	}
	if !e.oracle.Knows(req.Asset) {
		return Trade{}, apperr.Validation("asset", "unknown asset")
	}
	policy := e.policies.Policy()
	if req.Amount.LessThan(policy.MinWager) {
		return Trade{}, apperr.Validation("amount", "below minimum wager")
	}
	if req.Amount.GreaterThan(policy.MaxWager) {
		return Trade{}, apperr.Validation("amount", "above maximum wager")
	}

	accountType := req.AccountType
	if accountType == "" {
		b, err := e.ledger.GetBalance(ctx, req.AccountID)
		if err != nil {
			return Trade{}, err
		}
		accountType = b.CurrentAccount
	}
	if accountType != types.AccountTypeDemo && accountType != types.AccountTypeReal {
		return Trade{}, apperr.Validation("account_type", "must be demo or real")
	}
	field := types.BalanceFieldFor(accountType)

	entryPrice, err := e.oracle.CurrentPrice(req.Asset)
	if err != nil {
		return Trade{}, err
	}

	openedAt := e.now().UTC()
	t := Trade{
		ID:              uuid.NewString(),
		AccountID:       req.AccountID,
		Asset:           req.Asset,
		Direction:       req.Direction,
		WagerAmount:     req.Amount,
		AccountType:     accountType,
		EntryPrice:      entryPrice,
		Status:          types.TradeStatusActive,
		OpenedAt:        openedAt,
		DurationSeconds: req.DurationSeconds,
		SettleAt:        openedAt.Add(time.Duration(req.DurationSeconds) * time.Second),
	}

	// Insufficiency is decided by the ledger under the account's
	// serialization point, not by a read-then-write gate here.
	if _, _, err := e.ledger.ApplyDelta(ctx, t.AccountID, field, t.WagerAmount.Neg(), t.ID); err != nil {
		if errors.Is(err, apperr.ErrInsufficientBalance) {
			return Trade{}, apperr.ErrInsufficientBalance
		}
		return Trade{}, fmt.Errorf("debit wager: %w", err)
	}
	if err := e.store.Create(ctx, t); err != nil {
		// Undo the wager so the debit-and-create pair stays
		// all-or-nothing. The reversal key survives retries.
		if _, _, revErr := e.ledger.ApplyDelta(ctx, t.AccountID, field, t.WagerAmount, t.ID+":reversal"); revErr != nil {
			return Trade{}, fmt.Errorf("create trade failed (%v), reversal failed: %w", err, revErr)
		}
		return Trade{}, fmt.Errorf("create trade: %w", err)
	}
	e.registrar.Register(t)
	return t, nil
}

func (e *Engine) GetTrade(ctx context.Context, id string) (Trade, error) {
	return e.store.Get(ctx, id)
}

func (e *Engine) ListActiveTrades(ctx context.Context, accountID string) ([]Trade, error) {
	return e.store.ListByAccount(ctx, accountID, []types.TradeStatus{types.TradeStatusActive, types.TradeStatusSettling}, 0)
}

func (e *Engine) ListTradeHistory(ctx context.Context, accountID string, limit int) ([]Trade, error) {
	return e.store.ListByAccount(ctx, accountID, []types.TradeStatus{types.TradeStatusWon, types.TradeStatusLost}, limit)
}
