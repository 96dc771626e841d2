package ledger

import (
	"context"
	"errors"
	"fmt"

	"lv-bintrade/internal/apperr"
	"lv-bintrade/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore serializes per-account mutations with a row lock on
// the balance row; the ledger_applied_keys table carries the
// idempotency guarantee across restarts.
type PostgresStore struct {
	pool      *pgxpool.Pool
	demoStart decimal.Decimal
}

func NewPostgresStore(pool *pgxpool.Pool, demoStart decimal.Decimal) *PostgresStore {
	return &PostgresStore{pool: pool, demoStart: demoStart}
}

func (s *PostgresStore) GetBalance(ctx context.Context, accountID string) (Balance, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return Balance{}, err
	}
	defer tx.Rollback(ctx)
	b, err := s.lockBalance(ctx, tx, accountID)
	if err != nil {
		return Balance{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Balance{}, err
	}
	return b, nil
}

func (s *PostgresStore) lockBalance(ctx context.Context, tx pgx.Tx, accountID string) (Balance, error) {
	b := Balance{AccountID: accountID}
	var current string
	err := tx.QueryRow(ctx,
		"select demo_balance, real_balance, total_deposits, current_account from balances where account_id = $1 for update",
		accountID,
	).Scan(&b.DemoBalance, &b.RealBalance, &b.TotalDeposits, &current)
	if err == nil {
		b.CurrentAccount = types.AccountType(current)
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return b, err
	}
	// Lazy create with defaults; on a concurrent insert race the
	// conflict clause leaves the winner's row and we re-lock it.
	_, err = tx.Exec(ctx,
		"insert into balances (account_id, demo_balance, real_balance, total_deposits, current_account) values ($1, $2, 0, 0, 'demo') on conflict (account_id) do nothing",
		accountID, s.demoStart,
	)
	if err != nil {
		return b, err
	}
	err = tx.QueryRow(ctx,
		"select demo_balance, real_balance, total_deposits, current_account from balances where account_id = $1 for update",
		accountID,
	).Scan(&b.DemoBalance, &b.RealBalance, &b.TotalDeposits, &current)
	if err != nil {
		return b, err
	}
	b.CurrentAccount = types.AccountType(current)
	return b, nil
}

func (s *PostgresStore) markApplied(ctx context.Context, tx pgx.Tx, key, accountID string, field types.BalanceField, delta decimal.Decimal) (bool, error) {
	tag, err := tx.Exec(ctx,
		"insert into ledger_applied_keys (idempotency_key, account_id, field, delta) values ($1, $2, $3, $4) on conflict (idempotency_key) do nothing",
		key, accountID, string(field), delta,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ApplyDeltaTx runs the delta inside a caller-owned transaction so
// another store can commit its own row changes and the ledger effect
// as one unit. A rejected overdraft rolls the applied-key insert back
// with everything else.
func (s *PostgresStore) ApplyDeltaTx(ctx context.Context, tx pgx.Tx, accountID string, field types.BalanceField, delta decimal.Decimal, idempotencyKey string) (Balance, bool, error) {
	b, err := s.lockBalance(ctx, tx, accountID)
	if err != nil {
		return Balance{}, false, err
	}
	ok, err := s.markApplied(ctx, tx, idempotencyKey, accountID, field, delta)
	if err != nil {
		return Balance{}, false, err
	}
	if !ok {
		return b, false, nil
	}
	next := b.Field(field).Add(delta)
	if next.LessThan(decimal.Zero) {
		return Balance{}, false, apperr.ErrInsufficientBalance
	}
	if field == types.BalanceFieldReal {
		b.RealBalance = next
	} else {
		b.DemoBalance = next
	}
	_, err = tx.Exec(ctx,
		"update balances set demo_balance = $1, real_balance = $2 where account_id = $3",
		b.DemoBalance, b.RealBalance, accountID,
	)
	if err != nil {
		return Balance{}, false, err
	}
	return b, true, nil
}

// CreditDepositTx is the tx-scoped form of CreditDeposit.
func (s *PostgresStore) CreditDepositTx(ctx context.Context, tx pgx.Tx, accountID string, amount decimal.Decimal, idempotencyKey string) (Balance, bool, error) {
	b, err := s.lockBalance(ctx, tx, accountID)
	if err != nil {
		return Balance{}, false, err
	}
	ok, err := s.markApplied(ctx, tx, idempotencyKey, accountID, types.BalanceFieldReal, amount)
	if err != nil {
		return Balance{}, false, err
	}
	if !ok {
		return b, false, nil
	}
	b.RealBalance = b.RealBalance.Add(amount)
	b.TotalDeposits = b.TotalDeposits.Add(amount)
	_, err = tx.Exec(ctx,
		"update balances set real_balance = $1, total_deposits = $2 where account_id = $3",
		b.RealBalance, b.TotalDeposits, accountID,
	)
	if err != nil {
		return Balance{}, false, err
	}
	return b, true, nil
}

func (s *PostgresStore) ApplyDelta(ctx context.Context, accountID string, field types.BalanceField, delta decimal.Decimal, idempotencyKey string) (Balance, bool, error) {
	var out Balance
	var applied bool
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		b, ok, err := s.ApplyDeltaTx(ctx, tx, accountID, field, delta, idempotencyKey)
		if err != nil {
			return err
		}
		out, applied = b, ok
		return nil
	})
	if err != nil {
		return Balance{}, false, err
	}
	return out, applied, nil
}

func (s *PostgresStore) CreditDeposit(ctx context.Context, accountID string, amount decimal.Decimal, idempotencyKey string) (Balance, bool, error) {
	var out Balance
	var applied bool
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		b, ok, err := s.CreditDepositTx(ctx, tx, accountID, amount, idempotencyKey)
		if err != nil {
			return err
		}
		out, applied = b, ok
		return nil
	})
	if err != nil {
		return Balance{}, false, err
	}
	return out, applied, nil
}

func (s *PostgresStore) SwitchAccount(ctx context.Context, accountID string, accountType types.AccountType) (Balance, error) {
	var out Balance
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		b, err := s.lockBalance(ctx, tx, accountID)
		if err != nil {
			return err
		}
		b.CurrentAccount = accountType
		_, err = tx.Exec(ctx,
			"update balances set current_account = $1 where account_id = $2",
			string(accountType), accountID,
		)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return Balance{}, err
	}
	return out, nil
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
