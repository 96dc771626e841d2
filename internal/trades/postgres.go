package trades

import (
	"context"
	"errors"
	"time"

	"lv-bintrade/internal/apperr"
	"lv-bintrade/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const tradeColumns = "id, account_id, asset, direction, wager_amount, account_type, entry_price, exit_price, payout, status, opened_at, duration_seconds, settle_at, settled_at"

func (s *PostgresStore) Create(ctx context.Context, t Trade) error {
	_, err := s.pool.Exec(ctx,
		"insert into trades (id, account_id, asset, direction, wager_amount, account_type, entry_price, status, opened_at, duration_seconds, settle_at) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)",
		t.ID, t.AccountID, t.Asset, string(t.Direction), t.WagerAmount, string(t.AccountType), t.EntryPrice, string(t.Status), t.OpenedAt, t.DurationSeconds, t.SettleAt,
	)
	return err
}

func scanTrade(row pgx.Row) (Trade, error) {
	var t Trade
	var direction, accountType, status string
	err := row.Scan(&t.ID, &t.AccountID, &t.Asset, &direction, &t.WagerAmount, &accountType, &t.EntryPrice, &t.ExitPrice, &t.Payout, &status, &t.OpenedAt, &t.DurationSeconds, &t.SettleAt, &t.SettledAt)
	if err != nil {
		return t, err
	}
	t.Direction = types.Direction(direction)
	t.AccountType = types.AccountType(accountType)
	t.Status = types.TradeStatus(status)
	return t, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Trade, error) {
	t, err := scanTrade(s.pool.QueryRow(ctx, "select "+tradeColumns+" from trades where id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Trade{}, apperr.ErrNotFound
	}
	return t, err
}

func (s *PostgresStore) ClaimSettlement(ctx context.Context, id string, exitPrice decimal.Decimal) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		"update trades set status = 'settling', exit_price = $1 where id = $2 and status = 'active'",
		exitPrice, id,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a lost claim from an unknown trade.
		var exists bool
		if err := s.pool.QueryRow(ctx, "select exists(select 1 from trades where id = $1)", id).Scan(&exists); err != nil {
			return false, err
		}
		if !exists {
			return false, apperr.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (s *PostgresStore) FinishSettlement(ctx context.Context, id string, status types.TradeStatus, payout decimal.Decimal, settledAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		"update trades set status = $1, payout = $2, settled_at = $3 where id = $4 and status = 'settling'",
		string(status), payout, settledAt, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrAlreadyProcessed
	}
	return nil
}

func (s *PostgresStore) ListUnsettled(ctx context.Context) ([]Trade, error) {
	rows, err := s.pool.Query(ctx, "select "+tradeColumns+" from trades where status in ('active', 'settling') order by settle_at asc")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

func (s *PostgresStore) ListByAccount(ctx context.Context, accountID string, statuses []types.TradeStatus, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	filter := make([]string, 0, len(statuses))
	for _, st := range statuses {
		filter = append(filter, string(st))
	}
	rows, err := s.pool.Query(ctx,
		"select "+tradeColumns+" from trades where account_id = $1 and (cardinality($2::text[]) = 0 or status = any($2)) order by opened_at desc limit $3",
		accountID, filter, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

func collectTrades(rows pgx.Rows) ([]Trade, error) {
	var out []Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
