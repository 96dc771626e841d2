package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

const schema = `
create table if not exists balances (
	account_id text primary key,
	demo_balance numeric not null,
	real_balance numeric not null default 0,
	total_deposits numeric not null default 0,
	current_account text not null default 'demo'
);

create table if not exists ledger_applied_keys (
	idempotency_key text primary key,
	account_id text not null,
	field text not null,
	delta numeric not null,
	applied_at timestamptz not null default now()
);

create table if not exists trades (
	id uuid primary key,
	account_id text not null,
	asset text not null,
	direction text not null,
	wager_amount numeric not null,
	account_type text not null,
	entry_price numeric not null,
	exit_price numeric,
	payout numeric,
	status text not null,
	opened_at timestamptz not null,
	duration_seconds bigint not null,
	settle_at timestamptz not null,
	settled_at timestamptz
);

create index if not exists trades_due_idx on trades (settle_at) where status in ('active', 'settling');
create index if not exists trades_account_idx on trades (account_id, opened_at desc);

create table if not exists deposit_requests (
	id uuid primary key,
	account_id text not null,
	amount numeric not null,
	reference_code text not null,
	status text not null,
	submitted_at timestamptz not null,
	resolved_at timestamptz
);

create table if not exists withdrawal_requests (
	id uuid primary key,
	account_id text not null,
	amount numeric not null,
	bank_details text not null,
	status text not null,
	submitted_at timestamptz not null,
	resolved_at timestamptz
);
`

// Migrate applies the schema. Statements are idempotent, so running at
// every startup is safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
