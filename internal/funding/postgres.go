package funding

import (
	"context"
	"errors"
	"time"

	"lv-bintrade/internal/apperr"
	"lv-bintrade/internal/ledger"
	"lv-bintrade/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore commits each resolution and its ledger effect in one
// Serializable transaction via the ledger's tx-scoped helpers.
type PostgresStore struct {
	pool   *pgxpool.Pool
	ledger *ledger.PostgresStore
}

func NewPostgresStore(pool *pgxpool.Pool, ledgerStore *ledger.PostgresStore) *PostgresStore {
	return &PostgresStore{pool: pool, ledger: ledgerStore}
}

func (s *PostgresStore) CreateDeposit(ctx context.Context, req DepositRequest) error {
	_, err := s.pool.Exec(ctx,
		"insert into deposit_requests (id, account_id, amount, reference_code, status, submitted_at) values ($1,$2,$3,$4,$5,$6)",
		req.ID, req.AccountID, req.Amount, req.ReferenceCode, string(req.Status), req.SubmittedAt,
	)
	return err
}

func (s *PostgresStore) GetDeposit(ctx context.Context, id string) (DepositRequest, error) {
	return scanDeposit(s.pool.QueryRow(ctx,
		"select id, account_id, amount, reference_code, status, submitted_at, resolved_at from deposit_requests where id = $1",
		id,
	))
}

func scanDeposit(row pgx.Row) (DepositRequest, error) {
	var req DepositRequest
	var status string
	err := row.Scan(&req.ID, &req.AccountID, &req.Amount, &req.ReferenceCode, &status, &req.SubmittedAt, &req.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return DepositRequest{}, apperr.ErrNotFound
	}
	if err != nil {
		return DepositRequest{}, err
	}
	req.Status = types.RequestStatus(status)
	return req, nil
}

func (s *PostgresStore) ApproveDeposit(ctx context.Context, id string, resolvedAt time.Time) (DepositRequest, ledger.Balance, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return DepositRequest{}, ledger.Balance{}, false, err
	}
	defer tx.Rollback(ctx)

	req, err := scanDeposit(tx.QueryRow(ctx,
		"select id, account_id, amount, reference_code, status, submitted_at, resolved_at from deposit_requests where id = $1 for update",
		id,
	))
	if err != nil {
		return DepositRequest{}, ledger.Balance{}, false, err
	}
	if req.Status != types.RequestStatusPending {
		return req, ledger.Balance{}, false, nil
	}
	if _, err := tx.Exec(ctx,
		"update deposit_requests set status = 'approved', resolved_at = $1 where id = $2",
		resolvedAt, id,
	); err != nil {
		return DepositRequest{}, ledger.Balance{}, false, err
	}
	bal, _, err := s.ledger.CreditDepositTx(ctx, tx, req.AccountID, req.Amount, req.ID)
	if err != nil {
		return DepositRequest{}, ledger.Balance{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return DepositRequest{}, ledger.Balance{}, false, err
	}
	req.Status = types.RequestStatusApproved
	req.ResolvedAt = &resolvedAt
	return req, bal, true, nil
}

func (s *PostgresStore) RejectDeposit(ctx context.Context, id string, resolvedAt time.Time) (DepositRequest, bool, error) {
	tag, err := s.pool.Exec(ctx,
		"update deposit_requests set status = 'rejected', resolved_at = $1 where id = $2 and status = 'pending'",
		resolvedAt, id,
	)
	if err != nil {
		return DepositRequest{}, false, err
	}
	req, err := s.GetDeposit(ctx, id)
	if err != nil {
		return DepositRequest{}, false, err
	}
	return req, tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListDepositsByStatus(ctx context.Context, status types.RequestStatus, limit int) ([]DepositRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		"select id, account_id, amount, reference_code, status, submitted_at, resolved_at from deposit_requests where status = $1 order by submitted_at asc limit $2",
		string(status), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DepositRequest
	for rows.Next() {
		req, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateWithdrawal(ctx context.Context, req WithdrawalRequest) error {
	_, err := s.pool.Exec(ctx,
		"insert into withdrawal_requests (id, account_id, amount, bank_details, status, submitted_at) values ($1,$2,$3,$4,$5,$6)",
		req.ID, req.AccountID, req.Amount, req.BankDetails, string(req.Status), req.SubmittedAt,
	)
	return err
}

func (s *PostgresStore) GetWithdrawal(ctx context.Context, id string) (WithdrawalRequest, error) {
	return scanWithdrawal(s.pool.QueryRow(ctx,
		"select id, account_id, amount, bank_details, status, submitted_at, resolved_at from withdrawal_requests where id = $1",
		id,
	))
}

func scanWithdrawal(row pgx.Row) (WithdrawalRequest, error) {
	var req WithdrawalRequest
	var status string
	err := row.Scan(&req.ID, &req.AccountID, &req.Amount, &req.BankDetails, &status, &req.SubmittedAt, &req.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return WithdrawalRequest{}, apperr.ErrNotFound
	}
	if err != nil {
		return WithdrawalRequest{}, err
	}
	req.Status = types.RequestStatus(status)
	return req, nil
}

func (s *PostgresStore) ApproveWithdrawal(ctx context.Context, id string, resolvedAt time.Time) (WithdrawalRequest, bool, error) {
	tag, err := s.pool.Exec(ctx,
		"update withdrawal_requests set status = 'approved', resolved_at = $1 where id = $2 and status = 'pending'",
		resolvedAt, id,
	)
	if err != nil {
		return WithdrawalRequest{}, false, err
	}
	req, err := s.GetWithdrawal(ctx, id)
	if err != nil {
		return WithdrawalRequest{}, false, err
	}
	return req, tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) RejectWithdrawal(ctx context.Context, id string, resolvedAt time.Time) (WithdrawalRequest, ledger.Balance, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return WithdrawalRequest{}, ledger.Balance{}, false, err
	}
	defer tx.Rollback(ctx)

	req, err := scanWithdrawal(tx.QueryRow(ctx,
		"select id, account_id, amount, bank_details, status, submitted_at, resolved_at from withdrawal_requests where id = $1 for update",
		id,
	))
	if err != nil {
		return WithdrawalRequest{}, ledger.Balance{}, false, err
	}
	if req.Status != types.RequestStatusPending {
		return req, ledger.Balance{}, false, nil
	}
	if _, err := tx.Exec(ctx,
		"update withdrawal_requests set status = 'rejected', resolved_at = $1 where id = $2",
		resolvedAt, id,
	); err != nil {
		return WithdrawalRequest{}, ledger.Balance{}, false, err
	}
	bal, _, err := s.ledger.ApplyDeltaTx(ctx, tx, req.AccountID, types.BalanceFieldReal, req.Amount, req.ID+":refund")
	if err != nil {
		return WithdrawalRequest{}, ledger.Balance{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return WithdrawalRequest{}, ledger.Balance{}, false, err
	}
	req.Status = types.RequestStatusRejected
	req.ResolvedAt = &resolvedAt
	return req, bal, true, nil
}

func (s *PostgresStore) ListWithdrawalsByStatus(ctx context.Context, status types.RequestStatus, limit int) ([]WithdrawalRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		"select id, account_id, amount, bank_details, status, submitted_at, resolved_at from withdrawal_requests where status = $1 order by submitted_at asc limit $2",
		string(status), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WithdrawalRequest
	for rows.Next() {
		req, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
