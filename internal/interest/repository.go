package interest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sahakari/sahakari-cbs/internal/platform/db"
	"github.com/sahakari/sahakari-cbs/internal/shared"
)

// Repository persists accruals and resolves savings account configuration.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListSavingsAccounts returns all active interest-bearing accounts with
// their product configuration.
func (r *Repository) ListSavingsAccounts(ctx context.Context, tenantID string) ([]SavingsAccount, error) {
	rows, err := r.pool.Query(ctx, `SELECT sa.account_id, sp.id, sp.name, sp.rate_bps, sp.tds_bps, sp.interest_expense_account_id, sp.tds_payable_account_id
FROM savings_accounts sa
JOIN savings_products sp ON sp.id = sa.product_id AND sp.tenant_id = sa.tenant_id
WHERE sa.tenant_id=$1 AND sa.is_active
ORDER BY sa.account_id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []SavingsAccount
	for rows.Next() {
		var a SavingsAccount
		if err := rows.Scan(&a.AccountID, &a.ProductID, &a.ProductName, &a.RateBps, &a.TDSBps, &a.InterestExpenseAccountID, &a.TDSPayableAccountID); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpsertCalculated writes one computed accrual. Re-running a calculation
// overwrites rows still in calculated state; rows already posted are left
// untouched so amounts in the ledger can never drift from the accrual
// record. Returns true when a row was written.
func (r *Repository) UpsertCalculated(ctx context.Context, a Accrual) (bool, error) {
	tag, err := r.pool.Exec(ctx, `INSERT INTO interest_accruals (tenant_id, account_id, business_date, gross, tds, net, rate_bps, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,'calculated',$8)
ON CONFLICT (tenant_id, account_id, business_date)
DO UPDATE SET gross=EXCLUDED.gross, tds=EXCLUDED.tds, net=EXCLUDED.net, rate_bps=EXCLUDED.rate_bps
WHERE interest_accruals.status='calculated'`,
		a.TenantID, a.AccountID, string(a.BusinessDate), a.Gross, a.TDS, a.Net, a.RateBps, a.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListCalculated returns the accruals still awaiting posting for a date.
func (r *Repository) ListCalculated(ctx context.Context, tenantID string, date shared.BSDate) ([]Accrual, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, account_id, business_date, gross, tds, net, rate_bps, status, transaction_id, created_at, posted_at
FROM interest_accruals WHERE tenant_id=$1 AND business_date=$2 AND status='calculated' ORDER BY account_id`, tenantID, string(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accruals []Accrual
	for rows.Next() {
		a, err := scanAccrual(rows)
		if err != nil {
			return nil, err
		}
		accruals = append(accruals, a)
	}
	return accruals, rows.Err()
}

// ListByDate returns every accrual for a date regardless of status.
func (r *Repository) ListByDate(ctx context.Context, tenantID string, date shared.BSDate) ([]Accrual, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, account_id, business_date, gross, tds, net, rate_bps, status, transaction_id, created_at, posted_at
FROM interest_accruals WHERE tenant_id=$1 AND business_date=$2 ORDER BY account_id`, tenantID, string(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accruals []Accrual
	for rows.Next() {
		a, err := scanAccrual(rows)
		if err != nil {
			return nil, err
		}
		accruals = append(accruals, a)
	}
	return accruals, rows.Err()
}

// WithTx runs fn inside one storage transaction at repeatable read.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}

// MarkPosted flips one accrual to posted inside the caller's transaction.
// The status guard makes the flip race-free: a second poster sees zero
// rows affected and must not write to the ledger.
func (r *Repository) MarkPosted(ctx context.Context, tx pgx.Tx, accrualID int64, txnID uuid.UUID, postedAt time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `UPDATE interest_accruals SET status='posted', transaction_id=$2, posted_at=$3 WHERE id=$1 AND status='calculated'`,
		accrualID, txnID, postedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanAccrual(row pgx.Row) (Accrual, error) {
	var a Accrual
	var date string
	err := row.Scan(&a.ID, &a.TenantID, &a.AccountID, &date, &a.Gross, &a.TDS, &a.Net, &a.RateBps, &a.Status, &a.TransactionID, &a.CreatedAt, &a.PostedAt)
	if err != nil {
		return Accrual{}, err
	}
	a.BusinessDate = shared.BSDate(date)
	return a, nil
}
