package daybook

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sahakari/sahakari-cbs/internal/platform/db"
	"github.com/sahakari/sahakari-cbs/internal/shared"
)

// Repository encapsulates DB operations for the day book.
type Repository interface {
	Latest(ctx context.Context, tenantID string) (BusinessDay, bool, error)
	ByDate(ctx context.Context, tenantID string, date shared.BSDate) (BusinessDay, bool, error)
	Movements(ctx context.Context, tenantID string, date shared.BSDate) ([]AccountMovement, error)
	TransactionsCount(ctx context.Context, dayID int64) (int64, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	AcquireTenantLock(ctx context.Context, tenantID string) error
	LatestForUpdate(ctx context.Context, tenantID string) (BusinessDay, bool, error)
	Insert(ctx context.Context, in DayBeginInput, openedAt time.Time) (BusinessDay, error)
	TransitionStatus(ctx context.Context, dayID int64, from, to DayStatus) (bool, error)
	CloseDay(ctx context.Context, dayID, closingCash int64, closedBy string, closedAt time.Time) (bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const dayColumns = `id, tenant_id, date, status, opening_cash, closing_cash, opened_by, opened_at, closed_by, closed_at, transactions_count`

func (r *repository) Latest(ctx context.Context, tenantID string) (BusinessDay, bool, error) {
	row := r.db.QueryRow(ctx, `SELECT `+dayColumns+` FROM business_days WHERE tenant_id=$1 ORDER BY date DESC LIMIT 1`, tenantID)
	return scanDayMaybe(row)
}

func (r *repository) ByDate(ctx context.Context, tenantID string, date shared.BSDate) (BusinessDay, bool, error) {
	row := r.db.QueryRow(ctx, `SELECT `+dayColumns+` FROM business_days WHERE tenant_id=$1 AND date=$2`, tenantID, string(date))
	return scanDayMaybe(row)
}

func (r *repository) Movements(ctx context.Context, tenantID string, date shared.BSDate) ([]AccountMovement, error) {
	rows, err := r.db.Query(ctx, `SELECT a.id, a.code, a.name, a.is_cash, COALESCE(SUM(e.amount), 0), COUNT(e.id)
FROM ledger_entries e JOIN accounts a ON a.id = e.account_id
WHERE e.tenant_id=$1 AND e.business_date=$2
GROUP BY a.id, a.code, a.name, a.is_cash
ORDER BY a.code`, tenantID, string(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []AccountMovement
	for rows.Next() {
		var m AccountMovement
		if err := rows.Scan(&m.AccountID, &m.Code, &m.Name, &m.IsCash, &m.Amount, &m.Entries); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *repository) TransactionsCount(ctx context.Context, dayID int64) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT transactions_count FROM business_days WHERE id=$1`, dayID).Scan(&count)
	return count, err
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) AcquireTenantLock(ctx context.Context, tenantID string) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, tenantID)
	return err
}

func (r *txRepository) LatestForUpdate(ctx context.Context, tenantID string) (BusinessDay, bool, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+dayColumns+` FROM business_days WHERE tenant_id=$1 ORDER BY date DESC LIMIT 1 FOR UPDATE`, tenantID)
	return scanDayMaybe(row)
}

func (r *txRepository) Insert(ctx context.Context, in DayBeginInput, openedAt time.Time) (BusinessDay, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO business_days (tenant_id, date, status, opening_cash, opened_by, opened_at, transactions_count)
VALUES ($1,$2,$3,$4,$5,$6,0) RETURNING `+dayColumns, in.TenantID, string(in.Date), DayStatusOpen, in.OpeningCash, in.OpenedBy, openedAt)
	day, _, err := scanDayMaybe(row)
	if err != nil {
		return BusinessDay{}, err
	}
	return day, nil
}

func (r *txRepository) TransitionStatus(ctx context.Context, dayID int64, from, to DayStatus) (bool, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE business_days SET status=$3 WHERE id=$1 AND status=$2`, dayID, from, to)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *txRepository) CloseDay(ctx context.Context, dayID, closingCash int64, closedBy string, closedAt time.Time) (bool, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE business_days SET status=$2, closing_cash=$3, closed_by=$4, closed_at=$5 WHERE id=$1 AND status=$6`,
		dayID, DayStatusClosed, closingCash, closedBy, closedAt, DayStatusEODInProgress)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func scanDayMaybe(row pgx.Row) (BusinessDay, bool, error) {
	var d BusinessDay
	var date string
	err := row.Scan(&d.ID, &d.TenantID, &date, &d.Status, &d.OpeningCash, &d.ClosingCash, &d.OpenedBy, &d.OpenedAt, &d.ClosedBy, &d.ClosedAt, &d.TransactionsCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BusinessDay{}, false, nil
		}
		return BusinessDay{}, false, err
	}
	d.Date = shared.BSDate(date)
	return d, true, nil
}
