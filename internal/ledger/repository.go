package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sahakari/sahakari-cbs/internal/coa"
	"github.com/sahakari/sahakari-cbs/internal/daybook"
	"github.com/sahakari/sahakari-cbs/internal/platform/db"
	"github.com/sahakari/sahakari-cbs/internal/shared"
)

// Repository encapsulates DB operations for the ledger store.
type Repository interface {
	GetTransaction(ctx context.Context, tenantID string, id uuid.UUID) (Transaction, error)
	ListByDate(ctx context.Context, tenantID string, date shared.BSDate) ([]Transaction, error)
	LeafBalance(ctx context.Context, tenantID string, accountID int64, asOf shared.BSDate) (int64, error)
	LeafBalances(ctx context.Context, tenantID string, accountIDs []int64, asOf shared.BSDate) (map[int64]int64, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a posting transaction. The
// open-day lock, the entry inserts, and the day counter increment share one
// storage transaction so a crash can never leave a partial posting.
type TxRepository interface {
	GetOpenDayForUpdate(ctx context.Context, tenantID string) (daybook.BusinessDay, bool, error)
	GetAccounts(ctx context.Context, tenantID string, ids []int64) (map[int64]coa.Account, error)
	InsertTransaction(ctx context.Context, txn Transaction) error
	InsertEntries(ctx context.Context, txn Transaction) ([]LedgerEntry, error)
	IncrementDayTransactions(ctx context.Context, dayID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetTransaction(ctx context.Context, tenantID string, id uuid.UUID) (Transaction, error) {
	var txn Transaction
	var date string
	err := r.db.QueryRow(ctx, `SELECT id, tenant_id, business_date, memo, created_by, created_at FROM ledger_transactions WHERE tenant_id=$1 AND id=$2`, tenantID, id).
		Scan(&txn.ID, &txn.TenantID, &date, &txn.Memo, &txn.CreatedBy, &txn.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	txn.BusinessDate = shared.BSDate(date)
	entries, err := r.entriesFor(ctx, tenantID, id)
	if err != nil {
		return Transaction{}, err
	}
	txn.Entries = entries
	return txn, nil
}

func (r *repository) ListByDate(ctx context.Context, tenantID string, date shared.BSDate) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT id, tenant_id, business_date, memo, created_by, created_at FROM ledger_transactions WHERE tenant_id=$1 AND business_date=$2 ORDER BY created_at`, tenantID, string(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txns []Transaction
	for rows.Next() {
		var txn Transaction
		var d string
		if err := rows.Scan(&txn.ID, &txn.TenantID, &d, &txn.Memo, &txn.CreatedBy, &txn.CreatedAt); err != nil {
			return nil, err
		}
		txn.BusinessDate = shared.BSDate(d)
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range txns {
		entries, err := r.entriesFor(ctx, tenantID, txns[i].ID)
		if err != nil {
			return nil, err
		}
		txns[i].Entries = entries
	}
	return txns, nil
}

func (r *repository) entriesFor(ctx context.Context, tenantID string, txID uuid.UUID) ([]LedgerEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT id, tenant_id, transaction_id, account_id, amount, business_date, created_at, created_by FROM ledger_entries WHERE tenant_id=$1 AND transaction_id=$2 ORDER BY id`, tenantID, txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) LeafBalance(ctx context.Context, tenantID string, accountID int64, asOf shared.BSDate) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE tenant_id=$1 AND account_id=$2`
	args := []any{tenantID, accountID}
	if !asOf.IsZero() {
		query += ` AND business_date <= $3`
		args = append(args, string(asOf))
	}
	var balance int64
	err := r.db.QueryRow(ctx, query, args...).Scan(&balance)
	return balance, err
}

func (r *repository) LeafBalances(ctx context.Context, tenantID string, accountIDs []int64, asOf shared.BSDate) (map[int64]int64, error) {
	if len(accountIDs) == 0 {
		return map[int64]int64{}, nil
	}
	query := `SELECT account_id, COALESCE(SUM(amount), 0) FROM ledger_entries WHERE tenant_id=$1 AND account_id = ANY($2)`
	args := []any{tenantID, accountIDs}
	if !asOf.IsZero() {
		query += ` AND business_date <= $3`
		args = append(args, string(asOf))
	}
	query += ` GROUP BY account_id`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	balances := make(map[int64]int64, len(accountIDs))
	for rows.Next() {
		var accountID, balance int64
		if err := rows.Scan(&accountID, &balance); err != nil {
			return nil, err
		}
		balances[accountID] = balance
	}
	return balances, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an existing storage transaction. The interest
// engine uses this to share its accrual transaction with the poster.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// GetOpenDayForUpdate locks the tenant's latest business day row so the
// day-book cannot transition underneath a posting.
func (r *txRepository) GetOpenDayForUpdate(ctx context.Context, tenantID string) (daybook.BusinessDay, bool, error) {
	var d daybook.BusinessDay
	var date string
	err := r.tx.QueryRow(ctx, `SELECT id, tenant_id, date, status, opening_cash, closing_cash, opened_by, opened_at, closed_by, closed_at, transactions_count
FROM business_days WHERE tenant_id=$1 ORDER BY date DESC LIMIT 1 FOR UPDATE`, tenantID).
		Scan(&d.ID, &d.TenantID, &date, &d.Status, &d.OpeningCash, &d.ClosingCash, &d.OpenedBy, &d.OpenedAt, &d.ClosedBy, &d.ClosedAt, &d.TransactionsCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return daybook.BusinessDay{}, false, nil
		}
		return daybook.BusinessDay{}, false, err
	}
	d.Date = shared.BSDate(date)
	return d, true, nil
}

func (r *txRepository) GetAccounts(ctx context.Context, tenantID string, ids []int64) (map[int64]coa.Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, tenant_id, code, name, type, parent_id, is_group, is_cash, nfrs_map, is_active, created_at, updated_at
FROM accounts WHERE tenant_id=$1 AND id = ANY($2)`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	accounts := make(map[int64]coa.Account, len(ids))
	for rows.Next() {
		var a coa.Account
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsGroup, &a.IsCash, &a.NFRSMap, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts[a.ID] = a
	}
	return accounts, rows.Err()
}

func (r *txRepository) InsertTransaction(ctx context.Context, txn Transaction) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO ledger_transactions (id, tenant_id, business_date, memo, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`, txn.ID, txn.TenantID, string(txn.BusinessDate), txn.Memo, txn.CreatedBy, txn.CreatedAt)
	return err
}

func (r *txRepository) InsertEntries(ctx context.Context, txn Transaction) ([]LedgerEntry, error) {
	inserted := make([]LedgerEntry, 0, len(txn.Entries))
	for _, entry := range txn.Entries {
		row := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries (tenant_id, transaction_id, account_id, amount, business_date, created_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, tenant_id, transaction_id, account_id, amount, business_date, created_at, created_by`,
			txn.TenantID, txn.ID, entry.AccountID, entry.Amount, string(txn.BusinessDate), txn.CreatedAt, txn.CreatedBy)
		e, err := scanEntry(row)
		if err != nil {
			return nil, err
		}
		inserted = append(inserted, e)
	}
	return inserted, nil
}

func (r *txRepository) IncrementDayTransactions(ctx context.Context, dayID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE business_days SET transactions_count = transactions_count + 1 WHERE id=$1`, dayID)
	return err
}

func scanEntry(row pgx.Row) (LedgerEntry, error) {
	var e LedgerEntry
	var date string
	err := row.Scan(&e.ID, &e.TenantID, &e.TransactionID, &e.AccountID, &e.Amount, &date, &e.CreatedAt, &e.CreatedBy)
	if err != nil {
		return LedgerEntry{}, err
	}
	e.BusinessDate = shared.BSDate(date)
	return e, nil
}
