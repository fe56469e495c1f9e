package coa

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sahakari/sahakari-cbs/internal/platform/db"
)

// Repository encapsulates DB operations for the account registry.
type Repository interface {
	List(ctx context.Context, tenantID string, accType AccountType) ([]Account, error)
	Get(ctx context.Context, tenantID string, id int64) (Account, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, tenantID string, id int64) (Account, error)
	SiblingCodes(ctx context.Context, tenantID string, parentID *int64, accType AccountType) ([]string, error)
	CodeExists(ctx context.Context, tenantID, code string) (bool, error)
	Insert(ctx context.Context, in CreateAccountInput, code string) (Account, error)
	UpdateNameAndNFRS(ctx context.Context, tenantID string, id int64, name, nfrsMap string) (Account, error)
	SetActive(ctx context.Context, tenantID string, id int64, active bool) (Account, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, tenant_id, code, name, type, parent_id, is_group, is_cash, nfrs_map, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, tenantID string, accType AccountType) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE tenant_id=$1 ORDER BY code`
	args := []any{tenantID}
	if accType != "" {
		query = `SELECT ` + accountColumns + ` FROM accounts WHERE tenant_id=$1 AND type=$2 ORDER BY code`
		args = append(args, accType)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) Get(ctx context.Context, tenantID string, id int64) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, tenantID string, id int64) (Account, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) SiblingCodes(ctx context.Context, tenantID string, parentID *int64, accType AccountType) ([]string, error) {
	var rows pgx.Rows
	var err error
	if parentID == nil {
		rows, err = r.tx.Query(ctx, `SELECT code FROM accounts WHERE tenant_id=$1 AND parent_id IS NULL AND type=$2 ORDER BY code`, tenantID, accType)
	} else {
		rows, err = r.tx.Query(ctx, `SELECT code FROM accounts WHERE tenant_id=$1 AND parent_id=$2 ORDER BY code`, tenantID, *parentID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (r *txRepository) CodeExists(ctx context.Context, tenantID, code string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE tenant_id=$1 AND code=$2)`, tenantID, code).Scan(&exists)
	return exists, err
}

func (r *txRepository) Insert(ctx context.Context, in CreateAccountInput, code string) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (tenant_id, code, name, type, parent_id, is_group, is_cash, nfrs_map, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,TRUE) RETURNING `+accountColumns, in.TenantID, code, in.Name, in.Type, in.ParentID, in.IsGroup, in.IsCash, in.NFRSMap)
	a, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) UpdateNameAndNFRS(ctx context.Context, tenantID string, id int64, name, nfrsMap string) (Account, error) {
	row := r.tx.QueryRow(ctx, `UPDATE accounts SET name=$3, nfrs_map=$4, updated_at=NOW() WHERE tenant_id=$1 AND id=$2 RETURNING `+accountColumns, tenantID, id, name, nfrsMap)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) SetActive(ctx context.Context, tenantID string, id int64, active bool) (Account, error) {
	row := r.tx.QueryRow(ctx, `UPDATE accounts SET is_active=$3, updated_at=NOW() WHERE tenant_id=$1 AND id=$2 RETURNING `+accountColumns, tenantID, id, active)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsGroup, &a.IsCash, &a.NFRSMap, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
