package coa

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Account models a chart of accounts node. Group accounts are categories;
// only leaf (ledger) accounts accept postings.
type Account struct {
	ID        int64
	TenantID  string
	Code      string
	Name      string
	Type      AccountType
	ParentID  *int64
	IsGroup   bool
	IsCash    bool
	NFRSMap   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TreeNode is an account with its attached children, ordered by code.
type TreeNode struct {
	Account
	Children []*TreeNode
}

var (
	// ErrInvalidParent indicates a missing parent, a leaf parent, or a
	// parent outside the tenant.
	ErrInvalidParent = errors.New("coa: invalid parent account")
	// ErrTypeMismatch indicates a child/parent account type conflict.
	ErrTypeMismatch = errors.New("coa: account type mismatch with parent")
	// ErrDuplicateCode indicates the code already exists for the tenant.
	ErrDuplicateCode = errors.New("coa: duplicate account code")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("coa: account not found")
	// ErrUnknownType indicates an unsupported account type.
	ErrUnknownType = errors.New("coa: unknown account type")
)

// CreateAccountInput groups fields for a new account.
type CreateAccountInput struct {
	TenantID string
	Name     string
	Type     AccountType
	ParentID *int64
	Code     string
	IsGroup  bool
	IsCash   bool
	NFRSMap  string
	ActorID  string
}

// Validate ensures the create input is coherent. Parent/type consistency
// is checked transactionally by the service.
func (in CreateAccountInput) Validate() error {
	if in.TenantID == "" {
		return errors.New("coa: tenant id required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("coa: name required")
	}
	if !isKnownType(in.Type) {
		return fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}
	if in.Code != "" && strings.TrimSpace(in.Code) == "" {
		return errors.New("coa: code cannot be blank")
	}
	return nil
}

// UpdateAccountInput carries the mutable account fields. Code and type are
// immutable after creation.
type UpdateAccountInput struct {
	ID      int64
	Name    string
	NFRSMap string
	ActorID string
}

func isKnownType(t AccountType) bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	default:
		return false
	}
}
