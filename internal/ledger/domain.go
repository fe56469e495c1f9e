package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sahakari/sahakari-cbs/internal/shared"
)

// LedgerEntry is one immutable signed movement on a leaf account. Amounts
// are minor currency units (paisa); debits are positive, credits negative
// from the account's perspective is not assumed -- the only invariant is
// that a transaction's entries sum to zero. Entries are never updated or
// deleted, only reversed by an offsetting transaction.
type LedgerEntry struct {
	ID            int64
	TenantID      string
	TransactionID uuid.UUID
	AccountID     int64
	Amount        int64
	BusinessDate  shared.BSDate
	CreatedAt     time.Time
	CreatedBy     string
}

// Transaction is a balanced set of ledger entries written atomically.
type Transaction struct {
	ID           uuid.UUID
	TenantID     string
	BusinessDate shared.BSDate
	Memo         string
	CreatedBy    string
	CreatedAt    time.Time
	Entries      []LedgerEntry
}

// EntryInput describes one line of a posting request.
type EntryInput struct {
	AccountID int64
	Amount    int64
}

// PostingInput groups fields required to post a transaction.
type PostingInput struct {
	TenantID     string
	BusinessDate shared.BSDate
	Memo         string
	CreatedBy    string
	Entries      []EntryInput
}

var (
	// ErrUnbalanced indicates the entry amounts do not sum to zero.
	ErrUnbalanced = errors.New("ledger: unbalanced transaction")
	// ErrTooFewEntries indicates fewer than two entries.
	ErrTooFewEntries = errors.New("ledger: transaction requires at least two entries")
	// ErrZeroAmount indicates an entry with no movement.
	ErrZeroAmount = errors.New("ledger: entry amount cannot be zero")
	// ErrGroupAccountPosting indicates an entry against a group account.
	ErrGroupAccountPosting = errors.New("ledger: cannot post to group account")
	// ErrUnknownAccount indicates an entry against a missing account.
	ErrUnknownAccount = errors.New("ledger: unknown account")
	// ErrInactiveAccount indicates an entry against a deactivated account.
	ErrInactiveAccount = errors.New("ledger: account is inactive")
	// ErrTransactionNotFound indicates a missing transaction.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
)

// Validate checks the shape of the posting before any storage work: at
// least two entries, no zero amounts, and an exact integer zero sum.
func (in PostingInput) Validate() error {
	if in.TenantID == "" {
		return errors.New("ledger: tenant id required")
	}
	if _, err := shared.ParseBSDate(string(in.BusinessDate)); err != nil {
		return err
	}
	if len(in.Entries) < 2 {
		return fmt.Errorf("%w: got %d", ErrTooFewEntries, len(in.Entries))
	}
	var sum int64
	for idx, entry := range in.Entries {
		if entry.AccountID == 0 {
			return fmt.Errorf("ledger: entry %d missing account", idx)
		}
		if entry.Amount == 0 {
			return fmt.Errorf("%w: entry %d", ErrZeroAmount, idx)
		}
		sum += entry.Amount
	}
	if sum != 0 {
		return fmt.Errorf("%w: sum is %d", ErrUnbalanced, sum)
	}
	return nil
}
