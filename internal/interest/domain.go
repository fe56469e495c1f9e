package interest

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sahakari/sahakari-cbs/internal/shared"
)

// AccrualStatus is the lifecycle of one computed accrual row.
type AccrualStatus string

const (
	// StatusCalculated means the accrual is computed but not yet in the ledger.
	StatusCalculated AccrualStatus = "calculated"
	// StatusPosted means the accrual's ledger transaction has committed.
	StatusPosted AccrualStatus = "posted"
)

// Accrual is one account's interest for one business date. Amounts are
// minor units; Gross = TDS + Net always holds.
type Accrual struct {
	ID            int64
	TenantID      string
	AccountID     int64
	BusinessDate  shared.BSDate
	Gross         int64
	TDS           int64
	Net           int64
	RateBps       int64
	Status        AccrualStatus
	TransactionID *uuid.UUID
	CreatedAt     time.Time
	PostedAt      *time.Time
}

// SavingsAccount ties a member's ledger leaf to its interest product. The
// product decides the rate, the withholding rate, and the expense and
// payable accounts the posting hits.
type SavingsAccount struct {
	AccountID                int64
	ProductID                int64
	ProductName              string
	RateBps                  int64
	TDSBps                   int64
	InterestExpenseAccountID int64
	TDSPayableAccountID      int64
}

// PostFailure records one account the posting pass could not complete.
type PostFailure struct {
	AccountID int64
	Reason    string
}

// CalcResult summarizes one calculation pass.
type CalcResult struct {
	Date            shared.BSDate
	AccountsScanned int
	AccrualsWritten int
	TotalGross      int64
	TotalTDS        int64
	TotalNet        int64
}

// PostedAccrual identifies one accrual written to the ledger and the
// transaction that carries it.
type PostedAccrual struct {
	AccountID     int64
	TransactionID uuid.UUID
}

// PostResult summarizes one posting pass. Posted lists every accrual this
// run wrote, so an idempotent re-run visibly posts nothing. Failures never
// abort the batch; each failed account stays calculated and is retried on
// the next run.
type PostResult struct {
	Date       shared.BSDate
	Posted     []PostedAccrual
	Skipped    int
	TotalGross int64
	TotalTDS   int64
	TotalNet   int64
	Failures   []PostFailure
}

var (
	// ErrBatchRunning indicates another calculate or post pass holds the batch lock.
	ErrBatchRunning = errors.New("interest: batch already running for tenant")
	// ErrNoSavingsAccounts indicates the tenant has no interest-bearing accounts configured.
	ErrNoSavingsAccounts = errors.New("interest: no savings accounts configured")
)
