package daybook

import (
	"errors"
	"time"

	"github.com/sahakari/sahakari-cbs/internal/shared"
)

// DayStatus enumerates the business-day lifecycle stages.
type DayStatus string

const (
	// DayStatusNone is a projection-only status for tenants without any
	// business day yet. It is never stored.
	DayStatusNone          DayStatus = "NO_DAY_OPEN"
	DayStatusOpen          DayStatus = "OPEN"
	DayStatusEODInProgress DayStatus = "EOD_IN_PROGRESS"
	DayStatusClosed        DayStatus = "CLOSED"
)

// BusinessDay is the singleton-per-tenant accounting date record. Exactly
// one row per tenant may be OPEN at any instant.
type BusinessDay struct {
	ID                int64
	TenantID          string
	Date              shared.BSDate
	Status            DayStatus
	OpeningCash       int64
	ClosingCash       int64
	OpenedBy          string
	OpenedAt          time.Time
	ClosedBy          *string
	ClosedAt          *time.Time
	TransactionsCount int64
}

// AccountMovement summarises one account's activity for a business date.
type AccountMovement struct {
	AccountID int64
	Code      string
	Name      string
	IsCash    bool
	Amount    int64
	Entries   int64
}

// EODReport is the derived end-of-day summary. It carries no
// invariant-bearing state; regenerating it is idempotent.
type EODReport struct {
	TenantID          string
	Date              shared.BSDate
	OpeningCash       int64
	ClosingCash       int64
	TransactionsCount int64
	Movements         []AccountMovement
}

var (
	// ErrPreviousDayNotClosed indicates day begin while an earlier day is
	// still OPEN or mid-EOD.
	ErrPreviousDayNotClosed = errors.New("daybook: previous day not closed")
	// ErrDateNotAfterLast indicates a day begin date at or before the last
	// closed date.
	ErrDateNotAfterLast = errors.New("daybook: date must be later than last closed day")
	// ErrNoDayOpen indicates day end called outside OPEN.
	ErrNoDayOpen = errors.New("daybook: no day open")
	// ErrDayNotOpen gates postings: no OPEN day or a date mismatch.
	ErrDayNotOpen = errors.New("daybook: day not open for posting")
	// ErrDayNotFound indicates no business day exists for the date.
	ErrDayNotFound = errors.New("daybook: business day not found")
)

// DayBeginInput groups parameters for opening a business day.
type DayBeginInput struct {
	TenantID    string
	Date        shared.BSDate
	OpeningCash int64
	OpenedBy    string
}

// Validate ensures the day begin input is coherent.
func (in DayBeginInput) Validate() error {
	if in.TenantID == "" {
		return errors.New("daybook: tenant id required")
	}
	if _, err := shared.ParseBSDate(string(in.Date)); err != nil {
		return err
	}
	if in.OpeningCash < 0 {
		return errors.New("daybook: opening cash cannot be negative")
	}
	if in.OpenedBy == "" {
		return errors.New("daybook: opened-by actor required")
	}
	return nil
}
