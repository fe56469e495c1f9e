package daybook

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sahakari/sahakari-cbs/internal/shared"
)

// AuditPort records day transitions in the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the business-day state machine:
// NO_DAY_OPEN -> OPEN -> EOD_IN_PROGRESS -> CLOSED -> (next) OPEN.
type Service struct {
	repo  Repository
	cache *ReportCache
	audit AuditPort
	now   func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository, cache *ReportCache, audit AuditPort) *Service {
	return &Service{repo: repo, cache: cache, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Status returns the current business-day projection. Tenants without any
// day yet see DayStatusNone.
func (s *Service) Status(ctx context.Context, tenantID string) (BusinessDay, error) {
	day, ok, err := s.repo.Latest(ctx, tenantID)
	if err != nil {
		return BusinessDay{}, err
	}
	if !ok {
		return BusinessDay{TenantID: tenantID, Status: DayStatusNone}, nil
	}
	return day, nil
}

// DayBegin opens a new business day. Allowed only when no day exists or the
// latest day is CLOSED, and the date is strictly later than the last one.
func (s *Service) DayBegin(ctx context.Context, in DayBeginInput) (BusinessDay, error) {
	if err := in.Validate(); err != nil {
		return BusinessDay{}, err
	}
	var day BusinessDay
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Serialises concurrent day transitions for the tenant, including
		// the first-ever day begin where no row exists to lock.
		if err := tx.AcquireTenantLock(ctx, in.TenantID); err != nil {
			return err
		}
		last, ok, err := tx.LatestForUpdate(ctx, in.TenantID)
		if err != nil {
			return err
		}
		if ok {
			if last.Status != DayStatusClosed {
				return fmt.Errorf("%w: %s is %s", ErrPreviousDayNotClosed, last.Date, last.Status)
			}
			if !in.Date.After(last.Date) {
				return fmt.Errorf("%w: last closed %s, requested %s", ErrDateNotAfterLast, last.Date, in.Date)
			}
		}
		inserted, err := tx.Insert(ctx, in, s.now())
		if err != nil {
			return err
		}
		day = inserted
		return nil
	})
	if err != nil {
		return BusinessDay{}, err
	}
	s.recordAudit(ctx, in.TenantID, in.OpenedBy, "daybook.begin", day)
	return day, nil
}

// DayEnd closes the OPEN day. It first fences the day to EOD_IN_PROGRESS so
// the transaction poster refuses new postings, then snapshots closing cash
// and the transaction count, builds the EOD report, and marks the day
// CLOSED. A day found already in EOD_IN_PROGRESS is an interrupted close
// (the fence committed but a report build or close failed) and is resumed,
// so a transient failure never wedges the tenant. When two calls race past
// the fence, the CloseDay compare-and-set lets only one finish.
func (s *Service) DayEnd(ctx context.Context, tenantID, closedBy string) (EODReport, error) {
	if closedBy == "" {
		return EODReport{}, fmt.Errorf("daybook: closed-by actor required")
	}
	var day BusinessDay
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, ok, err := tx.LatestForUpdate(ctx, tenantID)
		if err != nil {
			return err
		}
		switch {
		case !ok || (current.Status != DayStatusOpen && current.Status != DayStatusEODInProgress):
			return fmt.Errorf("%w: current status %s", ErrNoDayOpen, statusOrNone(current, ok))
		case current.Status == DayStatusOpen:
			moved, err := tx.TransitionStatus(ctx, current.ID, DayStatusOpen, DayStatusEODInProgress)
			if err != nil {
				return err
			}
			if !moved {
				return fmt.Errorf("%w: day already closing", ErrNoDayOpen)
			}
		}
		day = current
		day.Status = DayStatusEODInProgress
		return nil
	})
	if err != nil {
		return EODReport{}, err
	}

	// The fence is committed; postings now fail with DayNotOpen. The
	// snapshot below therefore reads a quiesced ledger.
	report, err := s.buildReport(ctx, day)
	if err != nil {
		return EODReport{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		closed, err := tx.CloseDay(ctx, day.ID, report.ClosingCash, closedBy, s.now())
		if err != nil {
			return err
		}
		if !closed {
			return fmt.Errorf("%w: close lost the fencing race", ErrNoDayOpen)
		}
		return nil
	})
	if err != nil {
		return EODReport{}, err
	}
	if s.cache != nil {
		_ = s.cache.Store(ctx, report)
	}
	s.recordAudit(ctx, tenantID, closedBy, "daybook.end", day)
	return report, nil
}

// Report regenerates the EOD summary for a business date. Regeneration is
// read-only and idempotent; closed days are served from cache when present.
func (s *Service) Report(ctx context.Context, tenantID string, date shared.BSDate) (EODReport, error) {
	if _, err := shared.ParseBSDate(string(date)); err != nil {
		return EODReport{}, err
	}
	if s.cache != nil {
		if report, ok := s.cache.Load(ctx, tenantID, date); ok {
			return report, nil
		}
	}
	day, ok, err := s.repo.ByDate(ctx, tenantID, date)
	if err != nil {
		return EODReport{}, err
	}
	if !ok {
		return EODReport{}, fmt.Errorf("%w: %s", ErrDayNotFound, date)
	}
	report, err := s.buildReport(ctx, day)
	if err != nil {
		return EODReport{}, err
	}
	if s.cache != nil && day.Status == DayStatusClosed {
		_ = s.cache.Store(ctx, report)
	}
	return report, nil
}

func (s *Service) buildReport(ctx context.Context, day BusinessDay) (EODReport, error) {
	movements, err := s.repo.Movements(ctx, day.TenantID, day.Date)
	if err != nil {
		return EODReport{}, err
	}
	count, err := s.repo.TransactionsCount(ctx, day.ID)
	if err != nil {
		return EODReport{}, err
	}
	var cashDelta int64
	for _, m := range movements {
		if m.IsCash {
			cashDelta += m.Amount
		}
	}
	return EODReport{
		TenantID:          day.TenantID,
		Date:              day.Date,
		OpeningCash:       day.OpeningCash,
		ClosingCash:       day.OpeningCash + cashDelta,
		TransactionsCount: count,
		Movements:         movements,
	}, nil
}

func (s *Service) recordAudit(ctx context.Context, tenantID, actorID, action string, day BusinessDay) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		TenantID: tenantID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "business_day",
		EntityID: strconv.FormatInt(day.ID, 10),
		Meta: map[string]any{
			"date":   day.Date.String(),
			"status": string(day.Status),
		},
		At: s.now(),
	})
}

func statusOrNone(day BusinessDay, ok bool) DayStatus {
	if !ok {
		return DayStatusNone
	}
	return day.Status
}
