package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sahakari/sahakari-cbs/internal/daybook"
	"github.com/sahakari/sahakari-cbs/internal/shared"
)

// AuditPort records postings in the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts posting outcomes.
type MetricsPort interface {
	PostingAccepted()
	PostingRejected(kind string)
}

// Poster accepts balanced entry sets and writes them atomically, gated by
// the tenant's OPEN business day.
type Poster struct {
	repo    Repository
	cache   *BalanceCache
	audit   AuditPort
	metrics MetricsPort
	now     func() time.Time
}

// NewPoster constructs a Poster instance.
func NewPoster(repo Repository, cache *BalanceCache, audit AuditPort, metrics MetricsPort) *Poster {
	return &Poster{repo: repo, cache: cache, audit: audit, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (p *Poster) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// Post validates and persists one transaction. All entries, plus the
// business day's transaction counter, commit in a single storage
// transaction; the OPEN-day check rides inside that same transaction so a
// day-end fence can never interleave between check and write.
func (p *Poster) Post(ctx context.Context, in PostingInput) (Transaction, error) {
	var txn Transaction
	err := p.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		posted, err := p.PostWithTx(ctx, tx, in)
		if err != nil {
			return err
		}
		txn = posted
		return nil
	})
	if err != nil {
		p.reject(err)
		return Transaction{}, err
	}
	p.accept(ctx, txn)
	return txn, nil
}

// PostWithTx runs the full posting protocol inside a caller-owned storage
// transaction. The interest engine relies on this to flip an accrual and
// write its ledger entries in one atomic unit.
func (p *Poster) PostWithTx(ctx context.Context, tx TxRepository, in PostingInput) (Transaction, error) {
	if err := in.Validate(); err != nil {
		return Transaction{}, err
	}
	day, ok, err := tx.GetOpenDayForUpdate(ctx, in.TenantID)
	if err != nil {
		return Transaction{}, err
	}
	if !ok || day.Status != daybook.DayStatusOpen {
		return Transaction{}, fmt.Errorf("%w: status %s", daybook.ErrDayNotOpen, dayStatus(day, ok))
	}
	if day.Date != in.BusinessDate {
		return Transaction{}, fmt.Errorf("%w: open day is %s, posting dated %s", daybook.ErrDayNotOpen, day.Date, in.BusinessDate)
	}

	ids := make([]int64, 0, len(in.Entries))
	for _, entry := range in.Entries {
		ids = append(ids, entry.AccountID)
	}
	accounts, err := tx.GetAccounts(ctx, in.TenantID, ids)
	if err != nil {
		return Transaction{}, err
	}
	for _, entry := range in.Entries {
		account, ok := accounts[entry.AccountID]
		if !ok {
			return Transaction{}, fmt.Errorf("%w: id %d", ErrUnknownAccount, entry.AccountID)
		}
		if account.IsGroup {
			return Transaction{}, fmt.Errorf("%w: %s (%s)", ErrGroupAccountPosting, account.Code, account.Name)
		}
		if !account.IsActive {
			return Transaction{}, fmt.Errorf("%w: %s (%s)", ErrInactiveAccount, account.Code, account.Name)
		}
	}

	txn := Transaction{
		ID:           uuid.New(),
		TenantID:     in.TenantID,
		BusinessDate: in.BusinessDate,
		Memo:         in.Memo,
		CreatedBy:    in.CreatedBy,
		CreatedAt:    p.now(),
	}
	for _, entry := range in.Entries {
		txn.Entries = append(txn.Entries, LedgerEntry{
			TenantID:      in.TenantID,
			TransactionID: txn.ID,
			AccountID:     entry.AccountID,
			Amount:        entry.Amount,
			BusinessDate:  in.BusinessDate,
			CreatedAt:     txn.CreatedAt,
			CreatedBy:     in.CreatedBy,
		})
	}
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return Transaction{}, err
	}
	inserted, err := tx.InsertEntries(ctx, txn)
	if err != nil {
		return Transaction{}, err
	}
	txn.Entries = inserted
	if err := tx.IncrementDayTransactions(ctx, day.ID); err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

// GetTransaction returns a stored transaction with its entries.
func (p *Poster) GetTransaction(ctx context.Context, tenantID string, id uuid.UUID) (Transaction, error) {
	return p.repo.GetTransaction(ctx, tenantID, id)
}

// ListByDate returns the transactions posted on a business date.
func (p *Poster) ListByDate(ctx context.Context, tenantID string, date shared.BSDate) ([]Transaction, error) {
	return p.repo.ListByDate(ctx, tenantID, date)
}

// Accept is called after a commit from PostWithTx made outside Post.
func (p *Poster) Accept(ctx context.Context, txn Transaction) {
	p.accept(ctx, txn)
}

func (p *Poster) accept(ctx context.Context, txn Transaction) {
	if p.cache != nil {
		_ = p.cache.Bump(ctx, txn.TenantID)
	}
	if p.metrics != nil {
		p.metrics.PostingAccepted()
	}
	if p.audit != nil {
		_ = p.audit.Record(ctx, shared.AuditLog{
			TenantID: txn.TenantID,
			ActorID:  txn.CreatedBy,
			Action:   "ledger.post",
			Entity:   "transaction",
			EntityID: txn.ID.String(),
			Meta: map[string]any{
				"business_date": txn.BusinessDate.String(),
				"entries":       len(txn.Entries),
			},
			At: p.now(),
		})
	}
}

func (p *Poster) reject(err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.PostingRejected(FailureKind(err))
}

func dayStatus(day daybook.BusinessDay, ok bool) daybook.DayStatus {
	if !ok {
		return daybook.DayStatusNone
	}
	return day.Status
}
