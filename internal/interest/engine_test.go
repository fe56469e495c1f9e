package interest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sahakari/sahakari-cbs/internal/ledger"
	"github.com/sahakari/sahakari-cbs/internal/shared"
)

type memoryInterestStore struct {
	mu       sync.Mutex
	savings  []SavingsAccount
	accruals map[int64]*Accrual
	nextID   int64
}

func newMemoryInterestStore() *memoryInterestStore {
	return &memoryInterestStore{accruals: make(map[int64]*Accrual)}
}

func (s *memoryInterestStore) ListSavingsAccounts(ctx context.Context, tenantID string) ([]SavingsAccount, error) {
	return s.savings, nil
}

func (s *memoryInterestStore) UpsertCalculated(ctx context.Context, a Accrual) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accruals {
		if existing.AccountID == a.AccountID && existing.BusinessDate == a.BusinessDate {
			if existing.Status == StatusPosted {
				return false, nil
			}
			existing.Gross, existing.TDS, existing.Net, existing.RateBps = a.Gross, a.TDS, a.Net, a.RateBps
			return true, nil
		}
	}
	s.nextID++
	a.ID = s.nextID
	a.Status = StatusCalculated
	s.accruals[a.ID] = &a
	return true, nil
}

func (s *memoryInterestStore) ListCalculated(ctx context.Context, tenantID string, date shared.BSDate) ([]Accrual, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Accrual
	for _, a := range s.accruals {
		if a.BusinessDate == date && a.Status == StatusCalculated {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memoryInterestStore) ListByDate(ctx context.Context, tenantID string, date shared.BSDate) ([]Accrual, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Accrual
	for _, a := range s.accruals {
		if a.BusinessDate == date {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memoryInterestStore) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return fn(ctx, nil)
}

func (s *memoryInterestStore) MarkPosted(ctx context.Context, tx pgx.Tx, accrualID int64, txnID uuid.UUID, postedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accruals[accrualID]
	if !ok || a.Status != StatusCalculated {
		return false, nil
	}
	a.Status = StatusPosted
	a.TransactionID = &txnID
	a.PostedAt = &postedAt
	return true, nil
}

type stubBalances struct {
	balances map[int64]int64
}

func (s *stubBalances) LeafBalances(ctx context.Context, tenantID string, accountIDs []int64, asOf shared.BSDate) (map[int64]int64, error) {
	return s.balances, nil
}

type stubPoster struct {
	mu       sync.Mutex
	posted   []ledger.PostingInput
	accepted int
	failFor  map[int64]error
}

func (p *stubPoster) PostWithTx(ctx context.Context, tx ledger.TxRepository, in ledger.PostingInput) (ledger.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor != nil {
		// The member savings leaf is always the second entry.
		if err, ok := p.failFor[in.Entries[1].AccountID]; ok {
			return ledger.Transaction{}, err
		}
	}
	p.posted = append(p.posted, in)
	return ledger.Transaction{ID: uuid.New(), TenantID: in.TenantID, BusinessDate: in.BusinessDate}, nil
}

func (p *stubPoster) Accept(ctx context.Context, txn ledger.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accepted++
}

func regularSavings() SavingsAccount {
	return SavingsAccount{
		AccountID:                12,
		ProductID:                1,
		ProductName:              "Regular Savings",
		RateBps:                  730,
		TDSBps:                   600,
		InterestExpenseAccountID: 50,
		TDSPayableAccountID:      21,
	}
}

func TestCalculateWritesTaxAwareAccruals(t *testing.T) {
	store := newMemoryInterestStore()
	store.savings = []SavingsAccount{regularSavings()}
	// Credit balance of Rs 36,500 (3,650,000 paisa).
	balances := &stubBalances{balances: map[int64]int64{12: -3650000}}
	engine := NewEngine(store, balances, &stubPoster{}, nil, Config{})

	result, err := engine.Calculate(context.Background(), "t1", "2082-04-01")
	require.NoError(t, err)
	require.Equal(t, 1, result.AccrualsWritten)
	// 3650000 * 7.30% / 365 = 730 paisa gross, 6% TDS = 44 paisa.
	require.Equal(t, int64(730), result.TotalGross)
	require.Equal(t, int64(44), result.TotalTDS)
	require.Equal(t, int64(686), result.TotalNet)
}

func TestCalculateSkipsNonPositiveDeposits(t *testing.T) {
	store := newMemoryInterestStore()
	overdrawn := regularSavings()
	overdrawn.AccountID = 13
	empty := regularSavings()
	empty.AccountID = 14
	store.savings = []SavingsAccount{regularSavings(), overdrawn, empty}
	balances := &stubBalances{balances: map[int64]int64{12: -3650000, 13: 5000, 14: 0}}
	engine := NewEngine(store, balances, &stubPoster{}, nil, Config{})

	result, err := engine.Calculate(context.Background(), "t1", "2082-04-01")
	require.NoError(t, err)
	require.Equal(t, 3, result.AccountsScanned)
	require.Equal(t, 1, result.AccrualsWritten)
}

func TestCalculateRerunOverwritesUnposted(t *testing.T) {
	store := newMemoryInterestStore()
	store.savings = []SavingsAccount{regularSavings()}
	balances := &stubBalances{balances: map[int64]int64{12: -3650000}}
	engine := NewEngine(store, balances, &stubPoster{}, nil, Config{})

	_, err := engine.Calculate(context.Background(), "t1", "2082-04-01")
	require.NoError(t, err)

	balances.balances[12] = -7300000
	result, err := engine.Calculate(context.Background(), "t1", "2082-04-01")
	require.NoError(t, err)
	require.Equal(t, 1, result.AccrualsWritten)
	require.Equal(t, int64(1460), result.TotalGross)

	accruals, err := store.ListCalculated(context.Background(), "t1", "2082-04-01")
	require.NoError(t, err)
	require.Len(t, accruals, 1)
	require.Equal(t, int64(1460), accruals[0].Gross)
}

func TestPostAllWritesBalancedEntries(t *testing.T) {
	store := newMemoryInterestStore()
	store.savings = []SavingsAccount{regularSavings()}
	balances := &stubBalances{balances: map[int64]int64{12: -3650000}}
	poster := &stubPoster{}
	engine := NewEngine(store, balances, poster, nil, Config{})

	_, err := engine.Calculate(context.Background(), "t1", "2082-04-01")
	require.NoError(t, err)

	result, err := engine.PostAll(context.Background(), "t1", "2082-04-01", "system")
	require.NoError(t, err)
	require.Len(t, result.Posted, 1)
	require.Equal(t, int64(12), result.Posted[0].AccountID)
	require.NotEqual(t, uuid.Nil, result.Posted[0].TransactionID)
	require.Empty(t, result.Failures)
	require.Equal(t, 1, poster.accepted)

	require.Len(t, poster.posted, 1)
	in := poster.posted[0]
	require.Len(t, in.Entries, 3)
	var sum int64
	for _, e := range in.Entries {
		sum += e.Amount
	}
	require.Zero(t, sum)
	require.Equal(t, int64(50), in.Entries[0].AccountID)
	require.Equal(t, int64(730), in.Entries[0].Amount)
	require.Equal(t, int64(12), in.Entries[1].AccountID)
	require.Equal(t, int64(-686), in.Entries[1].Amount)
	require.Equal(t, int64(21), in.Entries[2].AccountID)
	require.Equal(t, int64(-44), in.Entries[2].Amount)
}

func TestPostAllSecondRunPostsNothing(t *testing.T) {
	store := newMemoryInterestStore()
	store.savings = []SavingsAccount{regularSavings()}
	balances := &stubBalances{balances: map[int64]int64{12: -3650000}}
	poster := &stubPoster{}
	engine := NewEngine(store, balances, poster, nil, Config{})

	_, err := engine.Calculate(context.Background(), "t1", "2082-04-01")
	require.NoError(t, err)

	first, err := engine.PostAll(context.Background(), "t1", "2082-04-01", "system")
	require.NoError(t, err)
	require.Len(t, first.Posted, 1)

	second, err := engine.PostAll(context.Background(), "t1", "2082-04-01", "system")
	require.NoError(t, err)
	require.Empty(t, second.Posted)
	require.Zero(t, second.TotalGross)
	require.Len(t, poster.posted, 1)
}

func TestPostAllIsolatesPerAccountFailures(t *testing.T) {
	store := newMemoryInterestStore()
	second := regularSavings()
	second.AccountID = 13
	store.savings = []SavingsAccount{regularSavings(), second}
	balances := &stubBalances{balances: map[int64]int64{12: -3650000, 13: -3650000}}
	poster := &stubPoster{failFor: map[int64]error{13: errors.New("account frozen")}}
	engine := NewEngine(store, balances, poster, nil, Config{})

	_, err := engine.Calculate(context.Background(), "t1", "2082-04-01")
	require.NoError(t, err)

	result, err := engine.PostAll(context.Background(), "t1", "2082-04-01", "system")
	require.NoError(t, err)
	require.Len(t, result.Posted, 1)
	require.Equal(t, int64(12), result.Posted[0].AccountID)
	require.Len(t, result.Failures, 1)
	require.Equal(t, int64(13), result.Failures[0].AccountID)
	require.Contains(t, result.Failures[0].Reason, "account frozen")

	// The failed accrual stays calculated and is retried next run.
	remaining, err := store.ListCalculated(context.Background(), "t1", "2082-04-01")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, int64(13), remaining[0].AccountID)
}

func TestBatchLockRejectsConcurrentRun(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newMemoryInterestStore()
	store.savings = []SavingsAccount{regularSavings()}
	balances := &stubBalances{balances: map[int64]int64{12: -3650000}}
	engine := NewEngine(store, balances, &stubPoster{}, client, Config{})

	require.NoError(t, client.Set(context.Background(), shared.InterestBatchLockKey("t1", "2082-04-01"), "1", time.Minute).Err())

	_, err := engine.Calculate(context.Background(), "t1", "2082-04-01")
	require.ErrorIs(t, err, ErrBatchRunning)

	mr.FlushAll()
	_, err = engine.Calculate(context.Background(), "t1", "2082-04-01")
	require.NoError(t, err)
}

func TestCalculateWithoutSavingsAccounts(t *testing.T) {
	engine := NewEngine(newMemoryInterestStore(), &stubBalances{}, &stubPoster{}, nil, Config{})

	_, err := engine.Calculate(context.Background(), "t1", "2082-04-01")
	require.ErrorIs(t, err, ErrNoSavingsAccounts)
}

func TestDailyInterestRounding(t *testing.T) {
	// 1,000,000 paisa at 5.00% over 365 days = 136.98..., rounds to 137.
	gross, tds := dailyInterest(1000000, 500, 1500, 365)
	require.Equal(t, int64(137), gross)
	// 15% of 137 = 20.55, rounds to 21.
	require.Equal(t, int64(21), tds)

	gross, tds = dailyInterest(0, 500, 1500, 365)
	require.Zero(t, gross)
	require.Zero(t, tds)
}
