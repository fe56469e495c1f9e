package interest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sahakari/sahakari-cbs/internal/ledger"
	"github.com/sahakari/sahakari-cbs/internal/shared"
)

// Store is the persistence surface the engine needs.
type Store interface {
	ListSavingsAccounts(ctx context.Context, tenantID string) ([]SavingsAccount, error)
	UpsertCalculated(ctx context.Context, a Accrual) (bool, error)
	ListCalculated(ctx context.Context, tenantID string, date shared.BSDate) ([]Accrual, error)
	ListByDate(ctx context.Context, tenantID string, date shared.BSDate) ([]Accrual, error)
	WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
	MarkPosted(ctx context.Context, tx pgx.Tx, accrualID int64, txnID uuid.UUID, postedAt time.Time) (bool, error)
}

// BalanceSource resolves leaf balances as of a business date.
type BalanceSource interface {
	LeafBalances(ctx context.Context, tenantID string, accountIDs []int64, asOf shared.BSDate) (map[int64]int64, error)
}

// LedgerPoster posts a transaction inside a caller-owned storage
// transaction and runs the post-commit hooks.
type LedgerPoster interface {
	PostWithTx(ctx context.Context, tx ledger.TxRepository, in ledger.PostingInput) (ledger.Transaction, error)
	Accept(ctx context.Context, txn ledger.Transaction)
}

// Config tunes the accrual arithmetic and batch behaviour.
type Config struct {
	// DayCountDivisor is the denominator of the daily rate, 365 by default.
	DayCountDivisor int
	// Concurrency bounds parallel posting transactions.
	Concurrency int
	// LockTTL bounds how long a crashed batch can hold the tenant lock.
	LockTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.DayCountDivisor <= 0 {
		c.DayCountDivisor = 365
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 5 * time.Minute
	}
	return c
}

// Engine computes and posts daily interest. The two phases are separately
// idempotent: Calculate may re-run and overwrite unposted accruals, and
// PostAll flips each accrual to posted in the same storage transaction as
// its ledger write, so a crash or a duplicate run can never double-post.
type Engine struct {
	store    Store
	balances BalanceSource
	poster   LedgerPoster
	redis    *redis.Client
	cfg      Config
	now      func() time.Time
}

// NewEngine constructs an Engine instance.
func NewEngine(store Store, balances BalanceSource, poster LedgerPoster, redisClient *redis.Client, cfg Config) *Engine {
	return &Engine{
		store:    store,
		balances: balances,
		poster:   poster,
		redis:    redisClient,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Calculate computes the day's interest for every configured savings
// account and stores the results as calculated accruals. Accounts with no
// deposit balance accrue nothing. Re-running replaces unposted rows and
// leaves posted rows alone.
func (e *Engine) Calculate(ctx context.Context, tenantID string, date shared.BSDate) (CalcResult, error) {
	if _, err := shared.ParseBSDate(string(date)); err != nil {
		return CalcResult{}, err
	}
	unlock, err := e.acquireBatchLock(ctx, tenantID, date)
	if err != nil {
		return CalcResult{}, err
	}
	defer unlock()

	savings, err := e.store.ListSavingsAccounts(ctx, tenantID)
	if err != nil {
		return CalcResult{}, err
	}
	if len(savings) == 0 {
		return CalcResult{}, ErrNoSavingsAccounts
	}
	ids := make([]int64, 0, len(savings))
	for _, s := range savings {
		ids = append(ids, s.AccountID)
	}
	balances, err := e.balances.LeafBalances(ctx, tenantID, ids, date)
	if err != nil {
		return CalcResult{}, err
	}

	result := CalcResult{Date: date, AccountsScanned: len(savings)}
	for _, s := range savings {
		// Savings leaves carry credit balances, negative under the signed
		// convention. A non-positive deposit accrues nothing.
		deposit := -balances[s.AccountID]
		if deposit <= 0 {
			continue
		}
		gross, tds := dailyInterest(deposit, s.RateBps, s.TDSBps, e.cfg.DayCountDivisor)
		if gross == 0 {
			continue
		}
		written, err := e.store.UpsertCalculated(ctx, Accrual{
			TenantID:     tenantID,
			AccountID:    s.AccountID,
			BusinessDate: date,
			Gross:        gross,
			TDS:          tds,
			Net:          gross - tds,
			RateBps:      s.RateBps,
			CreatedAt:    e.now(),
		})
		if err != nil {
			return CalcResult{}, err
		}
		if written {
			result.AccrualsWritten++
			result.TotalGross += gross
			result.TotalTDS += tds
			result.TotalNet += gross - tds
		}
	}
	return result, nil
}

// PostAll writes every calculated accrual for the date into the ledger.
// Each accrual gets its own storage transaction carrying both the status
// flip and the ledger entries; one account's failure is recorded and the
// batch moves on.
func (e *Engine) PostAll(ctx context.Context, tenantID string, date shared.BSDate, postedBy string) (PostResult, error) {
	if _, err := shared.ParseBSDate(string(date)); err != nil {
		return PostResult{}, err
	}
	unlock, err := e.acquireBatchLock(ctx, tenantID, date)
	if err != nil {
		return PostResult{}, err
	}
	defer unlock()

	accruals, err := e.store.ListCalculated(ctx, tenantID, date)
	if err != nil {
		return PostResult{}, err
	}
	savings, err := e.store.ListSavingsAccounts(ctx, tenantID)
	if err != nil {
		return PostResult{}, err
	}
	products := make(map[int64]SavingsAccount, len(savings))
	for _, s := range savings {
		products[s.AccountID] = s
	}

	result := PostResult{Date: date}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for _, accrual := range accruals {
		g.Go(func() error {
			txnID, posted, err := e.postOne(gctx, accrual, products, postedBy)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failures = append(result.Failures, PostFailure{AccountID: accrual.AccountID, Reason: err.Error()})
			case !posted:
				result.Skipped++
			default:
				result.Posted = append(result.Posted, PostedAccrual{AccountID: accrual.AccountID, TransactionID: txnID})
				result.TotalGross += accrual.Gross
				result.TotalTDS += accrual.TDS
				result.TotalNet += accrual.Net
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PostResult{}, err
	}
	sort.Slice(result.Posted, func(i, j int) bool {
		return result.Posted[i].AccountID < result.Posted[j].AccountID
	})
	return result, nil
}

// Accruals lists a date's accruals for reporting.
func (e *Engine) Accruals(ctx context.Context, tenantID string, date shared.BSDate) ([]Accrual, error) {
	return e.store.ListByDate(ctx, tenantID, date)
}

// postOne posts a single accrual. Returns posted=false with a nil error
// when the guarded status flip found the accrual already posted by another
// run.
func (e *Engine) postOne(ctx context.Context, accrual Accrual, products map[int64]SavingsAccount, postedBy string) (uuid.UUID, bool, error) {
	product, ok := products[accrual.AccountID]
	if !ok {
		return uuid.Nil, false, fmt.Errorf("interest: account %d has no savings product", accrual.AccountID)
	}
	entries := []ledger.EntryInput{
		{AccountID: product.InterestExpenseAccountID, Amount: accrual.Gross},
		{AccountID: accrual.AccountID, Amount: -accrual.Net},
	}
	if accrual.TDS != 0 {
		entries = append(entries, ledger.EntryInput{AccountID: product.TDSPayableAccountID, Amount: -accrual.TDS})
	}
	in := ledger.PostingInput{
		TenantID:     accrual.TenantID,
		BusinessDate: accrual.BusinessDate,
		Memo:         fmt.Sprintf("Interest accrual %s (%s)", accrual.BusinessDate, product.ProductName),
		CreatedBy:    postedBy,
		Entries:      entries,
	}

	var txn ledger.Transaction
	err := e.store.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		written, err := e.poster.PostWithTx(ctx, ledger.NewTxRepository(tx), in)
		if err != nil {
			return err
		}
		flipped, err := e.store.MarkPosted(ctx, tx, accrual.ID, written.ID, e.now())
		if err != nil {
			return err
		}
		if !flipped {
			// Another run posted this accrual first; abort so the ledger
			// write rolls back.
			return errAlreadyPosted
		}
		txn = written
		return nil
	})
	if err != nil {
		if err == errAlreadyPosted {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	e.poster.Accept(ctx, txn)
	return txn.ID, true, nil
}

var errAlreadyPosted = fmt.Errorf("interest: accrual already posted")

// acquireBatchLock takes the per-tenant redis lock so concurrent batch
// triggers (scheduler plus an operator click) cannot interleave.
func (e *Engine) acquireBatchLock(ctx context.Context, tenantID string, date shared.BSDate) (func(), error) {
	if e.redis == nil {
		return func() {}, nil
	}
	key := shared.InterestBatchLockKey(tenantID, date)
	ok, err := e.redis.SetNX(ctx, key, "1", e.cfg.LockTTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBatchRunning
	}
	return func() {
		_ = e.redis.Del(context.WithoutCancel(ctx), key).Err()
	}, nil
}

// dailyInterest computes one day's gross interest and withholding on a
// deposit, in minor units. Rates are basis points per annum; the daily
// fraction uses the configured day-count divisor. Rounding is half up at
// the paisa.
func dailyInterest(deposit, rateBps, tdsBps int64, divisor int) (gross, tds int64) {
	if deposit <= 0 || rateBps <= 0 {
		return 0, 0
	}
	d := decimal.NewFromInt(deposit)
	rate := decimal.NewFromInt(rateBps).Div(decimal.NewFromInt(10000))
	grossDec := d.Mul(rate).Div(decimal.NewFromInt(int64(divisor))).Round(0)
	gross = grossDec.IntPart()
	if tdsBps > 0 {
		tds = grossDec.Mul(decimal.NewFromInt(tdsBps)).Div(decimal.NewFromInt(10000)).Round(0).IntPart()
	}
	return gross, tds
}
