package ledger

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/sahakari/sahakari-cbs/internal/coa"
	"github.com/sahakari/sahakari-cbs/internal/shared"
)

// AccountSource lists a tenant's chart so the balance service can resolve
// group subtrees.
type AccountSource interface {
	ListAccounts(ctx context.Context, tenantID string, accType coa.AccountType) ([]coa.Account, error)
	GetAccount(ctx context.Context, tenantID string, id int64) (coa.Account, error)
}

// Balance is the computed balance of one account as of a business date.
type Balance struct {
	AccountID int64
	Code      string
	Name      string
	IsGroup   bool
	AsOf      shared.BSDate
	Amount    int64
}

// BalanceService answers balance queries. Leaf balances are a straight sum
// over the account's entries; group balances roll up every descendant leaf
// in the subtree. Concurrent identical queries collapse through
// singleflight so a hot dashboard cannot stampede the database.
type BalanceService struct {
	repo     Repository
	accounts AccountSource
	cache    *BalanceCache
	group    singleflight.Group
}

// NewBalanceService constructs a BalanceService instance.
func NewBalanceService(repo Repository, accounts AccountSource, cache *BalanceCache) *BalanceService {
	return &BalanceService{repo: repo, accounts: accounts, cache: cache}
}

// AccountBalance computes the balance of a leaf or group account. A zero
// asOf means "all entries to date". Accounts with no entries report zero.
func (s *BalanceService) AccountBalance(ctx context.Context, tenantID string, accountID int64, asOf shared.BSDate) (Balance, error) {
	account, err := s.accounts.GetAccount(ctx, tenantID, accountID)
	if err != nil {
		return Balance{}, err
	}

	var key string
	if s.cache != nil {
		key = s.cache.BuildKey(ctx, tenantID, accountID, string(asOf))
		if amount, ok := s.cache.Load(ctx, key); ok {
			return s.balanceOf(account, asOf, amount), nil
		}
	}

	flightKey := fmt.Sprintf("%s:%d:%s", tenantID, accountID, asOf)
	v, err, _ := s.group.Do(flightKey, func() (any, error) {
		if account.IsGroup {
			return s.groupBalance(ctx, tenantID, account, asOf)
		}
		return s.repo.LeafBalance(ctx, tenantID, accountID, asOf)
	})
	if err != nil {
		return Balance{}, err
	}
	amount := v.(int64)
	if s.cache != nil && key != "" {
		_ = s.cache.Store(ctx, key, amount)
	}
	return s.balanceOf(account, asOf, amount), nil
}

// groupBalance sums every descendant leaf of the group in one query.
func (s *BalanceService) groupBalance(ctx context.Context, tenantID string, account coa.Account, asOf shared.BSDate) (int64, error) {
	all, err := s.accounts.ListAccounts(ctx, tenantID, "")
	if err != nil {
		return 0, err
	}
	leaves := descendantLeaves(all, account.ID)
	if len(leaves) == 0 {
		return 0, nil
	}
	balances, err := s.repo.LeafBalances(ctx, tenantID, leaves, asOf)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, b := range balances {
		total += b
	}
	return total, nil
}

func (s *BalanceService) balanceOf(account coa.Account, asOf shared.BSDate, amount int64) Balance {
	return Balance{
		AccountID: account.ID,
		Code:      account.Code,
		Name:      account.Name,
		IsGroup:   account.IsGroup,
		AsOf:      asOf,
		Amount:    amount,
	}
}

// descendantLeaves walks the parent links to collect all leaf accounts
// underneath rootID.
func descendantLeaves(accounts []coa.Account, rootID int64) []int64 {
	children := make(map[int64][]coa.Account, len(accounts))
	for _, a := range accounts {
		if a.ParentID != nil {
			children[*a.ParentID] = append(children[*a.ParentID], a)
		}
	}
	var leaves []int64
	var walk func(id int64)
	walk = func(id int64) {
		for _, child := range children[id] {
			if child.IsGroup {
				walk(child.ID)
			} else {
				leaves = append(leaves, child.ID)
			}
		}
	}
	walk(rootID)
	return leaves
}
