package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sahakari/sahakari-cbs/internal/coa"
)

type stubAccountSource struct {
	accounts map[int64]coa.Account
}

func (s *stubAccountSource) ListAccounts(ctx context.Context, tenantID string, accType coa.AccountType) ([]coa.Account, error) {
	var out []coa.Account
	for _, a := range s.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (s *stubAccountSource) GetAccount(ctx context.Context, tenantID string, id int64) (coa.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return coa.Account{}, coa.ErrAccountNotFound
	}
	return a, nil
}

func savingsChart() *stubAccountSource {
	parent := int64(10)
	sub := int64(11)
	return &stubAccountSource{accounts: map[int64]coa.Account{
		10: {ID: 10, TenantID: "t1", Code: "2100", Name: "Member Savings", Type: coa.AccountTypeLiability, IsGroup: true},
		11: {ID: 11, TenantID: "t1", Code: "2110", Name: "Regular Savings", Type: coa.AccountTypeLiability, ParentID: &parent, IsGroup: true},
		12: {ID: 12, TenantID: "t1", Code: "2111", Name: "Member A", Type: coa.AccountTypeLiability, ParentID: &sub},
		13: {ID: 13, TenantID: "t1", Code: "2112", Name: "Member B", Type: coa.AccountTypeLiability, ParentID: &sub},
		14: {ID: 14, TenantID: "t1", Code: "2120", Name: "Fixed Deposits", Type: coa.AccountTypeLiability, ParentID: &parent},
	}}
}

func postEntries(t *testing.T, repo *memoryLedgerRepo, entries []EntryInput) {
	t.Helper()
	repo.addAccount(1, "1001", false, true)
	for _, e := range entries {
		repo.addAccount(e.AccountID, "x", false, true)
	}
	poster := NewPoster(repo, nil, nil, nil)
	balanced := append([]EntryInput{}, entries...)
	var sum int64
	for _, e := range entries {
		sum += e.Amount
	}
	balanced = append(balanced, EntryInput{AccountID: 1, Amount: -sum})
	_, err := poster.Post(context.Background(), PostingInput{
		TenantID:     "t1",
		BusinessDate: "2082-04-01",
		Entries:      balanced,
	})
	require.NoError(t, err)
}

func TestGroupBalanceRollsUpDescendantLeaves(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.openDay("2082-04-01")
	postEntries(t, repo, []EntryInput{
		{AccountID: 12, Amount: -40000},
		{AccountID: 13, Amount: -25000},
		{AccountID: 14, Amount: -10000},
	})
	svc := NewBalanceService(repo, savingsChart(), nil)

	balance, err := svc.AccountBalance(context.Background(), "t1", 10, "")
	require.NoError(t, err)
	require.True(t, balance.IsGroup)
	require.Equal(t, int64(-75000), balance.Amount)
}

func TestLeafBalanceIsEntrySum(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.openDay("2082-04-01")
	postEntries(t, repo, []EntryInput{{AccountID: 12, Amount: -40000}})
	svc := NewBalanceService(repo, savingsChart(), nil)

	balance, err := svc.AccountBalance(context.Background(), "t1", 12, "")
	require.NoError(t, err)
	require.False(t, balance.IsGroup)
	require.Equal(t, int64(-40000), balance.Amount)
}

func TestBalanceZeroForAccountWithoutEntries(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewBalanceService(repo, savingsChart(), nil)

	balance, err := svc.AccountBalance(context.Background(), "t1", 13, "")
	require.NoError(t, err)
	require.Zero(t, balance.Amount)
}

func TestBalanceUnknownAccount(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewBalanceService(repo, savingsChart(), nil)

	_, err := svc.AccountBalance(context.Background(), "t1", 99, "")
	require.ErrorIs(t, err, coa.ErrAccountNotFound)
}

func TestGroupBalanceEmptySubtreeIsZero(t *testing.T) {
	repo := newMemoryLedgerRepo()
	source := &stubAccountSource{accounts: map[int64]coa.Account{
		10: {ID: 10, TenantID: "t1", Code: "2100", Name: "Member Savings", Type: coa.AccountTypeLiability, IsGroup: true},
	}}
	svc := NewBalanceService(repo, source, nil)

	balance, err := svc.AccountBalance(context.Background(), "t1", 10, "")
	require.NoError(t, err)
	require.Zero(t, balance.Amount)
}
