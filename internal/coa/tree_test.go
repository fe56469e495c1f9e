package coa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func TestBuildTreeOrdersByCode(t *testing.T) {
	accounts := []Account{
		{ID: 1, Code: "2000", Name: "Liabilities", Type: AccountTypeLiability, IsGroup: true},
		{ID: 2, Code: "1000", Name: "Assets", Type: AccountTypeAsset, IsGroup: true},
		{ID: 3, Code: "1002", Name: "Bank", Type: AccountTypeAsset, ParentID: ptr(2)},
		{ID: 4, Code: "1001", Name: "Cash", Type: AccountTypeAsset, ParentID: ptr(2), IsCash: true},
	}

	roots := BuildTree(accounts)

	require.Len(t, roots, 2)
	require.Equal(t, "1000", roots[0].Code)
	require.Equal(t, "2000", roots[1].Code)
	require.Len(t, roots[0].Children, 2)
	require.Equal(t, "1001", roots[0].Children[0].Code)
	require.Equal(t, "1002", roots[0].Children[1].Code)
}

func TestBuildTreeKeepsCrossTypeChildAsRoot(t *testing.T) {
	accounts := []Account{
		{ID: 1, Code: "1000", Name: "Assets", Type: AccountTypeAsset, IsGroup: true},
		{ID: 2, Code: "4001", Name: "Fee Income", Type: AccountTypeIncome, ParentID: ptr(1)},
	}

	roots := BuildTree(accounts)

	require.Len(t, roots, 2)
	require.Equal(t, "1000", roots[0].Code)
	require.Equal(t, "4001", roots[1].Code)
	require.Empty(t, roots[0].Children)
}

func TestBuildTreeMissingParentBecomesRoot(t *testing.T) {
	accounts := []Account{
		{ID: 5, Code: "1101", Name: "Orphan", Type: AccountTypeAsset, ParentID: ptr(99)},
	}

	roots := BuildTree(accounts)

	require.Len(t, roots, 1)
	require.Equal(t, "1101", roots[0].Code)
}

func TestWalkVisitsPostOrder(t *testing.T) {
	accounts := []Account{
		{ID: 1, Code: "1000", Name: "Assets", Type: AccountTypeAsset, IsGroup: true},
		{ID: 2, Code: "1100", Name: "Current", Type: AccountTypeAsset, ParentID: ptr(1), IsGroup: true},
		{ID: 3, Code: "1101", Name: "Cash", Type: AccountTypeAsset, ParentID: ptr(2)},
	}

	roots := BuildTree(accounts)
	require.Len(t, roots, 1)

	var visited []string
	Walk(roots[0], func(n *TreeNode) { visited = append(visited, n.Code) })

	require.Equal(t, []string{"1101", "1100", "1000"}, visited)
}
