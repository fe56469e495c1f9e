package coa

import "sort"

// BuildTree reconstructs the account hierarchy from a flat slice. Two
// passes: index every node by id, then attach each node to its parent or
// to the root list. Accounts whose declared parent carries a different
// type are kept as root nodes rather than silently dropped. Every level
// is stable-sorted by code.
func BuildTree(accounts []Account) []*TreeNode {
	nodes := make(map[int64]*TreeNode, len(accounts))
	for _, a := range accounts {
		nodes[a.ID] = &TreeNode{Account: a}
	}

	var roots []*TreeNode
	for _, a := range accounts {
		node := nodes[a.ID]
		if a.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*a.ParentID]
		if !ok || parent.Type != a.Type {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	sortLevel(roots)
	return roots
}

func sortLevel(nodes []*TreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Code < nodes[j].Code
	})
	for _, n := range nodes {
		sortLevel(n.Children)
	}
}

// Walk visits the subtree rooted at node in post-order.
func Walk(node *TreeNode, visit func(*TreeNode)) {
	if node == nil {
		return
	}
	for _, child := range node.Children {
		Walk(child, visit)
	}
	visit(node)
}
