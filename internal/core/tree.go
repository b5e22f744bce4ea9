package core

// BuildTree nests a flat slice of rows under parentID (nil for the top
// level). Each row's cells must already be attached. Sibling order follows
// the input order; the assembler never re-sorts.
//
// Rows are indexed by parent id up front, so the recursion works over id
// lookups only. A row is placed at most once: a corrupt parent graph with a
// cycle yields a truncated tree rather than unbounded recursion.
func BuildTree(rows []Row, parentID *int64) []RowNode {
	roots := make([]int, 0)
	children := make(map[int64][]int, len(rows))
	for i, r := range rows {
		if r.ParentID == nil {
			roots = append(roots, i)
			continue
		}
		children[*r.ParentID] = append(children[*r.ParentID], i)
	}

	start := roots
	if parentID != nil {
		start = children[*parentID]
	}

	placed := make(map[int64]bool, len(rows))
	var build func(idx []int) []RowNode
	build = func(idx []int) []RowNode {
		nodes := make([]RowNode, 0, len(idx))
		for _, i := range idx {
			r := rows[i]
			if placed[r.ID] {
				continue
			}
			placed[r.ID] = true

			node := r.Node()
			node.Children = build(children[r.ID])
			nodes = append(nodes, node)
		}
		return nodes
	}

	if parentID != nil {
		// The subtree root itself is an ancestor of everything below it.
		placed[*parentID] = true
	}
	return build(start)
}

// CountNodes returns the number of nodes in a forest.
func CountNodes(nodes []RowNode) int {
	n := 0
	for _, node := range nodes {
		n += 1 + CountNodes(node.Children)
	}
	return n
}
