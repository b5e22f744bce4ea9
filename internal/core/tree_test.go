package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func row(id int64, order int, parent *int64) Row {
	level := 0
	if parent != nil {
		level = 1
	}
	return Row{ID: id, Order: order, Level: level, ParentID: parent}
}

func TestBuildTree_NestsChildrenUnderParents(t *testing.T) {
	rows := []Row{
		row(1, 0, nil),
		row(2, 1, ptr[int64](1)),
		row(3, 2, ptr[int64](1)),
		row(4, 3, nil),
		row(5, 4, ptr[int64](2)),
	}

	tree := BuildTree(rows, nil)

	require.Len(t, tree, 2)
	assert.Equal(t, int64(1), tree[0].ID)
	assert.Equal(t, int64(4), tree[1].ID)

	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, int64(2), tree[0].Children[0].ID)
	assert.Equal(t, int64(3), tree[0].Children[1].ID)

	require.Len(t, tree[0].Children[0].Children, 1)
	assert.Equal(t, int64(5), tree[0].Children[0].Children[0].ID)

	assert.Empty(t, tree[1].Children)
	assert.NotNil(t, tree[1].Children, "leaf children must encode as []")
	assert.Equal(t, 5, CountNodes(tree))
}

func TestBuildTree_PreservesInputOrder(t *testing.T) {
	rows := []Row{
		row(7, 5, nil),
		row(3, 1, nil),
		row(9, 0, nil),
	}

	tree := BuildTree(rows, nil)

	ids := make([]int64, 0, len(tree))
	for _, n := range tree {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []int64{7, 3, 9}, ids)
}

func TestBuildTree_Subtree(t *testing.T) {
	rows := []Row{
		row(1, 0, nil),
		row(2, 1, ptr[int64](1)),
		row(3, 2, ptr[int64](2)),
	}

	tree := BuildTree(rows, ptr[int64](1))

	require.Len(t, tree, 1)
	assert.Equal(t, int64(2), tree[0].ID)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, int64(3), tree[0].Children[0].ID)
}

func TestBuildTree_AttachesCells(t *testing.T) {
	v := 42.5
	r := row(1, 0, nil)
	r.Cells = []Cell{
		{ID: 10, RowID: 1, PeriodID: 1, Value: &v},
		{ID: 11, RowID: 1, PeriodID: 2},
	}

	tree := BuildTree([]Row{r}, nil)

	require.Len(t, tree, 1)
	require.Len(t, tree[0].Cells, 2)
	assert.Equal(t, 42.5, *tree[0].Cells[0].Value)
	assert.Nil(t, tree[0].Cells[1].Value)
}

func TestBuildTree_CycleTerminates(t *testing.T) {
	rows := []Row{
		row(1, 0, ptr[int64](2)),
		row(2, 1, ptr[int64](1)),
		row(3, 2, nil),
	}

	tree := BuildTree(rows, nil)
	require.Len(t, tree, 1)
	assert.Equal(t, int64(3), tree[0].ID)

	sub := BuildTree(rows, ptr[int64](1))
	require.Len(t, sub, 1)
	assert.Equal(t, int64(2), sub[0].ID)
	assert.Empty(t, sub[0].Children)
}

func TestBuildTree_Empty(t *testing.T) {
	tree := BuildTree(nil, nil)
	assert.NotNil(t, tree)
	assert.Empty(t, tree)
}
