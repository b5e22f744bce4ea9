package services

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"budgettable/internal/core"
	"budgettable/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu     sync.Mutex
	events []core.ChangeEvent
}

func (f *fakeNotifier) record(ev core.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeNotifier) RowAdded(_ context.Context, row core.Row) {
	f.record(core.RowAddedEvent(row))
}

func (f *fakeNotifier) RowUpdated(_ context.Context, id int64, fields core.RowFields) {
	f.record(core.RowUpdatedEvent(id, fields))
}

func (f *fakeNotifier) CellUpdated(_ context.Context, rowID, periodID int64, value *float64) {
	f.record(core.CellUpdatedEvent(rowID, periodID, value))
}

func (f *fakeNotifier) PeriodAdded(_ context.Context, p core.Period) {
	f.record(core.PeriodAddedEvent(p))
}

func (f *fakeNotifier) StructureChanged(_ context.Context, change core.StructureChange, id int64) {
	if change == core.StructurePeriodDeleted {
		f.record(core.PeriodDeletedEvent(id))
		return
	}
	f.record(core.RowDeletedEvent(id))
}

func (f *fakeNotifier) Events() []core.ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.ChangeEvent(nil), f.events...)
}

func (f *fakeNotifier) Last() core.ChangeEvent {
	events := f.Events()
	if len(events) == 0 {
		return core.ChangeEvent{}
	}
	return events[len(events)-1]
}

func newTestService(t *testing.T) (*TableService, *fakeNotifier) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(context.Background(), filepath.Join(t.TempDir(), "budget.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	n := &fakeNotifier{}
	return NewTableService(repo, n), n
}

func ptr[T any](v T) *T { return &v }

// allNodes flattens the forest depth first.
func allNodes(nodes []core.RowNode) []core.RowNode {
	var out []core.RowNode
	for _, n := range nodes {
		out = append(out, n)
		out = append(out, allNodes(n.Children)...)
	}
	return out
}

func assertCrossProduct(t *testing.T, table core.Table) {
	t.Helper()
	for _, node := range allNodes(table.Rows) {
		require.Len(t, node.Cells, len(table.Periods), "row %d", node.ID)
		for i, p := range table.Periods {
			assert.Equal(t, p.ID, node.Cells[i].PeriodID, "row %d cell %d", node.ID, i)
		}
	}
}

func TestInitializeSeed(t *testing.T) {
	ctx := context.Background()
	svc, n := newTestService(t)

	seeded, err := svc.InitializeSeed(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	table, err := svc.GetTable(ctx)
	require.NoError(t, err)

	require.Len(t, table.Periods, 5)
	for i, p := range table.Periods {
		assert.Equal(t, i, p.Order)
		assert.Equal(t, seedPeriods[i], p.Name)
	}

	require.Len(t, table.Rows, 1)
	root := table.Rows[0]
	assert.Equal(t, "ИКС", root.Entity)
	assert.Equal(t, "CS0198234", root.Article)
	assert.Equal(t, "M5", root.Project)
	assert.Equal(t, 0, root.Level)
	assert.Nil(t, root.ParentID)

	require.Len(t, root.Children, 2)
	assert.Equal(t, "Обслуживание патрубков", root.Children[0].Project)
	assert.Equal(t, "1 кол-во дгу", root.Children[1].Project)
	for i, child := range root.Children {
		assert.Equal(t, 1, child.Level)
		assert.Equal(t, i+1, child.Order)
		require.NotNil(t, child.ParentID)
		assert.Equal(t, root.ID, *child.ParentID)
		assert.Empty(t, child.Children)
	}

	nodes := allNodes(table.Rows)
	require.Len(t, nodes, 3)
	for _, node := range nodes {
		require.Len(t, node.Cells, 5)
		for _, c := range node.Cells {
			assert.Nil(t, c.Value)
		}
	}

	assert.Empty(t, n.Events(), "seeding is not a user change")
}

func TestInitializeSeed_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	seeded, err := svc.InitializeSeed(ctx)
	require.NoError(t, err)
	require.True(t, seeded)
	before, err := svc.GetTable(ctx)
	require.NoError(t, err)

	seeded, err = svc.InitializeSeed(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	after, err := svc.GetTable(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestInitializeSeed_SkippedWhenPeriodExists(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.AddPeriod(ctx, "Jan-25")
	require.NoError(t, err)

	seeded, err := svc.InitializeSeed(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	table, err := svc.GetTable(ctx)
	require.NoError(t, err)
	assert.Len(t, table.Periods, 1)
	assert.Empty(t, table.Rows)
}

func TestAddPeriod_CreatesCellForEveryRow(t *testing.T) {
	ctx := context.Background()
	svc, n := newTestService(t)
	_, err := svc.InitializeSeed(ctx)
	require.NoError(t, err)

	p, err := svc.AddPeriod(ctx, "Jun-25")
	require.NoError(t, err)
	assert.Equal(t, "Jun-25", p.Name)
	assert.Equal(t, 5, p.Order)

	table, err := svc.GetTable(ctx)
	require.NoError(t, err)
	require.Len(t, table.Periods, 6)
	assertCrossProduct(t, table)

	created := 0
	for _, node := range allNodes(table.Rows) {
		for _, c := range node.Cells {
			if c.PeriodID == p.ID {
				created++
				assert.Nil(t, c.Value)
			}
		}
	}
	assert.Equal(t, 3, created)

	ev := n.Last()
	assert.Equal(t, core.ChangePeriodAdded, ev.Kind)
	assert.Equal(t, p.ID, ev.PeriodID)
	assert.Equal(t, "Jun-25", ev.Name)
	require.NotNil(t, ev.Order)
	assert.Equal(t, 5, *ev.Order)
}

func TestAddPeriod_DefaultName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	first, err := svc.AddPeriod(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, first.Order)
	assert.Equal(t, "Период 1", first.Name)

	second, err := svc.AddPeriod(ctx, "  ")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Order)
	assert.Equal(t, "Период 2", second.Name)
}

func TestAddPeriod_OrderFollowsMax(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	a, err := svc.AddPeriod(ctx, "a")
	require.NoError(t, err)
	_, err = svc.AddPeriod(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, svc.DeletePeriod(ctx, a.ID))

	c, err := svc.AddPeriod(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Order)
}

func TestAddRow_CreatesCellForEveryPeriod(t *testing.T) {
	ctx := context.Background()
	svc, n := newTestService(t)
	_, err := svc.InitializeSeed(ctx)
	require.NoError(t, err)

	node, err := svc.AddRow(ctx, core.NewRow{Entity: "ООО", Article: "A1", Project: "P"})
	require.NoError(t, err)
	assert.Equal(t, 0, node.Level)
	assert.Equal(t, 3, node.Order)
	assert.Nil(t, node.ParentID)
	assert.NotNil(t, node.Children)
	assert.Empty(t, node.Children)
	require.Len(t, node.Cells, 5)
	for _, c := range node.Cells {
		assert.Equal(t, node.ID, c.RowID)
		assert.Nil(t, c.Value)
	}

	table, err := svc.GetTable(ctx)
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
	assertCrossProduct(t, table)

	ev := n.Last()
	assert.Equal(t, core.ChangeRowAdded, ev.Kind)
	assert.Equal(t, node.ID, ev.RowID)
	require.NotNil(t, ev.Fields)
	assert.Equal(t, "ООО", ev.Fields.Entity)
}

func TestAddRow_UnderParent(t *testing.T) {
	ctx := context.Background()
	svc, n := newTestService(t)

	root, err := svc.AddRow(ctx, core.NewRow{Entity: "root"})
	require.NoError(t, err)
	child, err := svc.AddRow(ctx, core.NewRow{ParentID: &root.ID})
	require.NoError(t, err)
	grandchild, err := svc.AddRow(ctx, core.NewRow{ParentID: &child.ID})
	require.NoError(t, err)

	assert.Equal(t, 1, child.Level)
	assert.Equal(t, 2, grandchild.Level)
	assert.Equal(t, 2, grandchild.Order)
	assert.Empty(t, grandchild.Cells, "no periods yet")

	ev := n.Last()
	require.NotNil(t, ev.ParentID)
	assert.Equal(t, child.ID, *ev.ParentID)

	table, err := svc.GetTable(ctx)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	require.Len(t, table.Rows[0].Children, 1)
	require.Len(t, table.Rows[0].Children[0].Children, 1)
	assert.Equal(t, grandchild.ID, table.Rows[0].Children[0].Children[0].ID)
}

func TestAddRow_MissingParent(t *testing.T) {
	ctx := context.Background()
	svc, n := newTestService(t)
	_, err := svc.AddPeriod(ctx, "a")
	require.NoError(t, err)
	before := len(n.Events())

	_, err = svc.AddRow(ctx, core.NewRow{ParentID: ptr[int64](999)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	table, err := svc.GetTable(ctx)
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
	assert.Len(t, n.Events(), before, "failed mutation must not notify")
}

func TestAddRow_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddRow(context.Background(), core.NewRow{Entity: strings.Repeat("x", core.MaxFieldLength+1)})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestUpdateRowFields_Partial(t *testing.T) {
	ctx := context.Background()
	svc, n := newTestService(t)
	_, err := svc.InitializeSeed(ctx)
	require.NoError(t, err)
	table, err := svc.GetTable(ctx)
	require.NoError(t, err)
	rootID := table.Rows[0].ID

	row, err := svc.UpdateRowFields(ctx, rootID, core.RowPatch{Article: ptr("CS0000001")})
	require.NoError(t, err)
	assert.Equal(t, "ИКС", row.Entity)
	assert.Equal(t, "CS0000001", row.Article)
	assert.Equal(t, "M5", row.Project)

	table, err = svc.GetTable(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ИКС", table.Rows[0].Entity)
	assert.Equal(t, "CS0000001", table.Rows[0].Article)
	assert.Equal(t, "M5", table.Rows[0].Project)

	ev := n.Last()
	assert.Equal(t, core.ChangeRowUpdated, ev.Kind)
	require.NotNil(t, ev.Fields)
	assert.Equal(t, core.RowFields{Entity: "ИКС", Article: "CS0000001", Project: "M5"}, *ev.Fields)
}

func TestUpdateRowFields_Missing(t *testing.T) {
	svc, n := newTestService(t)

	_, err := svc.UpdateRowFields(context.Background(), 42, core.RowPatch{Entity: ptr("x")})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Empty(t, n.Events())
}

func TestDeleteRow_CascadesToSubtree(t *testing.T) {
	ctx := context.Background()
	svc, n := newTestService(t)
	_, err := svc.InitializeSeed(ctx)
	require.NoError(t, err)

	table, err := svc.GetTable(ctx)
	require.NoError(t, err)
	root := table.Rows[0]
	grandchild, err := svc.AddRow(ctx, core.NewRow{ParentID: &root.Children[0].ID})
	require.NoError(t, err)
	sibling, err := svc.AddRow(ctx, core.NewRow{Entity: "other"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRow(ctx, root.ID))

	for _, id := range []int64{root.ID, root.Children[0].ID, root.Children[1].ID, grandchild.ID} {
		_, err := svc.UpdateRowFields(ctx, id, core.RowPatch{})
		assert.ErrorIs(t, err, core.ErrNotFound, "row %d", id)
		assert.ErrorIs(t, svc.DeleteRow(ctx, id), core.ErrNotFound, "row %d", id)
	}

	table, err = svc.GetTable(ctx)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, sibling.ID, table.Rows[0].ID)
	assertCrossProduct(t, table)

	ev := n.Last()
	assert.Equal(t, core.StructureRowDeleted, ev.Structure)
	assert.Equal(t, root.ID, ev.RowID)
}

func TestDeletePeriod_RemovesColumnOnly(t *testing.T) {
	ctx := context.Background()
	svc, n := newTestService(t)
	_, err := svc.InitializeSeed(ctx)
	require.NoError(t, err)

	table, err := svc.GetTable(ctx)
	require.NoError(t, err)
	victim := table.Periods[2]

	require.NoError(t, svc.DeletePeriod(ctx, victim.ID))

	after, err := svc.GetTable(ctx)
	require.NoError(t, err)
	require.Len(t, after.Periods, 4)
	assert.Len(t, allNodes(after.Rows), 3, "rows are untouched")
	assertCrossProduct(t, after)
	for _, node := range allNodes(after.Rows) {
		for _, c := range node.Cells {
			assert.NotEqual(t, victim.ID, c.PeriodID)
		}
	}

	ev := n.Last()
	assert.Equal(t, core.StructurePeriodDeleted, ev.Structure)
	assert.Equal(t, victim.ID, ev.PeriodID)

	assert.ErrorIs(t, svc.DeletePeriod(ctx, victim.ID), core.ErrNotFound)
}

func TestSetCellValue_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	svc, n := newTestService(t)
	_, err := svc.InitializeSeed(ctx)
	require.NoError(t, err)

	table, err := svc.GetTable(ctx)
	require.NoError(t, err)
	rowID, periodID := table.Rows[0].ID, table.Periods[0].ID
	cellID := table.Rows[0].Cells[0].ID

	cell, err := svc.SetCellValue(ctx, rowID, periodID, ptr(42.5))
	require.NoError(t, err)
	assert.Equal(t, cellID, cell.ID)
	require.NotNil(t, cell.Value)
	assert.Equal(t, 42.5, *cell.Value)

	ev := n.Last()
	assert.Equal(t, core.ChangeCellUpdated, ev.Kind)
	require.NotNil(t, ev.Value)
	assert.Equal(t, 42.5, *ev.Value)

	cell, err = svc.SetCellValue(ctx, rowID, periodID, nil)
	require.NoError(t, err)
	assert.Nil(t, cell.Value)
	assert.Nil(t, n.Last().Value)

	table, err = svc.GetTable(ctx)
	require.NoError(t, err)
	assert.Nil(t, table.Rows[0].Cells[0].Value)
	assertCrossProduct(t, table)
}

func TestSetCellValue_RecreatesMissingCell(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	row, err := svc.AddRow(ctx, core.NewRow{})
	require.NoError(t, err)
	p, err := svc.storage.Queries().CreatePeriod(ctx, "raw", 0)
	require.NoError(t, err)

	cell, err := svc.SetCellValue(ctx, row.ID, p.ID, ptr(7.0))
	require.NoError(t, err)
	assert.Equal(t, row.ID, cell.RowID)
	assert.Equal(t, p.ID, cell.PeriodID)
	assert.Equal(t, 7.0, *cell.Value)
}

func TestSetCellValue_Errors(t *testing.T) {
	ctx := context.Background()
	svc, n := newTestService(t)
	_, err := svc.InitializeSeed(ctx)
	require.NoError(t, err)
	table, err := svc.GetTable(ctx)
	require.NoError(t, err)
	rowID, periodID := table.Rows[0].ID, table.Periods[0].ID

	_, err = svc.SetCellValue(ctx, 999, periodID, ptr(1.0))
	var nf *core.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, core.EntityRow, nf.Entity)

	_, err = svc.SetCellValue(ctx, rowID, 999, ptr(1.0))
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, core.EntityPeriod, nf.Entity)

	_, err = svc.SetCellValue(ctx, rowID, periodID, ptr(math.NaN()))
	assert.ErrorIs(t, err, core.ErrValidation)

	assert.Empty(t, n.Events())
}

func TestNilNotifierIsTolerated(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(context.Background(), filepath.Join(t.TempDir(), "budget.db"))
	require.NoError(t, err)
	svc := NewTableService(repo, nil)
	defer svc.Close()

	_, err = svc.AddPeriod(context.Background(), "a")
	assert.NoError(t, err)
	assert.NoError(t, svc.Ping(context.Background()))
}
