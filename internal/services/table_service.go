package services

import (
	"context"
	"fmt"
	"log/slog"

	"budgettable/internal/core"
	"budgettable/internal/log"
	"budgettable/internal/notify"
	"budgettable/internal/storage"
)

// TableService keeps the cross-product invariant (every row has a cell for
// every period), computes order and level on insert, and signals the
// notifier once a mutation has committed.
type TableService struct {
	storage  *storage.SQLiteRepository
	notifier notify.ChangeNotifier
}

// NewTableService wires the store and the notifier. A nil notifier disables
// change signals.
func NewTableService(storage *storage.SQLiteRepository, notifier notify.ChangeNotifier) *TableService {
	return &TableService{
		storage:  storage,
		notifier: notifier,
	}
}

// GetTable returns all periods and the nested row forest.
func (s *TableService) GetTable(ctx context.Context) (core.Table, error) {
	var (
		periods []core.Period
		rows    []core.Row
	)
	// One read transaction so periods and cells come from the same snapshot.
	err := s.storage.WithinTx(ctx, func(ctx context.Context, q *storage.Queries) error {
		var err error
		if periods, err = q.ListPeriods(ctx); err != nil {
			return fmt.Errorf("list periods: %w", err)
		}
		if rows, err = q.ListRows(ctx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return core.Table{}, err
	}

	return core.Table{
		Periods: periods,
		Rows:    core.BuildTree(rows, nil),
	}, nil
}

// InitializeSeed writes the demo table unless a period already exists. It
// reports whether anything was written.
func (s *TableService) InitializeSeed(ctx context.Context) (bool, error) {
	seeded := false
	err := s.storage.WithinTx(ctx, func(ctx context.Context, q *storage.Queries) error {
		n, err := q.CountPeriods(ctx)
		if err != nil {
			return fmt.Errorf("count periods: %w", err)
		}
		if n > 0 {
			return nil
		}

		for i, name := range seedPeriods {
			if _, err := q.CreatePeriod(ctx, name, i); err != nil {
				return fmt.Errorf("create seed period %q: %w", name, err)
			}
		}

		root, err := insertRow(ctx, q, seedRoot)
		if err != nil {
			return fmt.Errorf("create seed root: %w", err)
		}
		for _, child := range seedChildren {
			child.ParentID = &root.ID
			if _, err := insertRow(ctx, q, child); err != nil {
				return fmt.Errorf("create seed child: %w", err)
			}
		}

		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if seeded {
		slog.InfoContext(ctx, "Seeded budget table",
			log.FieldComponent, log.ComponentTable,
			log.FieldOperation, log.OpSeed,
			"periods", len(seedPeriods),
			"rows", 1+len(seedChildren))
	}
	return seeded, nil
}

// AddPeriod appends a period after the current last one and gives every
// existing row an empty cell for it. A blank name gets a placeholder.
func (s *TableService) AddPeriod(ctx context.Context, name string) (core.Period, error) {
	var period core.Period
	err := s.storage.WithinTx(ctx, func(ctx context.Context, q *storage.Queries) error {
		order, err := q.NextPeriodOrder(ctx)
		if err != nil {
			return fmt.Errorf("next period order: %w", err)
		}

		period, err = q.CreatePeriod(ctx, core.NormalizePeriodName(name, order), order)
		if err != nil {
			return fmt.Errorf("create period: %w", err)
		}

		rowIDs, err := q.ListRowIDs(ctx)
		if err != nil {
			return fmt.Errorf("list rows: %w", err)
		}
		for _, rowID := range rowIDs {
			if err := q.CreateCell(ctx, rowID, period.ID, nil); err != nil {
				return fmt.Errorf("create cell for row %d: %w", rowID, err)
			}
		}
		return nil
	})
	if err != nil {
		return core.Period{}, err
	}

	slog.InfoContext(ctx, "Period added",
		log.FieldComponent, log.ComponentTable,
		log.FieldPeriodID, period.ID,
		"order", period.Order)
	s.notify(func(n notify.ChangeNotifier) { n.PeriodAdded(ctx, period) })
	return period, nil
}

// DeletePeriod removes the period and its column of cells.
func (s *TableService) DeletePeriod(ctx context.Context, id int64) error {
	err := s.storage.WithinTx(ctx, func(ctx context.Context, q *storage.Queries) error {
		return q.DeletePeriod(ctx, id)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Period deleted",
		log.FieldComponent, log.ComponentTable,
		log.FieldPeriodID, id)
	s.notify(func(n notify.ChangeNotifier) {
		n.StructureChanged(ctx, core.StructurePeriodDeleted, id)
	})
	return nil
}

// AddRow appends a row, as a root or under an existing parent, with an
// empty cell for every period. The returned node has its cells and no
// children.
func (s *TableService) AddRow(ctx context.Context, in core.NewRow) (core.RowNode, error) {
	if err := in.Validate(); err != nil {
		return core.RowNode{}, err
	}

	var row core.Row
	err := s.storage.WithinTx(ctx, func(ctx context.Context, q *storage.Queries) error {
		var err error
		row, err = insertRow(ctx, q, in)
		return err
	})
	if err != nil {
		return core.RowNode{}, err
	}

	slog.InfoContext(ctx, "Row added",
		log.FieldComponent, log.ComponentTable,
		log.FieldRowID, row.ID,
		"level", row.Level)
	s.notify(func(n notify.ChangeNotifier) { n.RowAdded(ctx, row) })
	return row.Node(), nil
}

// insertRow creates the row with its computed order and level plus one
// empty cell per period. The returned row carries those cells.
func insertRow(ctx context.Context, q *storage.Queries, in core.NewRow) (core.Row, error) {
	level := 0
	if in.ParentID != nil {
		parent, err := q.GetRow(ctx, *in.ParentID)
		if err != nil {
			return core.Row{}, err
		}
		level = parent.Level + 1
	}

	order, err := q.NextRowOrder(ctx)
	if err != nil {
		return core.Row{}, fmt.Errorf("next row order: %w", err)
	}

	row, err := q.CreateRow(ctx, storage.CreateRowParams{
		Order:    order,
		Level:    level,
		ParentID: in.ParentID,
		Entity:   in.Entity,
		Article:  in.Article,
		Project:  in.Project,
	})
	if err != nil {
		return core.Row{}, fmt.Errorf("create row: %w", err)
	}

	periodIDs, err := q.ListPeriodIDs(ctx)
	if err != nil {
		return core.Row{}, fmt.Errorf("list periods: %w", err)
	}
	for _, periodID := range periodIDs {
		if err := q.CreateCell(ctx, row.ID, periodID, nil); err != nil {
			return core.Row{}, fmt.Errorf("create cell for period %d: %w", periodID, err)
		}
	}

	row.Cells, err = q.ListRowCells(ctx, row.ID)
	if err != nil {
		return core.Row{}, fmt.Errorf("list row cells: %w", err)
	}
	return row, nil
}

// UpdateRowFields applies a partial update of the text fields and returns
// the resulting row.
func (s *TableService) UpdateRowFields(ctx context.Context, id int64, patch core.RowPatch) (core.Row, error) {
	if err := patch.Validate(); err != nil {
		return core.Row{}, err
	}

	var row core.Row
	err := s.storage.WithinTx(ctx, func(ctx context.Context, q *storage.Queries) error {
		var err error
		if row, err = q.GetRow(ctx, id); err != nil {
			return err
		}
		if patch.IsEmpty() {
			return nil
		}
		patch.Apply(&row)
		return q.UpdateRowFields(ctx, id, row.Fields())
	})
	if err != nil {
		return core.Row{}, err
	}

	slog.InfoContext(ctx, "Row updated",
		log.FieldComponent, log.ComponentTable,
		log.FieldRowID, id)
	fields := row.Fields()
	s.notify(func(n notify.ChangeNotifier) { n.RowUpdated(ctx, id, fields) })
	return row, nil
}

// DeleteRow removes the row, its descendants and all their cells.
func (s *TableService) DeleteRow(ctx context.Context, id int64) error {
	var removed int
	err := s.storage.WithinTx(ctx, func(ctx context.Context, q *storage.Queries) error {
		var err error
		removed, err = q.DeleteRow(ctx, id)
		return err
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Row deleted",
		log.FieldComponent, log.ComponentTable,
		log.FieldRowID, id,
		log.FieldCount, removed)
	s.notify(func(n notify.ChangeNotifier) {
		n.StructureChanged(ctx, core.StructureRowDeleted, id)
	})
	return nil
}

// SetCellValue writes value (nil clears it) at the row/period intersection,
// creating the cell if needed. Both ids must exist.
func (s *TableService) SetCellValue(ctx context.Context, rowID, periodID int64, value *float64) (core.Cell, error) {
	if err := core.ValidateCellValue(value); err != nil {
		return core.Cell{}, err
	}

	var cell core.Cell
	err := s.storage.WithinTx(ctx, func(ctx context.Context, q *storage.Queries) error {
		if _, err := q.GetRow(ctx, rowID); err != nil {
			return err
		}
		if _, err := q.GetPeriod(ctx, periodID); err != nil {
			return err
		}
		var err error
		cell, err = q.UpsertCellValue(ctx, rowID, periodID, value)
		if err != nil {
			return fmt.Errorf("upsert cell: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Cell{}, err
	}

	slog.DebugContext(ctx, "Cell updated",
		log.FieldComponent, log.ComponentTable,
		log.FieldRowID, rowID,
		log.FieldPeriodID, periodID)
	s.notify(func(n notify.ChangeNotifier) {
		n.CellUpdated(ctx, rowID, periodID, cell.Value)
	})
	return cell, nil
}

// Ping reports whether the store is reachable.
func (s *TableService) Ping(ctx context.Context) error {
	return s.storage.Ping(ctx)
}

func (s *TableService) notify(fn func(notify.ChangeNotifier)) {
	if s.notifier == nil {
		return
	}
	fn(s.notifier)
}

// Close closes the store.
func (s *TableService) Close() error {
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			return fmt.Errorf("close table service: %w", err)
		}
	}
	return nil
}
