package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"budgettable/internal/core"
)

// deleteChunkSize keeps IN (...) lists well below SQLite's variable limit.
const deleteChunkSize = 500

// Queries runs the table's SQL against a DBTX. Use New(db) for standalone
// statements and the *Queries handed out by WithinTx for atomic sequences.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// CreateRowParams is the full row as inserted. Order and Level are computed
// by the caller.
type CreateRowParams struct {
	Order    int
	Level    int
	ParentID *int64
	Entity   string
	Article  string
	Project  string
}

const listPeriods = `
SELECT id, name, sort_order FROM periods ORDER BY sort_order, id`

func (q *Queries) ListPeriods(ctx context.Context) ([]core.Period, error) {
	rows, err := q.db.QueryContext(ctx, listPeriods)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	periods := make([]core.Period, 0)
	for rows.Next() {
		var p core.Period
		if err := rows.Scan(&p.ID, &p.Name, &p.Order); err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

const getPeriod = `
SELECT id, name, sort_order FROM periods WHERE id = ?`

func (q *Queries) GetPeriod(ctx context.Context, id int64) (core.Period, error) {
	var p core.Period
	err := q.db.QueryRowContext(ctx, getPeriod, id).Scan(&p.ID, &p.Name, &p.Order)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, core.PeriodNotFound(id)
	}
	return p, err
}

const nextPeriodOrder = `
SELECT COALESCE(MAX(sort_order) + 1, 0) FROM periods`

func (q *Queries) NextPeriodOrder(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, nextPeriodOrder).Scan(&n)
	return n, err
}

const createPeriod = `
INSERT INTO periods (name, sort_order) VALUES (?, ?)
RETURNING id, name, sort_order`

func (q *Queries) CreatePeriod(ctx context.Context, name string, order int) (core.Period, error) {
	var p core.Period
	err := q.db.QueryRowContext(ctx, createPeriod, name, order).Scan(&p.ID, &p.Name, &p.Order)
	return p, err
}

const deletePeriod = `
DELETE FROM periods WHERE id = ?`

const deleteCellsByPeriod = `
DELETE FROM cells WHERE period_id = ?`

// DeletePeriod removes the period and every cell in its column.
func (q *Queries) DeletePeriod(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, deleteCellsByPeriod, id); err != nil {
		return fmt.Errorf("delete period cells: %w", err)
	}
	res, err := q.db.ExecContext(ctx, deletePeriod, id)
	if err != nil {
		return fmt.Errorf("delete period: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.PeriodNotFound(id)
	}
	return nil
}

const listPeriodIDs = `
SELECT id FROM periods ORDER BY sort_order, id`

func (q *Queries) ListPeriodIDs(ctx context.Context) ([]int64, error) {
	return q.listIDs(ctx, listPeriodIDs)
}

const listRowIDs = `
SELECT id FROM budget_rows ORDER BY sort_order, id`

func (q *Queries) ListRowIDs(ctx context.Context) ([]int64, error) {
	return q.listIDs(ctx, listRowIDs)
}

const countPeriods = `
SELECT COUNT(*) FROM periods`

func (q *Queries) CountPeriods(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, countPeriods).Scan(&n)
	return n, err
}

const countRows = `
SELECT COUNT(*) FROM budget_rows`

func (q *Queries) CountRows(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, countRows).Scan(&n)
	return n, err
}

const listRows = `
SELECT id, sort_order, level, parent_id, entity, article, project
FROM budget_rows
ORDER BY sort_order, id`

const listCells = `
SELECT c.id, c.row_id, c.period_id, c.value
FROM cells c
JOIN periods p ON p.id = c.period_id
ORDER BY c.row_id, p.sort_order, p.id`

// ListRows returns every row ordered by sort order, each with its cells
// ordered by period.
func (q *Queries) ListRows(ctx context.Context) ([]core.Row, error) {
	rows, err := q.db.QueryContext(ctx, listRows)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	defer rows.Close()

	out := make([]core.Row, 0)
	index := make(map[int64]int)
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		r.Cells = []core.Cell{}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cells, err := q.db.QueryContext(ctx, listCells)
	if err != nil {
		return nil, fmt.Errorf("list cells: %w", err)
	}
	defer cells.Close()

	for cells.Next() {
		c, err := scanCell(cells)
		if err != nil {
			return nil, err
		}
		if i, ok := index[c.RowID]; ok {
			out[i].Cells = append(out[i].Cells, c)
		}
	}
	return out, cells.Err()
}

const getRow = `
SELECT id, sort_order, level, parent_id, entity, article, project
FROM budget_rows WHERE id = ?`

// GetRow returns the row without its cells.
func (q *Queries) GetRow(ctx context.Context, id int64) (core.Row, error) {
	r, err := scanRow(q.db.QueryRowContext(ctx, getRow, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Row{}, core.RowNotFound(id)
	}
	return r, err
}

const listRowCells = `
SELECT c.id, c.row_id, c.period_id, c.value
FROM cells c
JOIN periods p ON p.id = c.period_id
WHERE c.row_id = ?
ORDER BY p.sort_order, p.id`

func (q *Queries) ListRowCells(ctx context.Context, rowID int64) ([]core.Cell, error) {
	rows, err := q.db.QueryContext(ctx, listRowCells, rowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cells := make([]core.Cell, 0)
	for rows.Next() {
		c, err := scanCell(rows)
		if err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

const nextRowOrder = `
SELECT COALESCE(MAX(sort_order) + 1, 0) FROM budget_rows`

func (q *Queries) NextRowOrder(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, nextRowOrder).Scan(&n)
	return n, err
}

const createRow = `
INSERT INTO budget_rows (sort_order, level, parent_id, entity, article, project)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, sort_order, level, parent_id, entity, article, project`

func (q *Queries) CreateRow(ctx context.Context, arg CreateRowParams) (core.Row, error) {
	return scanRow(q.db.QueryRowContext(ctx, createRow,
		arg.Order, arg.Level, nullInt64(arg.ParentID),
		arg.Entity, arg.Article, arg.Project))
}

const updateRowFields = `
UPDATE budget_rows SET entity = ?, article = ?, project = ?
WHERE id = ?`

func (q *Queries) UpdateRowFields(ctx context.Context, id int64, f core.RowFields) error {
	res, err := q.db.ExecContext(ctx, updateRowFields, f.Entity, f.Article, f.Project, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.RowNotFound(id)
	}
	return nil
}

const listChildIDs = `
SELECT id FROM budget_rows WHERE parent_id = ?`

// DescendantIDs returns id followed by every row below it, breadth first.
// Each id appears once even if the stored parent graph loops.
func (q *Queries) DescendantIDs(ctx context.Context, id int64) ([]int64, error) {
	ids := []int64{id}
	seen := map[int64]bool{id: true}
	for i := 0; i < len(ids); i++ {
		children, err := q.listIDs(ctx, listChildIDs, ids[i])
		if err != nil {
			return nil, fmt.Errorf("list children of row %d: %w", ids[i], err)
		}
		for _, c := range children {
			if seen[c] {
				continue
			}
			seen[c] = true
			ids = append(ids, c)
		}
	}
	return ids, nil
}

// DeleteRow removes the row, its whole subtree and all their cells. It
// returns the number of rows removed. Callers that need atomicity run it
// inside WithinTx.
func (q *Queries) DeleteRow(ctx context.Context, id int64) (int, error) {
	if _, err := q.GetRow(ctx, id); err != nil {
		return 0, err
	}

	ids, err := q.DescendantIDs(ctx, id)
	if err != nil {
		return 0, err
	}

	for start := 0; start < len(ids); start += deleteChunkSize {
		chunk := ids[start:min(start+deleteChunkSize, len(ids))]
		if err := q.deleteIn(ctx, "cells", "row_id", chunk); err != nil {
			return 0, fmt.Errorf("delete cells: %w", err)
		}
	}
	// Children before parents, so the self-reference never dangles even
	// with foreign keys switched off.
	for end := len(ids); end > 0; end -= deleteChunkSize {
		chunk := ids[max(end-deleteChunkSize, 0):end]
		if err := q.deleteIn(ctx, "budget_rows", "id", chunk); err != nil {
			return 0, fmt.Errorf("delete rows: %w", err)
		}
	}
	return len(ids), nil
}

const createCell = `
INSERT INTO cells (row_id, period_id, value) VALUES (?, ?, ?)
ON CONFLICT (row_id, period_id) DO NOTHING`

// CreateCell adds an empty-or-valued cell unless one already exists at the
// intersection.
func (q *Queries) CreateCell(ctx context.Context, rowID, periodID int64, value *float64) error {
	_, err := q.db.ExecContext(ctx, createCell, rowID, periodID, nullFloat64(value))
	return err
}

const upsertCellValue = `
INSERT INTO cells (row_id, period_id, value) VALUES (?, ?, ?)
ON CONFLICT (row_id, period_id) DO UPDATE SET value = excluded.value
RETURNING id, row_id, period_id, value`

// UpsertCellValue sets the value at the intersection, creating the cell if
// it is missing.
func (q *Queries) UpsertCellValue(ctx context.Context, rowID, periodID int64, value *float64) (core.Cell, error) {
	return scanCell(q.db.QueryRowContext(ctx, upsertCellValue, rowID, periodID, nullFloat64(value)))
}

const countCells = `
SELECT COUNT(*) FROM cells`

func (q *Queries) CountCells(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, countCells).Scan(&n)
	return n, err
}

func (q *Queries) deleteIn(ctx context.Context, table, column string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)", table, column, placeholders)
	_, err := q.db.ExecContext(ctx, query, args...)
	return err
}

func (q *Queries) listIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (core.Row, error) {
	var (
		r        core.Row
		parentID sql.NullInt64
	)
	if err := s.Scan(&r.ID, &r.Order, &r.Level, &parentID, &r.Entity, &r.Article, &r.Project); err != nil {
		return core.Row{}, err
	}
	if parentID.Valid {
		id := parentID.Int64
		r.ParentID = &id
	}
	return r, nil
}

func scanCell(s scanner) (core.Cell, error) {
	var (
		c     core.Cell
		value sql.NullFloat64
	)
	if err := s.Scan(&c.ID, &c.RowID, &c.PeriodID, &value); err != nil {
		return core.Cell{}, err
	}
	if value.Valid {
		v := value.Float64
		c.Value = &v
	}
	return c, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
