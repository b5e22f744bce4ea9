// Package notify forwards table changes to an external accounting system.
// Delivery is fire and forget: a mutation never waits for, or fails because
// of, its notification.
package notify

import (
	"context"

	"budgettable/internal/core"
)

// ChangeNotifier receives one signal per committed mutation.
type ChangeNotifier interface {
	RowAdded(ctx context.Context, row core.Row)
	RowUpdated(ctx context.Context, rowID int64, fields core.RowFields)
	CellUpdated(ctx context.Context, rowID, periodID int64, value *float64)
	PeriodAdded(ctx context.Context, period core.Period)
	StructureChanged(ctx context.Context, change core.StructureChange, id int64)
}

// Publisher delivers a single event to its destination. Implementations may
// block and may fail; the Dispatcher isolates callers from both.
type Publisher interface {
	Publish(ctx context.Context, ev core.ChangeEvent) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev core.ChangeEvent) error

func (f PublisherFunc) Publish(ctx context.Context, ev core.ChangeEvent) error {
	return f(ctx, ev)
}

// structureEvent maps a structure change to its event.
func structureEvent(change core.StructureChange, id int64) core.ChangeEvent {
	if change == core.StructurePeriodDeleted {
		return core.PeriodDeletedEvent(id)
	}
	return core.RowDeletedEvent(id)
}
