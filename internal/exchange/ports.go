// Package exchange hands table changes over to the accounting side.
package exchange

import (
	"context"
	"time"

	"budgettable/internal/core"
)

// Entry is one change as received from the broker.
type Entry struct {
	EventID   string
	Timestamp time.Time
	Event     core.ChangeEvent
}

// Exporter writes entries to an accounting destination. An error means the
// entry was not written and may be retried.
type Exporter interface {
	Export(ctx context.Context, e Entry) error
}
