package notify

import (
	"context"

	"budgettable/internal/core"
	"budgettable/internal/log"
)

// LogPublisher writes events to the log instead of a broker. It is used when
// no AMQP_URL is configured.
type LogPublisher struct {
	logger *log.Logger
}

func NewLogPublisher(logger *log.Logger) *LogPublisher {
	if logger == nil {
		logger = log.Discard()
	}
	return &LogPublisher{logger: logger.WithComponent(log.ComponentNotify)}
}

func (p *LogPublisher) Publish(ctx context.Context, ev core.ChangeEvent) error {
	args := []any{log.FieldChangeKind, ev.Kind}
	if ev.Structure != "" {
		args = append(args, "structure", ev.Structure)
	}
	if ev.RowID != 0 {
		args = append(args, log.FieldRowID, ev.RowID)
	}
	if ev.PeriodID != 0 {
		args = append(args, log.FieldPeriodID, ev.PeriodID)
	}
	if ev.ParentID != nil {
		args = append(args, log.FieldParentID, *ev.ParentID)
	}
	if ev.Kind == core.ChangeCellUpdated {
		if ev.Value != nil {
			args = append(args, "value", *ev.Value)
		} else {
			args = append(args, "value", nil)
		}
	}
	p.logger.InfoContext(ctx, "Accounting change", args...)
	return nil
}
