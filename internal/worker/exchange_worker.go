package worker

import (
	"context"
	"fmt"
	"time"

	"budgettable/internal/amqp"
	"budgettable/internal/cache"
	"budgettable/internal/exchange"
	"budgettable/internal/log"
)

const (
	// DefaultSeenSize bounds how many event ids are remembered for
	// redelivery detection.
	DefaultSeenSize = 10000
	DefaultSeenTTL  = 24 * time.Hour
)

// Consumer is the broker side of the worker.
type Consumer interface {
	ConsumeChanges(ctx context.Context, handler func(context.Context, *amqp.ChangeMessage) error) error
}

// ExchangeWorker exports every change message it receives. Messages with an
// event id already exported are acknowledged without exporting again.
type ExchangeWorker struct {
	exporter exchange.Exporter
	seen     *cache.LRUCache[time.Time]
	logger   *log.Logger
}

func NewExchangeWorker(exporter exchange.Exporter, seen *cache.LRUCache[time.Time], logger *log.Logger) *ExchangeWorker {
	if seen == nil {
		seen = cache.NewLRUCache[time.Time](DefaultSeenSize, DefaultSeenTTL)
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ExchangeWorker{
		exporter: exporter,
		seen:     seen,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleMessage exports a single change message. A returned error makes the
// consumer requeue the message.
func (w *ExchangeWorker) HandleMessage(ctx context.Context, msg *amqp.ChangeMessage) error {
	if msg.EventID != "" && w.seen.Contains(msg.EventID) {
		w.logger.InfoContext(ctx, "Skipping already exported change",
			log.FieldEventID, msg.EventID,
			log.FieldChangeKind, msg.Event.Kind)
		return nil
	}

	entry := exchange.Entry{
		EventID:   msg.EventID,
		Timestamp: msg.Timestamp,
		Event:     msg.Event,
	}
	if err := w.exporter.Export(ctx, entry); err != nil {
		return fmt.Errorf("export %s: %w", msg.Event.Kind, err)
	}

	if msg.EventID != "" {
		w.seen.Set(msg.EventID, time.Now())
	}
	w.logger.InfoContext(ctx, "Exported change",
		log.FieldEventID, msg.EventID,
		log.FieldChangeKind, msg.Event.Kind,
		log.FieldRowID, msg.Event.RowID,
		log.FieldPeriodID, msg.Event.PeriodID)
	return nil
}

// Run consumes until ctx is done.
func (w *ExchangeWorker) Run(ctx context.Context, consumer Consumer) error {
	w.logger.InfoContext(ctx, "Exchange worker started")
	err := consumer.ConsumeChanges(ctx, w.HandleMessage)
	w.logger.InfoContext(ctx, "Exchange worker stopped", "reason", err)
	return err
}
