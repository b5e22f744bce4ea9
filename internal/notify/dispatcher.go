package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"budgettable/internal/core"
	"budgettable/internal/log"
)

const (
	DefaultBufferSize = 256
	DefaultTimeout    = 5 * time.Second
)

// Stats counts what happened to enqueued events.
type Stats struct {
	Delivered int64
	Failed    int64
	Dropped   int64
}

// Dispatcher is a ChangeNotifier that queues events in a bounded buffer and
// hands them to a Publisher from a single delivery loop. Enqueueing never
// blocks: when the buffer is full the event is dropped with a warning.
type Dispatcher struct {
	pub     Publisher
	timeout time.Duration
	logger  *log.Logger

	mu     sync.Mutex
	closed bool
	queue  chan core.ChangeEvent

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

var _ ChangeNotifier = (*Dispatcher)(nil)

func NewDispatcher(pub Publisher, bufferSize int, timeout time.Duration, logger *log.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Dispatcher{
		pub:     pub,
		timeout: timeout,
		logger:  logger.WithComponent(log.ComponentNotify),
		queue:   make(chan core.ChangeEvent, bufferSize),
	}
}

func (d *Dispatcher) RowAdded(ctx context.Context, row core.Row) {
	d.enqueue(ctx, core.RowAddedEvent(row))
}

func (d *Dispatcher) RowUpdated(ctx context.Context, rowID int64, fields core.RowFields) {
	d.enqueue(ctx, core.RowUpdatedEvent(rowID, fields))
}

func (d *Dispatcher) CellUpdated(ctx context.Context, rowID, periodID int64, value *float64) {
	d.enqueue(ctx, core.CellUpdatedEvent(rowID, periodID, value))
}

func (d *Dispatcher) PeriodAdded(ctx context.Context, period core.Period) {
	d.enqueue(ctx, core.PeriodAddedEvent(period))
}

func (d *Dispatcher) StructureChanged(ctx context.Context, change core.StructureChange, id int64) {
	d.enqueue(ctx, structureEvent(change, id))
}

func (d *Dispatcher) enqueue(ctx context.Context, ev core.ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.dropped.Add(1)
		d.logger.WarnContext(ctx, "Notifier closed, dropping change", log.FieldChangeKind, ev.Kind)
		return
	}

	select {
	case d.queue <- ev:
	default:
		d.dropped.Add(1)
		d.logger.WarnContext(ctx, "Notification buffer full, dropping change",
			log.FieldChangeKind, ev.Kind,
			"buffer_size", cap(d.queue))
	}
}

// Run delivers queued events until Close is called or ctx is done, then
// flushes whatever is still buffered. Deliveries are detached from ctx
// cancellation and bounded by the per-event timeout instead.
func (d *Dispatcher) Run(ctx context.Context) error {
	base := context.WithoutCancel(ctx)
	d.logger.InfoContext(ctx, "Notification dispatcher started", "buffer_size", cap(d.queue))

	for {
		select {
		case ev, ok := <-d.queue:
			if !ok {
				d.logStopped(base)
				return nil
			}
			d.deliver(base, ev)
		case <-ctx.Done():
			d.Close()
			for ev := range d.queue {
				d.deliver(base, ev)
			}
			d.logStopped(base)
			return nil
		}
	}
}

// Close stops accepting events. Already queued events are still delivered
// by Run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.queue)
}

// Stats returns a snapshot of the delivery counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev core.ChangeEvent) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.publish(ctx, ev); err != nil {
		d.failed.Add(1)
		d.logger.WarnContext(ctx, "Failed to deliver change notification",
			log.FieldChangeKind, ev.Kind,
			log.FieldRowID, ev.RowID,
			log.FieldPeriodID, ev.PeriodID,
			log.FieldError, err)
		return
	}
	d.delivered.Add(1)
}

func (d *Dispatcher) publish(ctx context.Context, ev core.ChangeEvent) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("publisher panic: %v", p)
		}
	}()
	return d.pub.Publish(ctx, ev)
}

func (d *Dispatcher) logStopped(ctx context.Context) {
	s := d.Stats()
	d.logger.InfoContext(ctx, "Notification dispatcher stopped",
		"delivered", s.Delivered,
		"failed", s.Failed,
		"dropped", s.Dropped)
}
