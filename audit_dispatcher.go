package goSession

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// auditDispatcher hands events to the sink from one goroutine, in order.
// Every event passed to emit ends up counted as delivered or dropped.
type auditDispatcher struct {
	dropIfFull bool
	sink       AuditSink
	logger     *slog.Logger

	// mu guards closed and the send on queue; close(queue) happens under
	// the write lock so no send can race it.
	mu      sync.RWMutex
	closed  bool
	queue   chan AuditEvent
	stopped chan struct{}

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger *slog.Logger) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d := &auditDispatcher{
		dropIfFull: cfg.DropIfFull,
		sink:       sink,
		logger:     logger.With("component", "audit"),
		queue:      make(chan AuditEvent, size),
		stopped:    make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *auditDispatcher) loop() {
	defer close(d.stopped)
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *auditDispatcher) deliver(event AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.dropped.Add(1)
			d.logger.Error("audit sink panicked",
				slog.String("event_type", event.EventType),
				slog.Any("panic", r))
		}
	}()
	d.sink.Emit(context.Background(), event)
	d.delivered.Add(1)
}

func (d *auditDispatcher) drop(event AuditEvent, reason string) {
	d.dropped.Add(1)
	d.logger.Warn("audit event dropped",
		slog.String("event_type", event.EventType),
		slog.String("reason", reason))
}

// Emit queues event. With dropIfFull a full queue drops the event at once;
// otherwise Emit waits for room until ctx ends. Events emitted after Close
// are dropped.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(event, "closed")
		return
	}
	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.drop(event, "queue full")
		}
		return
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.drop(event, "context done")
	}
}

// Close rejects further events, then waits until everything already queued
// has reached the sink. Safe to call more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.stopped
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *auditDispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
