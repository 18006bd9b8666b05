package enrollflow

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher hands audit events to the configured sink on a dedicated
// goroutine so wizard operations never wait on slow sinks. When the buffer
// fills in drop mode, drops are accounted per event type so operators can see
// which flows lost their trail.
type auditDispatcher struct {
	cfg  AuditConfig
	sink AuditSink
	ch   chan AuditEvent
	done chan struct{}

	gate   sync.RWMutex
	closed bool

	wg        sync.WaitGroup
	closeOnce sync.Once

	dropTotal   atomic.Uint64
	dropMu      sync.Mutex
	dropByEvent map[string]uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		cfg:         cfg,
		sink:        sink,
		ch:          make(chan AuditEvent, cfg.BufferSize),
		done:        make(chan struct{}),
		dropByEvent: make(map[string]uint64),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// run delivers until the intake channel closes; closing the channel is what
// drains the remaining buffer before the worker exits.
func (d *auditDispatcher) run() {
	defer d.wg.Done()

	for event := range d.ch {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit describes the emit operation and its observable behavior.
//
// Emit may return an error when input validation, dependency calls, or security checks fail.
// Emit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.gate.RLock()
	defer d.gate.RUnlock()
	if d.closed {
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.recordDrop(event.EventType)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

func (d *auditDispatcher) recordDrop(eventType string) {
	d.dropTotal.Add(1)
	if eventType == "" {
		eventType = "unknown"
	}
	d.dropMu.Lock()
	d.dropByEvent[eventType]++
	d.dropMu.Unlock()
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		// Release any emitter parked on a full buffer, then seal intake.
		// Closing the channel lets the worker drain what is buffered.
		close(d.done)
		d.gate.Lock()
		d.closed = true
		close(d.ch)
		d.gate.Unlock()
		d.wg.Wait()
	})
}

// Dropped describes the dropped operation and its observable behavior.
//
// Dropped may return an error when input validation, dependency calls, or security checks fail.
// Dropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropTotal.Load()
}

// DropSummary describes the dropsummary operation and its observable behavior.
//
// DropSummary may return an error when input validation, dependency calls, or security checks fail.
// DropSummary does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *auditDispatcher) DropSummary() map[string]uint64 {
	if d == nil {
		return nil
	}
	d.dropMu.Lock()
	defer d.dropMu.Unlock()
	if len(d.dropByEvent) == 0 {
		return nil
	}
	out := make(map[string]uint64, len(d.dropByEvent))
	for eventType, n := range d.dropByEvent {
		out[eventType] = n
	}
	return out
}
