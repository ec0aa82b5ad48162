// internal/trigger/trigger.go
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Trigger type names used for registration and as event sources.
const (
	TypeManual  = "manual"
	TypeWebhook = "webhook"
	TypeCron    = "cron"
	TypeFile    = "file"
)

// Handler consumes one event and produces one outcome result. A non-nil
// error (or a panic) marks the invocation as failed; Dispatch converts either
// into a failed Result so one handler's fault never reaches its siblings.
type Handler func(ctx context.Context, event Event) (Result, error)

// HandlerID identifies a registered handler for later removal. Go function
// values are not comparable, so AddHandler hands out an opaque id instead of
// matching by reference.
type HandlerID uint64

// Trigger is the capability set every trigger variant must implement.
//
// Start may acquire external resources (a listening socket, a watcher); on
// failure it must leave the trigger not-running and release anything it had
// acquired. Stop is idempotent and releases Start-acquired resources on every
// path. OnEvent is the entry point a variant's own source-listening logic
// calls when it observes an occurrence; each variant documents whether its
// callers use the returned results or only the dispatch side effects.
type Trigger interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	OnEvent(ctx context.Context, event Event) []Result
	AddHandler(h Handler) HandlerID
	RemoveHandler(id HandlerID)
	Running() bool
}

type handlerEntry struct {
	id HandlerID
	fn Handler
}

// Dispatcher carries the handler sequence, the running flag, and the fan-out
// logic shared by all trigger variants. Variants embed it and implement
// Start/Stop on top.
type Dispatcher struct {
	name   string
	logger *slog.Logger

	mu       sync.Mutex
	handlers []handlerEntry
	nextID   HandlerID
	running  bool
}

func newDispatcher(name string, logger *slog.Logger) Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return Dispatcher{name: name, logger: logger.With("trigger", name)}
}

// Name returns the trigger type name this dispatcher was created for.
func (d *Dispatcher) Name() string {
	return d.name
}

// AddHandler appends h to the handler sequence and returns its id. Insertion
// order determines dispatch order; duplicates are permitted.
func (d *Dispatcher) AddHandler(h Handler) HandlerID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.handlers = append(d.handlers, handlerEntry{id: d.nextID, fn: h})
	return d.nextID
}

// RemoveHandler removes the handler registered under id. Removing an unknown
// id is a no-op, not an error.
func (d *Dispatcher) RemoveHandler(id HandlerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, entry := range d.handlers {
		if entry.id == id {
			d.handlers = append(d.handlers[:i], d.handlers[i+1:]...)
			return
		}
	}
}

// Dispatch invokes every registered handler in insertion order, each awaited
// to completion before the next begins, and returns exactly one Result per
// handler in the same order. A handler error or panic is converted into a
// failed Result in that handler's position; Dispatch itself never fails.
//
// The handler sequence is snapshotted when dispatch begins, so concurrent
// AddHandler/RemoveHandler calls only affect whether the change lands in the
// snapshot. Concurrent Dispatch calls on the same trigger may interleave
// freely; handlers must tolerate concurrent invocation across calls.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) []Result {
	d.mu.Lock()
	snapshot := make([]handlerEntry, len(d.handlers))
	copy(snapshot, d.handlers)
	d.mu.Unlock()

	results := make([]Result, 0, len(snapshot))
	for _, entry := range snapshot {
		results = append(results, invokeHandler(ctx, entry.fn, event))
	}
	return results
}

func invokeHandler(ctx context.Context, h Handler, event Event) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Success: false, Error: fmt.Sprintf("handler panic: %v", r)}
		}
	}()

	result, err := h(ctx, event)
	if err != nil {
		return Result{
			Success:  false,
			ADWID:    result.ADWID,
			Workflow: result.Workflow,
			Error:    err.Error(),
		}
	}
	return result
}

// OnEvent is the default entry point: forward to Dispatch, log any failed
// results, and return the full result sequence. Variants whose callers do not
// consume results simply discard the return value.
func (d *Dispatcher) OnEvent(ctx context.Context, event Event) []Result {
	results := d.Dispatch(ctx, event)
	for i, r := range results {
		if !r.Success {
			d.logger.Warn("handler failed",
				"event_type", event.EventType,
				"source", event.Source,
				"handler", i,
				"error", r.Error,
			)
		}
	}
	return results
}

// Running reports whether the trigger is between a successful Start and a
// subsequent Stop.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Dispatcher) setRunning(v bool) {
	d.mu.Lock()
	d.running = v
	d.mu.Unlock()
}
