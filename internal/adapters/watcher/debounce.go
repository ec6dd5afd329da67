package watcher

import (
	"sync"
	"time"

	"github.com/agentdeck/agentdeck/internal/domain/ports"
)

// pendingEvent is a change waiting out its debounce window.
type pendingEvent struct {
	path  string
	kind  ports.WatchKind
	timer *time.Timer
}

// Debouncer coalesces rapid filesystem events per path. Each distinct path
// carries its own timer; a new event for the same path resets the timer and
// merges the change kind.
type Debouncer struct {
	window   time.Duration
	callback func(path string, kind ports.WatchKind)

	mu      sync.Mutex
	pending map[string]*pendingEvent
	stopped bool
}

// NewDebouncer creates a debouncer with the given window and callback.
func NewDebouncer(window time.Duration, callback func(path string, kind ports.WatchKind)) *Debouncer {
	return &Debouncer{
		window:   window,
		callback: callback,
		pending:  make(map[string]*pendingEvent),
	}
}

// Add queues an event for debouncing.
func (d *Debouncer) Add(path string, kind ports.WatchKind) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[path]; ok {
		existing.timer.Stop()
		existing.kind = mergeKinds(existing.kind, kind)
		existing.timer = time.AfterFunc(d.window, func() {
			d.fire(path)
		})
		return
	}

	d.pending[path] = &pendingEvent{
		path: path,
		kind: kind,
		timer: time.AfterFunc(d.window, func() {
			d.fire(path)
		}),
	}
}

// fire executes the callback for a path once its window has expired.
func (d *Debouncer) fire(path string) {
	d.mu.Lock()
	event, ok := d.pending[path]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	stopped := d.stopped
	d.mu.Unlock()

	if !stopped && d.callback != nil {
		d.callback(event.path, event.kind)
	}
}

// PendingCount returns the number of paths currently waiting out a window.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels all pending timers. No callbacks run after Stop returns.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for _, event := range d.pending {
		event.timer.Stop()
	}
	d.pending = make(map[string]*pendingEvent)
}

// mergeKinds combines two change kinds for the same path within one window.
// A recreate (unlink then add) surfaces as add: the consumer re-stats the
// path, so what matters is the final disposition, not the history.
func mergeKinds(existing, next ports.WatchKind) ports.WatchKind {
	switch {
	case next == ports.WatchUnlink:
		return ports.WatchUnlink
	case existing == ports.WatchUnlink && next == ports.WatchAdd:
		return ports.WatchAdd
	case existing == ports.WatchAdd:
		return ports.WatchAdd
	default:
		return next
	}
}
