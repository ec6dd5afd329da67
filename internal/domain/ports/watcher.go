package ports

import "context"

// WatchKind classifies a debounced filesystem change.
type WatchKind string

const (
	WatchAdd    WatchKind = "add"
	WatchChange WatchKind = "change"
	WatchUnlink WatchKind = "unlink"
)

// WatchEvent is one debounced per-path change.
type WatchEvent struct {
	Path string
	Kind WatchKind
}

// TreeWatcher watches directory trees recursively and delivers debounced
// per-path change events on its channel.
type TreeWatcher interface {
	// Start begins watching the configured roots.
	Start(ctx context.Context) error

	// Stop terminates watching and cancels pending debounce timers.
	Stop() error

	// AddRoot adds a directory tree to the watch set. Missing roots are
	// remembered and picked up if they appear later.
	AddRoot(root string) error

	// Events returns the channel carrying debounced events. Closed on Stop.
	Events() <-chan WatchEvent

	// IsRunning returns true if the watcher is active.
	IsRunning() bool
}
