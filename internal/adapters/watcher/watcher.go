// Package watcher implements the provider-root filesystem watcher using
// fsnotify. Raw events are debounced per path and delivered as
// ports.WatchEvent values on a channel; the indexer is the single consumer.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/agentdeck/agentdeck/internal/domain/ports"
)

// missingRootRetryInterval is how often roots that did not exist at Start
// are re-checked. Provider homes appear the first time their CLI runs.
const missingRootRetryInterval = 5 * time.Second

// Watcher watches one or more directory trees recursively and emits
// debounced per-path change events. It implements ports.TreeWatcher.
type Watcher struct {
	debounce time.Duration

	mu           sync.RWMutex
	watcher      *fsnotify.Watcher
	roots        []string
	missingRoots map[string]bool
	running      bool
	cancel       context.CancelFunc

	debouncer *Debouncer
	events    chan ports.WatchEvent
	closeOnce sync.Once
}

// New creates a watcher with the given debounce window.
func New(debounce time.Duration) *Watcher {
	return &Watcher{
		debounce:     debounce,
		missingRoots: make(map[string]bool),
		events:       make(chan ports.WatchEvent, 256),
	}
}

// AddRoot adds a directory tree to the watch set. Roots added after Start
// are watched immediately; roots that do not exist yet are remembered and
// picked up once they appear.
func (w *Watcher) AddRoot(root string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, r := range w.roots {
		if r == root {
			return nil
		}
	}
	w.roots = append(w.roots, root)

	if !w.running {
		return nil
	}
	return w.watchRootLocked(root)
}

// Start begins watching the configured roots.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.debouncer = NewDebouncer(w.debounce, w.emit)
	w.running = true

	for _, root := range w.roots {
		if err := w.watchRootLocked(root); err != nil {
			log.Warn().Err(err).Str("root", root).Msg("failed to watch provider root")
		}
	}
	w.mu.Unlock()

	go w.eventLoop(watchCtx)
	go w.missingRootLoop(watchCtx)

	log.Info().
		Int("roots", len(w.roots)).
		Dur("debounce", w.debounce).
		Msg("tree watcher started")
	return nil
}

// Stop terminates watching and cancels all pending debounce timers. The
// events channel is closed; Stop is idempotent.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false

	if w.cancel != nil {
		w.cancel()
	}
	if w.debouncer != nil {
		w.debouncer.Stop()
	}

	var err error
	if w.watcher != nil {
		err = w.watcher.Close()
		w.watcher = nil
	}
	w.closeOnce.Do(func() { close(w.events) })

	log.Info().Msg("tree watcher stopped")
	return err
}

// Events returns the channel carrying debounced events.
func (w *Watcher) Events() <-chan ports.WatchEvent {
	return w.events
}

// IsRunning returns true if the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// watchRootLocked attaches watches for one root, deferring missing roots to
// the retry loop. Caller holds w.mu.
func (w *Watcher) watchRootLocked(root string) error {
	if _, err := os.Stat(root); err != nil {
		w.missingRoots[root] = true
		log.Debug().Str("root", root).Msg("provider root missing, will retry")
		return nil
	}
	delete(w.missingRoots, root)
	return w.addWatchRecursive(root)
}

// addWatchRecursive adds watches to a directory and all subdirectories.
func (w *Watcher) addWatchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip entries we cannot access
		}
		if !info.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to add watch")
		}
		return nil
	})
}

// eventLoop drains fsnotify events into the debouncer.
func (w *Watcher) eventLoop(ctx context.Context) {
	w.mu.RLock()
	fsw := w.watcher
	w.mu.RUnlock()
	if fsw == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// missingRootLoop retries roots that did not exist when added.
func (w *Watcher) missingRootLoop(ctx context.Context) {
	ticker := time.NewTicker(missingRootRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.retryMissingRoots()
		}
	}
}

func (w *Watcher) retryMissingRoots() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	for root := range w.missingRoots {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		delete(w.missingRoots, root)
		if err := w.addWatchRecursive(root); err != nil {
			log.Warn().Err(err).Str("root", root).Msg("failed to watch appeared root")
			continue
		}
		log.Info().Str("root", root).Msg("provider root appeared, watching")
		// Surface files that landed before the watch was in place.
		w.announceExistingFiles(root)
	}
}

// announceExistingFiles queues add events for every file already under root.
func (w *Watcher) announceExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		w.debouncer.Add(path, ports.WatchAdd)
		return nil
	})
}

// handleEvent classifies a raw fsnotify event and queues it for debouncing.
// Renames surface as unlink of the old path; the create at the new path
// arrives as its own event, which together give the consumer a remove plus
// an add.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	var kind ports.WatchKind
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// New directory: watch it and surface files created inside it
			// before the watch landed.
			w.mu.RLock()
			running := w.running
			w.mu.RUnlock()
			if running {
				_ = w.addWatchRecursive(event.Name)
				w.announceExistingFiles(event.Name)
			}
			return
		}
		kind = ports.WatchAdd
	case event.Op&fsnotify.Write == fsnotify.Write:
		kind = ports.WatchChange
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		kind = ports.WatchUnlink
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		kind = ports.WatchUnlink
	default:
		return // chmod and friends
	}

	w.debouncer.Add(event.Name, kind)
}

// emit is the debouncer callback: it forwards one coalesced event to the
// consumer, dropping it if the channel is full rather than blocking a timer
// goroutine.
func (w *Watcher) emit(path string, kind ports.WatchKind) {
	select {
	case w.events <- ports.WatchEvent{Path: path, Kind: kind}:
	default:
		log.Warn().Str("path", path).Str("kind", string(kind)).Msg("watch event dropped: channel full")
	}
}
