// Package indexer maintains the live session index: it watches every
// provider's transcript tree, parses changed files under a byte budget,
// groups sessions by project, and notifies subscribers when the exposed
// state changes or a genuinely new session appears.
//
// The indexer is single-writer: one mutex serializes scans and map
// mutations, and I/O always happens outside the state lock. Reads of the
// exposed projects list return snapshots.
package indexer

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agentdeck/agentdeck/internal/adapters/metacache"
	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/domain/ports"
)

// Defaults for the seen-session store; overridable via Options.
const (
	DefaultSeenRetention = 7 * 24 * time.Hour
	DefaultSeenMax       = 10_000
)

// Options adjusts indexer policy knobs.
type Options struct {
	// SeenRetention bounds how long a session key is remembered after it
	// last appeared. 0 selects the default.
	SeenRetention time.Duration

	// SeenMax caps the seen-session map. 0 selects the default.
	SeenMax int

	// Store, when set, warm-starts the meta cache at Start and persists
	// it after full scans and on Stop.
	Store *metacache.Store
}

// UpdateHandler observes the exposed projects list after a scan changed it.
type UpdateHandler func(projects []domain.Project)

// NewSessionHandler observes sessions crossing the new-after-initialization
// boundary.
type NewSessionHandler func(session domain.SessionRecord)

// Indexer owns the provider watchers, the meta cache, and the session and
// project maps.
type Indexer struct {
	providers []ports.Provider
	watcher   ports.TreeWatcher
	overrides ports.OverrideSource
	releaser  ports.BindingReleaser
	cache     *metacache.Cache
	opts      Options

	// mu guards every field below. It is never held across file I/O.
	mu          sync.Mutex
	started     bool
	initialized bool
	sessions    map[domain.SessionKey]domain.SessionRecord // raw, pre-override
	keyByFile   map[string]domain.SessionKey               // normalized path → key
	fileByKey   map[domain.SessionKey]string
	pinnedAt    map[domain.SessionKey]int64 // createdAt, pinned at first sight
	exposed     []domain.Project
	known       map[domain.SessionKey]bool
	seen        map[domain.SessionKey]int64 // key → last seen, unix ms

	// refresh coalescing
	refreshInFlight bool
	refreshQueued   bool

	// scanMu serializes full scans and single-file updates.
	scanMu sync.Mutex

	handlerMu      sync.Mutex
	nextHandlerID  int
	updateHandlers map[int]UpdateHandler
	newHandlers    map[int]NewSessionHandler

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an indexer over the given providers. watcher may be nil for
// scan-only use (tests, one-shot listings); overrides and releaser may be
// nil.
func New(providers []ports.Provider, watcher ports.TreeWatcher, overrides ports.OverrideSource, releaser ports.BindingReleaser, opts Options) *Indexer {
	if opts.SeenRetention <= 0 {
		opts.SeenRetention = DefaultSeenRetention
	}
	if opts.SeenMax <= 0 {
		opts.SeenMax = DefaultSeenMax
	}
	return &Indexer{
		providers:      providers,
		watcher:        watcher,
		overrides:      overrides,
		releaser:       releaser,
		cache:          metacache.New(),
		opts:           opts,
		sessions:       make(map[domain.SessionKey]domain.SessionRecord),
		keyByFile:      make(map[string]domain.SessionKey),
		fileByKey:      make(map[domain.SessionKey]string),
		pinnedAt:       make(map[domain.SessionKey]int64),
		known:          make(map[domain.SessionKey]bool),
		seen:           make(map[domain.SessionKey]int64),
		updateHandlers: make(map[int]UpdateHandler),
		newHandlers:    make(map[int]NewSessionHandler),
	}
}

// Start seeds the index with a synchronous full scan — which never fires
// new-session notifications — then opens the watchers and marks the
// indexer initialized.
func (ix *Indexer) Start(ctx context.Context) error {
	ix.mu.Lock()
	if ix.started {
		ix.mu.Unlock()
		return domain.ErrAlreadyStarted
	}
	ix.started = true
	ix.mu.Unlock()

	if ix.opts.Store != nil {
		if entries, err := ix.opts.Store.Load(); err != nil {
			log.Warn().Err(err).Msg("meta cache warm start failed")
		} else if len(entries) > 0 {
			ix.cache.Seed(entries)
			log.Debug().Int("entries", len(entries)).Msg("meta cache warm started")
		}
	}

	ix.fullScan()

	ix.mu.Lock()
	ix.initialized = true
	ix.mu.Unlock()

	if ix.watcher != nil {
		for _, provider := range ix.providers {
			if err := ix.watcher.AddRoot(provider.HomeDir()); err != nil {
				log.Warn().Err(err).
					Str("provider", provider.Name().String()).
					Msg("failed to add provider root to watcher")
			}
		}

		watchCtx, cancel := context.WithCancel(ctx)
		ix.cancel = cancel
		ix.done = make(chan struct{})

		if err := ix.watcher.Start(watchCtx); err != nil {
			cancel()
			close(ix.done)
			ix.done = nil
			return err
		}
		go ix.eventLoop(ix.done)
	}

	log.Info().
		Int("providers", len(ix.providers)).
		Int("sessions", ix.sessionCount()).
		Msg("session indexer started")
	return nil
}

// Stop closes the watchers. Pending debounce timers die with the watcher;
// scans already in flight run to completion. Stop is idempotent and safe
// to call at any time.
func (ix *Indexer) Stop() error {
	ix.mu.Lock()
	if !ix.started {
		ix.mu.Unlock()
		return nil
	}
	ix.started = false
	cancel := ix.cancel
	done := ix.done
	ix.cancel = nil
	ix.done = nil
	ix.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ix.watcher != nil {
		if err := ix.watcher.Stop(); err != nil {
			log.Warn().Err(err).Msg("watcher stop failed")
		}
	}
	if done != nil {
		<-done
	}

	if ix.opts.Store != nil {
		if err := ix.opts.Store.Save(ix.cache.Snapshot()); err != nil {
			log.Warn().Err(err).Msg("meta cache persist failed")
		}
	}

	log.Info().Msg("session indexer stopped")
	return nil
}

// Refresh runs a full scan. Concurrent calls coalesce: while one refresh
// is in flight, any number of further calls collapse into exactly one
// trailing refresh.
func (ix *Indexer) Refresh() {
	ix.mu.Lock()
	if ix.refreshInFlight {
		ix.refreshQueued = true
		ix.mu.Unlock()
		return
	}
	ix.refreshInFlight = true
	ix.mu.Unlock()

	for {
		ix.fullScan()

		ix.mu.Lock()
		if ix.refreshQueued {
			ix.refreshQueued = false
			ix.mu.Unlock()
			continue
		}
		ix.refreshInFlight = false
		ix.mu.Unlock()
		return
	}
}

// OnUpdate subscribes to post-scan project updates. The returned function
// unsubscribes.
func (ix *Indexer) OnUpdate(handler UpdateHandler) func() {
	ix.handlerMu.Lock()
	id := ix.nextHandlerID
	ix.nextHandlerID++
	ix.updateHandlers[id] = handler
	ix.handlerMu.Unlock()

	return func() {
		ix.handlerMu.Lock()
		delete(ix.updateHandlers, id)
		ix.handlerMu.Unlock()
	}
}

// OnNewSession subscribes to new-session notifications. The returned
// function unsubscribes.
func (ix *Indexer) OnNewSession(handler NewSessionHandler) func() {
	ix.handlerMu.Lock()
	id := ix.nextHandlerID
	ix.nextHandlerID++
	ix.newHandlers[id] = handler
	ix.handlerMu.Unlock()

	return func() {
		ix.handlerMu.Lock()
		delete(ix.newHandlers, id)
		ix.handlerMu.Unlock()
	}
}

// GetProjects returns a snapshot of the exposed projects list.
func (ix *Indexer) GetProjects() []domain.Project {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return domain.CloneProjects(ix.exposed)
}

// GetFilePathForSession returns the transcript path backing a session key.
func (ix *Indexer) GetFilePathForSession(key domain.SessionKey) (string, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	path, ok := ix.fileByKey[key]
	return path, ok
}

// Initialized reports whether the seeding scan has completed.
func (ix *Indexer) Initialized() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.initialized
}

func (ix *Indexer) sessionCount() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.sessions)
}

// eventLoop consumes debounced watch events until the watcher closes its
// channel.
func (ix *Indexer) eventLoop(done chan struct{}) {
	defer close(done)
	for event := range ix.watcher.Events() {
		ix.handleWatchEvent(event)
	}
}

// notifyUpdate runs every update handler with a fresh snapshot, isolating
// panics per handler.
func (ix *Indexer) notifyUpdate(projects []domain.Project) {
	ix.handlerMu.Lock()
	handlers := make([]UpdateHandler, 0, len(ix.updateHandlers))
	for _, h := range ix.updateHandlers {
		handlers = append(handlers, h)
	}
	ix.handlerMu.Unlock()

	for _, handler := range handlers {
		callIsolated(func() { handler(domain.CloneProjects(projects)) }, "update handler")
	}
}

// notifyNewSessions fires per-session notifications, after notifyUpdate,
// in updatedAt-ascending order.
func (ix *Indexer) notifyNewSessions(sessions []domain.SessionRecord) {
	if len(sessions) == 0 {
		return
	}

	ix.handlerMu.Lock()
	handlers := make([]NewSessionHandler, 0, len(ix.newHandlers))
	for _, h := range ix.newHandlers {
		handlers = append(handlers, h)
	}
	ix.handlerMu.Unlock()

	for _, session := range sessions {
		for _, handler := range handlers {
			s := session
			callIsolated(func() { handler(s) }, "new-session handler")
		}
	}
}

// callIsolated runs fn, converting a panic into a warning so one broken
// handler cannot interrupt a scan or starve other handlers.
func callIsolated(fn func(), what string) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().
				Interface("panic", r).
				Str("handler", what).
				Bytes("stack", debug.Stack()).
				Msg(what + " panicked")
		}
	}()
	fn()
}
