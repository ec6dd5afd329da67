// Package app wires the components of agentdeck together: providers,
// watcher, indexer, binding authority, terminal registry, coordinator,
// event hub, and the HTTP/WebSocket servers.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/rs/zerolog/log"

	"github.com/agentdeck/agentdeck/internal/adapters/claude"
	"github.com/agentdeck/agentdeck/internal/adapters/codex"
	"github.com/agentdeck/agentdeck/internal/adapters/gemini"
	"github.com/agentdeck/agentdeck/internal/adapters/kimi"
	"github.com/agentdeck/agentdeck/internal/adapters/metacache"
	"github.com/agentdeck/agentdeck/internal/adapters/opencode"
	"github.com/agentdeck/agentdeck/internal/adapters/watcher"
	"github.com/agentdeck/agentdeck/internal/binding"
	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/coordinator"
	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/domain/events"
	"github.com/agentdeck/agentdeck/internal/domain/ports"
	"github.com/agentdeck/agentdeck/internal/hub"
	"github.com/agentdeck/agentdeck/internal/indexer"
	"github.com/agentdeck/agentdeck/internal/overrides"
	httpserver "github.com/agentdeck/agentdeck/internal/server/http"
	"github.com/agentdeck/agentdeck/internal/server/websocket"
	"github.com/agentdeck/agentdeck/internal/terminals"
)

// App owns the component graph and its lifecycle.
type App struct {
	cfg     *config.Config
	version string

	hub        *hub.Hub
	metaStore  *metacache.Store
	overrides  *overrides.Store
	watcher    *watcher.Watcher
	index      *indexer.Indexer
	authority  *binding.Authority
	registry   *terminals.Registry
	coord      *coordinator.Coordinator
	wsService  *websocket.Service
	httpServer *httpserver.Server

	unsubUpdate func()
	unsubNew    func()

	startTime time.Time
	mu        sync.Mutex
	running   bool
}

// New builds the component graph from config. Nothing starts until Start.
func New(cfg *config.Config, version string) (*App, error) {
	a := &App{
		cfg:     cfg,
		version: version,
		hub:     hub.New(),
	}

	a.overrides = overrides.NewStore(cfg.Overrides.Path)
	a.authority = binding.NewAuthority()

	registryLogger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
	a.registry = terminals.NewRegistry(a.authority, a.hub, registryLogger)
	a.coord = coordinator.New(a.registry, time.Duration(cfg.Coordinator.MaxAssociationAgeMS)*time.Millisecond)

	if cfg.Indexer.Cache.Enabled {
		store, err := metacache.OpenStore(cfg.Indexer.Cache.Path)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.Indexer.Cache.Path).Msg("meta cache store unavailable, continuing without persistence")
		} else {
			a.metaStore = store
		}
	}

	providers := BuildProviders(cfg)
	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}

	a.watcher = watcher.New(time.Duration(cfg.Indexer.DebounceMS) * time.Millisecond)
	a.index = indexer.New(providers, a.watcher, a.overrides, a.authority, indexer.Options{
		SeenRetention: time.Duration(cfg.Indexer.SeenSessionRetentionMS) * time.Millisecond,
		SeenMax:       cfg.Indexer.SeenSessionMax,
		Store:         a.metaStore,
	})

	a.wsService = websocket.NewService(a.hub)
	a.wsService.SetStatusProvider(a)

	a.httpServer = httpserver.New(
		cfg.Server.Host, cfg.Server.Port,
		a.index, a.registry, a.authority,
		a.wsService.HandleWebSocket,
	)

	return a, nil
}

// BuildProviders constructs the adapter for every enabled provider.
func BuildProviders(cfg *config.Config) []ports.Provider {
	var providers []ports.Provider
	for name, pc := range cfg.Providers.EnabledProviders() {
		switch domain.Provider(name) {
		case domain.ProviderClaude:
			providers = append(providers, claude.New(pc.Home))
		case domain.ProviderCodex:
			providers = append(providers, codex.New(pc.Home))
		case domain.ProviderOpenCode:
			providers = append(providers, opencode.New(pc.Home))
		case domain.ProviderGemini:
			providers = append(providers, gemini.New(pc.Home))
		case domain.ProviderKimi:
			providers = append(providers, kimi.New(pc.Home))
		default:
			log.Warn().Str("provider", name).Msg("unknown provider in config, skipping")
		}
	}
	return providers
}

// Start brings the components up in dependency order: hub, WebSocket
// service, event wiring, indexer, HTTP server.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("application already running")
	}
	a.running = true
	a.startTime = time.Now()
	a.mu.Unlock()

	if err := a.hub.Start(); err != nil {
		return fmt.Errorf("start event hub: %w", err)
	}
	if err := a.wsService.Start(); err != nil {
		return fmt.Errorf("start websocket service: %w", err)
	}

	a.unsubUpdate = a.index.OnUpdate(a.onProjectsUpdated)
	a.unsubNew = a.index.OnNewSession(a.onNewSession)

	if err := a.index.Start(ctx); err != nil {
		return fmt.Errorf("start indexer: %w", err)
	}

	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("start HTTP server: %w", err)
	}

	log.Info().
		Str("version", a.version).
		Str("addr", fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)).
		Msg("agentdeck started")

	return nil
}

// onProjectsUpdated broadcasts the new projects list and feeds the full
// scan's outcome through the coordinator: sessions that are new or whose
// transcript advanced become pairing candidates.
func (a *App) onProjectsUpdated(projects []domain.Project) {
	a.hub.Publish(events.NewProjectsUpdatedEvent(projects))

	for _, session := range a.coord.CollectNewOrAdvanced(projects) {
		result := a.coord.Pair(session)
		if result.Associated {
			a.publishAssociation(result.TerminalID, session.Key)
		}
	}
}

// onNewSession broadcasts the session and tries an immediate association.
func (a *App) onNewSession(session domain.SessionRecord) {
	a.hub.Publish(events.NewSessionNewEvent(session))

	result := a.coord.AssociateSingleSession(session)
	if result.Associated {
		a.publishAssociation(result.TerminalID, session.Key)
	}
}

func (a *App) publishAssociation(terminalID string, key domain.SessionKey) {
	a.hub.Publish(events.NewTerminalAssociatedEvent(terminalID, key))
}

// Stop tears the components down in reverse order. Safe to call twice.
func (a *App) Stop() error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	log.Info().Msg("agentdeck stopping")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpServer.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown error")
	}

	if a.unsubUpdate != nil {
		a.unsubUpdate()
		a.unsubUpdate = nil
	}
	if a.unsubNew != nil {
		a.unsubNew()
		a.unsubNew = nil
	}

	if err := a.index.Stop(); err != nil {
		log.Warn().Err(err).Msg("indexer stop error")
	}
	if err := a.wsService.Stop(); err != nil {
		log.Warn().Err(err).Msg("websocket service stop error")
	}
	if err := a.hub.Stop(); err != nil {
		log.Warn().Err(err).Msg("event hub stop error")
	}

	if a.metaStore != nil {
		if err := a.metaStore.Close(); err != nil {
			log.Warn().Err(err).Msg("meta cache store close error")
		}
	}

	return nil
}

// Hub exposes the event hub for CLI wiring.
func (a *App) Hub() *hub.Hub { return a.hub }

// Indexer exposes the session index.
func (a *App) Indexer() *indexer.Indexer { return a.index }

// IndexerState reports the index lifecycle phase for heartbeats.
func (a *App) IndexerState() string {
	if a.index.Initialized() {
		return "ready"
	}
	return "scanning"
}

// UptimeSeconds reports seconds since Start.
func (a *App) UptimeSeconds() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startTime.IsZero() {
		return 0
	}
	return int64(time.Since(a.startTime).Seconds())
}
