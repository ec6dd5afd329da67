// Package terminals implements the in-memory terminal registry. External
// spawners register a PTY-backed terminal here when they launch a provider
// CLI and mark it exited when the process dies; the association coordinator
// queries the registry for running, unbound terminals waiting at a working
// directory. The registry never spawns or signals processes itself.
package terminals

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/binding"
	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/domain/events"
	"github.com/agentdeck/agentdeck/internal/domain/ports"
	"github.com/agentdeck/agentdeck/internal/pathutil"
)

// Registry tracks registered terminals and implements
// ports.AssociationRegistry on top of the binding authority.
type Registry struct {
	authority *binding.Authority
	hub       ports.EventHub
	logger    *slog.Logger

	mu        sync.RWMutex
	terminals map[string]domain.TerminalInfo
}

// NewRegistry creates a registry sharing the given binding authority.
func NewRegistry(authority *binding.Authority, hub ports.EventHub, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		authority: authority,
		hub:       hub,
		logger:    logger,
		terminals: make(map[string]domain.TerminalInfo),
	}
}

// Register records a newly spawned terminal and returns its identity.
func (r *Registry) Register(provider domain.Provider, cwd string) domain.TerminalInfo {
	info := domain.TerminalInfo{
		ID:        uuid.New().String(),
		Provider:  provider,
		CWD:       pathutil.Normalize(cwd),
		CreatedAt: time.Now().UnixMilli(),
		Running:   true,
	}

	r.mu.Lock()
	r.terminals[info.ID] = info
	r.mu.Unlock()

	r.logger.Info("terminal registered",
		"terminal_id", info.ID,
		"provider", string(provider),
		"cwd", info.CWD)

	if r.hub != nil {
		r.hub.Publish(events.NewTerminalRegisteredEvent(info))
	}
	return info
}

// MarkExited removes a terminal and releases any binding it held.
func (r *Registry) MarkExited(terminalID string) error {
	r.mu.Lock()
	info, ok := r.terminals[terminalID]
	if ok {
		delete(r.terminals, terminalID)
	}
	r.mu.Unlock()

	if !ok {
		return domain.ErrTerminalNotFound
	}

	if key, had := r.authority.UnbindTerminal(terminalID); had {
		r.logger.Info("terminal exited, binding released",
			"terminal_id", terminalID,
			"session", key.String())
	} else {
		r.logger.Info("terminal exited", "terminal_id", terminalID, "provider", string(info.Provider))
	}

	if r.hub != nil {
		r.hub.Publish(events.NewTerminalExitedEvent(terminalID))
	}
	return nil
}

// Get returns one terminal by id.
func (r *Registry) Get(terminalID string) (domain.TerminalInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.terminals[terminalID]
	return info, ok
}

// List returns all registered terminals, oldest first.
func (r *Registry) List() []domain.TerminalInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.TerminalInfo, 0, len(r.terminals))
	for _, info := range r.terminals {
		out = append(out, info)
	}
	sortOldestFirst(out)
	return out
}

// FindUnassociatedTerminals returns the running, unbound terminals whose
// provider and working directory match, oldest first.
func (r *Registry) FindUnassociatedTerminals(provider domain.Provider, cwd string) []domain.TerminalInfo {
	normalized := pathutil.Normalize(cwd)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.TerminalInfo
	for _, info := range r.terminals {
		if !info.Running || info.Provider != provider || info.CWD != normalized {
			continue
		}
		if _, bound := r.authority.SessionForTerminal(info.ID); bound {
			continue
		}
		out = append(out, info)
	}
	sortOldestFirst(out)
	return out
}

// BindSession assigns the session to the terminal through the authority.
// Unknown terminals are rejected as already-exited rather than erroring.
func (r *Registry) BindSession(terminalID string, provider domain.Provider, sessionID string) domain.BindResult {
	r.mu.RLock()
	_, ok := r.terminals[terminalID]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn("bind attempt for unknown terminal",
			"terminal_id", terminalID,
			"session_id", sessionID)
		return domain.BindResult{OK: false, Reason: domain.RejectTerminalNotFound}
	}
	return r.authority.Bind(provider, sessionID, terminalID)
}

func sortOldestFirst(terminals []domain.TerminalInfo) {
	sort.Slice(terminals, func(i, j int) bool {
		if terminals[i].CreatedAt != terminals[j].CreatedAt {
			return terminals[i].CreatedAt < terminals[j].CreatedAt
		}
		return terminals[i].ID < terminals[j].ID
	})
}
