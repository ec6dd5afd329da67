// Package binding implements the session-to-terminal binding authority: a
// registry enforcing that at any moment a session key maps to at most one
// terminal and a terminal holds at most one session key, first writer wins.
package binding

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/agentdeck/agentdeck/internal/domain"
)

// Authority holds the bijective session ↔ terminal maps. All operations
// are synchronous and atomic: a failed bind never leaves a half-written
// entry.
type Authority struct {
	mu         sync.RWMutex
	bySession  map[domain.SessionKey]string
	byTerminal map[string]domain.SessionKey
}

// NewAuthority creates an empty authority.
func NewAuthority() *Authority {
	return &Authority{
		bySession:  make(map[domain.SessionKey]string),
		byTerminal: make(map[string]domain.SessionKey),
	}
}

// Bind assigns the session to the terminal. Repeating an existing binding
// succeeds idempotently; conflicts come back as typed rejections carrying
// the current holder.
func (a *Authority) Bind(provider domain.Provider, sessionID, terminalID string) domain.BindResult {
	key := domain.NewSessionKey(provider, sessionID)

	a.mu.Lock()
	defer a.mu.Unlock()

	if owner, ok := a.bySession[key]; ok {
		if owner == terminalID {
			return domain.BindSuccess()
		}
		return domain.BindRejectedOwned(owner)
	}
	if existing, ok := a.byTerminal[terminalID]; ok && existing != key {
		return domain.BindRejectedBound(existing)
	}

	a.bySession[key] = terminalID
	a.byTerminal[terminalID] = key

	log.Debug().
		Str("session", key.String()).
		Str("terminal_id", terminalID).
		Msg("session bound to terminal")
	return domain.BindSuccess()
}

// OwnerForSession returns the terminal holding the session, if any.
func (a *Authority) OwnerForSession(provider domain.Provider, sessionID string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	owner, ok := a.bySession[domain.NewSessionKey(provider, sessionID)]
	return owner, ok
}

// SessionForTerminal returns the session the terminal holds, if any.
func (a *Authority) SessionForTerminal(terminalID string) (domain.SessionKey, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	key, ok := a.byTerminal[terminalID]
	return key, ok
}

// UnbindTerminal removes the terminal's binding, returning the cleared key.
func (a *Authority) UnbindTerminal(terminalID string) (domain.SessionKey, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key, ok := a.byTerminal[terminalID]
	if !ok {
		return domain.SessionKey{}, false
	}
	delete(a.byTerminal, terminalID)
	delete(a.bySession, key)

	log.Debug().
		Str("session", key.String()).
		Str("terminal_id", terminalID).
		Msg("terminal unbound")
	return key, true
}

// ClearSessionOwner removes the session's binding in both directions,
// returning the terminal that held it. Used when a session disappears and
// the caller no longer knows the terminal id.
func (a *Authority) ClearSessionOwner(provider domain.Provider, sessionID string) (string, bool) {
	key := domain.NewSessionKey(provider, sessionID)

	a.mu.Lock()
	defer a.mu.Unlock()

	terminalID, ok := a.bySession[key]
	if !ok {
		return "", false
	}
	delete(a.bySession, key)
	delete(a.byTerminal, terminalID)

	log.Debug().
		Str("session", key.String()).
		Str("terminal_id", terminalID).
		Msg("session binding cleared")
	return terminalID, true
}

// Bindings returns a snapshot of the current session → terminal map.
func (a *Authority) Bindings() map[domain.SessionKey]string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[domain.SessionKey]string, len(a.bySession))
	for key, terminalID := range a.bySession {
		out[key] = terminalID
	}
	return out
}

// Len returns the number of active bindings.
func (a *Authority) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.bySession)
}
