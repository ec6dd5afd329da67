package ports

import "github.com/agentdeck/agentdeck/internal/domain"

// AssociationRegistry is the coordinator's view of the terminal registry:
// which terminals are running, unbound, and waiting at a given working
// directory.
type AssociationRegistry interface {
	// FindUnassociatedTerminals returns the running, unbound terminals
	// whose mode matches provider and whose cwd matches after
	// normalization, oldest first.
	FindUnassociatedTerminals(provider domain.Provider, cwd string) []domain.TerminalInfo

	// BindSession assigns the session to the terminal through the binding
	// authority. Rejections come back as typed results, never errors.
	BindSession(terminalID string, provider domain.Provider, sessionID string) domain.BindResult
}

// BindingReleaser lets the indexer revoke a session's binding when the
// session is removed or its id turns out to be invalid.
type BindingReleaser interface {
	// ClearSessionOwner removes the binding for the session in both
	// directions, returning the terminal that held it.
	ClearSessionOwner(provider domain.Provider, sessionID string) (terminalID string, ok bool)
}

// OverrideSource supplies the user-facing session edits consumed on each
// scan.
type OverrideSource interface {
	// Load reads the current override set. Implementations should be cheap
	// enough to call once per scan.
	Load() (*domain.OverrideSet, error)
}
