package events

import (
	"time"

	"github.com/agentdeck/agentdeck/internal/domain"
)

// ProjectsUpdatedPayload is the payload for projects.updated events. It
// carries the full exposed projects list after a scan changed it.
type ProjectsUpdatedPayload struct {
	Projects     []domain.Project `json:"projects"`
	SessionCount int              `json:"session_count"`
}

// SessionNewPayload is the payload for session.new events.
type SessionNewPayload struct {
	Session domain.SessionRecord `json:"session"`
}

// TerminalRegisteredPayload is the payload for terminal.registered events.
type TerminalRegisteredPayload struct {
	Terminal domain.TerminalInfo `json:"terminal"`
}

// TerminalExitedPayload is the payload for terminal.exited events.
type TerminalExitedPayload struct {
	TerminalID string `json:"terminal_id"`
}

// TerminalAssociatedPayload is the payload for terminal.session.associated
// events, emitted when a session has been paired with a waiting terminal.
type TerminalAssociatedPayload struct {
	TerminalID string          `json:"terminal_id"`
	Provider   domain.Provider `json:"provider"`
	SessionID  string          `json:"session_id"`
}

// ErrorPayload is the payload for error events.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatPayload is the payload for heartbeat events.
// Heartbeats are sent periodically to allow clients to detect connection
// issues at the application level (beyond WebSocket ping/pong frames).
type HeartbeatPayload struct {
	ServerTime   string `json:"server_time"`
	Sequence     int64  `json:"sequence"`
	IndexerState string `json:"indexer_state"`
	Uptime       int64  `json:"uptime_seconds"`
}

// NewProjectsUpdatedEvent creates a new projects.updated event.
func NewProjectsUpdatedEvent(projects []domain.Project) *BaseEvent {
	count := 0
	for _, p := range projects {
		count += len(p.Sessions)
	}
	return NewEvent(EventTypeProjectsUpdated, ProjectsUpdatedPayload{
		Projects:     projects,
		SessionCount: count,
	})
}

// NewSessionNewEvent creates a new session.new event.
func NewSessionNewEvent(session domain.SessionRecord) *BaseEvent {
	return NewEventWithContext(EventTypeSessionNew, SessionNewPayload{
		Session: session,
	}, session.ProjectPath, session.Key.String())
}

// NewTerminalRegisteredEvent creates a new terminal.registered event.
func NewTerminalRegisteredEvent(terminal domain.TerminalInfo) *BaseEvent {
	return NewEvent(EventTypeTerminalRegistered, TerminalRegisteredPayload{
		Terminal: terminal,
	})
}

// NewTerminalExitedEvent creates a new terminal.exited event.
func NewTerminalExitedEvent(terminalID string) *BaseEvent {
	return NewEvent(EventTypeTerminalExited, TerminalExitedPayload{
		TerminalID: terminalID,
	})
}

// NewTerminalAssociatedEvent creates a new terminal.session.associated event.
func NewTerminalAssociatedEvent(terminalID string, key domain.SessionKey) *BaseEvent {
	return NewEventWithContext(EventTypeTerminalAssociated, TerminalAssociatedPayload{
		TerminalID: terminalID,
		Provider:   key.Provider,
		SessionID:  key.ID,
	}, "", key.String())
}

// NewErrorEvent creates a new error event.
func NewErrorEvent(code, message string) *BaseEvent {
	return NewEvent(EventTypeError, ErrorPayload{
		Code:    code,
		Message: message,
	})
}

// NewHeartbeatEvent creates a new heartbeat event.
func NewHeartbeatEvent(sequence int64, indexerState string, uptimeSeconds int64) *BaseEvent {
	return NewEvent(EventTypeHeartbeat, HeartbeatPayload{
		ServerTime:   time.Now().UTC().Format(time.RFC3339),
		Sequence:     sequence,
		IndexerState: indexerState,
		Uptime:       uptimeSeconds,
	})
}
