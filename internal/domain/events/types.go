// Package events defines all event types published on the hub.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Index events
	EventTypeProjectsUpdated EventType = "projects.updated"
	EventTypeSessionNew      EventType = "session.new"

	// Terminal events
	EventTypeTerminalRegistered EventType = "terminal.registered"
	EventTypeTerminalExited     EventType = "terminal.exited"
	EventTypeTerminalAssociated EventType = "terminal.session.associated"

	// Connection events
	EventTypeHeartbeat EventType = "heartbeat"
	EventTypeError     EventType = "error"
)

// Event is the base interface for all events.
type Event interface {
	// Type returns the event type.
	Type() EventType

	// Timestamp returns when the event occurred.
	Timestamp() time.Time

	// ToJSON serializes the event to JSON.
	ToJSON() ([]byte, error)

	// GetProjectPath returns the project path context (may be empty).
	GetProjectPath() string

	// GetSessionKey returns the composite session key context (may be empty).
	GetSessionKey() string
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType   EventType   `json:"event"`
	EventTime   time.Time   `json:"timestamp"`
	ProjectPath string      `json:"project_path,omitempty"`
	SessionKey  string      `json:"session_key,omitempty"`
	Payload     interface{} `json:"payload"`
}

// SetContext sets the project and session context for an event.
func (e *BaseEvent) SetContext(projectPath, sessionKey string) {
	e.ProjectPath = projectPath
	e.SessionKey = sessionKey
}

// GetProjectPath returns the project path context.
func (e *BaseEvent) GetProjectPath() string {
	return e.ProjectPath
}

// GetSessionKey returns the composite session key context.
func (e *BaseEvent) GetSessionKey() string {
	return e.SessionKey
}

// Type returns the event type.
func (e *BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// ToJSON serializes the event to JSON.
func (e *BaseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// NewEvent creates a new base event with the given type and payload.
func NewEvent(eventType EventType, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewEventWithContext creates a new event with project and session context.
func NewEventWithContext(eventType EventType, payload interface{}, projectPath, sessionKey string) *BaseEvent {
	return &BaseEvent{
		EventType:   eventType,
		EventTime:   time.Now().UTC(),
		ProjectPath: projectPath,
		SessionKey:  sessionKey,
		Payload:     payload,
	}
}
