package hub

import (
	"sync"

	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/domain/events"
	"github.com/agentdeck/agentdeck/internal/domain/ports"
)

// FilteredSubscriber wraps a subscriber and filters events by type and by
// project path. Empty filters forward everything; events carrying no
// project context (heartbeats, errors, terminal lifecycle) always pass the
// project filter so clients never lose connection-level signals.
type FilteredSubscriber struct {
	inner     ports.Subscriber
	types     map[events.EventType]bool
	providers map[domain.Provider]bool
	projects  map[string]bool
	mu        sync.RWMutex
}

// NewFilteredSubscriber creates a new filtered subscriber wrapping the given subscriber.
func NewFilteredSubscriber(inner ports.Subscriber) *FilteredSubscriber {
	return &FilteredSubscriber{
		inner:     inner,
		types:     make(map[events.EventType]bool),
		providers: make(map[domain.Provider]bool),
		projects:  make(map[string]bool),
	}
}

// ID returns the subscriber's unique identifier.
func (f *FilteredSubscriber) ID() string {
	return f.inner.ID()
}

// Send forwards the event to the wrapped subscriber if it passes the filter.
func (f *FilteredSubscriber) Send(event events.Event) error {
	if !f.shouldForward(event) {
		return nil
	}
	return f.inner.Send(event)
}

// Close closes the subscriber.
func (f *FilteredSubscriber) Close() error {
	return f.inner.Close()
}

// Done returns a channel that's closed when the subscriber is done.
func (f *FilteredSubscriber) Done() <-chan struct{} {
	return f.inner.Done()
}

// SubscribeType restricts delivery to the given event type. Calling it for
// several types widens the set.
func (f *FilteredSubscriber) SubscribeType(eventType events.EventType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types[eventType] = true
}

// SubscribeProvider restricts delivery to events whose session belongs to
// the given provider.
func (f *FilteredSubscriber) SubscribeProvider(provider domain.Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers[provider] = true
}

// SubscribeProject restricts delivery to events for the given project path.
func (f *FilteredSubscriber) SubscribeProject(projectPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[projectPath] = true
}

// UnsubscribeProject removes a project from the filter.
func (f *FilteredSubscriber) UnsubscribeProject(projectPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.projects, projectPath)
}

// SubscribeAll clears every filter, forwarding all events.
func (f *FilteredSubscriber) SubscribeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = make(map[events.EventType]bool)
	f.providers = make(map[domain.Provider]bool)
	f.projects = make(map[string]bool)
}

// SubscribedProjects returns the project paths currently filtered on.
func (f *FilteredSubscriber) SubscribedProjects() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make([]string, 0, len(f.projects))
	for path := range f.projects {
		result = append(result, path)
	}
	return result
}

// IsFiltering reports whether any filter is active.
func (f *FilteredSubscriber) IsFiltering() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.types) > 0 || len(f.providers) > 0 || len(f.projects) > 0
}

// shouldForward applies the filters. An event must pass each active one;
// events without the relevant context always pass that filter.
func (f *FilteredSubscriber) shouldForward(event events.Event) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.types) > 0 && !f.types[event.Type()] {
		return false
	}

	if len(f.providers) > 0 {
		if sessionKey := event.GetSessionKey(); sessionKey != "" {
			if !f.providers[domain.ParseSessionKey(sessionKey).Provider] {
				return false
			}
		}
	}

	if len(f.projects) > 0 {
		projectPath := event.GetProjectPath()
		if projectPath != "" && !f.projects[projectPath] {
			return false
		}
	}
	return true
}
