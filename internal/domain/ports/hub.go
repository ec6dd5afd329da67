package ports

import (
	"github.com/agentdeck/agentdeck/internal/domain/events"
)

// Subscriber receives events published through the hub. Implementations
// must tolerate Send after Close by returning an error rather than
// blocking or panicking.
type Subscriber interface {
	// ID uniquely identifies the subscriber within the hub.
	ID() string

	// Send delivers one event. An error marks the subscriber as failed
	// and the hub will evict it.
	Send(event events.Event) error

	// Close releases the subscriber. Idempotent.
	Close() error

	// Done is closed once the subscriber will accept no further events.
	Done() <-chan struct{}
}

// EventHub fans events out to subscribers. Publish never blocks the
// caller; delivery is best effort.
type EventHub interface {
	Start() error
	Stop() error

	// Publish broadcasts the event to every active subscriber.
	Publish(event events.Event)

	// Subscribe registers a subscriber.
	Subscribe(sub Subscriber)

	// Unsubscribe removes and closes the subscriber with the given id.
	Unsubscribe(id string)

	// SubscriberCount reports the number of active subscribers.
	SubscriberCount() int
}
