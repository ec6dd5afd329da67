// Package hub fans indexer and terminal events out to subscribers.
//
// Delivery is best effort: Publish never blocks, a full broadcast buffer
// drops the event, and a subscriber whose Send fails is evicted.
package hub

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/agentdeck/agentdeck/internal/domain/events"
	"github.com/agentdeck/agentdeck/internal/domain/ports"
)

// broadcastBuffer absorbs publish bursts during full scans.
const broadcastBuffer = 256

// Hub is the single event dispatcher for the process.
type Hub struct {
	broadcast  chan events.Event
	register   chan ports.Subscriber
	unregister chan string
	done       chan struct{}

	mu          sync.RWMutex
	subscribers map[string]ports.Subscriber
	running     bool
}

// New creates a stopped hub.
func New() *Hub {
	return &Hub{
		subscribers: make(map[string]ports.Subscriber),
		broadcast:   make(chan events.Event, broadcastBuffer),
		register:    make(chan ports.Subscriber),
		unregister:  make(chan string),
		done:        make(chan struct{}),
	}
}

// Start launches the dispatch loop. Calling Start twice is a no-op.
func (h *Hub) Start() error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
	log.Debug().Msg("event hub started")
	return nil
}

// Stop ends the dispatch loop and closes every subscriber. Idempotent.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	h.mu.Unlock()

	close(h.done)

	h.mu.Lock()
	for _, sub := range h.subscribers {
		_ = sub.Close()
	}
	h.subscribers = make(map[string]ports.Subscriber)
	h.mu.Unlock()

	log.Debug().Msg("event hub stopped")
	return nil
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return
		case sub := <-h.register:
			h.addSubscriber(sub)
		case id := <-h.unregister:
			h.dropSubscriber(id)
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) addSubscriber(sub ports.Subscriber) {
	h.mu.Lock()
	h.subscribers[sub.ID()] = sub
	count := len(h.subscribers)
	h.mu.Unlock()

	log.Debug().
		Str("subscriber_id", sub.ID()).
		Int("subscribers", count).
		Msg("subscriber registered")
}

func (h *Hub) dropSubscriber(id string) {
	h.mu.Lock()
	if sub, ok := h.subscribers[id]; ok {
		_ = sub.Close()
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	log.Debug().Str("subscriber_id", id).Msg("subscriber unregistered")
}

// deliver sends the event to every subscriber. A failing subscriber is
// queued for eviction from a goroutine so delivery to the rest is not
// held up; the send into unregister is non-blocking because the run
// loop may be busy with this very delivery.
func (h *Hub) deliver(event events.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, sub := range h.subscribers {
		if err := sub.Send(event); err != nil {
			log.Warn().
				Str("subscriber_id", id).
				Err(err).
				Msg("subscriber send failed, evicting")
			go func(subID string) {
				select {
				case h.unregister <- subID:
				default:
				}
			}(id)
		}
	}
}

// Publish queues the event for broadcast without blocking. When the
// buffer is full the event is dropped and logged.
func (h *Hub) Publish(event events.Event) {
	select {
	case h.broadcast <- event:
		log.Trace().
			Str("event_type", string(event.Type())).
			Str("session_key", event.GetSessionKey()).
			Msg("event published")
	default:
		log.Warn().
			Str("event_type", string(event.Type())).
			Msg("event dropped: broadcast channel full")
	}
}

// Subscribe registers the subscriber with the dispatch loop.
func (h *Hub) Subscribe(sub ports.Subscriber) {
	select {
	case h.register <- sub:
	case <-h.done:
	}
}

// Unsubscribe removes and closes the subscriber with the given id.
func (h *Hub) Unsubscribe(id string) {
	select {
	case h.unregister <- id:
	case <-h.done:
	}
}

// SubscriberCount reports the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// IsRunning reports whether the dispatch loop is live.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}
