package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/domain/events"
	"github.com/agentdeck/agentdeck/internal/domain/ports"
	"github.com/agentdeck/agentdeck/internal/hub"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 15 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 90 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Send buffer size per client.
	sendBufferSize = 1024

	// Application-level heartbeat interval.
	// Sent as a JSON event (not WebSocket ping) for client-side monitoring.
	heartbeatInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The server binds localhost by default; origin checks are left to
		// deployments that expose it further.
		return true
	},
}

// StatusProvider supplies status fields for heartbeat events.
type StatusProvider interface {
	// IndexerState describes the indexer: "initializing", "ready".
	IndexerState() string

	// UptimeSeconds is the process uptime.
	UptimeSeconds() int64
}

// clientCommand is the incoming subscription-control message.
type clientCommand struct {
	Command   string   `json:"command"`
	Events    []string `json:"events,omitempty"`
	Providers []string `json:"providers,omitempty"`
	Projects  []string `json:"projects,omitempty"`
}

// Service owns the WebSocket endpoint: client registry, hub subscriptions,
// and the heartbeat broadcaster. It is mounted on the main HTTP listener
// via HandleWebSocket.
type Service struct {
	hub            ports.EventHub
	statusProvider StatusProvider

	mu      sync.RWMutex
	clients map[string]*Client
	filters map[string]*hub.FilteredSubscriber

	heartbeatDone chan struct{}
	heartbeatSeq  int64
	startTime     time.Time
	started       bool
}

// NewService creates the WebSocket service.
func NewService(eventHub ports.EventHub) *Service {
	return &Service{
		hub:           eventHub,
		clients:       make(map[string]*Client),
		filters:       make(map[string]*hub.FilteredSubscriber),
		heartbeatDone: make(chan struct{}),
		startTime:     time.Now(),
	}
}

// SetStatusProvider sets the status provider for heartbeat events.
func (s *Service) SetStatusProvider(provider StatusProvider) {
	s.statusProvider = provider
}

// Start launches the heartbeat broadcaster.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	go s.heartbeatLoop()
	return nil
}

// Stop terminates the heartbeat loop and disconnects every client.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	clients := s.clients
	s.clients = make(map[string]*Client)
	s.filters = make(map[string]*hub.FilteredSubscriber)
	s.mu.Unlock()

	close(s.heartbeatDone)
	for _, client := range clients {
		client.Close()
	}
	return nil
}

// HandleWebSocket upgrades the request and registers the client with the
// event hub.
func (s *Service) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := NewClient(conn, s.handleMessage, func(id string) {
		if s.hub != nil {
			s.hub.Unsubscribe(id)
		}
		s.removeClient(id)
	})

	filtered := hub.NewFilteredSubscriber(NewClientSubscriber(client))

	s.mu.Lock()
	s.clients[client.ID()] = client
	s.filters[client.ID()] = filtered
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.Subscribe(filtered)
	}

	log.Info().
		Str("client_id", client.ID()).
		Str("remote_addr", conn.RemoteAddr().String()).
		Msg("client connected")

	client.Start()
}

// handleMessage applies a client's subscription command to its filter.
func (s *Service) handleMessage(clientID string, message []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		log.Debug().Err(err).Str("client_id", clientID).Msg("ignoring malformed client message")
		return
	}

	s.mu.RLock()
	filtered := s.filters[clientID]
	s.mu.RUnlock()
	if filtered == nil {
		return
	}

	switch cmd.Command {
	case "subscribe":
		for _, eventType := range cmd.Events {
			filtered.SubscribeType(events.EventType(eventType))
		}
		for _, provider := range cmd.Providers {
			filtered.SubscribeProvider(domain.Provider(provider))
		}
		for _, project := range cmd.Projects {
			filtered.SubscribeProject(project)
		}
	case "unsubscribe":
		for _, project := range cmd.Projects {
			filtered.UnsubscribeProject(project)
		}
	case "subscribe_all":
		filtered.SubscribeAll()
	default:
		log.Debug().Str("client_id", clientID).Str("command", cmd.Command).Msg("unknown client command")
	}
}

// removeClient removes a client from the registry.
func (s *Service) removeClient(id string) {
	s.mu.Lock()
	delete(s.clients, id)
	delete(s.filters, id)
	s.mu.Unlock()
	log.Info().Str("client_id", id).Msg("client disconnected")
}

// Broadcast sends a raw message to all connected clients.
func (s *Service) Broadcast(message []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, client := range s.clients {
		client.Send(message)
	}
}

// ClientCount returns the number of connected clients.
func (s *Service) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// heartbeatLoop broadcasts periodic heartbeat events to connected clients.
// This provides application-level connection monitoring beyond WebSocket
// ping/pong.
func (s *Service) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.heartbeatDone:
			return
		case <-ticker.C:
			s.broadcastHeartbeat()
		}
	}
}

// broadcastHeartbeat sends a heartbeat event to all connected clients.
func (s *Service) broadcastHeartbeat() {
	if s.ClientCount() == 0 {
		return
	}

	indexerState := "unknown"
	uptimeSeconds := int64(time.Since(s.startTime).Seconds())
	if s.statusProvider != nil {
		indexerState = s.statusProvider.IndexerState()
		uptimeSeconds = s.statusProvider.UptimeSeconds()
	}

	seq := atomic.AddInt64(&s.heartbeatSeq, 1)
	heartbeat := events.NewHeartbeatEvent(seq, indexerState, uptimeSeconds)

	data, err := heartbeat.ToJSON()
	if err != nil {
		log.Warn().Err(err).Msg("failed to serialize heartbeat")
		return
	}

	s.Broadcast(data)
	log.Trace().Int64("seq", seq).Msg("heartbeat sent")
}
