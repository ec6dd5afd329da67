package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentdeck/agentdeck/internal/domain/events"
	"github.com/agentdeck/agentdeck/internal/hub"
	"github.com/agentdeck/agentdeck/internal/testutil"
)

func httpHandlerFunc(s *Service) http.Handler {
	return http.HandlerFunc(s.HandleWebSocket)
}

func TestClientConnectAndReceiveEvent(t *testing.T) {
	eventHub := hub.New()
	_ = eventHub.Start()
	defer func() { _ = eventHub.Stop() }()

	service := NewService(eventHub)
	_ = service.Start()
	defer func() { _ = service.Stop() }()

	srv := httptest.NewServer(httpHandlerFunc(service))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	testutil.WaitForCondition(t, time.Second, func() bool {
		return service.ClientCount() == 1 && eventHub.SubscriberCount() == 1
	}, "client registered with hub")

	eventHub.Publish(events.NewEvent(events.EventTypeProjectsUpdated, map[string]any{"projects": []any{}}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("event not JSON: %v", err)
	}
	if payload["event"] != string(events.EventTypeProjectsUpdated) {
		t.Errorf("event type = %v", payload["event"])
	}
}

func TestSubscribeCommandFiltersEvents(t *testing.T) {
	eventHub := hub.New()
	_ = eventHub.Start()
	defer func() { _ = eventHub.Stop() }()

	service := NewService(eventHub)
	_ = service.Start()
	defer func() { _ = service.Stop() }()

	srv := httptest.NewServer(httpHandlerFunc(service))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	testutil.WaitForCondition(t, time.Second, func() bool {
		return service.ClientCount() == 1 && eventHub.SubscriberCount() == 1
	}, "client registered")

	cmd := `{"command":"subscribe","projects":["/home/u/a"]}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(cmd)); err != nil {
		t.Fatal(err)
	}

	// Wait until the filter is applied before publishing.
	testutil.WaitForCondition(t, time.Second, func() bool {
		service.mu.RLock()
		defer service.mu.RUnlock()
		for _, f := range service.filters {
			if f.IsFiltering() {
				return true
			}
		}
		return false
	}, "subscription applied")

	eventHub.Publish(events.NewEventWithContext(events.EventTypeSessionNew, nil, "/home/u/b", ""))
	eventHub.Publish(events.NewEventWithContext(events.EventTypeSessionNew, nil, "/home/u/a", ""))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["project_path"] != "/home/u/a" {
		t.Errorf("first delivered event project = %v, want /home/u/a", payload["project_path"])
	}
}

func TestDisconnectUnsubscribesFromHub(t *testing.T) {
	eventHub := hub.New()
	_ = eventHub.Start()
	defer func() { _ = eventHub.Stop() }()

	service := NewService(eventHub)
	_ = service.Start()
	defer func() { _ = service.Stop() }()

	srv := httptest.NewServer(httpHandlerFunc(service))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	testutil.WaitForCondition(t, time.Second, func() bool {
		return service.ClientCount() == 1
	}, "client registered")

	conn.Close()

	testutil.WaitForCondition(t, time.Second, func() bool {
		return service.ClientCount() == 0 && eventHub.SubscriberCount() == 0
	}, "client and hub subscription removed")
}

func TestHeartbeatUsesStatusProvider(t *testing.T) {
	service := NewService(testutil.NewMockEventHub())
	service.SetStatusProvider(stubStatus{})

	srv := httptest.NewServer(httpHandlerFunc(service))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	testutil.WaitForCondition(t, time.Second, func() bool {
		return service.ClientCount() == 1
	}, "client registered")

	service.broadcastHeartbeat()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"heartbeat"`) || !strings.Contains(string(data), "ready") {
		t.Errorf("heartbeat payload = %s", data)
	}
}

type stubStatus struct{}

func (stubStatus) IndexerState() string { return "ready" }
func (stubStatus) UptimeSeconds() int64 { return 42 }
