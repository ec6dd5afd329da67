package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentdeck/agentdeck/internal/domain/events"
)

func TestMockSubscriberRecordsEvents(t *testing.T) {
	sub := NewMockSubscriber("test-sub")

	if sub.ID() != "test-sub" {
		t.Errorf("expected ID test-sub, got %s", sub.ID())
	}
	if err := sub.Send(events.NewEvent(events.EventTypeHeartbeat, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.EventCount() != 1 {
		t.Errorf("expected 1 event, got %d", sub.EventCount())
	}
}

func TestMockSubscriberSendError(t *testing.T) {
	sub := NewMockSubscriber("test-sub")
	sentinel := errors.New("boom")
	sub.SetSendError(sentinel)

	if err := sub.Send(events.NewEvent(events.EventTypeHeartbeat, nil)); !errors.Is(err, sentinel) {
		t.Errorf("Send error = %v, want %v", err, sentinel)
	}
	if sub.EventCount() != 0 {
		t.Errorf("errored send recorded an event")
	}
}

func TestMockSubscriberClose(t *testing.T) {
	sub := NewMockSubscriber("test-sub")
	_ = sub.Close()
	_ = sub.Close()

	if !sub.IsClosed() {
		t.Error("subscriber not closed")
	}
	select {
	case <-sub.Done():
	default:
		t.Error("Done channel not closed")
	}
}

func TestMockEventHub(t *testing.T) {
	hub := NewMockEventHub()
	_ = hub.Start()
	if !hub.IsRunning() {
		t.Error("hub not running after Start")
	}

	hub.Subscribe(NewMockSubscriber("a"))
	hub.Subscribe(NewMockSubscriber("b"))
	hub.Unsubscribe("a")
	if hub.SubscriberCount() != 1 {
		t.Errorf("subscriber count = %d, want 1", hub.SubscriberCount())
	}

	hub.Publish(events.NewEvent(events.EventTypeSessionNew, nil))
	hub.Publish(events.NewEvent(events.EventTypeProjectsUpdated, nil))
	types := hub.PublishedTypes()
	if len(types) != 2 || types[0] != events.EventTypeSessionNew || types[1] != events.EventTypeProjectsUpdated {
		t.Errorf("published types = %v", types)
	}
}

func TestWriteTranscript(t *testing.T) {
	dir := t.TempDir()
	path := WriteTranscript(t, dir, "nested/s.jsonl", "sess-1", "/tmp/project")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"sessionId":"sess-1"`) {
		t.Errorf("fixture missing session id: %s", data)
	}
}

func TestClaudeProjectDir(t *testing.T) {
	home := t.TempDir()
	dir := ClaudeProjectDir(t, home, "/home/u/project")

	if filepath.Dir(dir) != filepath.Join(home, "projects") {
		t.Errorf("slug dir %q not under projects/", dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("slug dir not created: %v", err)
	}
}
