package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentdeck/agentdeck/internal/config"
	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/domain/events"
	"github.com/agentdeck/agentdeck/internal/testutil"
)

// testConfig returns a config with a single claude provider rooted in a
// temp dir, persistence disabled, and an ephemeral server port.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Providers.Claude = config.ProviderConfig{Enabled: true, Home: filepath.Join(dir, "claude"), Command: "claude"}
	cfg.Indexer.DebounceMS = 10
	cfg.Indexer.SeenSessionRetentionMS = int64(7 * 24 * time.Hour / time.Millisecond)
	cfg.Indexer.SeenSessionMax = 1000
	cfg.Coordinator.MaxAssociationAgeMS = 30_000
	cfg.Overrides.Path = filepath.Join(dir, "overrides.yaml")
	return cfg
}

func TestNewRequiresEnabledProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.Claude.Enabled = false

	if _, err := New(cfg, "test"); err == nil {
		t.Fatal("expected error with no providers enabled")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, "test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if state := a.IndexerState(); state != "scanning" {
		t.Errorf("pre-start state = %q, want scanning", state)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := a.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	testutil.WaitForCondition(t, 2*time.Second, func() bool {
		return a.IndexerState() == "ready"
	}, "indexer never became ready")

	if a.UptimeSeconds() < 0 {
		t.Error("uptime went negative")
	}

	if err := a.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := a.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestNewSessionTriggersAssociation(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, "test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.hub.Start(); err != nil {
		t.Fatalf("hub start: %v", err)
	}
	defer a.hub.Stop()

	sub := testutil.NewMockSubscriber("observer")
	a.hub.Subscribe(sub)

	terminal := a.registry.Register(domain.ProviderClaude, "/home/u/proj")

	now := time.Now().UnixMilli()
	session := domain.SessionRecord{
		Key:         domain.NewSessionKey(domain.ProviderClaude, "sess-assoc"),
		ProjectPath: "/home/u/proj",
		CWD:         "/home/u/proj",
		UpdatedAt:   now,
		CreatedAt:   now,
	}
	a.onNewSession(session)

	testutil.WaitForCondition(t, 2*time.Second, func() bool {
		types := map[events.EventType]bool{}
		for _, ev := range sub.Events() {
			types[ev.Type()] = true
		}
		return types[events.EventTypeSessionNew] && types[events.EventTypeTerminalAssociated]
	}, "expected session.new and association events")

	key, ok := a.authority.SessionForTerminal(terminal.ID)
	if !ok || key != session.Key {
		t.Errorf("terminal binding = %v (ok=%v), want %v", key, ok, session.Key)
	}
}

func TestProjectsUpdateCollectsAndPairs(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, "test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.hub.Start(); err != nil {
		t.Fatalf("hub start: %v", err)
	}
	defer a.hub.Stop()

	sub := testutil.NewMockSubscriber("observer")
	a.hub.Subscribe(sub)

	a.registry.Register(domain.ProviderCodex, "/home/u/proj")

	now := time.Now().UnixMilli()
	projects := []domain.Project{{
		Path: "/home/u/proj",
		Sessions: []domain.SessionRecord{{
			Key:         domain.NewSessionKey(domain.ProviderCodex, "sess-scan"),
			ProjectPath: "/home/u/proj",
			CWD:         "/home/u/proj",
			UpdatedAt:   now,
			CreatedAt:   now,
		}},
	}}
	a.onProjectsUpdated(projects)

	testutil.WaitForCondition(t, 2*time.Second, func() bool {
		types := map[events.EventType]bool{}
		for _, ev := range sub.Events() {
			types[ev.Type()] = true
		}
		return types[events.EventTypeProjectsUpdated] && types[events.EventTypeTerminalAssociated]
	}, "expected projects.updated and association events")

	// A second identical update must not re-pair: the watermark consumed it.
	sub.ClearEvents()
	a.onProjectsUpdated(projects)
	time.Sleep(50 * time.Millisecond)
	for _, ev := range sub.Events() {
		if ev.Type() == events.EventTypeTerminalAssociated {
			t.Error("re-association on unchanged projects")
		}
	}
}
