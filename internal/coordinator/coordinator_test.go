package coordinator

import (
	"testing"
	"time"

	"github.com/agentdeck/agentdeck/internal/domain"
)

// fakeRegistry is a scripted AssociationRegistry.
type fakeRegistry struct {
	terminals []domain.TerminalInfo
	bound     map[string]domain.SessionKey
	bindCalls int
}

func newFakeRegistry(terminals ...domain.TerminalInfo) *fakeRegistry {
	return &fakeRegistry{terminals: terminals, bound: make(map[string]domain.SessionKey)}
}

func (f *fakeRegistry) FindUnassociatedTerminals(provider domain.Provider, cwd string) []domain.TerminalInfo {
	var out []domain.TerminalInfo
	for _, t := range f.terminals {
		if t.Provider != provider || t.CWD != cwd || !t.Running {
			continue
		}
		if _, ok := f.bound[t.ID]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (f *fakeRegistry) BindSession(terminalID string, provider domain.Provider, sessionID string) domain.BindResult {
	f.bindCalls++
	key := domain.NewSessionKey(provider, sessionID)
	if existing, ok := f.bound[terminalID]; ok && existing != key {
		return domain.BindRejectedBound(existing)
	}
	for id, k := range f.bound {
		if k == key && id != terminalID {
			return domain.BindRejectedOwned(id)
		}
	}
	f.bound[terminalID] = key
	return domain.BindSuccess()
}

func session(provider domain.Provider, id, cwd string, updatedAt int64) domain.SessionRecord {
	return domain.SessionRecord{
		Key:       domain.NewSessionKey(provider, id),
		CWD:       cwd,
		UpdatedAt: updatedAt,
	}
}

func TestFreshSessionBindsOldestWaitingTerminal(t *testing.T) {
	now := time.Now().UnixMilli()
	reg := newFakeRegistry(
		domain.TerminalInfo{ID: "t1", Provider: domain.ProviderClaude, CWD: "/home/u/project", CreatedAt: now - 5000, Running: true},
		domain.TerminalInfo{ID: "t2", Provider: domain.ProviderClaude, CWD: "/home/u/project", CreatedAt: now - 1000, Running: true},
	)
	c := New(reg, 0)

	s := session(domain.ProviderClaude, "550e8400-e29b-41d4-a716-446655440000", "/home/u/project", now)
	res := c.AssociateSingleSession(s)

	if !res.Associated {
		t.Fatal("fresh session did not associate")
	}
	if res.TerminalID != "t1" {
		t.Errorf("bound %s, want oldest t1", res.TerminalID)
	}
	if _, ok := reg.bound["t2"]; ok {
		t.Error("t2 should remain unbound")
	}
}

func TestStaleSessionDoesNotBindNewerTerminal(t *testing.T) {
	now := time.Now().UnixMilli()
	reg := newFakeRegistry(
		domain.TerminalInfo{ID: "t1", Provider: domain.ProviderCodex, CWD: "/w", CreatedAt: now, Running: true},
	)
	c := New(reg, 30*time.Second)

	// Session last touched two hours before the terminal was spawned.
	s := session(domain.ProviderCodex, "sess-old", "/w", now-2*time.Hour.Milliseconds())
	res := c.AssociateSingleSession(s)

	if res.Associated {
		t.Fatal("stale session associated")
	}
	if reg.bindCalls != 0 {
		t.Errorf("bind attempted %d times, want 0", reg.bindCalls)
	}
}

func TestWatermarkDeduplicatesAcrossScans(t *testing.T) {
	reg := newFakeRegistry()
	c := New(reg, 0)

	s := session(domain.ProviderClaude, "sess-1", "/w", 1000)
	if !c.NoteSession(s) {
		t.Fatal("first observation rejected")
	}
	if c.NoteSession(s) {
		t.Error("same updatedAt accepted twice")
	}

	s.UpdatedAt = 999
	if c.NoteSession(s) {
		t.Error("regressed updatedAt accepted")
	}

	s.UpdatedAt = 2000
	if !c.NoteSession(s) {
		t.Error("advanced updatedAt rejected")
	}
}

func TestNonResumableAndOrphanSessionsAreNeverCandidates(t *testing.T) {
	c := New(newFakeRegistry(), 0)

	if c.NoteSession(session(domain.ProviderGemini, "g1", "/w", 1000)) {
		t.Error("gemini session accepted")
	}
	if c.NoteSession(session(domain.ProviderKimi, "k1", "/w", 1000)) {
		t.Error("kimi session accepted")
	}
	if c.NoteSession(session(domain.ProviderClaude, "c1", "", 1000)) {
		t.Error("session without cwd accepted")
	}
}

func TestCollectNewOrAdvancedPreservesOrder(t *testing.T) {
	c := New(newFakeRegistry(), 0)

	projects := []domain.Project{
		{Path: "/a", Sessions: []domain.SessionRecord{
			session(domain.ProviderClaude, "a2", "/a", 2000),
			session(domain.ProviderClaude, "a1", "/a", 1000),
		}},
		{Path: "/b", Sessions: []domain.SessionRecord{
			session(domain.ProviderCodex, "b1", "/b", 1500),
		}},
	}

	got := c.CollectNewOrAdvanced(projects)
	if len(got) != 3 {
		t.Fatalf("collected %d, want 3", len(got))
	}
	wantOrder := []string{"a2", "a1", "b1"}
	for i, want := range wantOrder {
		if got[i].Key.ID != want {
			t.Errorf("candidate[%d] = %s, want %s", i, got[i].Key.ID, want)
		}
	}

	// Second collection with unchanged sessions yields nothing.
	if again := c.CollectNewOrAdvanced(projects); len(again) != 0 {
		t.Errorf("re-collection yielded %d candidates, want 0", len(again))
	}
}

func TestFirstCandidateConsumesTerminalDeterministically(t *testing.T) {
	now := time.Now().UnixMilli()
	reg := newFakeRegistry(
		domain.TerminalInfo{ID: "t1", Provider: domain.ProviderClaude, CWD: "/w", CreatedAt: now - 100, Running: true},
	)
	c := New(reg, 0)

	first := session(domain.ProviderClaude, "s-first", "/w", now)
	second := session(domain.ProviderClaude, "s-second", "/w", now)

	if res := c.AssociateSingleSession(first); !res.Associated || res.TerminalID != "t1" {
		t.Fatalf("first candidate: %+v", res)
	}
	// The only terminal is now bound; the second candidate sees none.
	if res := c.AssociateSingleSession(second); res.Associated {
		t.Error("second candidate fanned out to a bound terminal")
	}
}

func TestBindRejectionIsNotRetried(t *testing.T) {
	now := time.Now().UnixMilli()
	reg := newFakeRegistry(
		domain.TerminalInfo{ID: "t1", Provider: domain.ProviderClaude, CWD: "/w", CreatedAt: now - 200, Running: true},
		domain.TerminalInfo{ID: "t2", Provider: domain.ProviderClaude, CWD: "/w", CreatedAt: now - 100, Running: true},
	)
	// t1 already owns the session under a different terminal's key —
	// scripted so the first bind attempt is rejected.
	reg.bound["t-other"] = domain.NewSessionKey(domain.ProviderClaude, "sess-1")
	c := New(reg, 0)

	res := c.AssociateSingleSession(session(domain.ProviderClaude, "sess-1", "/w", now))
	if res.Associated {
		t.Fatal("rejected bind reported as associated")
	}
	if reg.bindCalls != 1 {
		t.Errorf("bind called %d times, want 1 (no retry)", reg.bindCalls)
	}
}

func TestForgetSessionResetsWatermark(t *testing.T) {
	c := New(newFakeRegistry(), 0)
	s := session(domain.ProviderClaude, "sess-1", "/w", 1000)

	c.NoteSession(s)
	c.ForgetSession(s.Key)
	if !c.NoteSession(s) {
		t.Error("session rejected after watermark was forgotten")
	}
}
