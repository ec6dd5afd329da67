package overrides

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentdeck/agentdeck/internal/domain"
)

func TestLoadMissingFileIsEmptySet(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "overrides.yaml"))
	set, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(set.Sessions) != 0 || len(set.Projects) != 0 {
		t.Errorf("set not empty: %+v", set)
	}
}

func TestLoadParsesCompositeAndLegacyKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	content := `
sessions:
  codex:sess-1:
    archived: true
  550e8400-e29b-41d4-a716-446655440000:
    deleted: true
projects:
  /home/u/project:
    color: "#ff8800"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	set, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	codexKey := domain.NewSessionKey(domain.ProviderCodex, "sess-1")
	if ov, ok := set.Sessions[codexKey]; !ok || ov.Archived == nil || !*ov.Archived {
		t.Errorf("codex override = %+v ok=%v", set.Sessions[codexKey], ok)
	}

	// Legacy bare id maps to the claude provider.
	legacyKey := domain.NewSessionKey(domain.ProviderClaude, "550e8400-e29b-41d4-a716-446655440000")
	if ov, ok := set.Sessions[legacyKey]; !ok || !ov.Deleted {
		t.Errorf("legacy override = %+v ok=%v", set.Sessions[legacyKey], ok)
	}

	if color := set.Projects["/home/u/project"]; color != "#ff8800" {
		t.Errorf("color = %q, want #ff8800", color)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nested", "overrides.yaml"))

	title := "renamed session"
	set := domain.EmptyOverrideSet()
	set.Sessions[domain.NewSessionKey(domain.ProviderClaude, "abc")] = domain.Override{Title: &title}
	set.Projects["/p"] = "#123456"

	if err := s.Save(set); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ov := loaded.Sessions[domain.NewSessionKey(domain.ProviderClaude, "abc")]
	if ov.Title == nil || *ov.Title != title {
		t.Errorf("title override = %+v", ov.Title)
	}
}

func TestApply(t *testing.T) {
	base := domain.SessionRecord{
		Key:       domain.NewSessionKey(domain.ProviderClaude, "s1"),
		Title:     "parsed title",
		Summary:   "parsed summary",
		CreatedAt: 1000,
	}

	t.Run("no override fields is identity", func(t *testing.T) {
		got, deleted := Apply(base, domain.Override{})
		if deleted {
			t.Fatal("empty override deleted the session")
		}
		if got != base {
			t.Errorf("got %+v, want unchanged", got)
		}
	})

	t.Run("field overrides merge", func(t *testing.T) {
		title := "custom"
		createdAt := int64(500)
		archived := true
		got, deleted := Apply(base, domain.Override{Title: &title, CreatedAt: &createdAt, Archived: &archived})
		if deleted {
			t.Fatal("override deleted the session")
		}
		if got.Title != "custom" || got.CreatedAt != 500 || !got.Archived {
			t.Errorf("merged = %+v", got)
		}
		if got.Summary != "parsed summary" {
			t.Errorf("summary clobbered: %q", got.Summary)
		}
	})

	t.Run("deleted wins", func(t *testing.T) {
		if _, deleted := Apply(base, domain.Override{Deleted: true}); !deleted {
			t.Error("deleted override not signalled")
		}
	})
}

func TestColorForFallsBackToRepoRoot(t *testing.T) {
	repo := t.TempDir()
	if err := os.Mkdir(filepath.Join(repo, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	sub := filepath.Join(repo, "pkg", "deep")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	set := domain.EmptyOverrideSet()
	set.Projects[repo] = "#00ff00"

	if got := ColorFor(set, repo); got != "#00ff00" {
		t.Errorf("exact match color = %q", got)
	}
	if got := ColorFor(set, sub); got != "#00ff00" {
		t.Errorf("repo-root fallback color = %q", got)
	}
	if got := ColorFor(set, t.TempDir()); got != "" {
		t.Errorf("unrelated path color = %q, want empty", got)
	}
}
