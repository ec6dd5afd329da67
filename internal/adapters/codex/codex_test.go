package codex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentdeck/agentdeck/internal/transcript"
)

const rolloutName = "rollout-2025-08-26T10-30-00-550e8400-e29b-41d4-a716-446655440000.jsonl"

func TestListSessionFilesWalksDateTree(t *testing.T) {
	home := t.TempDir()
	nested := filepath.Join(home, "sessions", "2025", "08", "26")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(nested, rolloutName), []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(nested, "notes.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p := New(home)
	files, err := p.ListSessionFiles()
	if err != nil {
		t.Fatalf("ListSessionFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("found %d files, want 1: %v", len(files), files)
	}
}

func TestListSessionFilesMissingHome(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "nope"))
	files, err := p.ListSessionFiles()
	if err != nil {
		t.Fatalf("missing home should not error: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("found %d files, want 0", len(files))
	}
}

func TestParseSessionFileReadsPayload(t *testing.T) {
	p := New(t.TempDir())
	data := []byte(`{"timestamp":"2025-08-26T10:30:00Z","type":"session_meta","payload":{"id":"sess-1","cwd":"/home/u/project","timestamp":"2025-08-26T10:29:58Z"}}` + "\n")

	meta := p.ParseSessionFile(data, "/p/"+rolloutName)
	if meta.SessionID != "sess-1" {
		t.Errorf("SessionID = %q, want sess-1", meta.SessionID)
	}
	if meta.CWD != "/home/u/project" {
		t.Errorf("CWD = %q, want /home/u/project", meta.CWD)
	}
	if meta.CreatedAt == 0 {
		t.Error("CreatedAt not harvested from payload timestamp")
	}
}

func TestExtractSessionIDFilenameFallback(t *testing.T) {
	p := New(t.TempDir())

	got := p.ExtractSessionID("/p/"+rolloutName, &transcript.Meta{SessionID: "embedded"})
	if got != "embedded" {
		t.Errorf("embedded id: got %q", got)
	}

	got = p.ExtractSessionID("/p/"+rolloutName, &transcript.Meta{})
	if got != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("filename fallback: got %q", got)
	}

	got = p.ExtractSessionID("/p/no-uuid-here.jsonl", &transcript.Meta{})
	if got != "" {
		t.Errorf("no id anywhere: got %q, want empty", got)
	}
}

func TestResolveProjectPathUsesCWD(t *testing.T) {
	p := New(t.TempDir())
	cwd := t.TempDir()

	got := p.ResolveProjectPath("/p/x.jsonl", &transcript.Meta{CWD: cwd})
	if got != cwd {
		t.Errorf("project path = %q, want %q", got, cwd)
	}
	if got := p.ResolveProjectPath("/p/x.jsonl", nil); got != "" {
		t.Errorf("nil meta: got %q, want empty", got)
	}
}
