package kimi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentdeck/agentdeck/internal/transcript"
)

func TestListSessionFiles(t *testing.T) {
	home := t.TempDir()
	dir := filepath.Join(home, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "k-123.jsonl"), []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p := New(home)
	files, err := p.ListSessionFiles()
	if err != nil {
		t.Fatalf("ListSessionFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("found %d files, want 1", len(files))
	}
}

func TestExtractSessionIDFromFilename(t *testing.T) {
	p := New(t.TempDir())
	if got := p.ExtractSessionID("/p/k-123.jsonl", &transcript.Meta{SessionID: "embedded"}); got != "k-123" {
		t.Errorf("id = %q, want filename stem k-123", got)
	}
}

func TestKimiIsNotResumable(t *testing.T) {
	if New(t.TempDir()).SupportsResume() {
		t.Error("kimi must not support resume")
	}
}
