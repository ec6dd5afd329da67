package gemini

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentdeck/agentdeck/internal/transcript"
)

func TestListSessionFiles(t *testing.T) {
	home := t.TempDir()
	chats := filepath.Join(home, "tmp", "a1b2c3", "chats")
	if err := os.MkdirAll(chats, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(chats, "session-x1.jsonl"), []byte("{}\n"), 0o644); err != nil {
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

func TestExtractSessionIDStripsPrefix(t *testing.T) {
	p := New(t.TempDir())

	if got := p.ExtractSessionID("/p/session-x1.jsonl", &transcript.Meta{}); got != "x1" {
		t.Errorf("id = %q, want x1", got)
	}
	if got := p.ExtractSessionID("/p/session-x1.jsonl", &transcript.Meta{SessionID: "embedded"}); got != "embedded" {
		t.Errorf("id = %q, want embedded", got)
	}
}

func TestGeminiIsNotResumable(t *testing.T) {
	if New(t.TempDir()).SupportsResume() {
		t.Error("gemini must not support resume")
	}
}
