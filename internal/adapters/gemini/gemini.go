// Package gemini adapts the Gemini CLI's chat storage: transcripts live
// under {home}/tmp/{hash}/chats and are named session-{id}.jsonl.
package gemini

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/pathutil"
	"github.com/agentdeck/agentdeck/internal/transcript"
)

// Provider implements ports.Provider for the Gemini CLI.
type Provider struct {
	home string
}

// New creates the Gemini provider. An empty home resolves GEMINI_HOME, then
// ~/.gemini.
func New(home string) *Provider {
	if home == "" {
		home = DefaultHome()
	}
	return &Provider{home: home}
}

// DefaultHome resolves the Gemini home directory.
func DefaultHome() string {
	if env := os.Getenv("GEMINI_HOME"); env != "" {
		return env
	}
	userHome, err := os.UserHomeDir()
	if err != nil || userHome == "" {
		return ".gemini"
	}
	return filepath.Join(userHome, ".gemini")
}

func (p *Provider) Name() domain.Provider { return domain.ProviderGemini }

func (p *Provider) DisplayName() string { return "Gemini CLI" }

func (p *Provider) HomeDir() string { return p.home }

func (p *Provider) SessionGlob() string { return "tmp/*/chats/*.jsonl" }

// SupportsResume is false: the Gemini CLI has no resume-by-session-id
// argument.
func (p *Provider) SupportsResume() bool { return false }

// IsValidSessionID accepts any non-empty id.
func (p *Provider) IsValidSessionID(id string) bool { return id != "" }

// ListSessionFiles enumerates chat transcripts across the per-project tmp
// directories.
func (p *Provider) ListSessionFiles() ([]string, error) {
	pattern := filepath.Join(p.home, "tmp", "*", "chats", "*.jsonl")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// ParseSessionFile extracts header metadata from raw transcript bytes.
func (p *Provider) ParseSessionFile(data []byte, filePath string) *transcript.Meta {
	return transcript.Parse(data, transcript.Options{ValidID: p.IsValidSessionID})
}

// ExtractSessionID prefers the embedded id, falling back to the filename
// stem with its "session-" prefix stripped.
func (p *Provider) ExtractSessionID(filePath string, meta *transcript.Meta) string {
	if meta != nil && meta.SessionID != "" {
		return meta.SessionID
	}
	stem := strings.TrimSuffix(filepath.Base(filePath), ".jsonl")
	return strings.TrimPrefix(stem, "session-")
}

// ResolveProjectPath groups by the git checkout containing the transcript
// cwd, falling back to the cwd itself.
func (p *Provider) ResolveProjectPath(filePath string, meta *transcript.Meta) string {
	if meta == nil {
		return ""
	}
	return pathutil.ProjectPathForCWD(meta.CWD)
}
