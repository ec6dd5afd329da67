// Package opencode adapts the OpenCode CLI's session storage: one message
// log per session under {home}/storage/session/message, named by the
// session id.
package opencode

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/pathutil"
	"github.com/agentdeck/agentdeck/internal/transcript"
)

// Provider implements ports.Provider for the OpenCode CLI.
type Provider struct {
	home string
}

// New creates the OpenCode provider. An empty home resolves OPENCODE_HOME,
// then $XDG_DATA_HOME/opencode, then ~/.local/share/opencode.
func New(home string) *Provider {
	if home == "" {
		home = DefaultHome()
	}
	return &Provider{home: home}
}

// DefaultHome resolves the OpenCode data directory.
func DefaultHome() string {
	if env := os.Getenv("OPENCODE_HOME"); env != "" {
		return env
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "opencode")
	}
	userHome, err := os.UserHomeDir()
	if err != nil || userHome == "" {
		return "opencode"
	}
	return filepath.Join(userHome, ".local", "share", "opencode")
}

func (p *Provider) Name() domain.Provider { return domain.ProviderOpenCode }

func (p *Provider) DisplayName() string { return "OpenCode" }

func (p *Provider) HomeDir() string { return p.home }

func (p *Provider) SessionGlob() string { return "storage/session/message/*.jsonl" }

func (p *Provider) SupportsResume() bool { return true }

// IsValidSessionID accepts any non-empty id.
func (p *Provider) IsValidSessionID(id string) bool { return id != "" }

// ListSessionFiles enumerates the per-session message logs.
func (p *Provider) ListSessionFiles() ([]string, error) {
	dir := filepath.Join(p.home, "storage", "session", "message")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

// ParseSessionFile extracts header metadata from raw transcript bytes.
func (p *Provider) ParseSessionFile(data []byte, filePath string) *transcript.Meta {
	return transcript.Parse(data, transcript.Options{ValidID: p.IsValidSessionID})
}

// ExtractSessionID uses the filename stem; OpenCode names the log after the
// session.
func (p *Provider) ExtractSessionID(filePath string, meta *transcript.Meta) string {
	if stem := strings.TrimSuffix(filepath.Base(filePath), ".jsonl"); stem != "" {
		return stem
	}
	if meta != nil {
		return meta.SessionID
	}
	return ""
}

// ResolveProjectPath groups by the git checkout containing the transcript
// cwd, falling back to the cwd itself.
func (p *Provider) ResolveProjectPath(filePath string, meta *transcript.Meta) string {
	if meta == nil {
		return ""
	}
	return pathutil.ProjectPathForCWD(meta.CWD)
}
