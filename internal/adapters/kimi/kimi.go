// Package kimi adapts the Kimi CLI's session storage: one transcript per
// session under {home}/sessions, named by the session id.
package kimi

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/pathutil"
	"github.com/agentdeck/agentdeck/internal/transcript"
)

// Provider implements ports.Provider for the Kimi CLI.
type Provider struct {
	home string
}

// New creates the Kimi provider. An empty home resolves KIMI_HOME, then
// ~/.kimi.
func New(home string) *Provider {
	if home == "" {
		home = DefaultHome()
	}
	return &Provider{home: home}
}

// DefaultHome resolves the Kimi home directory.
func DefaultHome() string {
	if env := os.Getenv("KIMI_HOME"); env != "" {
		return env
	}
	userHome, err := os.UserHomeDir()
	if err != nil || userHome == "" {
		return ".kimi"
	}
	return filepath.Join(userHome, ".kimi")
}

func (p *Provider) Name() domain.Provider { return domain.ProviderKimi }

func (p *Provider) DisplayName() string { return "Kimi CLI" }

func (p *Provider) HomeDir() string { return p.home }

func (p *Provider) SessionGlob() string { return "sessions/*.jsonl" }

// SupportsResume is false: the Kimi CLI has no resume-by-session-id
// argument.
func (p *Provider) SupportsResume() bool { return false }

// IsValidSessionID accepts any non-empty id.
func (p *Provider) IsValidSessionID(id string) bool { return id != "" }

// ListSessionFiles enumerates the session transcripts.
func (p *Provider) ListSessionFiles() ([]string, error) {
	dir := filepath.Join(p.home, "sessions")
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

// ExtractSessionID uses the filename stem; Kimi names the transcript after
// the session.
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
