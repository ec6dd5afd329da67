// Package codex adapts the Codex CLI's rollout-file session layout. Codex
// nests transcripts by date under {home}/sessions and names them
// rollout-{timestamp}-{uuid}.jsonl; the session id and cwd live in a
// session_meta line's payload.
package codex

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/pathutil"
	"github.com/agentdeck/agentdeck/internal/transcript"
)

// rolloutIDPattern extracts the trailing UUID from a rollout filename.
var rolloutIDPattern = regexp.MustCompile(`([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})$`)

// Provider implements ports.Provider for the Codex CLI.
type Provider struct {
	home string
}

// New creates the Codex provider. An empty home resolves CODEX_HOME, then
// ~/.codex.
func New(home string) *Provider {
	if home == "" {
		home = DefaultHome()
	}
	return &Provider{home: home}
}

// DefaultHome resolves the Codex home directory.
func DefaultHome() string {
	if env := os.Getenv("CODEX_HOME"); env != "" {
		return env
	}
	userHome, err := os.UserHomeDir()
	if err != nil || userHome == "" {
		return ".codex"
	}
	return filepath.Join(userHome, ".codex")
}

func (p *Provider) Name() domain.Provider { return domain.ProviderCodex }

func (p *Provider) DisplayName() string { return "Codex" }

func (p *Provider) HomeDir() string { return p.home }

func (p *Provider) SessionGlob() string { return "sessions/**/*.jsonl" }

func (p *Provider) SupportsResume() bool { return true }

// IsValidSessionID accepts any non-empty id.
func (p *Provider) IsValidSessionID(id string) bool { return id != "" }

// ListSessionFiles walks the date-nested sessions tree.
func (p *Provider) ListSessionFiles() ([]string, error) {
	root := filepath.Join(p.home, "sessions")
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // skip unreadable subtrees
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// ParseSessionFile extracts header metadata. Rollout lines wrap their
// fields in a payload envelope, so the payload id and timestamp are probed
// alongside the standard shapes.
func (p *Provider) ParseSessionFile(data []byte, filePath string) *transcript.Meta {
	return transcript.Parse(data, transcript.Options{
		ValidID:        p.IsValidSessionID,
		ExtraIDPaths:   [][]string{{"payload", "id"}},
		ExtraTimePaths: [][]string{{"payload", "timestamp"}},
	})
}

// ExtractSessionID prefers the embedded id and falls back to the UUID
// suffix of the rollout filename.
func (p *Provider) ExtractSessionID(filePath string, meta *transcript.Meta) string {
	if meta != nil && meta.SessionID != "" {
		return meta.SessionID
	}
	stem := strings.TrimSuffix(filepath.Base(filePath), ".jsonl")
	if m := rolloutIDPattern.FindString(stem); m != "" {
		return m
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
