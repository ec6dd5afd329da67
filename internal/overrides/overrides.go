// Package overrides reads and applies the user-facing session edits kept
// in overrides.yaml under the application home. Overrides are consumed per
// scan: removing one restores whatever the next parse yields.
package overrides

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/pathutil"
)

// fileFormat is the on-disk shape of overrides.yaml.
type fileFormat struct {
	Sessions map[string]domain.Override `yaml:"sessions,omitempty"`
	Projects map[string]projectEntry    `yaml:"projects,omitempty"`
}

type projectEntry struct {
	Color string `yaml:"color,omitempty"`
}

// Store reads the overrides file. It implements ports.OverrideSource.
type Store struct {
	path string
}

// NewStore creates a store over the given overrides.yaml path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads the current override set. A missing file is an empty set;
// legacy bare session-id keys are accepted with a warning and treated as
// Claude keys.
func (s *Store) Load() (*domain.OverrideSet, error) {
	set := domain.EmptyOverrideSet()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, err
	}

	var parsed fileFormat
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	for rawKey, override := range parsed.Sessions {
		key := domain.ParseSessionKey(rawKey)
		if key.ID == "" {
			continue
		}
		if key.String() != rawKey {
			log.Warn().
				Str("key", rawKey).
				Str("treated_as", key.String()).
				Msg("legacy override key without provider prefix")
		}
		set.Sessions[key] = override
	}
	for path, entry := range parsed.Projects {
		if entry.Color != "" {
			set.Projects[pathutil.Normalize(path)] = entry.Color
		}
	}
	return set, nil
}

// Save writes the set back, creating parent directories as needed.
func (s *Store) Save(set *domain.OverrideSet) error {
	out := fileFormat{
		Sessions: make(map[string]domain.Override, len(set.Sessions)),
		Projects: make(map[string]projectEntry, len(set.Projects)),
	}
	for key, override := range set.Sessions {
		out.Sessions[key.String()] = override
	}
	for path, color := range set.Projects {
		out.Projects[path] = projectEntry{Color: color}
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Apply merges an override into a session record. The second return is
// true when the override deletes the session from exposure.
func Apply(session domain.SessionRecord, override domain.Override) (domain.SessionRecord, bool) {
	if override.Deleted {
		return session, true
	}
	if override.Title != nil {
		session.Title = *override.Title
	}
	if override.Summary != nil {
		session.Summary = *override.Summary
	}
	if override.CreatedAt != nil {
		session.CreatedAt = *override.CreatedAt
	}
	if override.Archived != nil {
		session.Archived = *override.Archived
	}
	return session, false
}

// ColorFor resolves a project's display color: exact path first, then the
// git repository root so worktrees of one repo share a color.
func ColorFor(set *domain.OverrideSet, projectPath string) string {
	if set == nil || len(set.Projects) == 0 {
		return ""
	}
	normalized := pathutil.Normalize(projectPath)
	if color, ok := set.Projects[normalized]; ok {
		return color
	}
	if root, ok := pathutil.ResolveGitRepoRoot(projectPath); ok {
		if color, ok := set.Projects[pathutil.Normalize(root)]; ok {
			return color
		}
	}
	return ""
}
