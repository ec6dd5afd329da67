// Package domain contains the core model types and errors shared by the
// indexer, the binding authority, and the association coordinator.
package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Provider identifies one coding-assistant CLI.
type Provider string

const (
	ProviderClaude   Provider = "claude"
	ProviderCodex    Provider = "codex"
	ProviderOpenCode Provider = "opencode"
	ProviderGemini   Provider = "gemini"
	ProviderKimi     Provider = "kimi"
)

// AllProviders lists every known provider tag in stable order.
var AllProviders = []Provider{
	ProviderClaude,
	ProviderCodex,
	ProviderOpenCode,
	ProviderGemini,
	ProviderKimi,
}

// Valid reports whether p is one of the known provider tags.
func (p Provider) Valid() bool {
	switch p {
	case ProviderClaude, ProviderCodex, ProviderOpenCode, ProviderGemini, ProviderKimi:
		return true
	}
	return false
}

func (p Provider) String() string { return string(p) }

// SessionKey identifies a session globally: the provider tag plus the
// provider-scoped session id.
type SessionKey struct {
	Provider Provider
	ID       string
}

// NewSessionKey builds a key from its parts.
func NewSessionKey(provider Provider, id string) SessionKey {
	return SessionKey{Provider: provider, ID: id}
}

// ParseSessionKey parses "provider:sessionId". Bare ids without a provider
// prefix are legacy Claude keys.
func ParseSessionKey(s string) SessionKey {
	if i := strings.Index(s, ":"); i > 0 {
		if p := Provider(s[:i]); p.Valid() {
			return SessionKey{Provider: p, ID: s[i+1:]}
		}
	}
	return SessionKey{Provider: ProviderClaude, ID: s}
}

// String renders the composite "provider:sessionId" form.
func (k SessionKey) String() string {
	return string(k.Provider) + ":" + k.ID
}

// IsZero reports whether the key carries no id.
func (k SessionKey) IsZero() bool { return k.ID == "" }

// MarshalText renders the composite form, making the key usable as a JSON
// object key and map index.
func (k SessionKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the composite form, accepting legacy bare ids.
func (k *SessionKey) UnmarshalText(text []byte) error {
	parsed := ParseSessionKey(string(text))
	if parsed.ID == "" {
		return fmt.Errorf("empty session key %q", string(text))
	}
	*k = parsed
	return nil
}

// SessionRecord is the immutable value the indexer produces for one
// transcript file on one scan.
type SessionRecord struct {
	Key          SessionKey `json:"key"`
	ProjectPath  string     `json:"project_path"`
	CWD          string     `json:"cwd"`
	UpdatedAt    int64      `json:"updated_at"` // unix milliseconds, from file mtime
	CreatedAt    int64      `json:"created_at"` // unix milliseconds, best effort
	MessageCount int        `json:"message_count"`
	Title        string     `json:"title,omitempty"`
	Summary      string     `json:"summary,omitempty"`
	Archived     bool       `json:"archived,omitempty"`
	SourceFile   string     `json:"source_file"`
}

// Project groups the session records sharing one project path.
type Project struct {
	Path     string          `json:"path"`
	Color    string          `json:"color,omitempty"`
	Sessions []SessionRecord `json:"sessions"`
}

// LatestUpdatedAt returns the newest session timestamp in the group, or 0
// for an empty group.
func (p Project) LatestUpdatedAt() int64 {
	var latest int64
	for _, s := range p.Sessions {
		if s.UpdatedAt > latest {
			latest = s.UpdatedAt
		}
	}
	return latest
}

// SortSessions orders records newest-first; ties break on the composite key
// ascending so the order is total.
func SortSessions(sessions []SessionRecord) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].UpdatedAt != sessions[j].UpdatedAt {
			return sessions[i].UpdatedAt > sessions[j].UpdatedAt
		}
		return sessions[i].Key.String() < sessions[j].Key.String()
	})
}

// SortProjects orders groups by their newest session descending; ties break
// on path ascending.
func SortProjects(projects []Project) {
	sort.Slice(projects, func(i, j int) bool {
		li, lj := projects[i].LatestUpdatedAt(), projects[j].LatestUpdatedAt()
		if li != lj {
			return li > lj
		}
		return projects[i].Path < projects[j].Path
	})
}

// CloneProjects deep-copies a projects slice so published snapshots cannot
// be mutated by callers.
func CloneProjects(projects []Project) []Project {
	out := make([]Project, len(projects))
	for i, p := range projects {
		cp := p
		cp.Sessions = make([]SessionRecord, len(p.Sessions))
		copy(cp.Sessions, p.Sessions)
		out[i] = cp
	}
	return out
}

// TerminalInfo describes one registered terminal as seen by the coordinator.
type TerminalInfo struct {
	ID        string   `json:"id"`
	Provider  Provider `json:"provider"`
	CWD       string   `json:"cwd"`
	CreatedAt int64    `json:"created_at"` // unix milliseconds
	Running   bool     `json:"running"`
}

// Override carries the user-facing edits applied to a session after parsing.
// A nil field means "no override".
type Override struct {
	Deleted   bool    `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	Title     *string `json:"title,omitempty" yaml:"title,omitempty"`
	Summary   *string `json:"summary,omitempty" yaml:"summary,omitempty"`
	CreatedAt *int64  `json:"created_at_ms,omitempty" yaml:"created_at_ms,omitempty"`
	Archived  *bool   `json:"archived,omitempty" yaml:"archived,omitempty"`
}

// OverrideSet is everything the overrides store supplies for one scan:
// per-session edits plus per-project display colors.
type OverrideSet struct {
	Sessions map[SessionKey]Override
	Projects map[string]string // project path → color
}

// EmptyOverrideSet returns a set that overrides nothing.
func EmptyOverrideSet() *OverrideSet {
	return &OverrideSet{
		Sessions: map[SessionKey]Override{},
		Projects: map[string]string{},
	}
}
