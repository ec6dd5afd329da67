package ports

import (
	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/transcript"
)

// Provider adapts one coding-assistant CLI's on-disk session layout to the
// indexer. Implementations live under internal/adapters.
type Provider interface {
	// Name returns the provider tag.
	Name() domain.Provider

	// DisplayName returns the human-readable provider name.
	DisplayName() string

	// HomeDir returns the provider's resolved home directory.
	HomeDir() string

	// SessionGlob returns the glob, relative to HomeDir, matching this
	// provider's transcript files.
	SessionGlob() string

	// ListSessionFiles enumerates the absolute paths of every candidate
	// transcript file currently on disk.
	ListSessionFiles() ([]string, error)

	// ParseSessionFile extracts header metadata from raw transcript bytes.
	// Pure function: no I/O, never nil.
	ParseSessionFile(data []byte, filePath string) *transcript.Meta

	// ResolveProjectPath maps a transcript to its canonical project
	// directory. Empty when the file cannot be attributed to a project.
	ResolveProjectPath(filePath string, meta *transcript.Meta) string

	// ExtractSessionID returns the session id for a transcript, or "" when
	// neither the embedded nor the filename-derived id validates.
	ExtractSessionID(filePath string, meta *transcript.Meta) string

	// IsValidSessionID reports whether id satisfies this provider's format.
	IsValidSessionID(id string) bool

	// SupportsResume reports whether the CLI accepts a session id argument
	// to continue a previous conversation.
	SupportsResume() bool
}
