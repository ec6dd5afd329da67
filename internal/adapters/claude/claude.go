// Package claude adapts the Claude CLI's on-disk session layout. Claude
// stores one directory per project under {home}/projects, with the project
// path flattened into the directory name and one UUID-named .jsonl
// transcript per session.
package claude

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/pathutil"
	"github.com/agentdeck/agentdeck/internal/transcript"
)

// maxMetadataFileSize caps the JSON files probed for a project path.
const maxMetadataFileSize = 200 * 1024

// uuidPattern matches the UUID session ids Claude writes.
var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// metadataFileNames are probed in order inside each project slug directory.
var metadataFileNames = []string{"project.json", "metadata.json", "config.json"}

// projectPathKeys are the JSON keys that may name the project directory.
var projectPathKeys = []string{"projectPath", "path", "cwd", "root", "project_root", "project_root_path"}

// Provider implements ports.Provider for the Claude CLI.
type Provider struct {
	home string

	mu        sync.Mutex
	slugPaths map[string]string // slug dir → resolved project path
}

// New creates the Claude provider. An empty home resolves CLAUDE_HOME, then
// ~/.claude.
func New(home string) *Provider {
	if home == "" {
		home = DefaultHome()
	}
	return &Provider{home: home, slugPaths: make(map[string]string)}
}

// DefaultHome resolves the Claude home directory.
func DefaultHome() string {
	if env := os.Getenv("CLAUDE_HOME"); env != "" {
		return env
	}
	userHome, err := os.UserHomeDir()
	if err != nil || userHome == "" {
		return ".claude"
	}
	return filepath.Join(userHome, ".claude")
}

func (p *Provider) Name() domain.Provider { return domain.ProviderClaude }

func (p *Provider) DisplayName() string { return "Claude Code" }

func (p *Provider) HomeDir() string { return p.home }

func (p *Provider) SessionGlob() string { return "projects/*/*.jsonl" }

func (p *Provider) SupportsResume() bool { return true }

// IsValidSessionID requires Claude's UUID shape.
func (p *Provider) IsValidSessionID(id string) bool {
	return uuidPattern.MatchString(id)
}

// ListSessionFiles enumerates every transcript under the projects tree.
func (p *Provider) ListSessionFiles() ([]string, error) {
	projectsDir := filepath.Join(p.home, "projects")
	slugs, err := os.ReadDir(projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, slug := range slugs {
		if !slug.IsDir() {
			continue
		}
		slugDir := filepath.Join(projectsDir, slug.Name())
		entries, err := os.ReadDir(slugDir)
		if err != nil {
			log.Warn().Err(err).Str("dir", slugDir).Msg("unreadable project directory")
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
				continue
			}
			files = append(files, filepath.Join(slugDir, entry.Name()))
		}
	}
	return files, nil
}

// ParseSessionFile extracts header metadata from raw transcript bytes.
func (p *Provider) ParseSessionFile(data []byte, filePath string) *transcript.Meta {
	return transcript.Parse(data, transcript.Options{ValidID: p.IsValidSessionID})
}

// ExtractSessionID prefers a valid embedded id; an invalid or absent
// embedded id falls back to the filename stem with a warning.
func (p *Provider) ExtractSessionID(filePath string, meta *transcript.Meta) string {
	if meta != nil && p.IsValidSessionID(meta.SessionID) {
		return meta.SessionID
	}
	stem := strings.TrimSuffix(filepath.Base(filePath), ".jsonl")
	if p.IsValidSessionID(stem) {
		if meta != nil && meta.SessionID != "" {
			log.Warn().
				Str("file", filePath).
				Str("embedded_id", meta.SessionID).
				Msg("embedded session id invalid, using filename id")
		}
		return stem
	}
	return ""
}

// ResolveProjectPath maps a transcript to its project directory: metadata
// files in the slug directory, then the transcript cwd, then the decoded
// slug, then a scan of any other small JSON in the directory, then the slug
// basename. Resolutions are cached per slug directory except when they came
// from the transcript itself.
func (p *Provider) ResolveProjectPath(filePath string, meta *transcript.Meta) string {
	slugDir := filepath.Dir(filePath)

	p.mu.Lock()
	cached, ok := p.slugPaths[slugDir]
	p.mu.Unlock()
	if ok {
		return cached
	}

	if path := probeMetadataFiles(slugDir); path != "" {
		normalized := pathutil.Normalize(path)
		p.remember(slugDir, normalized)
		return normalized
	}

	// The transcript cwd varies per session, so it is not cached against
	// the slug directory.
	if meta != nil && pathutil.LooksLikePath(meta.CWD) {
		return pathutil.Normalize(meta.CWD)
	}

	slug := filepath.Base(slugDir)
	if decoded := pathutil.DecodeProjectSlug(slug); decoded != "" {
		if _, err := os.Stat(decoded); err == nil {
			normalized := pathutil.Normalize(decoded)
			p.remember(slugDir, normalized)
			return normalized
		}
	}

	if path := scanSmallJSONFiles(slugDir); path != "" {
		normalized := pathutil.Normalize(path)
		p.remember(slugDir, normalized)
		return normalized
	}

	// Last resort: the final component of the decoded slug.
	if decoded := pathutil.DecodeProjectSlug(slug); decoded != "" {
		return filepath.Base(decoded)
	}
	return slug
}

func (p *Provider) remember(slugDir, path string) {
	p.mu.Lock()
	p.slugPaths[slugDir] = path
	p.mu.Unlock()
}

// FlushProjectPathCache drops cached slug resolutions, for tests and for
// full rescans after metadata edits.
func (p *Provider) FlushProjectPathCache() {
	p.mu.Lock()
	p.slugPaths = make(map[string]string)
	p.mu.Unlock()
}

// probeMetadataFiles checks the well-known metadata files for a project
// path key.
func probeMetadataFiles(slugDir string) string {
	for _, name := range metadataFileNames {
		if path := projectPathFromJSON(filepath.Join(slugDir, name)); path != "" {
			return path
		}
	}
	return ""
}

// scanSmallJSONFiles probes every other small .json file in the directory
// for the same keys.
func scanSmallJSONFiles(slugDir string) string {
	entries, err := os.ReadDir(slugDir)
	if err != nil {
		return ""
	}
	known := make(map[string]bool, len(metadataFileNames))
	for _, name := range metadataFileNames {
		known[name] = true
	}
	for _, entry := range entries {
		if entry.IsDir() || known[entry.Name()] || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if path := projectPathFromJSON(filepath.Join(slugDir, entry.Name())); path != "" {
			return path
		}
	}
	return ""
}

// projectPathFromJSON reads one JSON file and returns the first
// path-looking value under the known keys. Oversized or malformed files
// yield nothing.
func projectPathFromJSON(filePath string) string {
	info, err := os.Stat(filePath)
	if err != nil || info.Size() > maxMetadataFileSize {
		return ""
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return ""
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return ""
	}
	for _, key := range projectPathKeys {
		if s, ok := obj[key].(string); ok && pathutil.LooksLikePath(s) {
			return s
		}
	}
	return ""
}
