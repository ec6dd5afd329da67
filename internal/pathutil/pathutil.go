// Package pathutil provides cross-platform path utilities for agentdeck.
package pathutil

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
)

// EncodeProjectPath converts a filesystem path to a flat string safe for use
// as a directory or file name. This matches the encoding Claude CLI uses for
// session storage under ~/.claude/projects/.
//
// Examples:
//
//	Unix:    /Users/brian/Projects/deck  → -Users-brian-Projects-deck
//	Windows: C:\Users\brian\Projects\deck → -C:-Users-brian-Projects-deck
func EncodeProjectPath(path string) string {
	// filepath.Clean normalises separators and removes trailing slashes.
	// filepath.ToSlash converts OS-specific separators to "/", so the
	// subsequent replace works identically on Unix, macOS, and Windows.
	return strings.ReplaceAll(filepath.ToSlash(filepath.Clean(path)), "/", "-")
}

// DecodeProjectSlug is the best-effort inverse of EncodeProjectPath. The
// encoding is lossy (dashes inside directory names are indistinguishable
// from separators), so the result is only a fallback when no metadata names
// the project directory.
func DecodeProjectSlug(slug string) string {
	if slug == "" {
		return ""
	}
	decoded := strings.ReplaceAll(slug, "-", "/")
	if strings.HasPrefix(decoded, "/") {
		// Windows drive slugs decode to "/C:/..."; strip the artificial root.
		if len(decoded) > 2 && decoded[2] == ':' {
			return filepath.FromSlash(decoded[1:])
		}
		return filepath.FromSlash(decoded)
	}
	return filepath.FromSlash(decoded)
}

var (
	drivePattern  = regexp.MustCompile(`^[A-Za-z]:[/\\]`)
	schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)
)

// LooksLikePath reports whether s is plausibly a filesystem path: "~", ".",
// "..", anything containing a separator, or a Windows drive prefix. URLs are
// never paths.
func LooksLikePath(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if schemePattern.MatchString(s) {
		return false
	}
	if s == "~" || s == "." || s == ".." {
		return true
	}
	if strings.ContainsAny(s, `/\`) {
		return true
	}
	return drivePattern.MatchString(s)
}

// caseInsensitiveFS is true on platforms whose default filesystems compare
// paths case-insensitively.
var caseInsensitiveFS = runtime.GOOS == "darwin" || runtime.GOOS == "windows"

// Normalize resolves a path to its canonical comparison form: absolute,
// cleaned of trailing separators, home-expanded, and lower-cased on
// case-insensitive filesystems.
func Normalize(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	} else if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	} else {
		path = filepath.Clean(path)
	}
	if caseInsensitiveFS {
		path = strings.ToLower(path)
	}
	return path
}

// ProjectPathForCWD maps a transcript working directory to its project
// grouping path: the git checkout root containing it when there is one
// (collapsing nothing across worktrees — each worktree keeps its own
// project), else the normalized cwd itself.
func ProjectPathForCWD(cwd string) string {
	cwd = strings.TrimSpace(cwd)
	if cwd == "" {
		return ""
	}
	if root, ok := ResolveGitCheckoutRoot(cwd); ok {
		return Normalize(root)
	}
	return Normalize(cwd)
}

// gitRoots caches the result of walking one directory's parents.
type gitRoots struct {
	repo     string
	checkout string
	found    bool
}

var (
	gitRootMu    sync.Mutex
	gitRootCache = make(map[string]gitRoots)
)

// FlushGitRootCache drops all cached git-root lookups.
func FlushGitRootCache() {
	gitRootMu.Lock()
	gitRootCache = make(map[string]gitRoots)
	gitRootMu.Unlock()
}

// ResolveGitRepoRoot walks cwd's parents for a .git entry and returns the
// repository root: for a worktree this is the directory holding the shared
// .git, for a submodule the submodule checkout itself.
func ResolveGitRepoRoot(cwd string) (string, bool) {
	r := resolveGitRoots(cwd)
	return r.repo, r.found
}

// ResolveGitCheckoutRoot walks cwd's parents for a .git entry and returns
// the checkout root: the working directory of the repo, worktree, or
// submodule that contains cwd.
func ResolveGitCheckoutRoot(cwd string) (string, bool) {
	r := resolveGitRoots(cwd)
	return r.checkout, r.found
}

func resolveGitRoots(cwd string) gitRoots {
	abs, err := filepath.Abs(cwd)
	if err != nil {
		return gitRoots{}
	}
	abs = filepath.Clean(abs)

	gitRootMu.Lock()
	if cached, ok := gitRootCache[abs]; ok {
		gitRootMu.Unlock()
		return cached
	}
	gitRootMu.Unlock()

	result := walkForGitEntry(abs)

	gitRootMu.Lock()
	gitRootCache[abs] = result
	gitRootMu.Unlock()
	return result
}

func walkForGitEntry(start string) gitRoots {
	dir := start
	for {
		gitPath := filepath.Join(dir, ".git")
		info, err := os.Stat(gitPath)
		if err == nil {
			if info.IsDir() {
				return gitRoots{repo: dir, checkout: dir, found: true}
			}
			return resolveGitFile(dir, gitPath)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return gitRoots{}
		}
		dir = parent
	}
}

// resolveGitFile handles the ".git is a file" cases: linked worktrees and
// submodules both store a "gitdir:" pointer instead of a directory.
func resolveGitFile(dir, gitPath string) gitRoots {
	data, err := os.ReadFile(gitPath)
	if err != nil {
		return gitRoots{}
	}
	line := strings.TrimSpace(string(data))
	const prefix = "gitdir:"
	if !strings.HasPrefix(line, prefix) {
		return gitRoots{}
	}
	gitdir := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	if gitdir == "" {
		return gitRoots{}
	}
	if !filepath.IsAbs(gitdir) {
		gitdir = filepath.Join(dir, gitdir)
	}
	gitdir = filepath.Clean(gitdir)
	slashed := filepath.ToSlash(gitdir)

	switch {
	case strings.Contains(slashed, "/.git/modules/"):
		// Submodule checkouts are their own repositories.
		return gitRoots{repo: dir, checkout: dir, found: true}

	case strings.Contains(slashed, "/.git/worktrees/"):
		// Linked worktree: the adjoining commondir names the shared .git;
		// its parent is the main repository.
		repo := dir
		if data, err := os.ReadFile(filepath.Join(gitdir, "commondir")); err == nil {
			common := strings.TrimSpace(string(data))
			if !filepath.IsAbs(common) {
				common = filepath.Join(gitdir, common)
			}
			repo = filepath.Dir(filepath.Clean(common))
		}
		return gitRoots{repo: repo, checkout: dir, found: true}

	default:
		return gitRoots{repo: dir, checkout: dir, found: true}
	}
}
