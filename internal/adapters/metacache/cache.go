// Package metacache memoizes parsed transcript metadata keyed by file path
// and (mtime, size). A hit skips re-reading and re-parsing the file; the
// pair re-checks at commit time so a file that changed between stat and
// apply is detected. A nil Meta is a valid cached result meaning "scanned
// but unusable" and short-circuits identically.
package metacache

import (
	"sync"

	"github.com/agentdeck/agentdeck/internal/transcript"
)

// Entry is one cached parse result.
type Entry struct {
	MtimeMs int64
	Size    int64

	// Meta is nil when the file parsed to nothing usable (no cwd).
	Meta *transcript.Meta
}

// Cache is the in-memory file-meta cache. Keys are normalized file paths;
// normalization is the caller's job so every component agrees on the key.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// Lookup returns the cached meta for path when the stored (mtime, size)
// pair matches exactly. The second return distinguishes a cached nil meta
// from a miss.
func (c *Cache) Lookup(path string, mtimeMs, size int64) (*transcript.Meta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[path]
	if !ok || entry.MtimeMs != mtimeMs || entry.Size != size {
		return nil, false
	}
	return entry.Meta, true
}

// Store overwrites the entry for path.
func (c *Cache) Store(path string, mtimeMs, size int64, meta *transcript.Meta) {
	c.mu.Lock()
	c.entries[path] = Entry{MtimeMs: mtimeMs, Size: size, Meta: meta}
	c.mu.Unlock()
}

// Remove drops the entry for path, if any.
func (c *Cache) Remove(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Sweep evicts every entry whose path is not in seen and returns how many
// were dropped. Called after each full scan so the cache tracks the live
// file set.
func (c *Cache) Sweep(seen map[string]bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for path := range c.entries {
		if !seen[path] {
			delete(c.entries, path)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot copies the current entries, for persistence.
func (c *Cache) Snapshot() map[string]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Entry, len(c.entries))
	for path, entry := range c.entries {
		out[path] = entry
	}
	return out
}

// Seed installs entries loaded from the warm store, skipping paths already
// present. Entries still only hit on an exact (mtime, size) match, so stale
// seeds are harmless.
func (c *Cache) Seed(entries map[string]Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for path, entry := range entries {
		if _, ok := c.entries[path]; !ok {
			c.entries[path] = entry
		}
	}
}
