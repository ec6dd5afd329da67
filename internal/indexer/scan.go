package indexer

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/domain/ports"
	"github.com/agentdeck/agentdeck/internal/overrides"
	"github.com/agentdeck/agentdeck/internal/pathutil"
	"github.com/agentdeck/agentdeck/internal/transcript"
)

// statRetries bounds the stat → read → re-stat loop when a file keeps
// changing under the scanner.
const statRetries = 3

// projectMetadataNames are the per-project sidecar files whose changes can
// alter project-path resolution without touching any transcript.
var projectMetadataNames = map[string]bool{
	"project.json":  true,
	"metadata.json": true,
	"config.json":   true,
}

// projectPathCacheFlusher is implemented by providers that memoize
// directory → project-path resolutions.
type projectPathCacheFlusher interface {
	FlushProjectPathCache()
}

// fullScan re-enumerates every provider root, reconciles the session maps,
// and notifies subscribers of the resulting diff.
func (ix *Indexer) fullScan() {
	ix.scanMu.Lock()
	defer ix.scanMu.Unlock()

	start := time.Now()

	newSessions := make(map[domain.SessionKey]domain.SessionRecord)
	newKeyByFile := make(map[string]domain.SessionKey)
	seenPaths := make(map[string]bool)

	for _, provider := range ix.providers {
		files, err := provider.ListSessionFiles()
		if err != nil {
			// Transient listing failure: keep the provider's previous
			// sessions rather than flapping them out of existence.
			log.Warn().Err(err).
				Str("provider", provider.Name().String()).
				Msg("session listing failed, keeping previous state")
			ix.carryOverProvider(provider.Name(), newSessions, newKeyByFile, seenPaths)
			continue
		}

		for _, file := range files {
			norm := pathutil.Normalize(file)
			seenPaths[norm] = true

			record, ok := ix.scanFile(provider, file, norm)
			if !ok {
				continue
			}
			upsertScanned(newSessions, newKeyByFile, norm, record)
		}
	}

	newFileByKey := make(map[domain.SessionKey]string, len(newKeyByFile))
	for path, key := range newKeyByFile {
		newFileByKey[key] = path
	}

	ix.mu.Lock()
	var removed []domain.SessionKey
	for key := range ix.sessions {
		if _, still := newSessions[key]; !still {
			removed = append(removed, key)
			delete(ix.pinnedAt, key)
		}
	}
	ix.sessions = newSessions
	ix.keyByFile = newKeyByFile
	ix.fileByKey = newFileByKey
	ix.mu.Unlock()

	ix.releaseBindings(removed)
	ix.cache.Sweep(seenPaths)
	ix.rebuildAndNotify()

	if ix.opts.Store != nil {
		if err := ix.opts.Store.Save(ix.cache.Snapshot()); err != nil {
			log.Warn().Err(err).Msg("meta cache persist failed")
		}
	}

	log.Debug().
		Int("sessions", len(newSessions)).
		Int("removed", len(removed)).
		Dur("took", time.Since(start)).
		Msg("full scan complete")
}

// carryOverProvider copies a provider's previous sessions into the maps of
// an in-progress full scan.
func (ix *Indexer) carryOverProvider(provider domain.Provider, sessions map[domain.SessionKey]domain.SessionRecord, keyByFile map[string]domain.SessionKey, seenPaths map[string]bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for key, record := range ix.sessions {
		if key.Provider != provider {
			continue
		}
		sessions[key] = record
		keyByFile[record.SourceFile] = key
		seenPaths[record.SourceFile] = true
	}
}

// upsertScanned records one scanned file's session, keeping the newer
// record when two files claim the same session id.
func upsertScanned(sessions map[domain.SessionKey]domain.SessionRecord, keyByFile map[string]domain.SessionKey, norm string, record domain.SessionRecord) {
	if prev, dup := sessions[record.Key]; dup {
		if prev.UpdatedAt >= record.UpdatedAt {
			return
		}
		delete(keyByFile, prev.SourceFile)
	}
	sessions[record.Key] = record
	keyByFile[norm] = record.Key
}

// scanFile stats, parses, and assembles the session record for one
// transcript file. The bool is false when the file contributes no session:
// unreadable, no cwd, no valid id, or no project attribution.
func (ix *Indexer) scanFile(provider ports.Provider, file, norm string) (domain.SessionRecord, bool) {
	for attempt := 0; attempt < statRetries; attempt++ {
		info, err := os.Stat(file)
		if err != nil {
			return domain.SessionRecord{}, false
		}
		mtimeMs := info.ModTime().UnixMilli()
		size := info.Size()

		meta, hit := ix.cache.Lookup(norm, mtimeMs, size)
		if !hit {
			data, err := readHead(file, transcript.ParseBudget)
			if err != nil {
				log.Warn().Err(err).Str("file", file).Msg("transcript read failed")
				return domain.SessionRecord{}, false
			}

			// A file rewritten between stat and read would cache stale
			// meta under fresh stat values; re-check before committing.
			again, err := os.Stat(file)
			if err != nil {
				return domain.SessionRecord{}, false
			}
			if again.ModTime().UnixMilli() != mtimeMs || again.Size() != size {
				continue
			}

			meta = provider.ParseSessionFile(data, file)
			if meta.CWD == "" {
				meta = nil
			}
			ix.cache.Store(norm, mtimeMs, size, meta)
		}
		if meta == nil {
			return domain.SessionRecord{}, false
		}

		id := provider.ExtractSessionID(file, meta)
		if id == "" {
			return domain.SessionRecord{}, false
		}
		projectPath := provider.ResolveProjectPath(file, meta)
		if projectPath == "" {
			return domain.SessionRecord{}, false
		}

		key := domain.NewSessionKey(provider.Name(), id)
		record := domain.SessionRecord{
			Key:          key,
			ProjectPath:  projectPath,
			CWD:          pathutil.Normalize(meta.CWD),
			UpdatedAt:    mtimeMs,
			CreatedAt:    ix.pinCreatedAt(key, meta.CreatedAt, info),
			MessageCount: meta.MessageCount,
			Title:        meta.Title,
			Summary:      meta.Summary,
			SourceFile:   norm,
		}
		return record, true
	}
	log.Warn().Str("file", file).Msg("file kept changing during scan, skipping this round")
	return domain.SessionRecord{}, false
}

// pinCreatedAt fixes a session's creation time the first time the session
// is seen, so later metadata drift cannot move it. The pin is released when
// the session leaves the index.
func (ix *Indexer) pinCreatedAt(key domain.SessionKey, metaCreatedAt int64, info os.FileInfo) int64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if pinned, ok := ix.pinnedAt[key]; ok {
		return pinned
	}
	createdAt := metaCreatedAt
	if createdAt <= 0 {
		createdAt = fileCreatedAt(info)
	}
	if createdAt <= 0 {
		createdAt = info.ModTime().UnixMilli()
	}
	ix.pinnedAt[key] = createdAt
	return createdAt
}

// readHead reads at most budget bytes from the start of the file.
func readHead(path string, budget int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, int64(budget)))
}

// handleWatchEvent reacts to one debounced filesystem change.
func (ix *Indexer) handleWatchEvent(event ports.WatchEvent) {
	norm := pathutil.Normalize(event.Path)

	if !strings.HasSuffix(norm, ".jsonl") {
		// Project sidecar metadata can re-route a whole slug directory.
		if projectMetadataNames[filepath.Base(norm)] {
			if provider := ix.providerFor(norm); provider != nil {
				if flusher, ok := provider.(projectPathCacheFlusher); ok {
					flusher.FlushProjectPathCache()
					ix.Refresh()
				}
			}
		}
		return
	}

	ix.scanMu.Lock()
	defer ix.scanMu.Unlock()

	if event.Kind == ports.WatchUnlink {
		ix.removeByFile(norm)
		ix.rebuildAndNotify()
		return
	}

	provider := ix.providerFor(norm)
	if provider == nil {
		return
	}

	record, ok := ix.scanFile(provider, event.Path, norm)
	if !ok {
		// Unreadable or no longer attributable: whatever session this
		// file used to back is gone.
		ix.cache.Remove(norm)
		ix.removeByFile(norm)
		ix.rebuildAndNotify()
		return
	}

	ix.upsertLive(norm, record)
	ix.rebuildAndNotify()
}

// providerFor resolves which provider's home contains path.
func (ix *Indexer) providerFor(norm string) ports.Provider {
	for _, provider := range ix.providers {
		home := pathutil.Normalize(provider.HomeDir())
		if norm == home || strings.HasPrefix(norm, home+string(filepath.Separator)) {
			return provider
		}
	}
	return nil
}

// removeByFile drops the session backed by the given file, if any. Removal
// is keyed strictly by the file-path mapping, never by re-deriving an id
// from the filename.
func (ix *Indexer) removeByFile(norm string) {
	ix.mu.Lock()
	key, ok := ix.keyByFile[norm]
	if ok {
		delete(ix.keyByFile, norm)
		// A rename can install the session under its new path before the
		// old path's unlink fires; only drop the session if this file is
		// still its backer.
		if ix.fileByKey[key] != norm {
			ok = false
		} else {
			delete(ix.fileByKey, key)
			delete(ix.sessions, key)
			delete(ix.pinnedAt, key)
		}
	}
	ix.mu.Unlock()

	if ok {
		ix.releaseBindings([]domain.SessionKey{key})
	}
}

// upsertLive installs one freshly-scanned record, handling the case where
// the file's embedded session id changed since the previous scan.
func (ix *Indexer) upsertLive(norm string, record domain.SessionRecord) {
	var migrated []domain.SessionKey

	ix.mu.Lock()
	if oldKey, ok := ix.keyByFile[norm]; ok && oldKey != record.Key {
		delete(ix.sessions, oldKey)
		delete(ix.fileByKey, oldKey)
		delete(ix.pinnedAt, oldKey)
		migrated = append(migrated, oldKey)
	}
	if prev, dup := ix.sessions[record.Key]; dup && prev.SourceFile != norm && prev.UpdatedAt > record.UpdatedAt {
		// Another, newer file already backs this session id.
		ix.mu.Unlock()
		ix.releaseBindings(migrated)
		return
	}
	ix.sessions[record.Key] = record
	ix.keyByFile[norm] = record.Key
	ix.fileByKey[record.Key] = norm
	ix.mu.Unlock()

	ix.releaseBindings(migrated)
}

// releaseBindings revokes bindings for sessions that left the index.
func (ix *Indexer) releaseBindings(keys []domain.SessionKey) {
	if ix.releaser == nil {
		return
	}
	for _, key := range keys {
		if terminalID, ok := ix.releaser.ClearSessionOwner(key.Provider, key.ID); ok {
			log.Info().
				Str("session", key.String()).
				Str("terminal", terminalID).
				Msg("released binding for removed session")
		}
	}
}

// rebuildAndNotify recomputes the exposed projects list from the raw
// session map plus the current override set, publishes it if changed, and
// fires new-session notifications for keys crossing the initialization
// boundary.
func (ix *Indexer) rebuildAndNotify() {
	set := ix.loadOverrides()

	ix.mu.Lock()

	byProject := make(map[string][]domain.SessionRecord)
	currentKeys := make(map[domain.SessionKey]bool, len(ix.sessions))
	for _, record := range ix.sessions {
		if override, ok := set.Sessions[record.Key]; ok {
			merged, deleted := overrides.Apply(record, override)
			if deleted {
				continue
			}
			record = merged
		}
		currentKeys[record.Key] = true
		byProject[record.ProjectPath] = append(byProject[record.ProjectPath], record)
	}

	projects := make([]domain.Project, 0, len(byProject))
	for path, sessions := range byProject {
		domain.SortSessions(sessions)
		projects = append(projects, domain.Project{
			Path:     path,
			Color:    overrides.ColorFor(set, path),
			Sessions: sessions,
		})
	}
	domain.SortProjects(projects)

	changed := !reflect.DeepEqual(projects, ix.exposed)

	var fresh []domain.SessionRecord
	if ix.initialized {
		for key := range currentKeys {
			if ix.known[key] {
				continue
			}
			if _, observed := ix.seen[key]; observed {
				continue
			}
			for _, p := range projects {
				for _, s := range p.Sessions {
					if s.Key == key {
						fresh = append(fresh, s)
					}
				}
			}
		}
	}

	now := time.Now().UnixMilli()
	ix.known = currentKeys
	for key := range currentKeys {
		ix.seen[key] = now
	}
	ix.pruneSeen(now)

	ix.exposed = projects
	ix.mu.Unlock()

	if changed {
		ix.notifyUpdate(projects)
	}

	sort.Slice(fresh, func(i, j int) bool {
		if fresh[i].UpdatedAt != fresh[j].UpdatedAt {
			return fresh[i].UpdatedAt < fresh[j].UpdatedAt
		}
		return fresh[i].Key.String() < fresh[j].Key.String()
	})
	ix.notifyNewSessions(fresh)
}

func (ix *Indexer) loadOverrides() *domain.OverrideSet {
	if ix.overrides == nil {
		return domain.EmptyOverrideSet()
	}
	set, err := ix.overrides.Load()
	if err != nil {
		log.Warn().Err(err).Msg("loading overrides failed, scanning without them")
		return domain.EmptyOverrideSet()
	}
	return set
}

// pruneSeen drops seen-session entries past the retention window, then
// oldest entries beyond the cap. Caller holds ix.mu.
func (ix *Indexer) pruneSeen(now int64) {
	cutoff := now - ix.opts.SeenRetention.Milliseconds()
	for key, last := range ix.seen {
		if last < cutoff {
			delete(ix.seen, key)
		}
	}
	if len(ix.seen) <= ix.opts.SeenMax {
		return
	}

	type seenEntry struct {
		key  domain.SessionKey
		last int64
	}
	entries := make([]seenEntry, 0, len(ix.seen))
	for key, last := range ix.seen {
		entries = append(entries, seenEntry{key, last})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].last != entries[j].last {
			return entries[i].last < entries[j].last
		}
		return entries[i].key.String() < entries[j].key.String()
	})
	for _, entry := range entries[:len(entries)-ix.opts.SeenMax] {
		delete(ix.seen, entry.key)
	}
}
