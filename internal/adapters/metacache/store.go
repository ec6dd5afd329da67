package metacache

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/agentdeck/agentdeck/internal/transcript"
)

// schemaVersion is incremented when the parse logic or table layout changes.
// A version mismatch drops the table so stale metadata never resurfaces.
const schemaVersion = 2 // v2: created_at stored as unix milliseconds

// Store persists the file-meta cache across restarts so a warm start skips
// re-parsing unchanged transcripts. Entries are only ever reused under an
// exact (mtime, size) match, so the store is observationally invisible.
type Store struct {
	db     *sql.DB
	dbPath string
}

// OpenStore opens (or creates) the sqlite store at dbPath.
func OpenStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// createSchema creates the tables, rebuilding on a schema version change.
func createSchema(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS metadata (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'")
	if err := row.Scan(&currentVersion); err != nil {
		currentVersion = 0
	}

	if currentVersion != schemaVersion {
		if currentVersion != 0 {
			log.Info().
				Int("old_version", currentVersion).
				Int("new_version", schemaVersion).
				Msg("schema version changed, rebuilding meta cache store")
		}
		_, _ = db.Exec("DROP TABLE IF EXISTS file_meta")
	}

	schema := `
		CREATE TABLE IF NOT EXISTS file_meta (
			path TEXT PRIMARY KEY,
			mtime_ms INTEGER NOT NULL,
			size INTEGER NOT NULL,
			has_meta INTEGER NOT NULL,
			session_id TEXT,
			cwd TEXT,
			title TEXT,
			summary TEXT,
			created_at_ms INTEGER,
			message_count INTEGER,
			saved_at TEXT
		)
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}

	_, err := db.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)", schemaVersion)
	return err
}

// Load reads every persisted entry, for seeding the in-memory cache once at
// start.
func (s *Store) Load() (map[string]Entry, error) {
	rows, err := s.db.Query(`
		SELECT path, mtime_ms, size, has_meta, session_id, cwd, title, summary, created_at_ms, message_count
		FROM file_meta
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := make(map[string]Entry)
	for rows.Next() {
		var path string
		var entry Entry
		var hasMeta int
		var sessionID, cwd, title, summary sql.NullString
		var createdAt, messageCount sql.NullInt64
		if err := rows.Scan(&path, &entry.MtimeMs, &entry.Size, &hasMeta,
			&sessionID, &cwd, &title, &summary, &createdAt, &messageCount); err != nil {
			continue
		}
		if hasMeta != 0 {
			entry.Meta = &transcript.Meta{
				SessionID:    sessionID.String,
				CWD:          cwd.String,
				Title:        title.String,
				Summary:      summary.String,
				CreatedAt:    createdAt.Int64,
				MessageCount: int(messageCount.Int64),
			}
		}
		entries[path] = entry
	}
	return entries, rows.Err()
}

// Save replaces the persisted entries with a cache snapshot. Called after
// full scans and on stop.
func (s *Store) Save(entries map[string]Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM file_meta"); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO file_meta
		(path, mtime_ms, size, has_meta, session_id, cwd, title, summary, created_at_ms, message_count, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	savedAt := time.Now().UTC().Format(time.RFC3339)
	for path, entry := range entries {
		if entry.Meta != nil {
			_, err = stmt.Exec(path, entry.MtimeMs, entry.Size, 1,
				entry.Meta.SessionID, entry.Meta.CWD, entry.Meta.Title, entry.Meta.Summary,
				entry.Meta.CreatedAt, entry.Meta.MessageCount, savedAt)
		} else {
			_, err = stmt.Exec(path, entry.MtimeMs, entry.Size, 0,
				nil, nil, nil, nil, nil, nil, savedAt)
		}
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("failed to persist cache entry")
		}
	}

	return tx.Commit()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
