// Package coordinator decides when a freshly indexed session should be
// offered for terminal binding. Per-session watermarks deduplicate
// re-processing across scans: a session is only a candidate when its
// updatedAt strictly advances past the recorded watermark.
package coordinator

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agentdeck/agentdeck/internal/domain"
	"github.com/agentdeck/agentdeck/internal/domain/ports"
)

// DefaultMaxAssociationAge bounds how much older than a session a terminal
// may be and still bind it: a stale session must not grab a terminal that
// was spawned for a different run.
const DefaultMaxAssociationAge = 30 * time.Second

// resumable marks the providers whose CLI accepts a resume-by-session-id
// argument; only their sessions participate in binding.
var resumable = map[domain.Provider]bool{
	domain.ProviderClaude:   true,
	domain.ProviderCodex:    true,
	domain.ProviderOpenCode: true,
}

// Resumable reports whether the provider's sessions may bind to terminals.
func Resumable(p domain.Provider) bool { return resumable[p] }

// Coordinator applies the candidate rule and performs single-shot pairing
// attempts against the registry. It never retries and never steals.
type Coordinator struct {
	registry ports.AssociationRegistry
	maxAge   time.Duration

	mu         sync.Mutex
	watermarks map[domain.SessionKey]int64
}

// New creates a coordinator. maxAge <= 0 selects the default.
func New(registry ports.AssociationRegistry, maxAge time.Duration) *Coordinator {
	if maxAge <= 0 {
		maxAge = DefaultMaxAssociationAge
	}
	return &Coordinator{
		registry:   registry,
		maxAge:     maxAge,
		watermarks: make(map[domain.SessionKey]int64),
	}
}

// NoteSession applies the candidate test to one session, advancing its
// watermark on acceptance. A session is a candidate iff its provider
// supports resume, its cwd is set, and its updatedAt strictly exceeds the
// stored watermark.
func (c *Coordinator) NoteSession(session domain.SessionRecord) bool {
	if !resumable[session.Key.Provider] || session.CWD == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if mark, ok := c.watermarks[session.Key]; ok && session.UpdatedAt <= mark {
		return false
	}
	c.watermarks[session.Key] = session.UpdatedAt
	return true
}

// CollectNewOrAdvanced filters a scan's projects down to the sessions that
// are new or have advanced past their watermark, preserving the
// project-then-updatedAt iteration order of the input.
func (c *Coordinator) CollectNewOrAdvanced(projects []domain.Project) []domain.SessionRecord {
	var candidates []domain.SessionRecord
	for _, project := range projects {
		for _, session := range project.Sessions {
			if c.NoteSession(session) {
				candidates = append(candidates, session)
			}
		}
	}
	return candidates
}

// AssociateSingleSession runs the full single-shot pairing flow: candidate
// test, terminal pick, bind.
func (c *Coordinator) AssociateSingleSession(session domain.SessionRecord) domain.AssociationResult {
	if !c.NoteSession(session) {
		return domain.AssociationResult{}
	}
	return c.Pair(session)
}

// Pair attempts to bind an already-accepted candidate to the oldest
// eligible unassociated terminal at its cwd. Any bind rejection yields a
// non-associated result; the coordinator does not retry.
func (c *Coordinator) Pair(session domain.SessionRecord) domain.AssociationResult {
	terminals := c.registry.FindUnassociatedTerminals(session.Key.Provider, session.CWD)
	maxCreatedAt := session.UpdatedAt + c.maxAge.Milliseconds()

	for _, terminal := range terminals {
		if terminal.CreatedAt > maxCreatedAt {
			// Oldest-first order: every later terminal is younger still.
			break
		}

		res := c.registry.BindSession(terminal.ID, session.Key.Provider, session.Key.ID)
		if res.OK {
			log.Info().
				Str("session", session.Key.String()).
				Str("terminal_id", terminal.ID).
				Str("cwd", session.CWD).
				Msg("session associated with terminal")
			return domain.AssociationResult{Associated: true, TerminalID: terminal.ID}
		}

		log.Debug().
			Str("session", session.Key.String()).
			Str("terminal_id", terminal.ID).
			Str("reason", string(res.Reason)).
			Msg("bind rejected, not retrying")
		return domain.AssociationResult{}
	}

	return domain.AssociationResult{}
}

// ForgetSession drops a session's watermark, letting a re-appearing session
// with the same key qualify again.
func (c *Coordinator) ForgetSession(key domain.SessionKey) {
	c.mu.Lock()
	delete(c.watermarks, key)
	c.mu.Unlock()
}

// WatermarkFor returns the stored watermark for a key, for inspection.
func (c *Coordinator) WatermarkFor(key domain.SessionKey) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mark, ok := c.watermarks[key]
	return mark, ok
}
