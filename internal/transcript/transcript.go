// Package transcript extracts session metadata from agent conversation
// transcripts. Transcripts are append-only JSONL files whose line shapes
// differ per agent, so fields are probed across the common key layouts
// rather than decoded into a fixed schema. Parsing is bounded: at most
// ParseBudget bytes are examined and scanning stops early once every
// field has been harvested.
package transcript

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agentdeck/agentdeck/internal/adapters/jsonl"
	"github.com/agentdeck/agentdeck/internal/pathutil"
)

const (
	// ParseBudget caps how many bytes of a transcript a single parse examines.
	ParseBudget = 256 * 1024

	// MaxTitleLen caps extracted titles.
	MaxTitleLen = 200

	// MaxSummaryLen caps extracted summaries.
	MaxSummaryLen = 240
)

// Meta holds the metadata harvested from one transcript scan.
type Meta struct {
	SessionID    string
	CWD          string
	Title        string
	Summary      string
	CreatedAt    int64 // unix milliseconds, 0 when no line carried a timestamp
	MessageCount int
}

// Complete reports whether every field has been harvested. Scans stop at
// the first line that completes the meta, so later lines may go unread.
func (m *Meta) Complete() bool {
	return m.SessionID != "" && m.CWD != "" && m.Title != "" &&
		m.Summary != "" && m.CreatedAt > 0
}

// Options adjusts a Parse run. The zero value scans with the default
// budget and accepts any non-empty session id.
type Options struct {
	// Budget caps the bytes examined. 0 means ParseBudget.
	Budget int

	// ValidID gates harvested session ids. nil accepts any non-empty id.
	ValidID func(id string) bool

	// ExtraIDPaths, ExtraCWDPaths and ExtraTimePaths are agent-specific
	// key paths probed after the standard set.
	ExtraIDPaths   [][]string
	ExtraCWDPaths  [][]string
	ExtraTimePaths [][]string
}

// Standard key paths probed on every line, in priority order.
var (
	idPaths = [][]string{
		{"sessionId"},
		{"session_id"},
		{"message", "sessionId"},
		{"message", "session_id"},
		{"data", "sessionId"},
		{"data", "session_id"},
	}

	cwdPaths = [][]string{
		{"cwd"},
		{"context", "cwd"},
		{"payload", "cwd"},
		{"data", "cwd"},
		{"message", "cwd"},
	}

	timePaths = [][]string{
		{"timestamp"},
		{"created_at"},
		{"createdAt"},
	}
)

// Parse scans a transcript's JSONL lines and harvests session metadata.
// data is typically the head of the file, already capped to the budget by
// the caller. Parse never returns nil: a transcript that yields nothing
// still reports its line count. Lines that are not valid JSON objects
// count toward MessageCount and are otherwise ignored.
func Parse(data []byte, opts Options) *Meta {
	budget := opts.Budget
	if budget <= 0 {
		budget = ParseBudget
	}
	if len(data) > budget {
		data = data[:budget]
	}

	meta := &Meta{}
	r := jsonl.NewReader(bytes.NewReader(data), 0)
	for {
		line, err := r.Next()
		if err != nil {
			break
		}
		raw := bytes.TrimSpace(line.Data)
		if len(raw) == 0 {
			continue
		}
		meta.MessageCount++

		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil {
			continue
		}
		harvest(obj, meta, opts)
		if meta.Complete() {
			break
		}
	}
	return meta
}

func harvest(obj map[string]any, meta *Meta, opts Options) {
	if meta.SessionID == "" {
		valid := opts.ValidID
		if valid == nil {
			valid = func(string) bool { return true }
		}
		meta.SessionID = probeString(obj, idPaths, opts.ExtraIDPaths, valid)
	}
	if meta.CWD == "" {
		meta.CWD = probeString(obj, cwdPaths, opts.ExtraCWDPaths, pathutil.LooksLikePath)
	}
	if meta.Title == "" {
		meta.Title = probeTitle(obj)
	}
	if meta.Summary == "" {
		if s := strings.TrimSpace(firstString(obj, "summary", "sessionSummary")); s != "" {
			meta.Summary = Truncate(s, MaxSummaryLen)
		}
	}
	if ts := probeTimestamp(obj, opts.ExtraTimePaths); ts > 0 {
		if meta.CreatedAt == 0 || ts < meta.CreatedAt {
			meta.CreatedAt = ts
		}
	}
}

// probeString returns the first probed value that is a non-empty string
// accepted by ok. Candidates failing ok do not stop the probe.
func probeString(obj map[string]any, paths, extra [][]string, ok func(string) bool) string {
	for _, set := range [][][]string{paths, extra} {
		for _, path := range set {
			s, _ := lookup(obj, path).(string)
			s = strings.TrimSpace(s)
			if s != "" && ok(s) {
				return s
			}
		}
	}
	return ""
}

// probeTitle prefers an explicit title field and falls back to the first
// real user message on the line.
func probeTitle(obj map[string]any) string {
	if t := strings.TrimSpace(firstString(obj, "title", "sessionTitle")); t != "" {
		return Truncate(collapseWhitespace(t), MaxTitleLen)
	}

	body := strings.TrimSpace(userMessageText(obj))
	if body == "" || IsSystemContext(body) {
		return ""
	}
	body = CleanTitle(body)
	if body == "" || IsSystemContext(body) {
		return ""
	}
	return Truncate(body, MaxTitleLen)
}

// userMessageText returns the body of a user-authored message with string
// content, checking the top level and the message envelope.
func userMessageText(obj map[string]any) string {
	if role, _ := obj["role"].(string); role == "user" {
		if s, _ := obj["content"].(string); s != "" {
			return s
		}
	}
	if msg, ok := obj["message"].(map[string]any); ok {
		if role, _ := msg["role"].(string); role == "user" {
			if s, _ := msg["content"].(string); s != "" {
				return s
			}
		}
	}
	return ""
}

// probeTimestamp returns the first parseable timestamp on the line as unix
// milliseconds, or 0.
func probeTimestamp(obj map[string]any, extra [][]string) int64 {
	for _, set := range [][][]string{timePaths, extra} {
		for _, path := range set {
			v := lookup(obj, path)
			if v == nil {
				continue
			}
			if ts, ok := ParseTimestamp(v); ok {
				return ts
			}
		}
	}
	return 0
}

// lookup walks nested JSON objects along path and returns the terminal
// value, or nil.
func lookup(obj map[string]any, path []string) any {
	var cur any = obj
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[key]
		if !ok {
			return nil
		}
	}
	return cur
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// ParseTimestamp converts the timestamp shapes agents write into unix
// milliseconds. Strings may be RFC 3339 variants or epoch numbers; bare
// numbers are classified as seconds or milliseconds by magnitude.
func ParseTimestamp(v any) (int64, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UnixMilli(), true
			}
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return epochMilli(n)
		}
		return 0, false
	case float64:
		return epochMilli(t)
	case json.Number:
		if n, err := t.Float64(); err == nil {
			return epochMilli(n)
		}
		return 0, false
	case int64:
		return epochMilli(float64(t))
	default:
		return 0, false
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// epochMilli classifies a bare epoch number. Values at or above 1e12 are
// already milliseconds, values at or above 1e9 are seconds, anything
// smaller is not a plausible timestamp.
func epochMilli(n float64) (int64, bool) {
	switch {
	case n >= 1e12:
		return int64(n), true
	case n >= 1e9:
		return int64(n * 1000), true
	default:
		return 0, false
	}
}

// CleanTitle normalizes a title candidate: a leading code fence is
// dropped, literal escape sequences become spaces and whitespace runs
// collapse to single spaces.
func CleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = escapeReplacer.Replace(s)
	return collapseWhitespace(s)
}

var escapeReplacer = strings.NewReplacer(`\n`, " ", `\t`, " ", `\r`, " ")

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate caps s at max runes.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// Injected-context shapes that must not become session titles.
var (
	// xmlPreamblePattern matches bodies opening with an injected tag such
	// as <environment_context>, <ide_opened_file> or <command-name>.
	xmlPreamblePattern = regexp.MustCompile(`^<[a-zA-Z][\w-]*(\s[^>]*)?>`)

	// systemHeadingPattern matches instruction files pasted as markdown.
	systemHeadingPattern = regexp.MustCompile(`^#\s+(AGENTS|Instructions|System)\b`)

	// shellPromptPattern matches pasted shell invocations like "> ls -la"
	// or "$ make test".
	shellPromptPattern = regexp.MustCompile(`^[>$]\s+\S`)

	// logDumpPattern matches pasted CSV-ish log output like "1724,info,...".
	logDumpPattern = regexp.MustCompile(`^\d+,`)
)

// IsSystemContext reports whether a user message body is injected context
// rather than something the user typed.
func IsSystemContext(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	if strings.HasPrefix(s, "You are an automated") ||
		strings.HasPrefix(s, "Caveat:") ||
		strings.HasPrefix(s, "[MODE:") {
		return true
	}
	return xmlPreamblePattern.MatchString(s) ||
		systemHeadingPattern.MatchString(s) ||
		shellPromptPattern.MatchString(s) ||
		logDumpPattern.MatchString(s)
}
