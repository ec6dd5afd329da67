package domain

import (
	"encoding/json"
	"testing"
)

func TestParseSessionKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  SessionKey
	}{
		{
			name:  "composite claude key",
			input: "claude:550e8400-e29b-41d4-a716-446655440000",
			want:  SessionKey{Provider: ProviderClaude, ID: "550e8400-e29b-41d4-a716-446655440000"},
		},
		{
			name:  "composite codex key",
			input: "codex:sess-abc",
			want:  SessionKey{Provider: ProviderCodex, ID: "sess-abc"},
		},
		{
			name:  "legacy bare id defaults to claude",
			input: "550e8400-e29b-41d4-a716-446655440000",
			want:  SessionKey{Provider: ProviderClaude, ID: "550e8400-e29b-41d4-a716-446655440000"},
		},
		{
			name:  "unknown prefix is part of a bare claude id",
			input: "mystery:abc",
			want:  SessionKey{Provider: ProviderClaude, ID: "mystery:abc"},
		},
		{
			name:  "id may itself contain colons",
			input: "opencode:ses:v2:123",
			want:  SessionKey{Provider: ProviderOpenCode, ID: "ses:v2:123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSessionKey(tt.input)
			if got != tt.want {
				t.Fatalf("ParseSessionKey(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSessionKeyTextRoundTrip(t *testing.T) {
	key := SessionKey{Provider: ProviderGemini, ID: "session-42"}

	data, err := json.Marshal(key)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"gemini:session-42"` {
		t.Fatalf("marshal = %s, want %q", data, `"gemini:session-42"`)
	}

	var back SessionKey
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != key {
		t.Fatalf("round trip = %+v, want %+v", back, key)
	}
}

func TestSortSessions(t *testing.T) {
	sessions := []SessionRecord{
		{Key: SessionKey{ProviderCodex, "b"}, UpdatedAt: 100},
		{Key: SessionKey{ProviderClaude, "a"}, UpdatedAt: 300},
		{Key: SessionKey{ProviderCodex, "a"}, UpdatedAt: 100},
		{Key: SessionKey{ProviderKimi, "z"}, UpdatedAt: 200},
	}

	SortSessions(sessions)

	wantOrder := []string{"claude:a", "kimi:z", "codex:a", "codex:b"}
	for i, want := range wantOrder {
		if got := sessions[i].Key.String(); got != want {
			t.Fatalf("sessions[%d] = %s, want %s", i, got, want)
		}
	}
}

func TestSortProjects(t *testing.T) {
	projects := []Project{
		{Path: "/b", Sessions: []SessionRecord{{UpdatedAt: 50}}},
		{Path: "/a", Sessions: []SessionRecord{{UpdatedAt: 50}}},
		{Path: "/c", Sessions: []SessionRecord{{UpdatedAt: 10}, {UpdatedAt: 900}}},
	}

	SortProjects(projects)

	wantOrder := []string{"/c", "/a", "/b"}
	for i, want := range wantOrder {
		if projects[i].Path != want {
			t.Fatalf("projects[%d] = %s, want %s", i, projects[i].Path, want)
		}
	}
}

func TestCloneProjectsIsDeep(t *testing.T) {
	orig := []Project{{
		Path:     "/p",
		Sessions: []SessionRecord{{Key: SessionKey{ProviderClaude, "x"}, Title: "one"}},
	}}

	clone := CloneProjects(orig)
	clone[0].Sessions[0].Title = "mutated"

	if orig[0].Sessions[0].Title != "one" {
		t.Fatalf("clone shares session backing array with original")
	}
}
