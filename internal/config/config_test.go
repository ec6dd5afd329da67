package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8765 {
		t.Errorf("server.port = %d, want 8765", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("server.host = %q", cfg.Server.Host)
	}
	if !cfg.Providers.Claude.Enabled || cfg.Providers.Claude.Command != "claude" {
		t.Errorf("claude provider defaults = %+v", cfg.Providers.Claude)
	}
	if cfg.Indexer.DebounceMS != 250 {
		t.Errorf("indexer.debounce_ms = %d, want 250", cfg.Indexer.DebounceMS)
	}
	if cfg.Indexer.SeenSessionRetentionMS != 7*24*60*60*1000 {
		t.Errorf("seen retention = %d", cfg.Indexer.SeenSessionRetentionMS)
	}
	if cfg.Indexer.SeenSessionMax != 10000 {
		t.Errorf("seen max = %d", cfg.Indexer.SeenSessionMax)
	}
	if cfg.Coordinator.MaxAssociationAgeMS != 30000 {
		t.Errorf("max_association_age_ms = %d", cfg.Coordinator.MaxAssociationAgeMS)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
}

func TestLoadFillsDefaultPaths(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !strings.HasSuffix(cfg.Indexer.Cache.Path, filepath.Join(".agentdeck", "cache", "meta.db")) {
		t.Errorf("cache path = %q", cfg.Indexer.Cache.Path)
	}
	if !strings.HasSuffix(cfg.Overrides.Path, filepath.Join(".agentdeck", "overrides.yaml")) {
		t.Errorf("overrides path = %q", cfg.Overrides.Path)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: 9100
providers:
  gemini:
    enabled: false
indexer:
  debounce_ms: 100
coordinator:
  max_association_age_ms: 60000
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("server.port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Providers.Gemini.Enabled {
		t.Error("gemini still enabled")
	}
	if cfg.Indexer.DebounceMS != 100 {
		t.Errorf("debounce = %d, want 100", cfg.Indexer.DebounceMS)
	}
	if cfg.Coordinator.MaxAssociationAgeMS != 60000 {
		t.Errorf("association age = %d, want 60000", cfg.Coordinator.MaxAssociationAgeMS)
	}
	// Untouched sections keep defaults.
	if !cfg.Providers.Codex.Enabled {
		t.Error("codex default lost")
	}
}

func TestLoadLegacyEnvBindings(t *testing.T) {
	t.Setenv("CLAUDE_HOME", "/custom/claude")
	t.Setenv("CLAUDE_CMD", "claude-nightly")
	t.Setenv("CODEX_HOME", "/custom/codex")
	t.Setenv("CLAUDE_SEEN_SESSION_MAX", "500")
	t.Setenv("CLAUDE_INDEXER_DEBOUNCE_MS", "50")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.Claude.Home != "/custom/claude" {
		t.Errorf("claude home = %q", cfg.Providers.Claude.Home)
	}
	if cfg.Providers.Claude.Command != "claude-nightly" {
		t.Errorf("claude command = %q", cfg.Providers.Claude.Command)
	}
	if cfg.Providers.Codex.Home != "/custom/codex" {
		t.Errorf("codex home = %q", cfg.Providers.Codex.Home)
	}
	if cfg.Indexer.SeenSessionMax != 500 {
		t.Errorf("seen max = %d, want 500", cfg.Indexer.SeenSessionMax)
	}
	if cfg.Indexer.DebounceMS != 50 {
		t.Errorf("debounce = %d, want 50", cfg.Indexer.DebounceMS)
	}
}

func TestLoadPrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("CLAUDE_HOME", "/legacy")
	t.Setenv("AGENTDECK_PROVIDERS_CLAUDE_HOME", "/prefixed")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.Claude.Home != "/prefixed" {
		t.Errorf("claude home = %q, want /prefixed", cfg.Providers.Claude.Home)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("malformed config accepted")
	}
}

func TestEnabledProviders(t *testing.T) {
	p := ProvidersConfig{
		Claude: ProviderConfig{Enabled: true},
		Kimi:   ProviderConfig{Enabled: true},
	}
	enabled := p.EnabledProviders()
	if len(enabled) != 2 {
		t.Fatalf("enabled = %v", enabled)
	}
	if _, ok := enabled["claude"]; !ok {
		t.Error("claude missing")
	}
	if _, ok := enabled["kimi"]; !ok {
		t.Error("kimi missing")
	}
}
