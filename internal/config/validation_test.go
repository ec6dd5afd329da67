package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 8765},
		Indexer: IndexerConfig{
			DebounceMS:             250,
			SeenSessionRetentionMS: 1000,
			SeenSessionMax:         100,
			Cache:                  CacheConfig{Enabled: true, Path: "/tmp/metacache.db"},
		},
		Coordinator: CoordinatorConfig{MaxAssociationAgeMS: 30000},
		Logging:     LoggingConfig{Level: "info", Format: "console"},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "port too low",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "empty host",
			mutate:  func(c *Config) { c.Server.Host = "  " },
			wantErr: "server.host",
		},
		{
			name:    "negative debounce",
			mutate:  func(c *Config) { c.Indexer.DebounceMS = -1 },
			wantErr: "debounce_ms",
		},
		{
			name:    "zero retention",
			mutate:  func(c *Config) { c.Indexer.SeenSessionRetentionMS = 0 },
			wantErr: "seen_session_retention_ms",
		},
		{
			name:    "zero seen cap",
			mutate:  func(c *Config) { c.Indexer.SeenSessionMax = 0 },
			wantErr: "seen_session_max",
		},
		{
			name:    "cache enabled without path",
			mutate:  func(c *Config) { c.Indexer.Cache.Path = "" },
			wantErr: "indexer.cache.path",
		},
		{
			name:    "zero association age",
			mutate:  func(c *Config) { c.Coordinator.MaxAssociationAgeMS = 0 },
			wantErr: "max_association_age_ms",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCacheDisabledAllowsEmptyPath(t *testing.T) {
	cfg := validConfig()
	cfg.Indexer.Cache = CacheConfig{Enabled: false, Path: ""}
	if err := Validate(cfg); err != nil {
		t.Errorf("disabled cache with empty path rejected: %v", err)
	}
}
