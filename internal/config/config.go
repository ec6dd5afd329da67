// Package config handles configuration management for agentdeck.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
	Indexer     IndexerConfig     `mapstructure:"indexer"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Overrides   OverridesConfig   `mapstructure:"overrides"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds the HTTP/WebSocket server configuration. A single
// listener carries both the REST surface and the /ws event stream.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ProviderConfig configures one coding-assistant CLI adapter.
type ProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Home    string `mapstructure:"home"`    // empty: platform default / env var
	Command string `mapstructure:"command"` // CLI binary used for resume hints
}

// ProvidersConfig holds the per-provider adapter configuration.
type ProvidersConfig struct {
	Claude   ProviderConfig `mapstructure:"claude"`
	Codex    ProviderConfig `mapstructure:"codex"`
	OpenCode ProviderConfig `mapstructure:"opencode"`
	Gemini   ProviderConfig `mapstructure:"gemini"`
	Kimi     ProviderConfig `mapstructure:"kimi"`
}

// IndexerConfig holds session indexer configuration.
type IndexerConfig struct {
	DebounceMS             int         `mapstructure:"debounce_ms"`
	SeenSessionRetentionMS int64       `mapstructure:"seen_session_retention_ms"`
	SeenSessionMax         int         `mapstructure:"seen_session_max"`
	Cache                  CacheConfig `mapstructure:"cache"`
}

// CacheConfig holds the persistent file-meta cache configuration.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// CoordinatorConfig holds association coordinator configuration.
type CoordinatorConfig struct {
	MaxAssociationAgeMS int64 `mapstructure:"max_association_age_ms"`
}

// OverridesConfig locates the user-facing session overrides file.
type OverridesConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default search paths
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.agentdeck")
		v.AddConfigPath("/etc/agentdeck")
	}

	// Environment variable prefix
	v.SetEnvPrefix("AGENTDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindLegacyEnv(v)

	// Set defaults
	setDefaults(v)

	// Read config file (optional - not an error if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// Post-process configuration
	if err := postProcess(&cfg); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bindLegacyEnv wires the provider environment variables that predate the
// AGENTDECK prefix. Viper resolves the first bound name that is set, so the
// prefixed form wins when both are present.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("providers.claude.home", "AGENTDECK_PROVIDERS_CLAUDE_HOME", "CLAUDE_HOME")
	_ = v.BindEnv("providers.claude.command", "AGENTDECK_PROVIDERS_CLAUDE_COMMAND", "CLAUDE_CMD")
	_ = v.BindEnv("providers.codex.home", "AGENTDECK_PROVIDERS_CODEX_HOME", "CODEX_HOME")
	_ = v.BindEnv("providers.opencode.home", "AGENTDECK_PROVIDERS_OPENCODE_HOME", "OPENCODE_HOME")
	_ = v.BindEnv("providers.gemini.home", "AGENTDECK_PROVIDERS_GEMINI_HOME", "GEMINI_HOME")
	_ = v.BindEnv("providers.kimi.home", "AGENTDECK_PROVIDERS_KIMI_HOME", "KIMI_HOME")
	_ = v.BindEnv("indexer.seen_session_retention_ms", "AGENTDECK_INDEXER_SEEN_SESSION_RETENTION_MS", "CLAUDE_SEEN_SESSION_RETENTION_MS")
	_ = v.BindEnv("indexer.seen_session_max", "AGENTDECK_INDEXER_SEEN_SESSION_MAX", "CLAUDE_SEEN_SESSION_MAX")
	_ = v.BindEnv("indexer.debounce_ms", "AGENTDECK_INDEXER_DEBOUNCE_MS", "CLAUDE_INDEXER_DEBOUNCE_MS")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8765)

	// Provider defaults: all enabled, homes resolved by the adapters when
	// empty.
	v.SetDefault("providers.claude.enabled", true)
	v.SetDefault("providers.claude.command", "claude")
	v.SetDefault("providers.codex.enabled", true)
	v.SetDefault("providers.codex.command", "codex")
	v.SetDefault("providers.opencode.enabled", true)
	v.SetDefault("providers.opencode.command", "opencode")
	v.SetDefault("providers.gemini.enabled", true)
	v.SetDefault("providers.gemini.command", "gemini")
	v.SetDefault("providers.kimi.enabled", true)
	v.SetDefault("providers.kimi.command", "kimi")

	// Indexer defaults
	v.SetDefault("indexer.debounce_ms", 250)
	v.SetDefault("indexer.seen_session_retention_ms", int64(7*24*60*60*1000))
	v.SetDefault("indexer.seen_session_max", 10000)
	v.SetDefault("indexer.cache.enabled", true)
	v.SetDefault("indexer.cache.path", "")

	// Coordinator defaults
	v.SetDefault("coordinator.max_association_age_ms", int64(30000))

	// Overrides defaults
	v.SetDefault("overrides.path", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// postProcess fills in the paths that default to the agentdeck config
// directory.
func postProcess(cfg *Config) error {
	dir, err := GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to resolve config directory: %w", err)
	}

	if cfg.Indexer.Cache.Path == "" {
		cfg.Indexer.Cache.Path = filepath.Join(dir, "cache", "meta.db")
	}
	if cfg.Overrides.Path == "" {
		cfg.Overrides.Path = filepath.Join(dir, "overrides.yaml")
	}
	return nil
}

// GetConfigDir returns the user config directory for agentdeck.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".agentdeck"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
