package config

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"console": true,
	"json":    true,
}

// Validate validates the configuration.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateIndexer(&cfg.Indexer); err != nil {
		return err
	}
	if err := validateCoordinator(&cfg.Coordinator); err != nil {
		return err
	}
	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return fmt.Errorf("server.host must not be empty")
	}
	return nil
}

func validateIndexer(cfg *IndexerConfig) error {
	if cfg.DebounceMS < 0 {
		return fmt.Errorf("indexer.debounce_ms must not be negative")
	}
	if cfg.SeenSessionRetentionMS <= 0 {
		return fmt.Errorf("indexer.seen_session_retention_ms must be positive")
	}
	if cfg.SeenSessionMax <= 0 {
		return fmt.Errorf("indexer.seen_session_max must be positive")
	}
	if cfg.Cache.Enabled && strings.TrimSpace(cfg.Cache.Path) == "" {
		return fmt.Errorf("indexer.cache.path must be set when indexer.cache.enabled is true")
	}
	return nil
}

func validateCoordinator(cfg *CoordinatorConfig) error {
	if cfg.MaxAssociationAgeMS <= 0 {
		return fmt.Errorf("coordinator.max_association_age_ms must be positive")
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	if !validLogLevels[cfg.Level] {
		return fmt.Errorf("logging.level must be one of trace, debug, info, warn, error")
	}
	if !validLogFormats[cfg.Format] {
		return fmt.Errorf("logging.format must be console or json")
	}
	return nil
}

// EnabledProviders returns the provider sections that are switched on,
// keyed by provider name.
func (p *ProvidersConfig) EnabledProviders() map[string]ProviderConfig {
	out := make(map[string]ProviderConfig)
	if p.Claude.Enabled {
		out["claude"] = p.Claude
	}
	if p.Codex.Enabled {
		out["codex"] = p.Codex
	}
	if p.OpenCode.Enabled {
		out["opencode"] = p.OpenCode
	}
	if p.Gemini.Enabled {
		out["gemini"] = p.Gemini
	}
	if p.Kimi.Enabled {
		out["kimi"] = p.Kimi
	}
	return out
}
