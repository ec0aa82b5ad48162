// internal/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads the daemon configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with all defaults applied and no triggers
// configured.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Daemon.LogLevel == "" {
		cfg.Daemon.LogLevel = "info"
	}
	if cfg.Daemon.ListenAddress == "" {
		cfg.Daemon.ListenAddress = "127.0.0.1"
	}
	if cfg.Daemon.ListenPort == 0 {
		cfg.Daemon.ListenPort = 8787
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.History.RetentionDays <= 0 {
		cfg.History.RetentionDays = 90
	}
	if cfg.History.Enabled && cfg.History.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.History.Path = filepath.Join(home, ".adwd", "history.db")
		}
	}
	if cfg.Triggers == nil {
		cfg.Triggers = map[string]map[string]any{}
	}
}
