// internal/config/types.go
package config

// Config is the daemon configuration loaded from config.yaml.
type Config struct {
	Daemon  DaemonConfig  `yaml:"daemon"`
	Logging LoggingConfig `yaml:"logging"`
	History HistoryConfig `yaml:"history"`
	// Triggers maps a trigger-type name to that type's opaque option
	// mapping. One instance is created per entry; the manual trigger is
	// created whether or not it appears here.
	Triggers map[string]map[string]any `yaml:"triggers"`
}

type DaemonConfig struct {
	LogLevel      string `yaml:"log_level"`
	ListenAddress string `yaml:"listen_address"`
	ListenPort    int    `yaml:"listen_port"`
}

type LoggingConfig struct {
	Format string `yaml:"format"`
	Path   string `yaml:"path"` // empty logs to stdout
	Debug  bool   `yaml:"debug"`
}

type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}
