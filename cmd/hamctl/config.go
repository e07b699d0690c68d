package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/log4ym/hamctl-go/pkg/settings"
)

// Config is the hamctl configuration file.
type Config struct {
	Listen         string          `yaml:"listen"`
	LogLevel       string          `yaml:"log_level"`
	ProtocolLog    string          `yaml:"protocol_log"`
	ProtocolDebug  bool            `yaml:"protocol_debug"`
	SettingsFile   string          `yaml:"settings_file"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	NATS           NATSConfig      `yaml:"nats"`
	Discovery      DiscoveryConfig `yaml:"discovery"`
	Radio          settings.Device `yaml:"radio"`
	Rotator        settings.Device `yaml:"rotator"`
}

// NATSConfig enables event publishing to NATS.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// DiscoveryConfig controls mDNS.
type DiscoveryConfig struct {
	Browse       bool   `yaml:"browse"`
	AutoConnect  bool   `yaml:"auto_connect"`
	Advertise    bool   `yaml:"advertise"`
	Interface    string `yaml:"interface"`
	InstanceName string `yaml:"instance_name"`
}

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() Config {
	snap := settings.Defaults()
	return Config{
		Listen:   ":8073",
		LogLevel: "info",
		NATS: NATSConfig{
			SubjectPrefix: "log4ym",
		},
		Discovery: DiscoveryConfig{
			InstanceName: "hamctl",
		},
		Radio:   snap.Radio,
		Rotator: snap.Rotator,
	}
}

// LoadConfig reads path over the defaults. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	return c.Snapshot().Validate()
}

// Snapshot returns the device settings held by the config file.
func (c Config) Snapshot() settings.Snapshot {
	return settings.Snapshot{Radio: c.Radio, Rotator: c.Rotator}
}

// ParseLevel parses a log level name.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s (use: debug, info, warn, error)", s)
	}
}
