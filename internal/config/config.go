package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/marcelocantos/treesh/internal/env"
)

// Config holds the global treesh configuration.
type Config struct {
	Prompt string            `yaml:"prompt"`
	Env    map[string]string `yaml:"env"`
	Audit  AuditConfig       `yaml:"audit"`
}

// AuditConfig controls the command audit log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Prompt: "treesh$ ",
		Audit: AuditConfig{
			Enabled: false,
			Path:    filepath.Join(home, ".local", "share", "treesh", "audit.jsonl"),
		},
	}
}

// Load reads the config from the standard location
// (~/.config/treesh/config.yaml). If the file doesn't exist, returns the
// default config.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	path := filepath.Join(home, ".config", "treesh", "config.yaml")
	return LoadFrom(path)
}

// LoadFrom reads the config from the given path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	// Expand ~ in the audit path.
	if cfg.Audit.Path != "" && cfg.Audit.Path[0] == '~' {
		home, _ := os.UserHomeDir()
		cfg.Audit.Path = filepath.Join(home, cfg.Audit.Path[1:])
	}

	return cfg, nil
}

// ApplyEnv seeds the interpreter's environment snapshot with the configured
// extra variables. Configured entries win over inherited ones.
func (c *Config) ApplyEnv(snap *env.Snapshot) {
	for name, value := range c.Env {
		snap.Set(name, value)
	}
}

// ConfigPath returns the standard config file path.
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "treesh", "config.yaml")
}
