// Package config loads forge settings from the environment and from
// ~/.forge/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvAPIKey is the environment variable consulted for the
// code-generation API key. It takes priority over the stored credential.
const EnvAPIKey = "FORGE_API_KEY"

// Settings holds environment-sourced configuration.
// The environment is read-only at runtime; absence of any variable is a
// valid state.
type Settings struct {
	APIKey  string `env:"FORGE_API_KEY"`
	BaseURL string `env:"FORGE_BASE_URL"`
	Verbose bool   `env:"FORGE_VERBOSE"`
}

// FromEnv parses Settings from the process environment.
func FromEnv() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parsing environment: %w", err)
	}
	return s, nil
}

// GlobalConfig holds settings from ~/.forge/config.yaml.
type GlobalConfig struct {
	BaseURL string      `yaml:"base_url"`
	Debug   DebugConfig `yaml:"debug"`
}

// DebugConfig holds debug logging settings.
type DebugConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// DefaultGlobalConfig returns the default global configuration.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Debug: DebugConfig{
			RetentionDays: 7,
		},
	}
}

// LoadGlobal reads ~/.forge/config.yaml and applies environment overrides.
func LoadGlobal() (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	if home, err := os.UserHomeDir(); err == nil {
		configPath := filepath.Join(home, ".forge", "config.yaml")
		if data, err := os.ReadFile(configPath); err == nil {
			_ = yaml.Unmarshal(data, cfg) // Ignore unmarshal errors, use defaults
		}
	}

	if url := os.Getenv("FORGE_BASE_URL"); url != "" {
		cfg.BaseURL = url
	}

	return cfg, nil
}

// GlobalConfigDir returns the path to ~/.forge.
func GlobalConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".forge")
	}
	return filepath.Join(home, ".forge")
}
