// Package config loads and validates the gateway configuration.
//
// DESIGN: One YAML file, environment variables expanded with ${VAR}
// before parsing so secrets and machine-specific paths stay out of the
// file itself. Every field has a default; an empty config is valid.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the local HTTP surface.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StoreConfig configures the key-value store backing the settings
// document.
type StoreConfig struct {
	// Path of the SQLite file. Empty resolves to the user config dir.
	Path string `yaml:"path"`
	// Ephemeral switches to the in-memory store. Nothing survives a
	// restart; useful for demos and tests.
	Ephemeral bool `yaml:"ephemeral"`
}

// CipherConfig selects and configures the credential cipher backend.
type CipherConfig struct {
	Backend        string `yaml:"backend"` // "aes" or "kms"
	KeyEnv         string `yaml:"key_env"`
	KeyringService string `yaml:"keyring_service"`
	KMSKeyID       string `yaml:"kms_key_id"`
}

// MigrationConfig selects the first-run migration strategy.
type MigrationConfig struct {
	Strategy string `yaml:"strategy"` // "fresh-start" or "carry-over"
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Cipher    CipherConfig    `yaml:"cipher"`
	Migration MigrationConfig `yaml:"migration"`
	Log       LogConfig       `yaml:"log"`
}

// Default returns a fully populated configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         DefaultAddr,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
		},
		Store: StoreConfig{},
		Cipher: CipherConfig{
			Backend:        CipherBackendAES,
			KeyEnv:         DefaultKeyEnv,
			KeyringService: DefaultKeyringService,
		},
		Migration: MigrationConfig{Strategy: MigrationFreshStart},
		Log:       LogConfig{Level: DefaultLogLevel},
	}
}

// Load reads and parses the config file at path. A missing path returns
// the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses YAML config data over the defaults. ${VAR}
// references are expanded from the environment before parsing.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Cipher.Backend {
	case CipherBackendAES:
	case CipherBackendKMS:
		if c.Cipher.KMSKeyID == "" {
			return fmt.Errorf("cipher backend %q requires kms_key_id", CipherBackendKMS)
		}
	default:
		return fmt.Errorf("unknown cipher backend %q", c.Cipher.Backend)
	}

	switch c.Migration.Strategy {
	case MigrationFreshStart, MigrationCarryOver:
	default:
		return fmt.Errorf("unknown migration strategy %q", c.Migration.Strategy)
	}
	return nil
}

// StorePath resolves the SQLite file location, creating the parent
// directory when falling back to the user config dir.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	dir := filepath.Join(configDir, "deskpilot")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return filepath.Join(dir, DefaultStoreFile), nil
}
