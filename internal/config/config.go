// Package config loads and saves the wallet's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/klingon-exchange/vaultwallet/internal/backend"
	"github.com/klingon-exchange/vaultwallet/internal/chain"
	"github.com/klingon-exchange/vaultwallet/internal/wallet"
	"github.com/klingon-exchange/vaultwallet/pkg/logging"
)

// ConfigFileName is the default config file name.
const ConfigFileName = "config.yaml"

// DefaultDataDir is where the config lives unless told otherwise.
const DefaultDataDir = "~/.btcwallet"

// Config holds all configuration for the wallet.
type Config struct {
	// Network is mainnet or testnet.
	Network chain.Network `yaml:"network"`

	// Backend is the chain data provider.
	// If not specified, defaults to the public Blockstream Esplora API.
	Backend *backend.Config `yaml:"backend,omitempty"`

	Logging LoggingConfig `yaml:"logging"`
	Fees    FeesConfig    `yaml:"fees"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// Format is text, json or logfmt.
	Format string `yaml:"format"`
}

// FeesConfig holds fee defaults for the CLI.
type FeesConfig struct {
	// DefaultTier picks the quoted rate used when none is given.
	DefaultTier string `yaml:"default_tier"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Network: chain.Mainnet,
		Backend: backend.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Fees: FeesConfig{
			DefaultTier: string(wallet.FeeRegular),
		},
	}
}

// BackendConfig returns the backend config, or the default when unset.
func (c *Config) BackendConfig() *backend.Config {
	if c.Backend != nil {
		return c.Backend
	}
	return backend.DefaultConfig()
}

// BackendURL returns the provider endpoint for the configured network.
func (c *Config) BackendURL() string {
	return c.BackendConfig().URL(c.Network)
}

// DefaultTier returns the configured fee tier.
func (c *Config) DefaultTier() (wallet.FeeTier, error) {
	return wallet.ParseFeeTier(c.Fees.DefaultTier)
}

// LoggerConfig converts the logging section for pkg/logging.
func (c *Config) LoggerConfig() *logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Format = c.Logging.Format
	return cfg
}

// Validate checks the configuration for values the wallet cannot run with.
func (c *Config) Validate() error {
	if !c.Network.Valid() {
		return fmt.Errorf("invalid network: %q", c.Network)
	}

	b := c.BackendConfig()
	switch b.Type {
	case backend.TypeEsplora, backend.TypeMempool, "":
	default:
		return fmt.Errorf("%w: %s", backend.ErrUnsupportedBackend, b.Type)
	}
	if c.BackendURL() == "" {
		return fmt.Errorf("no backend URL for %s", c.Network)
	}
	if b.Timeout < 0 {
		return fmt.Errorf("invalid backend timeout: %d", b.Timeout)
	}

	if _, err := c.DefaultTier(); err != nil {
		return err
	}

	switch c.Logging.Format {
	case "", "text", "json", "logfmt":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	return nil
}

// LoadConfig loads configuration from the data directory.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(dataDir string) (*Config, error) {
	configPath := ConfigPath(dataDir)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	return Load(configPath)
}

// Load reads a YAML config file. Missing fields keep their defaults; missing
// backend endpoints default to the public ones for the configured type.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(expandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Backend = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Backend == nil {
		cfg.Backend = backend.DefaultConfig()
	}
	cfg.Backend.FillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	path = expandPath(path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# BTC wallet configuration\n# Generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ConfigPath returns the full path to the config file for the given data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(expandPath(dataDir), ConfigFileName)
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
