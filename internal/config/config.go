// Package config provides TOML configuration file loading for the support desk host.
// The configuration file lives at ~/.supportdesk/config.toml by default, but can be
// overridden with the --config flag. Values are layered: flags take precedence over
// SUPPORTDESK_* environment variables, which take precedence over the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the host configuration file structure.
// Field names use Go camelCase internally but map to snake_case in TOML files
// and SUPPORTDESK_ prefixed names in the environment.
type Config struct {
	// Addr is the host:port for the WebSocket server and operator console.
	// Default: 127.0.0.1:8765
	Addr string `toml:"addr" env:"SUPPORTDESK_ADDR"`

	// Store is the path to the SQLite database holding credentials and the message log.
	// Default: ~/.supportdesk/supportdesk.db
	Store string `toml:"store" env:"SUPPORTDESK_STORE"`

	// LogFile redirects log output to a file when set.
	LogFile string `toml:"log_file" env:"SUPPORTDESK_LOG_FILE"`

	// OperatorName is the identity clients address the operator by.
	// Default: server
	OperatorName string `toml:"operator_name" env:"SUPPORTDESK_OPERATOR_NAME"`

	// MdnsEnabled advertises the host on the local network.
	// Default: false
	MdnsEnabled bool `toml:"mdns_enabled" env:"SUPPORTDESK_MDNS_ENABLED"`

	// AuthRatePerSec and AuthBurst throttle handshake attempts across all clients.
	AuthRatePerSec float64 `toml:"auth_rate_per_sec" env:"SUPPORTDESK_AUTH_RATE_PER_SEC"`
	AuthBurst      int     `toml:"auth_burst" env:"SUPPORTDESK_AUTH_BURST"`

	// FrameRatePerSec and FrameBurst throttle chat frames per connection.
	FrameRatePerSec float64 `toml:"frame_rate_per_sec" env:"SUPPORTDESK_FRAME_RATE_PER_SEC"`
	FrameBurst      int     `toml:"frame_burst" env:"SUPPORTDESK_FRAME_BURST"`

	// PingIntervalSec is the keep-alive ping period in seconds.
	// Default: 30
	PingIntervalSec int `toml:"ping_interval_sec" env:"SUPPORTDESK_PING_INTERVAL_SEC"`
}

// DefaultConfigPath returns the default config file location: ~/.supportdesk/config.toml.
// Returns an error only if the user's home directory cannot be determined.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".supportdesk", "config.toml"), nil
}

// DefaultStorePath returns the default database location: ~/.supportdesk/supportdesk.db.
func DefaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".supportdesk", "supportdesk.db"), nil
}

// Load reads a TOML config file from the given path and returns a Config.
//
// Behavior:
//   - If path is empty, attempts to load from the default location.
//     Returns an empty Config without error if the default file doesn't exist.
//   - If path is specified, returns an error if the file doesn't exist.
//   - Returns an error if the file exists but cannot be parsed.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			return cfg, nil
		}
		path = defaultPath
	} else {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv overlays SUPPORTDESK_* environment variables onto cfg.
// A .env file in the working directory is loaded first if present; variables
// already set in the process environment win over the file.
func ApplyEnv(cfg *Config) error {
	_ = godotenv.Load(EnvFile)

	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

// WithDefaults returns a copy of cfg with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Store == "" {
		if p, err := DefaultStorePath(); err == nil {
			c.Store = p
		}
	}
	if c.OperatorName == "" {
		c.OperatorName = DefaultOperatorName
	}
	if c.AuthRatePerSec <= 0 {
		c.AuthRatePerSec = DefaultAuthRatePerSec
	}
	if c.AuthBurst <= 0 {
		c.AuthBurst = DefaultAuthBurst
	}
	if c.FrameRatePerSec <= 0 {
		c.FrameRatePerSec = DefaultFrameRatePerSec
	}
	if c.FrameBurst <= 0 {
		c.FrameBurst = DefaultFrameBurst
	}
	if c.PingIntervalSec <= 0 {
		c.PingIntervalSec = int(DefaultPingInterval / time.Second)
	}
	return c
}

// PingInterval returns the keep-alive period as a duration.
func (c Config) PingInterval() time.Duration {
	if c.PingIntervalSec <= 0 {
		return DefaultPingInterval
	}
	return time.Duration(c.PingIntervalSec) * time.Second
}
