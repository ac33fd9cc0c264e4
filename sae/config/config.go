// Package config holds the SAE runtime configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration. Durations are written as Go
// duration strings ("60s", "5m").
type Config struct {
	// Address the host listens on.
	Listen string `yaml:"listen"`

	// Transport adapter: "quic" or "websocket".
	Transport string `yaml:"transport"`

	// Logging: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Replay  ReplayConfig  `yaml:"replay"`
	Session SessionConfig `yaml:"session"`
	Invite  InviteConfig  `yaml:"invite"`
}

type ReplayConfig struct {
	MaxFutureSkew time.Duration `yaml:"max_future_skew"`
	MaxAge        time.Duration `yaml:"max_age"`
}

type SessionConfig struct {
	// Consecutive ratchet or decryption failures before the session is torn down.
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures"`
	HandshakeTimeout       time.Duration `yaml:"handshake_timeout"`
}

type InviteConfig struct {
	TokenTTL time.Duration `yaml:"token_ttl"`
}

const (
	TransportQUIC      = "quic"
	TransportWebSocket = "websocket"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:    "0.0.0.0:7457",
		Transport: TransportQUIC,
		LogLevel:  "info",
		Replay: ReplayConfig{
			MaxFutureSkew: 60 * time.Second,
			MaxAge:        300 * time.Second,
		},
		Session: SessionConfig{
			MaxConsecutiveFailures: 5,
			HandshakeTimeout:       30 * time.Second,
		},
		Invite: InviteConfig{
			TokenTTL: 5 * time.Minute,
		},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes cfg as YAML with owner-only permissions.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("listen address %q: %w", c.Listen, err)
	}
	switch c.Transport {
	case TransportQUIC, TransportWebSocket:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.Replay.MaxFutureSkew < time.Second {
		return fmt.Errorf("replay.max_future_skew must be at least 1s")
	}
	if c.Replay.MaxAge < time.Second {
		return fmt.Errorf("replay.max_age must be at least 1s")
	}
	if c.Session.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("session.max_consecutive_failures must be positive")
	}
	if c.Session.HandshakeTimeout <= 0 {
		return fmt.Errorf("session.handshake_timeout must be positive")
	}
	if c.Invite.TokenTTL <= 0 {
		return fmt.Errorf("invite.token_ttl must be positive")
	}
	return nil
}
