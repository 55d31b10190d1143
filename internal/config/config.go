package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreNone     = "none"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config is the reel.yaml server configuration.
type Config struct {
	Version int `yaml:"version"`
	Server  struct {
		Port     int    `yaml:"port"`
		LogMode  string `yaml:"log_mode"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"server"`
	Playback struct {
		ScenarioDir string  `yaml:"scenario_dir"`
		Tolerance   *float64 `yaml:"tolerance"`
		MaxSessions int      `yaml:"max_sessions"`
	} `yaml:"playback"`
	Store struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
		Path   string `yaml:"path"`
	} `yaml:"store"`
	MQTT struct {
		Enabled     bool          `yaml:"enabled"`
		Broker      string        `yaml:"broker"`
		TopicPrefix string        `yaml:"topic_prefix"`
		ClientID    string        `yaml:"client_id"`
		Timeout     time.Duration `yaml:"timeout"`

		// PlayerTimeout is how long a player may stay silent before it is
		// reported disconnected.
		PlayerTimeout time.Duration `yaml:"player_timeout"`
	} `yaml:"mqtt"`
}

// Default returns the configuration used when no reel.yaml is given.
func Default() *Config {
	return &Config{Version: 1}
}

// Port returns the configured HTTP port, defaulting to 8080 if not set.
func (c *Config) Port() int {
	if c.Server.Port == 0 {
		return 8080
	}
	return c.Server.Port
}

// ScenarioDir defaults to ./scenarios.
func (c *Config) ScenarioDir() string {
	if c.Playback.ScenarioDir == "" {
		return "scenarios"
	}
	return c.Playback.ScenarioDir
}

// Tolerance returns the interaction trigger window in seconds and whether it
// was configured. An explicit 0 means exact-match triggers.
func (c *Config) Tolerance() (float64, bool) {
	if c.Playback.Tolerance == nil {
		return 0, false
	}
	return *c.Playback.Tolerance, true
}

// StoreDriver defaults to none.
func (c *Config) StoreDriver() string {
	if c.Store.Driver == "" {
		return StoreNone
	}
	return c.Store.Driver
}

// SQLitePath defaults to reel.db in the working directory.
func (c *Config) SQLitePath() string {
	if c.Store.Path == "" {
		return "reel.db"
	}
	return c.Store.Path
}

// TopicPrefix defaults to "reel".
func (c *Config) TopicPrefix() string {
	if c.MQTT.TopicPrefix == "" {
		return "reel"
	}
	return c.MQTT.TopicPrefix
}

// MQTTTimeout defaults to 5s.
func (c *Config) MQTTTimeout() time.Duration {
	if c.MQTT.Timeout <= 0 {
		return 5 * time.Second
	}
	return c.MQTT.Timeout
}

// PlayerTimeout defaults to 10s.
func (c *Config) PlayerTimeout() time.Duration {
	if c.MQTT.PlayerTimeout <= 0 {
		return 10 * time.Second
	}
	return c.MQTT.PlayerTimeout
}

// Load reads and validates a reel.yaml file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes and validates reel.yaml content.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported reel.yaml version: %d", cfg.Version)
	}

	switch cfg.StoreDriver() {
	case StoreNone, StorePostgres, StoreSQLite:
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", cfg.Store.Driver)
	}

	if t, ok := cfg.Tolerance(); ok && t < 0 {
		return nil, fmt.Errorf("playback.tolerance must not be negative: %v", t)
	}
	if cfg.Playback.MaxSessions < 0 {
		return nil, fmt.Errorf("playback.max_sessions must not be negative: %d", cfg.Playback.MaxSessions)
	}

	return &cfg, nil
}
