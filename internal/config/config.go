package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dyluth/parliament/pkg/parliament"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Validate.
const (
	DefaultGroup       = "default"
	DefaultRedisURL    = "redis://localhost:6379"
	DefaultHTTPAddr    = ":8080"
	DefaultRecordStore = RecordRedis
)

// Record store backends.
const (
	RecordRedis  = "redis"
	RecordBadger = "badger"
)

// Config represents the top-level parliament.yml configuration
type Config struct {
	Version       string       `yaml:"version"`
	Peer          PeerConfig   `yaml:"peer"`
	Redis         RedisConfig  `yaml:"redis"`
	Sync          SyncConfig   `yaml:"sync"`
	Subscriptions []string     `yaml:"subscriptions,omitempty"` // class/attr/value, observers only
	Record        RecordConfig `yaml:"record"`
	HTTP          HTTPConfig   `yaml:"http"`
}

// PeerConfig identifies this process in the group
type PeerConfig struct {
	Name  string `yaml:"name,omitempty"` // Generated when empty
	Role  string `yaml:"role"`           // "senator" or "mass"
	Group string `yaml:"group,omitempty"`
}

// RedisConfig locates the coordination backend
type RedisConfig struct {
	URL string `yaml:"url"` // Overridden by REDIS_URL
}

// SyncConfig tunes the synchronization protocol; zero values take the
// library defaults
type SyncConfig struct {
	Retention      time.Duration `yaml:"retention,omitempty"`
	PollInterval   time.Duration `yaml:"poll_interval,omitempty"`
	BackoffUnit    time.Duration `yaml:"backoff_unit,omitempty"`
	JoinAttempts   int           `yaml:"join_attempts,omitempty"`
	PublishTimeout time.Duration `yaml:"publish_timeout,omitempty"`
}

// RecordConfig selects the system of record for path-ordered fields
type RecordConfig struct {
	Backend    string `yaml:"backend,omitempty"` // "redis" (shared) or "badger" (single host)
	Path       string `yaml:"path,omitempty"`    // Badger directory
	SyncWrites bool   `yaml:"sync_writes,omitempty"`
}

// HTTPConfig configures the introspection server
type HTTPConfig struct {
	Addr string `yaml:"addr,omitempty"` // "-" disables the server
}

// Validate performs strict validation on the configuration and applies defaults
func (c *Config) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: role
	if err := parliament.Role(c.Peer.Role).Validate(); err != nil {
		return fmt.Errorf("peer.role: %w (must be 'senator' or 'mass')", err)
	}

	if c.Peer.Group == "" {
		c.Peer.Group = DefaultGroup
	}
	if c.Redis.URL == "" {
		c.Redis.URL = DefaultRedisURL
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}

	// Subscriptions only make sense for observers
	if len(c.Subscriptions) > 0 && c.Peer.Role != string(parliament.RoleMass) {
		return fmt.Errorf("subscriptions are only valid for role 'mass'")
	}
	if _, err := c.Keys(); err != nil {
		return err
	}

	if c.Sync.Retention < 0 || c.Sync.PollInterval < 0 || c.Sync.BackoffUnit < 0 || c.Sync.PublishTimeout < 0 {
		return fmt.Errorf("sync durations must be >= 0")
	}
	if c.Sync.JoinAttempts < 0 {
		return fmt.Errorf("sync.join_attempts must be >= 0, got %d", c.Sync.JoinAttempts)
	}

	// Record store
	switch c.Record.Backend {
	case "":
		c.Record.Backend = DefaultRecordStore
	case RecordRedis:
	case RecordBadger:
		if c.Record.Path == "" {
			return fmt.Errorf("record.path is required for the badger backend")
		}
	default:
		return fmt.Errorf("invalid record.backend: %s (must be 'redis' or 'badger')", c.Record.Backend)
	}

	return nil
}

// Keys parses the configured subscriptions
func (c *Config) Keys() ([]parliament.Key, error) {
	keys := make([]parliament.Key, 0, len(c.Subscriptions))
	for i, s := range c.Subscriptions {
		k, err := parliament.ParseKey(s)
		if err != nil {
			return nil, fmt.Errorf("subscriptions[%d]: %w", i, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Options converts the configuration into parliament peer options
func (c *Config) Options() (parliament.Options, error) {
	keys, err := c.Keys()
	if err != nil {
		return parliament.Options{}, err
	}
	return parliament.Options{
		Name:           c.Peer.Name,
		Role:           parliament.Role(c.Peer.Role),
		Subscriptions:  keys,
		Retention:      c.Sync.Retention,
		PollInterval:   c.Sync.PollInterval,
		BackoffUnit:    c.Sync.BackoffUnit,
		JoinAttempts:   c.Sync.JoinAttempts,
		PublishTimeout: c.Sync.PublishTimeout,
	}, nil
}

// Load reads and validates parliament.yml from the specified path.
// REDIS_URL, when set, overrides redis.url.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if url := os.Getenv("REDIS_URL"); url != "" {
		config.Redis.URL = url
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
