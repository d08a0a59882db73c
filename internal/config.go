package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Pool      PoolConfig        `yaml:"pool"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Lease     LeaseConfig       `yaml:"lease"`
	Reference ReferenceConfig   `yaml:"reference"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Pool.Validate(); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if err := c.Lease.Validate(); err != nil {
		return fmt.Errorf("lease: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	// EventThrottle bounds how often inventory.updated is pushed to clients.
	EventThrottle time.Duration `yaml:"event_throttle"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.EventThrottle, validation.Min(time.Duration(0))),
	)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// PoolConfig holds the two image directories.
type PoolConfig struct {
	UnlabeledDir string `yaml:"unlabeled_dir"`
	LabeledDir   string `yaml:"labeled_dir"`
}

// Validate validates the pool configuration.
func (c *PoolConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.UnlabeledDir, validation.Required),
		validation.Field(&c.LabeledDir, validation.Required, validation.By(func(any) error {
			if filepath.Clean(c.LabeledDir) == filepath.Clean(c.UnlabeledDir) {
				return errors.New("must differ from unlabeled_dir")
			}
			return nil
		})),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// LeaseConfig controls lease lifetime.
//
// ReapInterval only reclaims memory held by expired leases; liveness is
// always computed from the expiry time. Zero disables the reaper.
type LeaseConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	ReapInterval time.Duration `yaml:"reap_interval"`
}

// Validate validates the lease configuration.
func (c *LeaseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.ReapInterval, validation.Min(time.Duration(0))),
	)
}

// ReferenceConfig points at the airline and aircraft type seed files.
// An empty DataDir skips seeding.
type ReferenceConfig struct {
	DataDir string `yaml:"data_dir"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
			EventThrottle: 2 * time.Second,
		},
		Pool: PoolConfig{
			UnlabeledDir: "./data/unlabeled",
			LabeledDir:   "./data/labeled",
		},
		SQLite: SQLiteConfig{
			Path: "./skylabel.db",
		},
		Lease: LeaseConfig{
			TTL:          10 * time.Minute,
			ReapInterval: time.Minute,
		},
		Reference: ReferenceConfig{
			DataDir: "./data/presets",
		},
	}
}
