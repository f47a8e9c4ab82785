// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type BookingConfig struct {
	// DefaultGranularityMinutes is used when a club has no granularity of
	// its own configured.
	DefaultGranularityMinutes int `yaml:"default_granularity_minutes"`
	// NoShowGraceMinutes is how long after start a reservation may remain
	// un-checked-in before the sweep marks it a no-show.
	NoShowGraceMinutes int    `yaml:"no_show_grace_minutes"`
	DefaultPolicy      string `yaml:"default_cancellation_policy"`
}

type EventsConfig struct {
	AMQPURL     string `yaml:"-"` // Loaded from environment
	Exchange    string `yaml:"exchange"`
	PublishAMQP bool   `yaml:"publish_amqp"`
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		// TrustProxy controls whether client IPs are taken from
		// X-Forwarded-For. Enable only behind a proxy that sets it.
		TrustProxy bool `yaml:"trust_proxy"`
	} `yaml:"app"`

	Database DatabaseConfig `yaml:"database"`
	Booking  BookingConfig  `yaml:"booking"`
	Events   EventsConfig   `yaml:"events"`
}

// Load loads both .env and yaml configuration.
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Load sensitive values from environment
	cfg.Events.AMQPURL = os.Getenv("AMQP_URL")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.Filename == "" {
		return fmt.Errorf("database filename is required for sqlite")
	}
	if c.Booking.DefaultGranularityMinutes < 0 {
		return fmt.Errorf("default granularity must be 0 or greater")
	}
	if c.Events.PublishAMQP && c.Events.AMQPURL == "" {
		return fmt.Errorf("AMQP_URL is required when AMQP publishing is enabled")
	}
	return nil
}

// NoShowGrace returns the configured grace period, defaulting to 15 minutes.
func (c *Config) NoShowGrace() time.Duration {
	if c.Booking.NoShowGraceMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Booking.NoShowGraceMinutes) * time.Minute
}
