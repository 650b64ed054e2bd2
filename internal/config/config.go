// Package config loads process configuration from environment variables.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/Shivanand-hulikatti/event-registry/internal/codec"
	"github.com/Shivanand-hulikatti/event-registry/internal/database"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port          string `env:"PORT" envDefault:"8080"`
	DataDir       string `env:"DATA_DIR" envDefault:"data"`
	BackupDir     string `env:"BACKUP_DIR"`
	BackupEnabled bool   `env:"BACKUP_ENABLED" envDefault:"true"`
	ExportDir     string `env:"EXPORT_DIR"`
	StorageFormat string `env:"STORAGE_FORMAT" envDefault:"json"`
	SeedDemo      bool   `env:"SEED_DEMO" envDefault:"true"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	Database database.Config `envPrefix:"DB_"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	if _, err := codec.ParseFormat(c.StorageFormat); err != nil {
		return fmt.Errorf("STORAGE_FORMAT: %w", err)
	}
	if c.BackupDir == "" {
		c.BackupDir = filepath.Join(c.DataDir, "backups")
	}
	if c.ExportDir == "" {
		c.ExportDir = filepath.Join(c.DataDir, "export")
	}
	return nil
}

// Format returns the parsed storage format. Load has already validated it.
func (c Config) Format() codec.Format {
	f, _ := codec.ParseFormat(c.StorageFormat)
	return f
}

// EventsPath is the events file inside DataDir for the configured format.
func (c Config) EventsPath() string {
	return filepath.Join(c.DataDir, "events"+c.Format().Ext())
}

// UsersPath is the accounts file inside DataDir for the configured format.
func (c Config) UsersPath() string {
	return filepath.Join(c.DataDir, "users"+c.Format().Ext())
}
