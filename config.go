// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package ardilla

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds engine configuration options.
type Config struct {
	// Path to database file. Use ":memory:" for in-memory databases.
	// Persistent paths must be absolute and have a .db extension.
	Path string `yaml:"path"`

	// Migrations is a filesystem of hand-written SQL scripts applied by Setup
	// after the model tables are created. Scripts must be named
	// YYYYMMDDHHMMSS_comment.sql. Optional.
	Migrations fs.FS `yaml:"-"`

	// MigrationsDir is a directory of migration scripts, used when Migrations is nil.
	MigrationsDir string `yaml:"migrations_dir"`

	// Logger for operational logging. Uses slog.Default() if nil.
	Logger *slog.Logger `yaml:"-"`

	// ProductionEnvVar is the environment variable checked to determine
	// production mode. If the variable equals "production" (case-insensitive),
	// in-memory databases are rejected unless AllowMemoryInProduction is true.
	// Default: "ENV".
	ProductionEnvVar string `yaml:"production_env_var"`

	// AllowMemoryInProduction permits :memory: databases in production.
	AllowMemoryInProduction bool `yaml:"allow_memory_in_production"`

	// SkipSetup disables the automatic Setup on Open.
	SkipSetup bool `yaml:"skip_setup"`

	// SetupTimeout bounds table creation and migrations. Default: 90s.
	SetupTimeout time.Duration `yaml:"setup_timeout"`

	// DisableForeignKeys turns off foreign key enforcement, which is on by default.
	DisableForeignKeys bool `yaml:"disable_foreign_keys"`
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("can't read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("can't parse config %s: %w", path, err)
	}
	return cfg, nil
}

// defaults returns a copy of cfg with default values applied.
func (cfg Config) defaults() Config {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ProductionEnvVar == "" {
		cfg.ProductionEnvVar = "ENV"
	}
	if cfg.SetupTimeout == 0 {
		cfg.SetupTimeout = 90 * time.Second
	}
	if cfg.Migrations == nil && cfg.MigrationsDir != "" {
		cfg.Migrations = os.DirFS(cfg.MigrationsDir)
	}
	return cfg
}

// isProduction returns true if the production environment variable is set.
func (cfg Config) isProduction() bool {
	return strings.EqualFold(os.Getenv(cfg.ProductionEnvVar), "production")
}

// isMemory returns true if Path indicates an in-memory database.
func (cfg Config) isMemory() bool {
	return isMemoryPath(cfg.Path)
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}
