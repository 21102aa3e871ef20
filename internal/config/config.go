package config

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/homelab/genrepo/internal/migrations"
	"github.com/jbweber/homelab/genrepo/internal/store"
	"github.com/jbweber/homelab/genrepo/internal/store/memory"
	"github.com/jbweber/homelab/genrepo/internal/store/postgres"
	"github.com/jbweber/homelab/genrepo/internal/store/sqlite"
)

// Backend names accepted in Config.Backend.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Environment variables that override file values.
const (
	EnvBackend   = "GENREPO_BACKEND"
	EnvDBPath    = "GENREPO_DB_PATH"
	EnvDSN       = "GENREPO_DSN"
	EnvPort      = "GENREPO_PORT"
	EnvLogLevel  = "GENREPO_LOG_LEVEL"
	EnvLogFormat = "GENREPO_LOG_FORMAT"
)

// Config holds all configuration for the genrepo service
type Config struct {
	Backend   string `yaml:"backend"`
	DBPath    string `yaml:"db_path"`
	DSN       string `yaml:"dsn"`
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Backend:   BackendSQLite,
		DBPath:    "~/genrepo/data/genrepo.db",
		Port:      "8080",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads the YAML file at path over the defaults, then applies
// GENREPO_* environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	for env, dst := range map[string]*string{
		EnvBackend:   &c.Backend,
		EnvDBPath:    &c.DBPath,
		EnvDSN:       &c.DSN,
		EnvPort:      &c.Port,
		EnvLogLevel:  &c.LogLevel,
		EnvLogFormat: &c.LogFormat,
	} {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			*dst = v
		}
	}
}

// Validate checks that the configured values are usable.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("db_path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.DSN == "" {
			return fmt.Errorf("dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("backend %q: %w", c.Backend, store.ErrUnknownBackend)
	}

	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q, expected json or text", c.LogFormat)
	}
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}

// parseLogLevel maps a level name to slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q, expected debug, info, warn or error", level)
	}
}

// SetupLogger builds the process logger writing to w and installs it as
// the slog default.
func (c *Config) SetupLogger(w io.Writer) *slog.Logger {
	level, err := parseLogLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(c.LogFormat, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// OpenBackend opens the configured store backend.
func (c *Config) OpenBackend(ctx context.Context, logger *slog.Logger) (store.Backend, error) {
	switch c.Backend {
	case BackendMemory:
		return memory.New(), nil
	case BackendSQLite:
		db, err := c.InitializeDatabase(ctx, logger)
		if err != nil {
			return nil, err
		}
		return sqlite.Adopt(db, logger), nil
	case BackendPostgres:
		return postgres.Open(ctx, c.DSN, logger)
	default:
		return nil, fmt.Errorf("backend %q: %w", c.Backend, store.ErrUnknownBackend)
	}
}

// InitializeDatabase opens the sqlite database and migrates it to the
// latest schema version
func (c *Config) InitializeDatabase(ctx context.Context, logger *slog.Logger) (*sql.DB, error) {
	db, err := c.OpenDatabase(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// OpenDatabase creates and configures the sqlite database connection
// without touching the schema
func (c *Config) OpenDatabase(ctx context.Context) (*sql.DB, error) {
	dsn, err := c.sqliteDSN()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	OptimizeDatabaseConnection(db)

	if err := ApplyPragmaOptimizations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply performance optimizations: %w", err)
	}

	return db, nil
}

// sqliteDSN turns DBPath into a driver DSN. DSNs given in file: form are
// used as they are.
func (c *Config) sqliteDSN() (string, error) {
	if strings.HasPrefix(c.DBPath, "file:") {
		return c.DBPath, nil
	}

	dbPath := c.expandPath(c.DBPath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)", nil
}

// expandPath expands ~ to home directory
func (c *Config) expandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(homeDir, path[2:])
}

// runMigrations runs all database migrations
func (c *Config) runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	migrator := migrations.New(db)
	if logger != nil {
		migrator.WithLogger(logger)
	}
	_, err := migrator.RunMigrations(ctx)
	return err
}
