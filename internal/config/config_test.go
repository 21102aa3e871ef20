package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/homelab/genrepo/internal/store"
	"github.com/jbweber/homelab/genrepo/internal/store/memory"
	"github.com/jbweber/homelab/genrepo/internal/store/sqlite"
	"github.com/jbweber/homelab/genrepo/internal/testutil"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{EnvBackend, EnvDBPath, EnvDSN, EnvPort, EnvLogLevel, EnvLogFormat} {
		t.Setenv(env, "")
	}
}

func TestNewConfig(t *testing.T) {
	config := NewConfig()

	require.NotNil(t, config)
	assert.Equal(t, BackendSQLite, config.Backend)
	assert.Equal(t, "~/genrepo/data/genrepo.db", config.DBPath)
	assert.Equal(t, "8080", config.Port)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, "text", config.LogFormat)
	assert.NoError(t, config.Validate())
}

func TestConfig_expandPath(t *testing.T) {
	config := NewConfig()

	expanded := config.expandPath("~/test/path")
	assert.False(t, strings.HasPrefix(expanded, "~/"))
	assert.True(t, strings.HasSuffix(expanded, filepath.Join("test", "path")))

	assert.Equal(t, "/absolute/path", config.expandPath("/absolute/path"))
	assert.Equal(t, "relative/path", config.expandPath("relative/path"))
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "genrepo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: memory\nport: \"9090\"\nlog_level: debug\nlog_format: json\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "~/genrepo/data/genrepo.db", cfg.DBPath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "genrepo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: sqlite\nport: \"9090\"\n"), 0o644))

	t.Setenv(EnvBackend, "postgres")
	t.Setenv(EnvDSN, "postgres://localhost/genrepo")
	t.Setenv(EnvPort, "7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Backend)
	assert.Equal(t, "postgres://localhost/genrepo", cfg.DSN)
	assert.Equal(t, "7070", cfg.Port)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("backend: [unterminated"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)

	t.Setenv(EnvBackend, "oracle")
	_, err = Load("")
	assert.ErrorIs(t, err, store.ErrUnknownBackend)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"memory", func(c *Config) { c.Backend = BackendMemory; c.DBPath = "" }, false},
		{"sqlite without path", func(c *Config) { c.DBPath = "" }, true},
		{"postgres without dsn", func(c *Config) { c.Backend = BackendPostgres }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"empty port", func(c *Config) { c.Port = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_SetupLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewConfig()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	logger := cfg.SetupLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"key":"value"`)
}

func TestConfig_InitializeDatabase_Success(t *testing.T) {
	config := NewConfig()
	config.DBPath = filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := config.InitializeDatabase(context.Background(), nil)
	require.NoError(t, err)
	defer db.Close()

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='entities'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var journal string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journal))
	assert.Equal(t, "wal", journal)

	_, err = os.Stat(config.DBPath)
	assert.NoError(t, err)
}

func TestConfig_InitializeDatabase_DSN(t *testing.T) {
	config := NewConfig()
	config.DBPath = testutil.NewTestDSN("TestConfig_InitializeDatabase_DSN")

	db, err := config.InitializeDatabase(context.Background(), nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping())
}

func TestConfig_OpenBackend(t *testing.T) {
	ctx := context.Background()

	cfg := NewConfig()
	cfg.Backend = BackendMemory
	b, err := cfg.OpenBackend(ctx, nil)
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)
	require.NoError(t, b.Close())

	cfg = NewConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "backend.db")
	b, err = cfg.OpenBackend(ctx, nil)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Backend{}, b)
	require.NoError(t, b.Close())

	cfg = NewConfig()
	cfg.Backend = "oracle"
	_, err = cfg.OpenBackend(ctx, nil)
	assert.ErrorIs(t, err, store.ErrUnknownBackend)
}

func TestConfig_OpenDatabase_NoSchema(t *testing.T) {
	config := NewConfig()
	config.DBPath = filepath.Join(t.TempDir(), "raw.db")

	db, err := config.OpenDatabase(context.Background())
	require.NoError(t, err)
	defer db.Close()

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='entities'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
