package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig points a sqlite config at a fresh database under t.TempDir.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "genrepo.yaml")
	body := "backend: sqlite\ndb_path: " + filepath.Join(dir, "genrepo.db") + "\nlog_level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func TestMigrate_UpAndDown(t *testing.T) {
	for _, env := range []string{"GENREPO_BACKEND", "GENREPO_DB_PATH", "GENREPO_DSN"} {
		t.Setenv(env, "")
	}
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "applied 2 migrations, schema version 10")

	out, err = run(t, "--config", cfg, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "applied 0 migrations, schema version 10")

	out, err = run(t, "--config", cfg, "migrate", "--down")
	require.NoError(t, err)
	assert.Contains(t, out, "reverted migration 10")
}

func TestSeedAndListUsers(t *testing.T) {
	for _, env := range []string{"GENREPO_BACKEND", "GENREPO_DB_PATH", "GENREPO_DSN"} {
		t.Setenv(env, "")
	}
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 10 entities")

	out, err = run(t, "--config", cfg, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "store already seeded")

	out, err = run(t, "--config", cfg, "users", "--sort", "Name:desc")
	require.NoError(t, err)
	rows := lines(out)
	require.Len(t, rows, 6)
	assert.True(t, strings.HasPrefix(rows[0], "ID"))
	assert.Contains(t, rows[1], "erin")
	assert.Contains(t, rows[5], "alice")

	out, err = run(t, "--config", cfg, "users", "--company", "1", "--include", "Company")
	require.NoError(t, err)
	rows = lines(out)
	require.Len(t, rows, 3)
	assert.Contains(t, rows[1], "alice")
	assert.Contains(t, rows[1], "Acme")
	assert.Contains(t, rows[2], "carol")
}

func TestListUsers_Errors(t *testing.T) {
	for _, env := range []string{"GENREPO_BACKEND", "GENREPO_DB_PATH", "GENREPO_DSN"} {
		t.Setenv(env, "")
	}
	cfg := writeConfig(t)

	_, err := run(t, "--config", cfg, "users", "--sort", "Name:sideways")
	assert.Error(t, err)

	_, err = run(t, "--config", cfg, "users", "--sort", "Salary")
	assert.Error(t, err)

	_, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "users")
	assert.Error(t, err)
}
