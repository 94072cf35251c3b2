package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, root, body string) string {
	t.Helper()
	dir := filepath.Join(root, Dir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := Load(root, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Database, cfg.Database)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Zero(t, cfg.Index.Workers)
	assert.Empty(t, cfg.Index.Libraries)
}

func TestLoad_ReadsYAML(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
database: /var/cache/typeloc.db
logging:
  level: debug
  format: json
index:
  workers: 4
  exclude:
    - "**/generated/**"
  libraries:
    - libs/rt-sources.jar
`)

	cfg, err := Load(root, "")
	require.NoError(t, err)
	assert.Equal(t, "/var/cache/typeloc.db", cfg.Database)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 4, cfg.Index.Workers)
	assert.Equal(t, []string{"**/generated/**"}, cfg.Index.Exclude)
	assert.Equal(t, []string{"libs/rt-sources.jar"}, cfg.Index.Libraries)
}

func TestLoad_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: error\n"), 0o644))

	cfg, err := Load(t.TempDir(), path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	_, err := Load(t.TempDir(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TYPELOC_LOGGING_LEVEL", "info")
	t.Setenv("TYPELOC_INDEX_WORKERS", "2")

	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 2, cfg.Index.Workers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"format", "logging:\n  format: xml\n", "logging.format"},
		{"level", "logging:\n  level: loud\n", "logging.level"},
		{"workers", "index:\n  workers: -1\n", "index.workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeConfig(t, root, tt.body)

			_, err := Load(root, "")
			var cfgErr *Error
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestDatabasePath(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join("/repo", ".typeloc", "index.db"), cfg.DatabasePath("/repo"))

	cfg.Database = "/abs/index.db"
	assert.Equal(t, "/abs/index.db", cfg.DatabasePath("/repo"))
}
