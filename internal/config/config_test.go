package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swapshelf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  address: "0.0.0.0:8080"
database:
  url: postgres://localhost/swapshelf
  max_conns: 4
  acquire_timeout: 250ms
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address)
	assert.Equal(t, "postgres://localhost/swapshelf", cfg.Database.URL)
	assert.Equal(t, int32(4), cfg.Database.MaxConns)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.AcquireTimeout.Std())
	assert.Equal(t, "debug", cfg.LogLevel)

	// defaults survive a partial file
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("SWAPSHELF_DATABASE_URL", "postgres://localhost/fromenv")
	t.Setenv("SWAPSHELF_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/fromenv", cfg.Database.URL)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "localhost:3000", cfg.Server.Address)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("missing database url", func(t *testing.T) {
		t.Parallel()
		cfg := Defaults()
		require.ErrorContains(t, cfg.Validate(), "database.url")
	})

	t.Run("bad log level", func(t *testing.T) {
		t.Parallel()
		cfg := Defaults()
		cfg.Database.URL = "postgres://localhost/swapshelf"
		cfg.LogLevel = "loud"
		require.ErrorContains(t, cfg.Validate(), "log_level")
	})
}

func TestDurationUnmarshal(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "swapshelf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  url: postgres://localhost/swapshelf
  max_conn_lifetime: not-a-duration
`), 0o600))

	_, err := Load(path)
	require.ErrorContains(t, err, "invalid duration")
}
