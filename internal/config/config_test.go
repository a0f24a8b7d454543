package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sql", cfg.Store.Backend)
	assert.Equal(t, "push-notifications", cfg.Queue.Name)
	assert.Equal(t, 3, cfg.Queue.Retries)
	assert.Equal(t, 30*time.Second, cfg.QueueLease())
	assert.False(t, cfg.PushEnabled())

	// без DATABASE_URL sql-хранилище не стартует
	assert.Error(t, cfg.Validate())
	cfg.Store.Backend = "memory"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
store:
  backend: memory
valkey:
  addrs: ["10.0.0.1:6379"]
batch:
  timezone: UTC
`), 0o600))

	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("VALKEY_ADDRS", "a:6379,b:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, []string{"a:6379", "b:6379"}, cfg.Valkey.Addrs)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mongo")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("BATCH_TIMEZONE", "Mars/Olympus")
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_ZeroRetriesDisablesRetries(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load(missing)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Queue.Retries)

	t.Setenv("QUEUE_RETRIES", "0")
	cfg, err = Load(missing)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Queue.Retries)

	t.Setenv("QUEUE_RETRIES", "-1")
	_, err = Load(missing)
	assert.Error(t, err)
}

func TestLoad_ZeroRetriesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: memory
queue:
  retries: 0
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Queue.Retries)
}
