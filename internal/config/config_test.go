package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/reminders")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("SCAN_INTERVAL", "15s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/reminders", cfg.DatabaseURL)
	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, 15*time.Second, cfg.ScanInterval)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 10*time.Second, cfg.SendTimeout)
	assert.Equal(t, 10, cfg.ScanConcurrency)
	assert.Equal(t, int32(10), cfg.DBMaxConns)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, "bot.log", cfg.LogFile)
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"storage: memory\ntelegram_token: from-file\nscan_interval: 1m\ndb_max_conns: 3\nlog_level: debug\n"), 0o644))
	t.Setenv("TELEGRAM_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, "from-env", cfg.TelegramToken)
	assert.Equal(t, time.Minute, cfg.ScanInterval)
	assert.Equal(t, int32(3), cfg.DBMaxConns)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRequiresDatabaseAndToken(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TELEGRAM_TOKEN", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")
	assert.Contains(t, err.Error(), "telegram_token")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateBounds(t *testing.T) {
	cfg := Config{
		Storage:         StorageMemory,
		TelegramToken:   "t",
		ScanInterval:    time.Second,
		StoreTimeout:    time.Second,
		SendTimeout:     time.Second,
		ScanConcurrency: 1,
		DBMaxConns:      11,
	}
	assert.ErrorContains(t, cfg.Validate(), "db_max_conns")

	cfg.DBMaxConns = 1
	assert.NoError(t, cfg.Validate())

	cfg.Storage = "redis"
	assert.ErrorContains(t, cfg.Validate(), "unknown storage")
}
