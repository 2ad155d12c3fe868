package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stoploss.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
tickers:
  - aapl
  - GOOGL
percentage: 7.5
trailing_enabled: true
atr_period: 20
atr_multiplier: 2.5
storage_backend: sqlite
storage_path: /tmp/history.db
cache_ttl: 30s
log_level: debug
telegram:
  enabled: true
  token: secret
  chat_id: 12345
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, []string{"aapl", "GOOGL"}, cfg.Tickers)
	require.Equal(t, 7.5, cfg.Percentage)
	require.True(t, cfg.TrailingEnabled)
	require.Equal(t, 20, cfg.ATRPeriod)
	require.Equal(t, 2.5, cfg.ATRMultiplier)
	require.Equal(t, "sqlite", cfg.StorageBackend)
	require.Equal(t, "/tmp/history.db", cfg.StoragePath)
	require.Equal(t, 30*time.Second, cfg.CacheTTL)
	require.Equal(t, "debug", cfg.LogLevel)
	require.True(t, cfg.Telegram.Enabled)
	require.Equal(t, int64(12345), cfg.Telegram.ChatID)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "tickers: [AAPL]\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, DefaultPercentage, cfg.Percentage)
	require.False(t, cfg.TrailingEnabled)
	require.Equal(t, DefaultATRPeriod, cfg.ATRPeriod)
	require.Equal(t, DefaultATRMultiplier, cfg.ATRMultiplier)
	require.Equal(t, DefaultBackend, cfg.StorageBackend)
	require.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
	require.Equal(t, DefaultLogLevel, cfg.LogLevel)
	require.False(t, cfg.Telegram.Enabled)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidPercentage(t *testing.T) {
	path := writeConfig(t, "percentage: 150\n")
	_, err := Load(path)
	require.Error(t, err)

	path = writeConfig(t, "percentage: 0\n")
	_, err = Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidCacheTTL(t *testing.T) {
	path := writeConfig(t, "cache_ttl: not-a-duration\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_ExtendedDuration(t *testing.T) {
	// str2duration understands day suffixes plain time.ParseDuration rejects.
	path := writeConfig(t, "cache_ttl: 1d\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, cfg.CacheTTL)
}
