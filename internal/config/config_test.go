package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	t.Setenv("SIGNALBOT_TEST_BRIDGE_KEY", "secret-key")

	cfg, err := LoadFile(filepath.Join("testdata", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "bridge", cfg.Terminal.Type)
	assert.Equal(t, "ws://127.0.0.1:8765/bridge", cfg.Terminal.URL)
	assert.Equal(t, "secret-key", cfg.Terminal.ApiKey)
	assert.Equal(t, int64(234007), cfg.Terminal.Magic)
	assert.Equal(t, 5*time.Second, cfg.Terminal.RequestTimeout)

	assert.Equal(t, "replay", cfg.Source.Type)
	assert.Equal(t, "testdata/messages.txt", cfg.Source.Replay.Path)

	assert.Equal(t, "XAUUSD", cfg.Trading.Symbol)
	assert.True(t, cfg.Trading.Volume.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, cfg.Trading.TargetProfitUSD.Equal(decimal.NewFromInt(5)))
	assert.True(t, cfg.Trading.MaxSLDistancePips.Equal(decimal.NewFromInt(50)))
	assert.True(t, cfg.Trading.CentralZone.Equal(decimal.RequireFromString("-0.5")))
	assert.Equal(t, "min", cfg.Trading.EntryStrategy)
	assert.Equal(t, "clamp", cfg.Trading.SLPolicy)
	assert.Equal(t, 4*time.Hour, cfg.Trading.PendingExpiration)
	assert.True(t, cfg.Trading.Instrument.PipSize.Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, int32(2), cfg.Trading.Instrument.Digits)
	assert.Contains(t, cfg.Trading.BuySynonyms, "buy")
	assert.Contains(t, cfg.Trading.SellSynonyms, "venta")

	assert.True(t, cfg.Runtime.DryRun)
	assert.Equal(t, 15*time.Second, cfg.Runtime.SweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.Runtime.StatusLogInterval)
	assert.Equal(t, "debug", cfg.Runtime.Log.Level)
	assert.Equal(t, "sqlite", cfg.Runtime.Audit.Driver)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestLoadFileRejectsUnknownEntryStrategy(t *testing.T) {
	path := writeConfig(t, `
source:
  type: replay
  replay:
    path: messages.txt
trading:
  entry_strategy: middle
`)
	_, err := LoadFile(path)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Field, "EntryStrategy")
}

func TestLoadFileRejectsNegativeTarget(t *testing.T) {
	path := writeConfig(t, `
source:
  type: replay
  replay:
    path: messages.txt
trading:
  target_profit_usd: -1
`)
	_, err := LoadFile(path)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "trading.target_profit_usd", cfgErr.Field)
}

func TestLoadFileZeroVolumeAllowedWithMinimumVolume(t *testing.T) {
	path := writeConfig(t, `
source:
  type: replay
  replay:
    path: messages.txt
trading:
  volume: 0
  use_minimum_volume: true
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.Trading.UseMinimumVolume)

	path = writeConfig(t, `
source:
  type: replay
  replay:
    path: messages.txt
trading:
  volume: 0
`)
	_, err = LoadFile(path)
	assert.True(t, IsConfigurationError(err))
}

func TestLoadFileRequiresTelegramCredentials(t *testing.T) {
	path := writeConfig(t, `
source:
  type: telegram
`)
	_, err := LoadFile(path)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "source.telegram", cfgErr.Field)
}

func TestLoadFileBadDecimal(t *testing.T) {
	path := writeConfig(t, `
source:
  type: replay
  replay:
    path: messages.txt
trading:
  central_zone: "half"
`)
	_, err := LoadFile(path)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "trading.central_zone", cfgErr.Field)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}
