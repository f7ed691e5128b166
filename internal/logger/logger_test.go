package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, parseLevel("warning"))
	assert.Equal(t, logrus.ErrorLevel, parseLevel(" error "))
	assert.Equal(t, logrus.InfoLevel, parseLevel(""))
	assert.Equal(t, logrus.InfoLevel, parseLevel("verbose"))
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	log := New(Config{Level: "info", Format: "json", Output: path, MaxSize: 1})

	log.WithComponent("engine").WithField("ticket", "42").Info("order placed")
	log.Debug("hidden")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"engine"`)
	assert.Contains(t, string(data), `"msg":"order placed"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestForSymbol(t *testing.T) {
	base, hook := test.NewNullLogger()
	log := FromLogrus(base)

	log.ForSymbol("engine", "XAUUSD").Info("a")
	log.ForSymbol("api", "").Info("b")

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "XAUUSD", entries[0].Data["symbol"])
	assert.Equal(t, "engine", entries[0].Data["component"])
	assert.NotContains(t, entries[1].Data, "symbol")
}

func TestDiscard(t *testing.T) {
	log := Discard()
	assert.NotPanics(t, func() {
		log.WithComponent("engine").Error("dropped")
	})
	assert.NoError(t, log.Close())
}
