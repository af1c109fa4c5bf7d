package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 30*time.Second, c.Polling.Tickers)
	assert.Equal(t, 10*time.Second, c.Polling.Depth)
	assert.Equal(t, 60*time.Second, c.Polling.Institutional)
	assert.Equal(t, "sqlite", c.Learning.Store)
	assert.Equal(t, 10, c.Learning.MinPredictions)
	assert.InDelta(t, 0.1, c.Learning.LearningRate, 1e-9)
	assert.Contains(t, c.Exchange.Symbols, "BTCUSDT")
	assert.Equal(t, "none", c.Alerts.Backend)
}

func TestLoad_OverlaysYAML(t *testing.T) {
	path := writeConfig(t, `
environment: staging
exchange:
  symbols: [ETHUSDT]
  spot_symbols: [ICPUSDT]
  proxy_enabled: true
polling:
  tickers: 15s
learning:
  store: memory
`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, []string{"ETHUSDT"}, c.Exchange.Symbols)
	assert.Equal(t, []string{"ICPUSDT"}, c.Exchange.SpotSymbols)
	assert.True(t, c.Exchange.ProxyEnabled)
	assert.Equal(t, 15*time.Second, c.Polling.Tickers)
	assert.Equal(t, "memory", c.Learning.Store)
	// untouched sections keep their defaults
	assert.Equal(t, 100, c.Polling.DepthLimit)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")

	_, err = Load(writeConfig(t, "server: [not, a, map"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")

	_, err = Load(writeConfig(t, "learning:\n  store: mongo\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	path := writeConfig(t, "exchange:\n  symbols: [BTCUSDT]\n")
	t.Setenv("RADAR_SYMBOLS", "SOLUSDT,XRPUSDT")
	t.Setenv("RADAR_LEARNING_STORE", "memory")
	t.Setenv("RADAR_LOG_LEVEL", "debug")
	t.Setenv("RADAR_PORT", "9090")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"SOLUSDT", "XRPUSDT"}, c.Exchange.Symbols)
	assert.Equal(t, "memory", c.Learning.Store)
	assert.Equal(t, "debug", c.Logging.Level)
	assert.Equal(t, 9090, c.Server.Port)
}

func TestLoadWithEnv_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("RADAR_ENVIRONMENT", "test")

	c, err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, "https://fapi.binance.com", c.Exchange.FuturesBaseURL)
}

func TestLoadWithEnv_InvalidOverride(t *testing.T) {
	t.Setenv("RADAR_ALERTS_BACKEND", "kafka")

	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alerts.kafka.brokers")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"no symbols", func(c *Config) { c.Exchange.Symbols = nil }, "exchange.symbols"},
		{"dsn required", func(c *Config) { c.Learning.DSN = "" }, "learning.dsn"},
		{"zero interval", func(c *Config) { c.Polling.Depth = 0 }, "polling intervals"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "Level"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "Port"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Default()
			require.NoError(t, err)
			tc.mutate(c)
			err = c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	t.Run("spot only is enough", func(t *testing.T) {
		c, err := Default()
		require.NoError(t, err)
		c.Exchange.Symbols = nil
		c.Exchange.SpotSymbols = []string{"ICPUSDT"}
		assert.NoError(t, c.Validate())
	})
}
