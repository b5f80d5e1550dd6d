package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amirphl/signalforge/internal/tfutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Flags(t *testing.T) {
	cfg, err := Load([]string{
		"-mode", "backtest",
		"-symbol", "ETHUSDT",
		"-from", "2024-01-15",
		"-to", "2024-01-17",
		"-granularity", "1s",
		"-strategy", "crossover",
		"-fast", "5",
		"-slow", "20",
		"-qty", "3",
	})
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", cfg.Symbol)
	assert.Equal(t, tfutils.PerSecond, cfg.GranularityValue)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), cfg.From)
	assert.Equal(t, time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC), cfg.To)
	assert.Equal(t, int64(3), cfg.OrderQuantity)
	assert.Equal(t, 5, cfg.FastPeriod)
	assert.Equal(t, 20, cfg.SlowPeriod)
}

func TestLoad_ToDefaultsToFrom(t *testing.T) {
	cfg, err := Load([]string{"-from", "2024-02-01"})
	require.NoError(t, err)
	assert.Equal(t, cfg.From, cfg.To)
}

func TestLoad_YAMLOverridesFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
mode: "serve"
symbol: "SOLUSDT"
from: "2024-03-01"
listen_addr: ":9090"
notification_delay: "2s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load([]string{"-config", path, "-symbol", "BTCUSDT", "-from", "2024-01-01"})
	require.NoError(t, err)

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, "SOLUSDT", cfg.Symbol)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 2*time.Second, cfg.NotificationDelay)
	assert.Equal(t, "2024-03-01", cfg.FromDate)
	assert.Equal(t, "csv", cfg.Source, "unset keys keep flag values")
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("WALLEX_API_KEY", "key-from-env")
	t.Setenv("DB_CONN_STR", "postgres://env")

	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("TELEGRAM_CHAT_ID=42\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("TELEGRAM_CHAT_ID") })

	cfg, err := Load([]string{"-env-file", envPath, "-telegram-token", "flag-token"})
	require.NoError(t, err)

	assert.Equal(t, "key-from-env", cfg.WallexAPIKey)
	assert.Equal(t, "postgres://env", cfg.DBConnStr)
	assert.Equal(t, "42", cfg.TelegramChatID)
	assert.Equal(t, "flag-token", cfg.TelegramToken, "explicit values win over env")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "Unknown flag", args: []string{"-nope"}},
		{name: "Missing env file", args: []string{"-env-file", "/does/not/exist/.env"}},
		{name: "Missing config file", args: []string{"-config", "/does/not/exist.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		valid   bool
		wantErr error
	}{
		{name: "Default is valid", mutate: func(*Config) {}, valid: true},
		{name: "Invalid mode", mutate: func(c *Config) { c.Mode = "live" }, wantErr: ErrInvalidMode},
		{name: "Invalid source", mutate: func(c *Config) { c.Source = "ftp" }},
		{name: "Invalid granularity", mutate: func(c *Config) { c.Granularity = "5m" }},
		{name: "Bad date", mutate: func(c *Config) { c.FromDate = "15-01-2024" }},
		{name: "Reversed range", mutate: func(c *Config) { c.FromDate, c.ToDate = "2024-02-01", "2024-01-01" }},
		{name: "Unknown strategy", mutate: func(c *Config) { c.Strategy = "martingale" }},
		{name: "Zero quantity", mutate: func(c *Config) { c.OrderQuantity = 0 }},
		{name: "Record mode skips strategy checks", mutate: func(c *Config) { c.Mode, c.Strategy = "record", "" }, valid: true},
		{name: "Negative record duration", mutate: func(c *Config) { c.Mode, c.RecordFor = "record", -time.Second }},
		{name: "Bad crossover periods", mutate: func(c *Config) { c.Strategy, c.FastPeriod, c.SlowPeriod = "crossover", 30, 10 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultTestConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NonBacktestSkipsStrategyChecks(t *testing.T) {
	cfg := DefaultTestConfig()
	cfg.Mode = "serve"
	cfg.OrderQuantity = 0
	assert.NoError(t, cfg.Validate())
}
