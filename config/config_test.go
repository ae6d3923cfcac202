package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoCoinBot/internal/domain"
)

func TestLoadConfigDefaults(t *testing.T) {
	// Dry-run default means no credentials are required.
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.IsTestnet)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "DOGEUSDT", "XRPUSDT"}, cfg.Symbols)
	assert.Equal(t, "USDT", cfg.QuoteAsset)
	assert.Equal(t, "5m", cfg.BarInterval)

	assert.InDelta(t, 0.05, cfg.StopLoss, 1e-9)
	assert.InDelta(t, 0.5, cfg.AveragingFraction, 1e-9)
	assert.Equal(t, 2, cfg.MaxPositions)
	assert.InDelta(t, 0.125, cfg.PerCoinCapFraction, 1e-9)
	assert.InDelta(t, 5000.0, cfg.MinOrderAmount, 1e-9)
	assert.Equal(t, 10*time.Minute, cfg.Cooldown)

	assert.Equal(t, 900, cfg.DailyMessageLimit)
	assert.Equal(t, 2*time.Second, cfg.MinMessageInterval)
	assert.Equal(t, 5*time.Second, cfg.BalanceTTL)
	assert.Equal(t, []int{9, 18}, cfg.ReportHours)
	assert.Equal(t, 30*24*time.Hour, cfg.TradeRetention)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.InDelta(t, 1_000_000.0, cfg.StartCash, 1e-9)
	assert.Equal(t, "trading-status", cfg.SlackChannels[domain.ChannelStatus])
}

func TestLoadConfigLiveModeRequiresCredentials(t *testing.T) {
	t.Setenv("DRY_RUN", "false")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BINANCE_API_KEY must be set")
	assert.Contains(t, err.Error(), "BINANCE_API_SECRET must be set")
	assert.Contains(t, err.Error(), "SLACK_APP_TOKEN must be set")
}

func TestLoadConfigCollectsValidationErrors(t *testing.T) {
	t.Setenv("STOP_LOSS", "1.5")
	t.Setenv("MACD_FAST", "30")
	t.Setenv("MACD_SLOW", "26")
	t.Setenv("REPORT_HOURS", "9,25")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STOP_LOSS must be between")
	assert.Contains(t, err.Error(), "MACD_FAST must be less than MACD_SLOW")
	assert.Contains(t, err.Error(), "hour 25 out of range")
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", " BTCUSDT , SOLUSDT ")
	t.Setenv("SIGNAL_COOLDOWN", "30m")
	t.Setenv("MAX_POSITIONS", "4")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "SOLUSDT"}, cfg.Symbols)
	assert.Equal(t, 30*time.Minute, cfg.Cooldown)
	assert.Equal(t, 4, cfg.MaxPositions)
}

func TestBaseAsset(t *testing.T) {
	cfg := &Config{QuoteAsset: "USDT"}
	assert.Equal(t, "BTC", cfg.BaseAsset("BTCUSDT"))
	assert.Equal(t, "DOGE", cfg.BaseAsset("DOGEUSDT"))
}
