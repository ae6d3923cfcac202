package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"autoCoinBot/internal/adapters/logger"
	"autoCoinBot/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Instruments
	Symbols     []string // e.g. ["BTCUSDT", "ETHUSDT"]
	QuoteAsset  string   // cash asset, e.g. "USDT"
	BarInterval string   // indicator bar interval, e.g. "5m"

	// Trading Parameters
	StopLoss           float64       // stop-loss fraction below avg entry (e.g. 0.05)
	AveragingFraction  float64       // one-time averaging buy, fraction of position value
	MaxPositions       int           // concurrency cap on simultaneously held instruments
	PerCoinCapFraction float64       // per-instrument spend cap as fraction of starting capital
	MinOrderAmount     float64       // minimum order notional; also the dust threshold
	Cooldown           time.Duration // suppression window for repeated same-direction signals

	// Signal Analyzer Parameters
	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64
	MACDFast      int
	MACDSlow      int
	MACDSignal    int
	BandPeriod    int
	BandWidth     float64 // band half-width in standard deviations
	VolumePeriod  int
	VolumeFloor   float64 // liquidity guard: min volume as fraction of rolling average

	// Notifications
	SlackToken         string
	SlackChannels      map[domain.ChannelClass]string
	DailyMessageLimit  int
	MinMessageInterval time.Duration

	// Maintenance Intervals
	BalanceTTL      time.Duration
	StatusInterval  time.Duration
	RefreshInterval time.Duration
	ReportHours     []int // local hours at which the daily report fires
	TradeRetention  time.Duration

	// Boundary Retry Policy
	RetryAttempts int
	RetryDelay    time.Duration

	// Stream Reconnect Policy
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	// Mode
	DryRun    bool
	StartCash float64 // simulated starting cash for dry-run mode

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety
	cfg.DryRun = getEnvAsBool("DRY_RUN", true)

	// Keys are only mandatory for real trading.
	if !cfg.DryRun {
		if cfg.APIKey == "" {
			errs = append(errs, "BINANCE_API_KEY must be set when DRY_RUN is false")
		}
		if cfg.SecretKey == "" {
			errs = append(errs, "BINANCE_API_SECRET must be set when DRY_RUN is false")
		}
	}

	// Instruments
	cfg.Symbols = splitList(getEnv("SYMBOLS", "BTCUSDT,ETHUSDT,DOGEUSDT,XRPUSDT"))
	if len(cfg.Symbols) == 0 {
		errs = append(errs, "SYMBOLS must list at least one instrument")
	}
	cfg.QuoteAsset = getEnv("QUOTE_ASSET", "USDT")
	if cfg.QuoteAsset == "" {
		errs = append(errs, "QUOTE_ASSET must be set")
	}
	cfg.BarInterval = getEnv("BAR_INTERVAL", "5m")

	// Trading Parameters
	cfg.StopLoss, err = getEnvAsFloatRequired("STOP_LOSS", 0.05)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS: %v", err))
	} else if cfg.StopLoss <= 0 || cfg.StopLoss >= 1.0 {
		errs = append(errs, "STOP_LOSS must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.AveragingFraction, err = getEnvAsFloatRequired("AVERAGING_FRACTION", 0.5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid AVERAGING_FRACTION: %v", err))
	} else if cfg.AveragingFraction <= 0 || cfg.AveragingFraction > 1.0 {
		errs = append(errs, "AVERAGING_FRACTION must be in (0.0, 1.0]")
	}

	cfg.MaxPositions, err = getEnvAsIntRequired("MAX_POSITIONS", 2)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_POSITIONS: %v", err))
	} else if cfg.MaxPositions <= 0 {
		errs = append(errs, "MAX_POSITIONS must be positive")
	}

	cfg.PerCoinCapFraction, err = getEnvAsFloatRequired("PER_COIN_CAP_FRACTION", 0.125)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PER_COIN_CAP_FRACTION: %v", err))
	} else if cfg.PerCoinCapFraction <= 0 || cfg.PerCoinCapFraction > 1.0 {
		errs = append(errs, "PER_COIN_CAP_FRACTION must be in (0.0, 1.0]")
	}

	cfg.MinOrderAmount, err = getEnvAsFloatRequired("MIN_ORDER_AMOUNT", 5000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_ORDER_AMOUNT: %v", err))
	} else if cfg.MinOrderAmount <= 0 {
		errs = append(errs, "MIN_ORDER_AMOUNT must be positive")
	}

	cfg.Cooldown = getEnvAsDuration("SIGNAL_COOLDOWN", 10*time.Minute)
	if cfg.Cooldown < 0 {
		errs = append(errs, "SIGNAL_COOLDOWN cannot be negative")
	}

	// Signal Analyzer Parameters (using defaults if not set)
	cfg.RSIPeriod = getEnvAsInt("RSI_PERIOD", 12)
	cfg.RSIOversold = getEnvAsFloat("RSI_OVERSOLD", 30.0)
	cfg.RSIOverbought = getEnvAsFloat("RSI_OVERBOUGHT", 70.0)
	cfg.MACDFast = getEnvAsInt("MACD_FAST", 12)
	cfg.MACDSlow = getEnvAsInt("MACD_SLOW", 26)
	cfg.MACDSignal = getEnvAsInt("MACD_SIGNAL", 9)
	cfg.BandPeriod = getEnvAsInt("BAND_PERIOD", 20)
	cfg.BandWidth = getEnvAsFloat("BAND_WIDTH", 1.5)
	cfg.VolumePeriod = getEnvAsInt("VOLUME_PERIOD", 20)
	cfg.VolumeFloor = getEnvAsFloat("VOLUME_FLOOR", 0.5)

	if cfg.RSIPeriod <= 0 || cfg.MACDFast <= 0 || cfg.MACDSlow <= 0 || cfg.MACDSignal <= 0 || cfg.BandPeriod <= 0 || cfg.VolumePeriod <= 0 {
		errs = append(errs, "analyzer periods (RSI, MACD, band, volume) must be positive")
	}
	if cfg.MACDFast >= cfg.MACDSlow {
		errs = append(errs, "MACD_FAST must be less than MACD_SLOW")
	}
	if cfg.RSIOverbought <= cfg.RSIOversold || cfg.RSIOverbought > 100 || cfg.RSIOversold < 0 {
		errs = append(errs, "invalid RSI thresholds (overbought must be > oversold, between 0-100)")
	}
	if cfg.VolumeFloor <= 0 || cfg.VolumeFloor >= 1.0 {
		errs = append(errs, "VOLUME_FLOOR must be between 0.0 and 1.0 (exclusive)")
	}

	// Notifications
	cfg.SlackToken = getEnv("SLACK_APP_TOKEN", "")
	cfg.SlackChannels = map[domain.ChannelClass]string{
		domain.ChannelStatus: getEnv("SLACK_CHANNEL_STATUS", "trading-status"),
		domain.ChannelTrade:  getEnv("SLACK_CHANNEL_TRADES", "trading-trades"),
		domain.ChannelReport: getEnv("SLACK_CHANNEL_REPORTS", "trading-reports"),
		domain.ChannelError:  getEnv("SLACK_CHANNEL_ERRORS", "trading-errors"),
	}
	if !cfg.DryRun && cfg.SlackToken == "" {
		errs = append(errs, "SLACK_APP_TOKEN must be set when DRY_RUN is false")
	}

	cfg.DailyMessageLimit, err = getEnvAsIntRequired("DAILY_MESSAGE_LIMIT", 900)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DAILY_MESSAGE_LIMIT: %v", err))
	} else if cfg.DailyMessageLimit <= 0 {
		errs = append(errs, "DAILY_MESSAGE_LIMIT must be positive")
	}
	cfg.MinMessageInterval = getEnvAsDuration("MIN_MESSAGE_INTERVAL", 2*time.Second)
	if cfg.MinMessageInterval < 0 {
		errs = append(errs, "MIN_MESSAGE_INTERVAL cannot be negative")
	}

	// Maintenance Intervals
	cfg.BalanceTTL = getEnvAsDuration("BALANCE_TTL", 5*time.Second)
	cfg.StatusInterval = getEnvAsDuration("STATUS_INTERVAL", 30*time.Second)
	cfg.RefreshInterval = getEnvAsDuration("REFRESH_INTERVAL", 5*time.Minute)
	if cfg.BalanceTTL <= 0 || cfg.StatusInterval <= 0 || cfg.RefreshInterval <= 0 {
		errs = append(errs, "BALANCE_TTL, STATUS_INTERVAL and REFRESH_INTERVAL must be positive")
	}

	cfg.ReportHours, err = parseHours(getEnv("REPORT_HOURS", "9,18"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid REPORT_HOURS: %v", err))
	}

	retentionDays := getEnvAsInt("TRADE_RETENTION_DAYS", 30)
	if retentionDays <= 0 {
		errs = append(errs, "TRADE_RETENTION_DAYS must be positive")
	}
	cfg.TradeRetention = time.Duration(retentionDays) * 24 * time.Hour

	// Boundary Retry Policy
	cfg.RetryAttempts = getEnvAsInt("RETRY_ATTEMPTS", 3)
	if cfg.RetryAttempts <= 0 {
		errs = append(errs, "RETRY_ATTEMPTS must be positive")
	}
	cfg.RetryDelay = getEnvAsDuration("RETRY_DELAY", time.Second)
	if cfg.RetryDelay < 0 {
		errs = append(errs, "RETRY_DELAY cannot be negative")
	}

	// Stream Reconnect Policy
	cfg.ReconnectDelay = getEnvAsDuration("RECONNECT_DELAY", 5*time.Second)
	if cfg.ReconnectDelay <= 0 {
		errs = append(errs, "RECONNECT_DELAY must be positive")
	}
	cfg.MaxReconnectAttempts = getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 10)
	if cfg.MaxReconnectAttempts < 0 {
		errs = append(errs, "MAX_RECONNECT_ATTEMPTS cannot be negative")
	}

	// Mode
	cfg.StartCash, err = getEnvAsFloatRequired("START_CASH", 1_000_000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid START_CASH: %v", err))
	} else if cfg.DryRun && cfg.StartCash <= 0 {
		errs = append(errs, "START_CASH must be positive in dry-run mode")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/trading_bot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// BaseAsset derives the base asset of a symbol by stripping the quote asset
// suffix, e.g. "BTCUSDT" -> "BTC".
func (c *Config) BaseAsset(symbol string) string {
	return strings.TrimSuffix(symbol, c.QuoteAsset)
}

// --- Env Var Helpers ---

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseHours(value string) ([]int, error) {
	parts := splitList(value)
	hours := make([]int, 0, len(parts))
	for _, p := range parts {
		h, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid hour '%s': %w", p, err)
		}
		if h < 0 || h > 23 {
			return nil, fmt.Errorf("hour %d out of range 0-23", h)
		}
		hours = append(hours, h)
	}
	return hours, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
