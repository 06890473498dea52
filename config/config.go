package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultWatchlist is the configured entry universe: VN30 blue chips plus a
// handful of liquid mid-caps.
var DefaultWatchlist = []string{
	"GAS", "FPT", "VNM", "MWG", "HPG", "VCB", "TCB", "VHM", "VIC", "MSN",
}

// Config holds all application configuration.
type Config struct {
	Trading    TradingConfig
	Store      StoreConfig
	MarketData MarketDataConfig
	Database   DatabaseConfig
	Sentiment  SentimentConfig
	Telegram   TelegramConfig
	Scheduler  SchedulerConfig
	HTTP       HTTPConfig
}

// TradingConfig holds the decision-engine parameters.
type TradingConfig struct {
	InitialBudgetVND    int64
	MaxPositions        int
	MaxLossPercent      float64 // informational; actual stops derive from ATR
	MinEntryCashVND     int64
	EntryScoreThreshold int
	Watchlist           []string
	CommissionRate      float64
	Diversify           bool
}

// StoreConfig holds portfolio document and dashboard paths.
type StoreConfig struct {
	PortfolioPath string
	DashboardPath string
}

// MarketDataConfig holds the market-data collaborator endpoint.
type MarketDataConfig struct {
	BaseURL string
	Source  string
}

// DatabaseConfig holds the optional signal/trade archive database.
type DatabaseConfig struct {
	URL string
}

// SentimentConfig holds the optional Bedrock sentiment classifier settings.
type SentimentConfig struct {
	AWSRegion string
	ModelID   string
}

// TelegramConfig holds the optional notification channel.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// SchedulerConfig holds the tick cadence.
type SchedulerConfig struct {
	IntervalMinutes int
	Timezone        string
}

// HTTPConfig holds the HTTP server configuration.
type HTTPConfig struct {
	Addr               string
	CORSAllowedOrigins string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Trading: TradingConfig{
			InitialBudgetVND:    getEnvInt64("INITIAL_BUDGET_VND", 7_500_000),
			MaxPositions:        getEnvInt("MAX_POSITIONS", 5),
			MaxLossPercent:      getEnvFloat("MAX_LOSS_PERCENT_PER_TRADE", 2.0),
			MinEntryCashVND:     getEnvInt64("MIN_ENTRY_CASH_VND", 5_000_000),
			EntryScoreThreshold: getEnvInt("ENTRY_SCORE_THRESHOLD", 30),
			Watchlist:           getEnvList("WATCHLIST", DefaultWatchlist),
			CommissionRate:      getEnvFloat("COMMISSION_RATE", 0),
			Diversify:           getEnvBool("DIVERSIFY", false),
		},
		Store: StoreConfig{
			PortfolioPath: getEnvString("PORTFOLIO_PATH", "data/portfolio.json"),
			DashboardPath: getEnvString("DASHBOARD_PATH", "dashboard/public/portfolio.html"),
		},
		MarketData: MarketDataConfig{
			BaseURL: getEnvString("MARKET_DATA_BASE_URL", "https://fc-data.ssi.com.vn"),
			Source:  getEnvString("MARKET_DATA_SOURCE", "VCI"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Sentiment: SentimentConfig{
			AWSRegion: os.Getenv("AWS_REGION"),
			ModelID:   os.Getenv("BEDROCK_MODEL_ID"),
		},
		Telegram: TelegramConfig{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		},
		Scheduler: SchedulerConfig{
			IntervalMinutes: getEnvInt("TICK_INTERVAL_MINUTES", 60),
			Timezone:        getEnvString("MARKET_TIMEZONE", "Asia/Ho_Chi_Minh"),
		},
		HTTP: HTTPConfig{
			Addr:               getEnvString("HTTP_ADDR", ":8000"),
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.InitialBudgetVND <= 0 {
		return fmt.Errorf("INITIAL_BUDGET_VND must be positive, got %d", c.Trading.InitialBudgetVND)
	}
	if c.Trading.MaxPositions <= 0 {
		return fmt.Errorf("MAX_POSITIONS must be positive, got %d", c.Trading.MaxPositions)
	}
	if c.Trading.MinEntryCashVND < 0 {
		return fmt.Errorf("MIN_ENTRY_CASH_VND must be non-negative, got %d", c.Trading.MinEntryCashVND)
	}
	if c.Trading.CommissionRate < 0 || c.Trading.CommissionRate > 0.1 {
		return fmt.Errorf("COMMISSION_RATE must be in [0, 0.1], got %.4f", c.Trading.CommissionRate)
	}
	if len(c.Trading.Watchlist) == 0 {
		return fmt.Errorf("WATCHLIST must not be empty")
	}
	if c.Scheduler.IntervalMinutes <= 0 {
		return fmt.Errorf("TICK_INTERVAL_MINUTES must be positive, got %d", c.Scheduler.IntervalMinutes)
	}
	return nil
}

// HasDatabase returns true if the archive database is configured.
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasSentiment returns true if the Bedrock sentiment classifier is configured.
func (c *Config) HasSentiment() bool {
	return c.Sentiment.AWSRegion != "" && c.Sentiment.ModelID != ""
}

// HasTelegram returns true if Telegram notifications are configured.
func (c *Config) HasTelegram() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// NewTestConfig creates a Config with default values for testing.
func NewTestConfig() *Config {
	return &Config{
		Trading: TradingConfig{
			InitialBudgetVND:    7_500_000,
			MaxPositions:        5,
			MaxLossPercent:      2.0,
			MinEntryCashVND:     5_000_000,
			EntryScoreThreshold: 30,
			Watchlist:           append([]string(nil), DefaultWatchlist...),
			CommissionRate:      0,
			Diversify:           false,
		},
		Store: StoreConfig{
			PortfolioPath: "data/portfolio.json",
			DashboardPath: "dashboard/public/portfolio.html",
		},
		MarketData: MarketDataConfig{
			BaseURL: "https://fc-data.ssi.com.vn",
			Source:  "VCI",
		},
		Scheduler: SchedulerConfig{
			IntervalMinutes: 60,
			Timezone:        "Asia/Ho_Chi_Minh",
		},
		HTTP: HTTPConfig{
			Addr:               ":8000",
			CORSAllowedOrigins: "*",
		},
	}
}
