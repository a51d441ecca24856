package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Database configuration
	DatabaseDriver string
	DatabaseDSN    string

	// Marketplace configuration
	ScrapeURL          string
	MarketplaceBaseURL string
	AffiliateTag       string
	CurrencySymbol     string
	FetchTimeout       time.Duration
	FetchBlockTime     time.Duration

	// Telegram configuration
	TelegramBotToken  string
	ChannelID         string
	OperatorIDs       []int64
	MaxOperatorAlerts int

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int
	RunLockTTL           time.Duration

	// Memcache configuration
	MemcacheAddr string

	// Pipeline configuration
	PostInterval       time.Duration
	HistoryWindowDays  int
	SendRatePerSecond  float64
	SendBurst          int
	SendConcurrency    int
	PipelineWorkers    int
	OperationTimeout   time.Duration
	DefaultMinDiscount int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisStreamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	redisStreamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))
	runLockTTL, _ := strconv.Atoi(getEnv("RUN_LOCK_TTL_SECONDS", "600"))
	postInterval, _ := strconv.Atoi(getEnv("POST_INTERVAL_SECONDS", "1800"))
	fetchTimeout, _ := strconv.Atoi(getEnv("FETCH_TIMEOUT_SECONDS", "60"))
	fetchBlock, _ := strconv.Atoi(getEnv("FETCH_BLOCK_SECONDS", "900"))
	historyWindow, _ := strconv.Atoi(getEnv("HISTORY_WINDOW_DAYS", "30"))
	sendRate, _ := strconv.ParseFloat(getEnv("SEND_RATE_PER_SECOND", "1"), 64)
	sendBurst, _ := strconv.Atoi(getEnv("SEND_BURST", "5"))
	sendConcurrency, _ := strconv.Atoi(getEnv("SEND_CONCURRENCY", "4"))
	workers, _ := strconv.Atoi(getEnv("PIPELINE_WORKERS", "4"))
	opTimeout, _ := strconv.Atoi(getEnv("OPERATION_TIMEOUT_SECONDS", "10"))
	maxOperatorAlerts, _ := strconv.Atoi(getEnv("MAX_OPERATOR_ALERTS", "3"))

	return Config{
		DatabaseDriver:       getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:          getEnv("DATABASE_DSN", "./data/deals.db"),
		ScrapeURL:            getEnv("SCRAPE_URL", "https://www.amazon.in/deals"),
		MarketplaceBaseURL:   strings.TrimRight(getEnv("MARKETPLACE_BASE_URL", "https://www.amazon.in"), "/"),
		AffiliateTag:         getEnv("AFFILIATE_TAG", ""),
		CurrencySymbol:       getEnv("CURRENCY_SYMBOL", "₹"),
		FetchTimeout:         time.Duration(fetchTimeout) * time.Second,
		FetchBlockTime:       time.Duration(fetchBlock) * time.Second,
		TelegramBotToken:     getEnv("TELEGRAM_BOT_TOKEN", ""),
		ChannelID:            getEnv("CHANNEL_ID", ""),
		OperatorIDs:          parseIDList(getEnv("OPERATOR_IDS", "")),
		MaxOperatorAlerts:    maxOperatorAlerts,
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "deals"),
		RedisStreamCount:     redisStreamCount,
		RedisStreamMaxLength: redisStreamMaxLength,
		RunLockTTL:           time.Duration(runLockTTL) * time.Second,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		PostInterval:         time.Duration(postInterval) * time.Second,
		HistoryWindowDays:    historyWindow,
		SendRatePerSecond:    sendRate,
		SendBurst:            sendBurst,
		SendConcurrency:      sendConcurrency,
		PipelineWorkers:      workers,
		OperationTimeout:     time.Duration(opTimeout) * time.Second,
		DefaultMinDiscount:   5,
		Environment:          getEnv("DEALALERT_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be sqlite or pgx, got %q", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if c.ScrapeURL == "" {
		return fmt.Errorf("SCRAPE_URL is required")
	}
	if c.PostInterval <= 0 {
		return fmt.Errorf("POST_INTERVAL_SECONDS must be positive")
	}
	if c.HistoryWindowDays <= 0 {
		return fmt.Errorf("HISTORY_WINDOW_DAYS must be positive")
	}
	if c.RedisStreamCount <= 0 {
		return fmt.Errorf("REDIS_STREAM_COUNT must be positive")
	}
	if c.SendRatePerSecond <= 0 || c.SendBurst <= 0 {
		return fmt.Errorf("SEND_RATE_PER_SECOND and SEND_BURST must be positive")
	}
	if c.SendConcurrency <= 0 || c.PipelineWorkers <= 0 {
		return fmt.Errorf("SEND_CONCURRENCY and PIPELINE_WORKERS must be positive")
	}
	if c.OperationTimeout <= 0 || c.FetchTimeout <= 0 {
		return fmt.Errorf("OPERATION_TIMEOUT_SECONDS and FETCH_TIMEOUT_SECONDS must be positive")
	}
	if c.MaxOperatorAlerts < 0 {
		return fmt.Errorf("MAX_OPERATOR_ALERTS must not be negative")
	}
	return nil
}

// IsProduction reports whether the process runs in the production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parseIDList parses a comma separated list of chat ids, skipping malformed entries
func parseIDList(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
