package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, "sqlite", config.DatabaseDriver)
	assert.Equal(t, "./data/deals.db", config.DatabaseDSN)
	assert.Equal(t, "https://www.amazon.in", config.MarketplaceBaseURL)
	assert.Equal(t, 1, config.RedisStreamCount)
	assert.Equal(t, 1800*time.Second, config.PostInterval)
	assert.Equal(t, 30, config.HistoryWindowDays)
	assert.Equal(t, 5, config.DefaultMinDiscount)
	assert.Empty(t, config.OperatorIDs)
	assert.NoError(t, config.Validate())

	// Test with environment variables
	t.Setenv("DATABASE_DRIVER", "pgx")
	t.Setenv("DATABASE_DSN", "postgres://localhost/deals")
	t.Setenv("MARKETPLACE_BASE_URL", "https://example.com/")
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_DB", "1")
	t.Setenv("POST_INTERVAL_SECONDS", "30")
	t.Setenv("OPERATOR_IDS", "11, 22,bogus,,33")

	config = LoadConfig()
	assert.Equal(t, "pgx", config.DatabaseDriver)
	assert.Equal(t, "postgres://localhost/deals", config.DatabaseDSN)
	assert.Equal(t, "https://example.com", config.MarketplaceBaseURL)
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 1, config.RedisDB)
	assert.Equal(t, 30*time.Second, config.PostInterval)
	assert.Equal(t, []int64{11, 22, 33}, config.OperatorIDs)
	assert.NoError(t, config.Validate())
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"unknown driver":    func(c *Config) { c.DatabaseDriver = "mysql" },
		"empty dsn":         func(c *Config) { c.DatabaseDSN = "" },
		"zero interval":     func(c *Config) { c.PostInterval = 0 },
		"zero window":       func(c *Config) { c.HistoryWindowDays = 0 },
		"zero send rate":    func(c *Config) { c.SendRatePerSecond = 0 },
		"zero workers":      func(c *Config) { c.PipelineWorkers = 0 },
		"zero timeout":      func(c *Config) { c.OperationTimeout = 0 },
		"negative alerts":   func(c *Config) { c.MaxOperatorAlerts = -1 },
		"zero stream count": func(c *Config) { c.RedisStreamCount = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := LoadConfig()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
