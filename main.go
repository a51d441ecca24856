package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"sjsage522/dealalert/config"
	"sjsage522/dealalert/internal/deal"
	"sjsage522/dealalert/internal/extractor"
	"sjsage522/dealalert/internal/fanout"
	"sjsage522/dealalert/internal/history"
	"sjsage522/dealalert/internal/notify"
	"sjsage522/dealalert/internal/pipeline"
	"sjsage522/dealalert/internal/registry"
	"sjsage522/dealalert/internal/store"
	"sjsage522/dealalert/logger"
	perrors "sjsage522/dealalert/pkg/errors"
	"sjsage522/dealalert/services/cache"
	"sjsage522/dealalert/services/lock"
	"sjsage522/dealalert/services/publisher"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// Services holds all the initialized services
type Services struct {
	Store     *store.Store
	Cache     cache.CacheService
	Redis     *redis.Client
	Publisher publisher.Publisher
	RunLock   lock.Locker
	Notifier  notify.Notifier
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	} else if s.Redis != nil {
		s.Redis.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices initializes all required services.
// Redis and memcache are optional; without them the run lock is in-process
// and fetch blocking is disabled.
func initializeServices(ctx context.Context, cfg *config.Config, dryRun bool) (*Services, error) {
	log := logger.Default
	services := &Services{RunLock: lock.NewLocalLock()}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	services.Store = st

	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr, "dealalert")
		if err := mc.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unreachable, fetch blocking may not persist")
		}
		services.Cache = mc
		log.Info().Str("addr", cfg.MemcacheAddr).Msg("Using Memcache")
	}

	if cfg.RedisAddr != "" {
		client := publisher.NewRedisClient(cfg.RedisAddr, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			client.Close()
			services.Cleanup()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		services.Redis = client
		services.Publisher = publisher.NewRedisPublisher(client, cfg.RedisStream, cfg.RedisStreamCount, cfg.RedisStreamMaxLength)
		services.RunLock = lock.NewRedisLock(client, cfg.RedisStream+":run_lock", cfg.RunLockTTL)

		log.Info().
			Str("addr", cfg.RedisAddr).
			Int("db", cfg.RedisDB).
			Str("stream", cfg.RedisStream).
			Msg("Connected to Redis")
	}

	switch {
	case dryRun:
		services.Notifier = notify.NewLogNotifier()
	case cfg.TelegramBotToken == "" && cfg.IsProduction():
		services.Cleanup()
		return nil, perrors.NewConfiguration("TELEGRAM_BOT_TOKEN is required in production (use --dry-run to only log messages)", nil)
	case cfg.TelegramBotToken == "":
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, messages will only be logged")
		services.Notifier = notify.NewLogNotifier()
	default:
		bot, err := notify.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			services.Cleanup()
			return nil, err
		}
		services.Notifier = notify.NewTelegramNotifier(bot, cfg.ChannelID)
		log.Info().Str("bot", bot.Self.UserName).Msg("Connected to Telegram")
	}

	return services, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	if cfg.DatabaseDriver == "sqlite" {
		if err := ensureParentDir(cfg.DatabaseDSN); err != nil {
			return nil, err
		}
	}
	st, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// buildOrchestrator wires the pipeline components over the initialized services
func buildOrchestrator(cfg *config.Config, services *Services) *pipeline.Orchestrator {
	validator := deal.NewValidator()

	ext := extractor.NewHTMLExtractor(extractor.Config{
		Name:         "deals",
		URL:          cfg.ScrapeURL,
		BaseURL:      cfg.MarketplaceBaseURL,
		AffiliateTag: cfg.AffiliateTag,
		CacheKey:     "deals_rate_limited",
		BlockTime:    cfg.FetchBlockTime,
		Timeout:      cfg.FetchTimeout,
	}, services.Cache)

	reg := registry.New(services.Store, validator.Classifier(), cfg.DefaultMinDiscount)
	engine := fanout.NewEngine(reg, services.Store, services.Notifier,
		notify.NewFormatter(cfg.CurrencySymbol, cfg.HistoryWindowDays),
		fanout.Config{
			RatePerSecond:    cfg.SendRatePerSecond,
			Burst:            cfg.SendBurst,
			Concurrency:      cfg.SendConcurrency,
			OperationTimeout: cfg.OperationTimeout,
		})

	opts := []pipeline.Option{
		pipeline.WithRunLock(services.RunLock),
		pipeline.WithAlerter(notify.NewOperatorAlerter(services.Notifier, cfg.OperatorIDs, cfg.MaxOperatorAlerts)),
		pipeline.WithWorkers(cfg.PipelineWorkers),
		pipeline.WithHistoryWindow(cfg.HistoryWindowDays),
		pipeline.WithOperationTimeout(cfg.OperationTimeout),
	}
	if services.Publisher != nil {
		opts = append(opts, pipeline.WithPublisher(services.Publisher))
	}

	return pipeline.New(ext, validator, services.Store, history.NewIndex(services.Store), engine, opts...)
}

// ensureParentDir creates the directory holding a sqlite database file
func ensureParentDir(dsn string) error {
	path := strings.SplitN(strings.TrimPrefix(dsn, "file:"), "?", 2)[0]
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}
