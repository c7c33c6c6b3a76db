package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/edgehound/edgehound/internal/blob/s3"
	"github.com/edgehound/edgehound/internal/cache/redis"
	"github.com/edgehound/edgehound/internal/config"
	"github.com/edgehound/edgehound/internal/domain"
	"github.com/edgehound/edgehound/internal/forecast"
	"github.com/edgehound/edgehound/internal/notify"
	"github.com/edgehound/edgehound/internal/platform/kalshi"
	"github.com/edgehound/edgehound/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	TradeStore  domain.TradeStore
	SignalStore domain.SignalStore
	ArbStore    domain.ArbStore
	AuditStore  domain.AuditStore

	// Caches
	EstimateCache domain.EstimateCache
	RateLimiter   domain.RateLimiter

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver

	// Collaborators
	Kalshi     *kalshi.Client
	Forecaster forecast.Forecaster
	Notifier   *notify.Notifier
}

// needsForecaster reports whether the mode calls the LLM. Monitor runs the
// structural scan only.
func needsForecaster(mode string) bool {
	return mode != "monitor"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function to call on
// shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	deps.TradeStore = postgres.NewTradeStore(pgClient)
	deps.SignalStore = postgres.NewSignalStore(pgClient)
	deps.ArbStore = postgres.NewArbStore(pgClient)
	deps.AuditStore = postgres.NewAuditStore(pgClient)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.EstimateCache = redis.NewEstimateCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- S3 blob storage (archival only) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			deps.TradeStore,
			deps.SignalStore,
			deps.ArbStore,
			deps.AuditStore,
		)
	}

	// --- Exchange client ---
	deps.Kalshi = kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKey, nil)

	// --- Forecaster ---
	if needsForecaster(mode) {
		deps.Forecaster = forecast.NewLLMForecaster(forecast.Config{
			BaseURL:     cfg.Forecast.BaseURL,
			APIKey:      cfg.Forecast.ApiKey,
			Model:       cfg.Forecast.Model,
			UseSearch:   cfg.Forecast.UseSearch,
			MaxRetries:  cfg.Forecast.MaxRetries,
			BaseBackoff: cfg.Forecast.BaseBackoff.Duration,
			MaxBackoff:  cfg.Forecast.MaxBackoff.Duration,
		}, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
