package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies EDGEHOUND_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known EDGEHOUND_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Kalshi ──
	setStr(&cfg.Kalshi.ApiKey, "EDGEHOUND_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.BaseURL, "EDGEHOUND_KALSHI_BASE_URL")

	// ── Forecast ──
	setStr(&cfg.Forecast.BaseURL, "EDGEHOUND_FORECAST_BASE_URL")
	setStr(&cfg.Forecast.ApiKey, "EDGEHOUND_FORECAST_API_KEY")
	setStr(&cfg.Forecast.Model, "EDGEHOUND_FORECAST_MODEL")
	setBool(&cfg.Forecast.UseSearch, "EDGEHOUND_FORECAST_USE_SEARCH")
	setInt(&cfg.Forecast.MaxRetries, "EDGEHOUND_FORECAST_MAX_RETRIES")
	setDuration(&cfg.Forecast.BaseBackoff, "EDGEHOUND_FORECAST_BASE_BACKOFF")
	setDuration(&cfg.Forecast.MaxBackoff, "EDGEHOUND_FORECAST_MAX_BACKOFF")
	setDuration(&cfg.Forecast.RequestDelay, "EDGEHOUND_FORECAST_REQUEST_DELAY")
	setDuration(&cfg.Forecast.SearchRequestDelay, "EDGEHOUND_FORECAST_SEARCH_REQUEST_DELAY")

	// ── Database ──
	setStr(&cfg.Database.DSN, "EDGEHOUND_DATABASE_DSN")
	setStr(&cfg.Database.Host, "EDGEHOUND_DATABASE_HOST")
	setInt(&cfg.Database.Port, "EDGEHOUND_DATABASE_PORT")
	setStr(&cfg.Database.Database, "EDGEHOUND_DATABASE_NAME")
	setStr(&cfg.Database.User, "EDGEHOUND_DATABASE_USER")
	setStr(&cfg.Database.Password, "EDGEHOUND_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "EDGEHOUND_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "EDGEHOUND_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "EDGEHOUND_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "EDGEHOUND_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "EDGEHOUND_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "EDGEHOUND_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "EDGEHOUND_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "EDGEHOUND_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "EDGEHOUND_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "EDGEHOUND_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "EDGEHOUND_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "EDGEHOUND_S3_REGION")
	setStr(&cfg.S3.Bucket, "EDGEHOUND_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "EDGEHOUND_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "EDGEHOUND_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "EDGEHOUND_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "EDGEHOUND_S3_FORCE_PATH_STYLE")

	// ── Scan ──
	setDuration(&cfg.Scan.Interval, "EDGEHOUND_SCAN_INTERVAL")
	setInt(&cfg.Scan.MaxCandidates, "EDGEHOUND_SCAN_MAX_CANDIDATES")
	setStringSlice(&cfg.Scan.Categories, "EDGEHOUND_SCAN_CATEGORIES")
	setDuration(&cfg.Scan.EstimateTTL, "EDGEHOUND_SCAN_ESTIMATE_TTL")

	// ── Risk ──
	setFloat64(&cfg.Risk.MinEdge, "EDGEHOUND_RISK_MIN_EDGE")
	setFloat64(&cfg.Risk.KellyFraction, "EDGEHOUND_RISK_KELLY_FRACTION")
	setFloat64(&cfg.Risk.MaxExposure, "EDGEHOUND_RISK_MAX_EXPOSURE")
	setFloat64(&cfg.Risk.MaxPositionSize, "EDGEHOUND_RISK_MAX_POSITION_SIZE")
	setFloat64(&cfg.Risk.MinConfidence, "EDGEHOUND_RISK_MIN_CONFIDENCE")
	setInt(&cfg.Risk.MaxTradesPerHour, "EDGEHOUND_RISK_MAX_TRADES_PER_HOUR")

	// ── Paper ──
	setFloat64(&cfg.Paper.InitialBalance, "EDGEHOUND_PAPER_INITIAL_BALANCE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "EDGEHOUND_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "EDGEHOUND_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "EDGEHOUND_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "EDGEHOUND_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "EDGEHOUND_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "EDGEHOUND_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "EDGEHOUND_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "EDGEHOUND_MODE")
	setStr(&cfg.LogLevel, "EDGEHOUND_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
