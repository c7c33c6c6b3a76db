// Package config defines the top-level configuration for edgehound and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by EDGEHOUND_* environment
// variables.
type Config struct {
	Kalshi   KalshiConfig   `toml:"kalshi"`
	Forecast ForecastConfig `toml:"forecast"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Scan     ScanConfig     `toml:"scan"`
	Risk     RiskConfig     `toml:"risk"`
	Paper    PaperConfig    `toml:"paper"`
	Archive  ArchiveConfig  `toml:"archive"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// KalshiConfig holds exchange API parameters.
type KalshiConfig struct {
	ApiKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// ForecastConfig holds the LLM forecaster parameters.
type ForecastConfig struct {
	BaseURL     string   `toml:"base_url"`
	ApiKey      string   `toml:"api_key"`
	Model       string   `toml:"model"`
	UseSearch   bool     `toml:"use_search"`
	MaxRetries  int      `toml:"max_retries"`
	BaseBackoff duration `toml:"base_backoff"`
	MaxBackoff  duration `toml:"max_backoff"`
	// RequestDelay is the pause between consecutive forecast requests;
	// SearchRequestDelay applies instead when use_search is on.
	RequestDelay       duration `toml:"request_delay"`
	SearchRequestDelay duration `toml:"search_request_delay"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ScanConfig holds the cycle parameters.
type ScanConfig struct {
	Interval      duration `toml:"interval"`
	MaxCandidates int      `toml:"max_candidates"`
	Categories    []string `toml:"categories"`
	EstimateTTL   duration `toml:"estimate_ttl"`
}

// RiskConfig holds edge detection and sizing parameters.
type RiskConfig struct {
	MinEdge          float64 `toml:"min_edge"`
	KellyFraction    float64 `toml:"kelly_fraction"`
	MaxExposure      float64 `toml:"max_exposure"`
	MaxPositionSize  float64 `toml:"max_position_size"`
	MinConfidence    float64 `toml:"min_confidence"`
	MaxTradesPerHour int     `toml:"max_trades_per_hour"`
}

// PaperConfig holds the simulated ledger parameters.
type PaperConfig struct {
	InitialBalance float64 `toml:"initial_balance"`
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder accepts strings like "5m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Kalshi: KalshiConfig{
			BaseURL: "https://api.elections.kalshi.com/trade-api/v2",
		},
		Forecast: ForecastConfig{
			BaseURL:            "https://api.openai.com/v1",
			Model:              "gpt-4o",
			UseSearch:          false,
			MaxRetries:         3,
			BaseBackoff:        duration{2 * time.Second},
			MaxBackoff:         duration{60 * time.Second},
			RequestDelay:       duration{2 * time.Second},
			SearchRequestDelay: duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "edgehound",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "edgehound-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Scan: ScanConfig{
			Interval:      duration{30 * time.Minute},
			MaxCandidates: 20,
			Categories:    []string{},
			EstimateTTL:   duration{6 * time.Hour},
		},
		Risk: RiskConfig{
			MinEdge:          0.05,
			KellyFraction:    0.25,
			MaxExposure:      500,
			MaxPositionSize:  50,
			MinConfidence:    0.30,
			MaxTradesPerHour: 5,
		},
		Paper: PaperConfig{
			InitialBalance: 1000,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Notify: NotifyConfig{
			Events: []string{"signal", "arbitrage", "breaker", "settlement"},
		},
		Mode:     "paper",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"paper":   true,
	"live":    true,
	"once":    true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: paper, live, once, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}
	if mode == "live" && c.Kalshi.ApiKey == "" {
		errs = append(errs, "kalshi: api_key is required for live mode")
	}

	// monitor never calls the forecaster; every other mode does.
	if mode != "monitor" {
		if c.Forecast.BaseURL == "" {
			errs = append(errs, "forecast: base_url must not be empty")
		}
		if c.Forecast.ApiKey == "" {
			errs = append(errs, "forecast: api_key is required for mode "+c.Mode)
		}
		if c.Forecast.Model == "" {
			errs = append(errs, "forecast: model must not be empty")
		}
		if c.Forecast.MaxRetries < 0 {
			errs = append(errs, "forecast: max_retries must be >= 0")
		}
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	if c.Scan.Interval.Duration <= 0 {
		errs = append(errs, "scan: interval must be positive")
	}
	if c.Scan.MaxCandidates < 1 {
		errs = append(errs, "scan: max_candidates must be >= 1")
	}

	if c.Risk.MinEdge <= 0 || c.Risk.MinEdge >= 1 {
		errs = append(errs, fmt.Sprintf("risk: min_edge must be in (0, 1), got %g", c.Risk.MinEdge))
	}
	if c.Risk.KellyFraction <= 0 || c.Risk.KellyFraction > 1 {
		errs = append(errs, fmt.Sprintf("risk: kelly_fraction must be in (0, 1], got %g", c.Risk.KellyFraction))
	}
	if c.Risk.MaxExposure <= 0 {
		errs = append(errs, "risk: max_exposure must be > 0")
	}
	if c.Risk.MaxPositionSize <= 0 {
		errs = append(errs, "risk: max_position_size must be > 0")
	}
	if c.Risk.MinConfidence < 0 || c.Risk.MinConfidence > 1 {
		errs = append(errs, fmt.Sprintf("risk: min_confidence must be in [0, 1], got %g", c.Risk.MinConfidence))
	}
	if c.Risk.MaxTradesPerHour < 1 {
		errs = append(errs, "risk: max_trades_per_hour must be >= 1")
	}

	if mode != "live" && c.Paper.InitialBalance <= 0 {
		errs = append(errs, "paper: initial_balance must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ForecastDelay returns the inter-request pause appropriate for the
// configured forecasting mode. Search-augmented requests are slower and
// rate limited harder by the provider.
func (c *Config) ForecastDelay() time.Duration {
	if c.Forecast.UseSearch {
		return c.Forecast.SearchRequestDelay.Duration
	}
	return c.Forecast.RequestDelay.Duration
}
