// Package config loads the application configuration: database, Redis,
// exchange client, crawl loop, and HTTP surface. Scoring constants live
// in their own file handled by the engine package.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/kalshirun/internal/crawler"
	"github.com/sawpanic/kalshirun/internal/kalshi"
)

// AppConfig is the full application configuration. Durations are bound
// as integer seconds in YAML, matching the exchange client's config.
type AppConfig struct {
	Database DatabaseSection     `yaml:"database"`
	Redis    RedisSection        `yaml:"redis"`
	Kalshi   kalshi.ClientConfig `yaml:"kalshi"`
	Crawler  CrawlerSection      `yaml:"crawler"`
	Rescore  RescoreSection      `yaml:"rescore"`
	HTTP     HTTPSection         `yaml:"http"`
	Scoring  ScoringSection      `yaml:"scoring"`
}

// DatabaseSection configures PostgreSQL.
type DatabaseSection struct {
	DSN             string `yaml:"dsn"`
	QueryTimeoutSec int    `yaml:"query_timeout_sec"`
}

// QueryTimeout returns the per-query timeout.
func (d DatabaseSection) QueryTimeout() time.Duration {
	return time.Duration(d.QueryTimeoutSec) * time.Second
}

// RedisSection configures the hot cache and the event bus.
type RedisSection struct {
	Addr        string `yaml:"addr"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"`
	Enabled     bool   `yaml:"enabled"`
}

// CacheTTL returns the hot-cache TTL.
func (r RedisSection) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLSec) * time.Second
}

// CrawlerSection configures the sweep loop.
type CrawlerSection struct {
	IntervalSec  int `yaml:"interval_sec"`
	MaxRetries   int `yaml:"max_retries"`
	RetryBaseSec int `yaml:"retry_base_sec"`
}

// CrawlerConfig converts the section into runtime crawl settings.
func (c CrawlerSection) CrawlerConfig() crawler.Config {
	return crawler.Config{
		Interval:   time.Duration(c.IntervalSec) * time.Second,
		MaxRetries: c.MaxRetries,
		RetryBase:  time.Duration(c.RetryBaseSec) * time.Second,
	}
}

// RescoreSection configures the deep-scan policy.
type RescoreSection struct {
	Threshold float64 `yaml:"threshold"`
	Depth     int     `yaml:"depth"`
}

// HTTPSection configures the HTTP surface.
type HTTPSection struct {
	Addr string `yaml:"addr"`
}

// ScoringSection points at the scoring constants file.
type ScoringSection struct {
	ConfigPath string `yaml:"config_path"`
}

// Load reads the YAML config at path, applies environment overrides, and
// fills defaults. A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		cfg.Redis.Password = pass
	}
	if base := os.Getenv("KALSHI_API_BASE"); base != "" {
		cfg.Kalshi.BaseURL = base
	}
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		cfg.HTTP.Addr = addr
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Database.QueryTimeoutSec <= 0 {
		cfg.Database.QueryTimeoutSec = 30
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.CacheTTLSec <= 0 {
		cfg.Redis.CacheTTLSec = 60
	}

	// The exchange client defaults its own zero values in NewClient; only
	// the base URL matters here so env overrides land before defaults.
	if cfg.Kalshi.BaseURL == "" {
		cfg.Kalshi.BaseURL = kalshi.DefaultClientConfig().BaseURL
	}

	if cfg.Crawler.IntervalSec <= 0 {
		cfg.Crawler.IntervalSec = 300
	}
	if cfg.Crawler.MaxRetries <= 0 {
		cfg.Crawler.MaxRetries = 3
	}
	if cfg.Crawler.RetryBaseSec <= 0 {
		cfg.Crawler.RetryBaseSec = 2
	}

	if cfg.Rescore.Threshold <= 0 {
		cfg.Rescore.Threshold = 0.1
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
}
