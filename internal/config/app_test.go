package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Database.QueryTimeout())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Crawler.CrawlerConfig().Interval)
	assert.Equal(t, 0.1, cfg.Rescore.Threshold)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Contains(t, cfg.Kalshi.BaseURL, "kalshi.com")
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	content := `
database:
  dsn: postgres://localhost/kalshirun_test
  query_timeout_sec: 10
crawler:
  interval_sec: 90
  max_retries: 5
rescore:
  threshold: 0.25
  depth: 3
http:
  addr: ":9090"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/kalshirun_test", cfg.Database.DSN)
	assert.Equal(t, 10*time.Second, cfg.Database.QueryTimeout())
	crawl := cfg.Crawler.CrawlerConfig()
	assert.Equal(t, 90*time.Second, crawl.Interval)
	assert.Equal(t, 5, crawl.MaxRetries)
	assert.Equal(t, 0.25, cfg.Rescore.Threshold)
	assert.Equal(t, 3, cfg.Rescore.Depth)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)

	// Untouched sections keep their defaults.
	assert.Equal(t, 2*time.Second, crawl.RetryBase)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://env/db")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("HTTP_ADDR", ":7070")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/db", cfg.Database.DSN)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}
