// Package cache is the Redis hot tier for scored markets and deep scans,
// letting the HTTP surface answer without a database round trip.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sawpanic/kalshirun/internal/persistence"
)

const (
	marketPrefix    = "kalshirun:market:"
	orderbookPrefix = "kalshirun:orderbook:"
	topScoredKey    = "kalshirun:top_scored"
)

// Cache wraps the Redis client with typed accessors.
type Cache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// New wires the hot cache. ttl bounds how stale a cached row may get; a
// non-positive ttl defaults to one minute.
func New(rdb redis.Cmdable, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// SetMarket caches one market row under its ticker.
func (c *Cache) SetMarket(ctx context.Context, rec persistence.MarketRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal market %s: %w", rec.Ticker, err)
	}
	if err := c.rdb.Set(ctx, marketPrefix+rec.Ticker, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache market %s: %w", rec.Ticker, err)
	}
	return nil
}

// GetMarket returns the cached row, nil on miss.
func (c *Cache) GetMarket(ctx context.Context, ticker string) (*persistence.MarketRecord, error) {
	data, err := c.rdb.Get(ctx, marketPrefix+ticker).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached market %s: %w", ticker, err)
	}

	var rec persistence.MarketRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode cached market %s: %w", ticker, err)
	}
	return &rec, nil
}

// SetOrderbook caches the latest deep scan for a ticker.
func (c *Cache) SetOrderbook(ctx context.Context, rec persistence.OrderbookRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal orderbook %s: %w", rec.Ticker, err)
	}
	if err := c.rdb.Set(ctx, orderbookPrefix+rec.Ticker, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache orderbook %s: %w", rec.Ticker, err)
	}
	return nil
}

// GetOrderbook returns the cached deep scan, nil on miss.
func (c *Cache) GetOrderbook(ctx context.Context, ticker string) (*persistence.OrderbookRecord, error) {
	data, err := c.rdb.Get(ctx, orderbookPrefix+ticker).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached orderbook %s: %w", ticker, err)
	}

	var rec persistence.OrderbookRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode cached orderbook %s: %w", ticker, err)
	}
	return &rec, nil
}

// SetTopScored caches the current leaderboard.
func (c *Cache) SetTopScored(ctx context.Context, recs []persistence.MarketRecord) error {
	data, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard: %w", err)
	}
	if err := c.rdb.Set(ctx, topScoredKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache leaderboard: %w", err)
	}
	return nil
}

// GetTopScored returns the cached leaderboard, nil on miss.
func (c *Cache) GetTopScored(ctx context.Context) ([]persistence.MarketRecord, error) {
	data, err := c.rdb.Get(ctx, topScoredKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached leaderboard: %w", err)
	}

	var recs []persistence.MarketRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("failed to decode cached leaderboard: %w", err)
	}
	return recs, nil
}

// Invalidate drops the cached rows for a ticker plus the leaderboard.
func (c *Cache) Invalidate(ctx context.Context, ticker string) error {
	if err := c.rdb.Del(ctx, marketPrefix+ticker, orderbookPrefix+ticker, topScoredKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache for %s: %w", ticker, err)
	}
	return nil
}
