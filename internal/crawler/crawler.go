// Package crawler drives the periodic market sweep: fetch every open
// market, score it, persist it, emit lifecycle events, and hand the
// markets that cross the deep-scan threshold to the rescorer.
package crawler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/kalshirun/internal/engine"
	"github.com/sawpanic/kalshirun/internal/events"
	"github.com/sawpanic/kalshirun/internal/kalshi"
	"github.com/sawpanic/kalshirun/internal/metrics"
	"github.com/sawpanic/kalshirun/internal/persistence"
	"github.com/sawpanic/kalshirun/internal/rescore"
)

// MarketSource lists every open market on the exchange. Implemented by
// the REST client.
type MarketSource interface {
	AllOpenMarkets(ctx context.Context) ([]kalshi.Market, error)
}

// DeepScanner runs an order-book deep scan for one market.
type DeepScanner interface {
	Process(ctx context.Context, rec persistence.MarketRecord) (engine.ScoreBundle, error)
}

// EventSink publishes engine lifecycle events.
type EventSink interface {
	Publish(ctx context.Context, name string, metadata map[string]any) error
}

// Config tunes the crawl loop.
type Config struct {
	Interval   time.Duration
	MaxRetries int
	RetryBase  time.Duration
}

// DefaultConfig returns the crawl loop defaults.
func DefaultConfig() Config {
	return Config{
		Interval:   5 * time.Minute,
		MaxRetries: 3,
		RetryBase:  2 * time.Second,
	}
}

// Stats summarizes one crawl cycle.
type Stats struct {
	Seen     int
	Created  int
	Changed  int
	Rescored int
	Errors   int
	Elapsed  time.Duration
}

// Crawler owns the sweep loop.
type Crawler struct {
	source  MarketSource
	repo    persistence.Repository
	scanner DeepScanner
	sink    EventSink
	trigger rescore.Trigger
	scoring engine.ScoringConfig
	cfg     Config
	reg     *metrics.Registry
	logger  zerolog.Logger

	running atomic.Bool
}

// New wires a crawler. scanner and sink may be nil to disable deep
// scanning or event publishing.
func New(source MarketSource, repo persistence.Repository, scanner DeepScanner, sink EventSink,
	trigger rescore.Trigger, scoring engine.ScoringConfig, cfg Config, reg *metrics.Registry, logger zerolog.Logger) *Crawler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultConfig().RetryBase
	}
	return &Crawler{
		source:  source,
		repo:    repo,
		scanner: scanner,
		sink:    sink,
		trigger: trigger,
		scoring: scoring,
		cfg:     cfg,
		reg:     reg,
		logger:  logger.With().Str("component", "crawler").Logger(),
	}
}

// Run crawls on the configured interval until ctx is cancelled. The
// first sweep starts immediately. A sweep still in flight when the tick
// fires is not doubled up; the tick is skipped.
func (c *Crawler) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	c.crawlGuarded(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.crawlGuarded(ctx)
		}
	}
}

func (c *Crawler) crawlGuarded(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		c.logger.Warn().Msg("previous sweep still running, skipping tick")
		return
	}
	defer c.running.Store(false)

	stats, err := c.CrawlOnce(ctx)
	if err != nil {
		if c.reg != nil {
			c.reg.CrawlsTotal.WithLabelValues("error").Inc()
		}
		c.logger.Error().Err(err).Msg("sweep failed")
		return
	}
	if c.reg != nil {
		c.reg.CrawlsTotal.WithLabelValues("success").Inc()
		c.reg.LastCrawlUnix.Set(float64(time.Now().Unix()))
	}
	c.logger.Info().
		Int("seen", stats.Seen).
		Int("created", stats.Created).
		Int("changed", stats.Changed).
		Int("rescored", stats.Rescored).
		Int("errors", stats.Errors).
		Dur("elapsed", stats.Elapsed).
		Msg("sweep complete")
}

// CrawlOnce runs a single sweep over every open market.
func (c *Crawler) CrawlOnce(ctx context.Context) (Stats, error) {
	start := time.Now()

	markets, err := c.fetchWithRetry(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to list open markets: %w", err)
	}

	stats := Stats{Seen: len(markets)}
	if c.reg != nil {
		c.reg.CrawlBatchSize.Set(float64(len(markets)))
		c.reg.MarketsCrawled.Add(float64(len(markets)))
	}

	for _, m := range markets {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if err := c.processMarket(ctx, m, &stats); err != nil {
			stats.Errors++
			c.logger.Error().Err(err).Str("ticker", m.Ticker).Msg("market sweep entry failed")
		}
	}

	stats.Elapsed = time.Since(start)
	if c.reg != nil {
		c.reg.CrawlDuration.Observe(stats.Elapsed.Seconds())
	}

	if c.sink != nil {
		err := c.sink.Publish(ctx, events.CrawlCompleted, map[string]any{
			"seen":     stats.Seen,
			"created":  stats.Created,
			"changed":  stats.Changed,
			"rescored": stats.Rescored,
			"errors":   stats.Errors,
		})
		if err != nil {
			c.logger.Warn().Err(err).Msg("crawl event publish failed")
		}
	}

	return stats, nil
}

func (c *Crawler) fetchWithRetry(ctx context.Context) ([]kalshi.Market, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.RetryBase << (attempt - 1)
			c.logger.Warn().Err(lastErr).Dur("backoff", backoff).Int("attempt", attempt).Msg("retrying market fetch")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		markets, err := c.source.AllOpenMarkets(ctx)
		if err == nil {
			return markets, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Crawler) processMarket(ctx context.Context, m kalshi.Market, stats *Stats) error {
	now := time.Now().UTC()

	rec := recordFromMarket(m, now)
	rec.DataHash = rec.ComputeDataHash()

	// Peek at the stored row so the scored UpdatedAt reflects the last
	// actual change, not this crawl.
	prev, err := c.repo.Markets.Get(ctx, m.Ticker)
	if err != nil {
		return err
	}

	changed := prev == nil || prev.DataHash != rec.DataHash
	if prev != nil && !changed {
		rec.UpdatedAt = prev.UpdatedAt
	}

	bundle := engine.ScoreFromQuote(rec.Quote(), now, c.scoring)
	rec.Score = bundle.Score
	rec.TakerPotential = bundle.TakerPotential
	rec.MakerPotential = bundle.MakerPotential

	prev, err = c.repo.Markets.Upsert(ctx, rec)
	if err != nil {
		return err
	}

	if !changed {
		return nil
	}

	stats.Changed++
	if prev == nil {
		stats.Created++
	}
	if c.reg != nil {
		c.reg.MarketsChanged.Inc()
	}

	if c.sink != nil {
		prevStatus := ""
		if prev != nil {
			prevStatus = prev.Status
		}
		name := events.MarketEventName(prev == nil, prevStatus, rec.Status)
		err := c.sink.Publish(ctx, name, map[string]any{
			"ticker": rec.Ticker,
			"status": rec.Status,
			"score":  rec.Score,
		})
		if err != nil {
			c.logger.Warn().Err(err).Str("ticker", rec.Ticker).Msg("market event publish failed")
		}
		if c.reg != nil {
			c.reg.EventsPublished.WithLabelValues(name).Inc()
		}
	}

	if c.scanner != nil && c.trigger.ShouldRescore(prev, rec) {
		scanStart := time.Now()
		if _, err := c.scanner.Process(ctx, rec); err != nil {
			if c.reg != nil {
				c.reg.RescoresTotal.WithLabelValues("error").Inc()
			}
			c.logger.Error().Err(err).Str("ticker", rec.Ticker).Msg("deep scan failed")
		} else {
			stats.Rescored++
			if c.reg != nil {
				c.reg.RescoresTotal.WithLabelValues("success").Inc()
				c.reg.RescoreDuration.Observe(time.Since(scanStart).Seconds())
			}
		}
	}

	return nil
}

// recordFromMarket maps the wire market onto a persistence row stamped at
// now. UpdatedAt starts at now and is rolled back by the caller when the
// data hash shows nothing changed.
func recordFromMarket(m kalshi.Market, now time.Time) persistence.MarketRecord {
	return persistence.MarketRecord{
		Ticker:           m.Ticker,
		EventTicker:      m.EventTicker,
		MarketType:       m.MarketType,
		Title:            m.Title,
		Subtitle:         m.Subtitle,
		Status:           m.Status,
		Category:         m.Category,
		Result:           m.Result,
		YesBid:           m.YesBid,
		YesAsk:           m.YesAsk,
		NoBid:            m.NoBid,
		NoAsk:            m.NoAsk,
		LastPrice:        m.LastPrice,
		LastPriceDollars: m.LastPriceDollars,
		PreviousYesBid:   m.PreviousYesBid,
		PreviousYesAsk:   m.PreviousYesAsk,
		PreviousPrice:    m.PreviousPrice,
		Volume:           m.Volume,
		Volume24h:        m.Volume24h,
		Liquidity:        m.Liquidity,
		LiquidityDollars: m.LiquidityDollars,
		OpenInterest:     m.OpenInterest,
		OpenTime:         m.OpenTime,
		CloseTime:        m.CloseTime,
		ExpirationTime:   m.ExpirationTime,
		CanCloseEarly:    m.CanCloseEarly,
		CreatedAt:        now,
		UpdatedAt:        now,
		CrawledAt:        now,
	}
}
