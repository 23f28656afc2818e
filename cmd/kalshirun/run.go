package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisv8 "github.com/go-redis/redis/v8"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/kalshirun/internal/cache"
	"github.com/sawpanic/kalshirun/internal/config"
	"github.com/sawpanic/kalshirun/internal/crawler"
	"github.com/sawpanic/kalshirun/internal/engine"
	"github.com/sawpanic/kalshirun/internal/events"
	"github.com/sawpanic/kalshirun/internal/httpapi"
	"github.com/sawpanic/kalshirun/internal/kalshi"
	"github.com/sawpanic/kalshirun/internal/metrics"
	"github.com/sawpanic/kalshirun/internal/persistence"
	"github.com/sawpanic/kalshirun/internal/persistence/postgres"
	"github.com/sawpanic/kalshirun/internal/rescore"
)

// stack is the fully wired application.
type stack struct {
	cfg     *config.AppConfig
	scoring engine.ScoringConfig
	client  *kalshi.Client
	repo    persistence.Repository
	cache   *cache.Cache
	reg     *metrics.Registry
	crawler *crawler.Crawler

	closers []func()
}

func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func loadConfigs(cmd *cobra.Command) (*config.AppConfig, engine.ScoringConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, engine.ScoringConfig{}, err
	}

	scoring := engine.DefaultScoringConfig()
	if cfg.Scoring.ConfigPath != "" {
		scoring, err = engine.LoadScoringConfig(cfg.Scoring.ConfigPath)
		if err != nil {
			return nil, engine.ScoringConfig{}, fmt.Errorf("failed to load scoring config: %w", err)
		}
	}
	return cfg, scoring, nil
}

// buildStack wires the full pipeline: database, cache, event bus,
// exchange client, deep-scan processor, and crawler.
func buildStack(ctx context.Context, cmd *cobra.Command) (*stack, error) {
	cfg, scoring, err := loadConfigs(cmd)
	if err != nil {
		return nil, err
	}

	s := &stack{cfg: cfg, scoring: scoring, reg: metrics.NewRegistry()}

	db, err := postgres.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() { db.Close() })

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		s.Close()
		return nil, err
	}

	timeout := cfg.Database.QueryTimeout()
	s.repo = persistence.Repository{
		Markets:    postgres.NewMarketsRepo(db, timeout),
		Orderbooks: postgres.NewOrderbooksRepo(db, timeout),
		Events:     postgres.NewEventsRepo(db, timeout),
	}

	var bus *redisv9.Client
	if cfg.Redis.Enabled {
		hot := redisv8.NewClient(&redisv8.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, func() { hot.Close() })
		s.cache = cache.New(hot, cfg.Redis.CacheTTL())

		bus = redisv9.NewClient(&redisv9.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, func() { bus.Close() })
	}

	s.client = kalshi.NewClient(cfg.Kalshi).WithMetrics(s.reg)
	publisher := events.NewPublisher(bus, s.repo.Events, log.Logger)
	var invalidator rescore.Invalidator
	if s.cache != nil {
		invalidator = s.cache
	}
	processor := rescore.NewProcessor(s.client, s.repo, invalidator, scoring, cfg.Rescore.Depth, log.Logger)
	trigger := rescore.Trigger{Threshold: cfg.Rescore.Threshold}

	s.crawler = crawler.New(s.client, s.repo, processor, publisher,
		trigger, scoring, cfg.Crawler.CrawlerConfig(), s.reg, log.Logger)

	return s, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := buildStack(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.crawler.CrawlOnce(ctx)
	if err != nil {
		return err
	}
	log.Info().
		Int("seen", stats.Seen).
		Int("created", stats.Created).
		Int("changed", stats.Changed).
		Int("rescored", stats.Rescored).
		Int("errors", stats.Errors).
		Dur("elapsed", stats.Elapsed).
		Msg("sweep complete")
	return nil
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := buildStack(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if override, _ := cmd.Flags().GetInt("interval"); override > 0 {
		s.cfg.Crawler.IntervalSec = override
		s.crawler = crawler.New(s.client, s.repo, nil, nil,
			rescore.Trigger{Threshold: s.cfg.Rescore.Threshold}, s.scoring,
			s.cfg.Crawler.CrawlerConfig(), s.reg, log.Logger)
	}

	err = s.crawler.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("scheduler stopped")
		return nil
	}
	return err
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := buildStack(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	addr := s.cfg.HTTP.Addr
	if override, _ := cmd.Flags().GetString("addr"); override != "" {
		addr = override
	}
	var hot httpapi.MarketCache
	if s.cache != nil {
		hot = s.cache
	}
	server := httpapi.New(addr, s.repo, hot, s.reg, log.Logger)

	errCh := make(chan error, 2)
	go func() { errCh <- s.crawler.Run(ctx) }()
	go func() { errCh <- server.Run(ctx) }()

	err = <-errCh
	cancel()
	<-errCh
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("server stopped")
		return nil
	}
	return err
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg, scoring, err := loadConfigs(cmd)
	if err != nil {
		return err
	}
	depth, _ := cmd.Flags().GetInt("depth")
	ticker := args[0]

	client := kalshi.NewClient(cfg.Kalshi)
	page, err := client.Markets(ctx, kalshi.MarketsQuery{Tickers: ticker})
	if err != nil {
		return err
	}
	if len(page.Markets) == 0 {
		return fmt.Errorf("market %s not found", ticker)
	}

	now := time.Now().UTC()
	quote := page.Markets[0].Quote(&now)
	quoteBundle := engine.ScoreFromQuote(quote, now, scoring)

	book, err := client.Orderbook(ctx, ticker, depth)
	if err != nil {
		return err
	}
	bookBundle := engine.ScoreFromOrderbook(quote, book, now, scoring)

	out := map[string]any{
		"ticker":          ticker,
		"quote_score":     quoteBundle,
		"orderbook_score": bookBundle,
		"book_metrics":    book.Metrics(scoring),
	}
	return printJSON(out)
}

func runTop(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, _, err := loadConfigs(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	db, err := postgres.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := postgres.NewMarketsRepo(db, cfg.Database.QueryTimeout())
	recs, err := repo.TopScored(ctx, limit)
	if err != nil {
		return err
	}
	return printJSON(recs)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, scoring, err := loadConfigs(cmd)
	if err != nil {
		return err
	}
	wsURL, _ := cmd.Flags().GetString("ws-url")

	// One REST pull per market seeds the quotes the composite needs.
	client := kalshi.NewClient(cfg.Kalshi)
	now := time.Now().UTC()
	quotes := make(map[string]engine.QuoteSnapshot, len(args))
	for _, ticker := range args {
		page, err := client.Markets(ctx, kalshi.MarketsQuery{Tickers: ticker})
		if err != nil {
			return err
		}
		if len(page.Markets) == 0 {
			return fmt.Errorf("market %s not found", ticker)
		}
		quotes[ticker] = page.Markets[0].Quote(&now)
	}

	feed := kalshi.NewBookFeed(wsURL, args)
	errCh := make(chan error, 1)
	go func() { errCh <- feed.Run(ctx) }()

	for {
		select {
		case err := <-errCh:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case book := <-feed.Snapshots():
			quote, ok := quotes[book.Ticker]
			if !ok {
				continue
			}
			bundle := engine.ScoreFromOrderbook(quote, book, time.Now().UTC(), scoring)
			log.Info().
				Str("ticker", book.Ticker).
				Float64("score", bundle.Score).
				Float64("taker", bundle.TakerPotential).
				Float64("maker", bundle.MakerPotential).
				Msg("book update")
		}
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
