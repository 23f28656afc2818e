package rescore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/kalshirun/internal/engine"
	"github.com/sawpanic/kalshirun/internal/persistence"
)

// BookFetcher pulls the current ladder for a market. Implemented by the
// exchange client.
type BookFetcher interface {
	Orderbook(ctx context.Context, ticker string, depth int) (engine.OrderbookSnapshot, error)
}

// Invalidator drops cached rows for a ticker once a deep scan has
// superseded them. Implemented by the Redis hot tier; nil disables it.
type Invalidator interface {
	Invalidate(ctx context.Context, ticker string) error
}

// Processor runs one deep scan end to end.
type Processor struct {
	books  BookFetcher
	repo   persistence.Repository
	cache  Invalidator
	cfg    engine.ScoringConfig
	depth  int
	logger zerolog.Logger
}

// NewProcessor wires a deep-scan processor. depth caps how many ladder
// levels are requested per side; zero means the exchange default.
func NewProcessor(books BookFetcher, repo persistence.Repository, cache Invalidator, cfg engine.ScoringConfig, depth int, logger zerolog.Logger) *Processor {
	return &Processor{
		books:  books,
		repo:   repo,
		cache:  cache,
		cfg:    cfg,
		depth:  depth,
		logger: logger.With().Str("component", "rescore").Logger(),
	}
}

// Process fetches the market's order book, scores it, and persists both
// the scan row and the deep-scan columns on the market. The market's
// quote fields and data hash are never touched.
func (p *Processor) Process(ctx context.Context, rec persistence.MarketRecord) (engine.ScoreBundle, error) {
	start := time.Now()

	book, err := p.books.Orderbook(ctx, rec.Ticker, p.depth)
	if err != nil {
		return engine.ScoreBundle{}, fmt.Errorf("failed to fetch orderbook for %s: %w", rec.Ticker, err)
	}

	now := time.Now().UTC()
	bundle := engine.ScoreFromOrderbook(rec.Quote(), book, now, p.cfg)
	metrics := book.Metrics(p.cfg)

	scan := persistence.OrderbookRecord{
		Ticker:         rec.Ticker,
		Yes:            book.Yes,
		No:             book.No,
		Metrics:        metrics,
		Score:          bundle.Score,
		TakerPotential: bundle.TakerPotential,
		MakerPotential: bundle.MakerPotential,
	}
	if err := p.repo.Orderbooks.Upsert(ctx, scan); err != nil {
		return engine.ScoreBundle{}, fmt.Errorf("failed to persist orderbook scan for %s: %w", rec.Ticker, err)
	}
	if err := p.repo.Markets.UpdateOrderbookScores(ctx, rec.Ticker, bundle); err != nil {
		return engine.ScoreBundle{}, fmt.Errorf("failed to persist orderbook scores for %s: %w", rec.Ticker, err)
	}
	if p.cache != nil {
		if err := p.cache.Invalidate(ctx, rec.Ticker); err != nil {
			p.logger.Warn().Err(err).Str("ticker", rec.Ticker).Msg("cache invalidation failed")
		}
	}

	p.logger.Debug().
		Str("ticker", rec.Ticker).
		Float64("score", bundle.Score).
		Float64("taker", bundle.TakerPotential).
		Float64("maker", bundle.MakerPotential).
		Dur("elapsed", time.Since(start)).
		Msg("deep scan complete")

	return bundle, nil
}
