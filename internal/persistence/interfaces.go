// Package persistence defines the storage contracts for crawled markets,
// order-book scans, and engine events, with PostgreSQL implementations
// under postgres/.
package persistence

import (
	"context"
	"time"

	"github.com/sawpanic/kalshirun/internal/engine"
)

// MarketRecord is one persisted market row: the exchange quote fields, a
// change-detection hash, and both scoring bundles. The orderbook-scored
// columns are pointers because most markets never cross the deep-scan
// threshold.
type MarketRecord struct {
	Ticker      string `json:"ticker" db:"ticker"`
	EventTicker string `json:"event_ticker" db:"event_ticker"`
	MarketType  string `json:"market_type" db:"market_type"`
	Title       string `json:"title" db:"title"`
	Subtitle    string `json:"subtitle" db:"subtitle"`
	Status      string `json:"status" db:"status"`
	Category    string `json:"category" db:"category"`
	Result      string `json:"result" db:"result"`

	YesBid           int    `json:"yes_bid" db:"yes_bid"`
	YesAsk           int    `json:"yes_ask" db:"yes_ask"`
	NoBid            int    `json:"no_bid" db:"no_bid"`
	NoAsk            int    `json:"no_ask" db:"no_ask"`
	LastPrice        int    `json:"last_price" db:"last_price"`
	LastPriceDollars string `json:"last_price_dollars" db:"last_price_dollars"`

	PreviousYesBid int `json:"previous_yes_bid" db:"previous_yes_bid"`
	PreviousYesAsk int `json:"previous_yes_ask" db:"previous_yes_ask"`
	PreviousPrice  int `json:"previous_price" db:"previous_price"`

	Volume           int    `json:"volume" db:"volume"`
	Volume24h        int    `json:"volume_24h" db:"volume_24h"`
	Liquidity        int    `json:"liquidity" db:"liquidity"`
	LiquidityDollars string `json:"liquidity_dollars" db:"liquidity_dollars"`
	OpenInterest     int    `json:"open_interest" db:"open_interest"`

	OpenTime       time.Time `json:"open_time" db:"open_time"`
	CloseTime      time.Time `json:"close_time" db:"close_time"`
	ExpirationTime time.Time `json:"expiration_time" db:"expiration_time"`
	CanCloseEarly  bool      `json:"can_close_early" db:"can_close_early"`

	// DataHash fingerprints the quote fields for change detection.
	DataHash string `json:"data_hash" db:"data_hash"`

	// Quote-path bundle, recomputed on every crawl.
	Score          float64 `json:"score" db:"score"`
	TakerPotential float64 `json:"taker_potential" db:"taker_potential"`
	MakerPotential float64 `json:"maker_potential" db:"maker_potential"`

	// Order-book-enhanced bundle from the deep scan; nil until the market
	// first crosses the rescore threshold.
	ScoreOrderbook          *float64 `json:"score_orderbook" db:"score_orderbook"`
	TakerPotentialOrderbook *float64 `json:"taker_potential_orderbook" db:"taker_potential_orderbook"`
	MakerPotentialOrderbook *float64 `json:"maker_potential_orderbook" db:"maker_potential_orderbook"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	CrawledAt time.Time `json:"crawled_at" db:"crawled_at"`
}

// Quote exposes the persisted row as an engine snapshot. UpdatedAt is
// carried from the row so staleness reflects the last successful write.
func (r MarketRecord) Quote() engine.QuoteSnapshot {
	updatedAt := r.UpdatedAt
	return engine.QuoteSnapshot{
		Ticker:            r.Ticker,
		YesBid:            r.YesBid,
		YesAsk:            r.YesAsk,
		NoBid:             r.NoBid,
		NoAsk:             r.NoAsk,
		LastPrice:         r.LastPrice,
		PreviousYesBid:    r.PreviousYesBid,
		PreviousYesAsk:    r.PreviousYesAsk,
		PreviousLastPrice: r.PreviousPrice,
		Volume24h:         r.Volume24h,
		OpenInterest:      r.OpenInterest,
		LiquidityDollars:  r.LiquidityDollars,
		CloseTime:         r.CloseTime,
		UpdatedAt:         &updatedAt,
	}
}

// OrderbookRecord is the persisted view of one order-book deep scan: the
// raw ladders, the derived analytics, and the order-book-enhanced bundle.
// One row per ticker, holding the latest scan.
type OrderbookRecord struct {
	Ticker string                  `json:"ticker" db:"ticker"`
	Yes    []engine.OrderbookLevel `json:"yes"`
	No     []engine.OrderbookLevel `json:"no"`

	Metrics engine.BookMetrics `json:"metrics"`

	Score          float64 `json:"score" db:"score"`
	TakerPotential float64 `json:"taker_potential" db:"taker_potential"`
	MakerPotential float64 `json:"maker_potential" db:"maker_potential"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EngineEvent records a notable system event (market created, updated,
// closed, settled, crawl completed) for the audit trail.
type EngineEvent struct {
	EventID   string         `json:"event_id" db:"event_id"`
	Timestamp time.Time      `json:"timestamp" db:"ts"`
	Name      string         `json:"event_name" db:"event_name"`
	Metadata  map[string]any `json:"event_metadata"`
}

// MarketRepo persists crawled markets and their scores.
type MarketRepo interface {
	// Upsert writes one market row and returns the previous row when one
	// existed, so callers can drive change-based triggers. CreatedAt is
	// preserved across updates.
	Upsert(ctx context.Context, rec MarketRecord) (*MarketRecord, error)

	// Get retrieves one market by ticker, nil when absent.
	Get(ctx context.Context, ticker string) (*MarketRecord, error)

	// UpdateOrderbookScores writes only the deep-scan score columns; quote
	// fields and the data hash are untouched so the write can never look
	// like a fresh quote change.
	UpdateOrderbookScores(ctx context.Context, ticker string, bundle engine.ScoreBundle) error

	// TopScored returns the highest-scored non-closed markets.
	TopScored(ctx context.Context, limit int) ([]MarketRecord, error)

	// StaleActiveTickers lists non-closed markets whose updated_at is
	// older than cutoff, oldest first.
	StaleActiveTickers(ctx context.Context, cutoff time.Time) ([]string, error)

	// Count returns the total number of persisted markets.
	Count(ctx context.Context) (int64, error)
}

// OrderbookRepo persists the latest deep scan per market.
type OrderbookRepo interface {
	Upsert(ctx context.Context, rec OrderbookRecord) error
	Get(ctx context.Context, ticker string) (*OrderbookRecord, error)
}

// EventRepo persists engine events.
type EventRepo interface {
	Insert(ctx context.Context, ev EngineEvent) error
	ListRecent(ctx context.Context, limit int) ([]EngineEvent, error)
}

// Repository aggregates the storage interfaces handed to the crawler and
// the rescore processor.
type Repository struct {
	Markets    MarketRepo
	Orderbooks OrderbookRepo
	Events     EventRepo
}
