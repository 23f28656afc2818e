// Package engine implements the pure scoring and order-book analytics core
// for Kalshi binary prediction markets. Everything in this package is a
// deterministic function of its inputs plus an explicit "now"; there is no
// shared state, no I/O, and no clock access.
package engine

import "time"

// QuoteSnapshot is an immutable view of one market's tradable state at a
// point in time. Prices are integer cents in [0,100]; the engine assumes
// callers supply sane values and never rejects out-of-range input, it only
// clips derived scores.
type QuoteSnapshot struct {
	Ticker string

	YesBid    int
	YesAsk    int
	NoBid     int
	NoAsk     int
	LastPrice int

	// Previous values carried forward by the quote source across polls,
	// used for freshness detection.
	PreviousYesBid    int
	PreviousYesAsk    int
	PreviousLastPrice int

	Volume24h    int
	OpenInterest int

	// LiquidityDollars is the exchange-reported liquidity as a decimal
	// dollar string (e.g. "12450.00"). Unparsable values degrade to a
	// zero liquidity contribution, never an error.
	LiquidityDollars string

	CloseTime time.Time

	// UpdatedAt is the last persistence refresh. Nil means the market was
	// never persisted and is treated as maximally stale.
	UpdatedAt *time.Time
}

// Mid returns the integer midpoint of the YES bid/ask in cents, using
// floor division.
func (q QuoteSnapshot) Mid() int {
	return (q.YesBid + q.YesAsk) / 2
}

// Spread returns the YES bid/ask spread in cents.
func (q QuoteSnapshot) Spread() int {
	return q.YesAsk - q.YesBid
}

// OrderbookLevel is a single resting price level.
type OrderbookLevel struct {
	Price    int `json:"price"`
	Quantity int `json:"quantity"`
}

// OrderbookSnapshot holds the two bid ladders of a binary market, each
// ordered best-to-worst (descending price). Kalshi never publishes a YES
// ask ladder: a YES ask at price X is definitionally a NO bid at 100−X,
// and the analytics derive the synthetic ask from the NO side. Either side
// may be empty, signaling no resting interest.
type OrderbookSnapshot struct {
	Ticker string           `json:"ticker"`
	Yes    []OrderbookLevel `json:"yes"`
	No     []OrderbookLevel `json:"no"`
}

// ScoreBundle is the output of one scoring pass. Taker/maker potential and
// RawScore are in [0,1] for in-range inputs; Score is RawScore scaled by
// the time-to-close weight. Bundles are produced fresh on every call and
// never mutated; the caller decides whether to keep the quote-only or the
// order-book-enhanced bundle.
type ScoreBundle struct {
	TakerPotential float64 `json:"taker_potential"`
	MakerPotential float64 `json:"maker_potential"`
	RawScore       float64 `json:"raw_score"`
	Score          float64 `json:"score"`
}
