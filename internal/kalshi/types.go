// Package kalshi is the exchange-facing collaborator: a REST client for
// market quotes and order books plus a websocket feed for live ladders.
// It owns pagination, rate limiting, and circuit breaking; the scoring
// engine never sees any of it.
package kalshi

import (
	"sort"
	"time"

	"github.com/sawpanic/kalshirun/internal/engine"
)

// Market mirrors the exchange market payload. Cent prices come as
// integers and every price carries a decimal dollar-string twin; both are
// kept because persisted rows store both representations.
type Market struct {
	Ticker      string `json:"ticker"`
	EventTicker string `json:"event_ticker"`
	MarketType  string `json:"market_type"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Status      string `json:"status"`
	Category    string `json:"category"`
	Result      string `json:"result"`

	YesBid           int    `json:"yes_bid"`
	YesBidDollars    string `json:"yes_bid_dollars"`
	YesAsk           int    `json:"yes_ask"`
	YesAskDollars    string `json:"yes_ask_dollars"`
	NoBid            int    `json:"no_bid"`
	NoBidDollars     string `json:"no_bid_dollars"`
	NoAsk            int    `json:"no_ask"`
	NoAskDollars     string `json:"no_ask_dollars"`
	LastPrice        int    `json:"last_price"`
	LastPriceDollars string `json:"last_price_dollars"`

	PreviousYesBid int `json:"previous_yes_bid"`
	PreviousYesAsk int `json:"previous_yes_ask"`
	PreviousPrice  int `json:"previous_price"`

	Volume           int    `json:"volume"`
	Volume24h        int    `json:"volume_24h"`
	Liquidity        int    `json:"liquidity"`
	LiquidityDollars string `json:"liquidity_dollars"`
	OpenInterest     int    `json:"open_interest"`

	OpenTime       time.Time `json:"open_time"`
	CloseTime      time.Time `json:"close_time"`
	ExpirationTime time.Time `json:"expiration_time"`

	CanCloseEarly bool `json:"can_close_early"`
}

// Quote converts the wire market into the engine's snapshot type.
// updatedAt is the persisted refresh instant carried by the caller; nil
// means the market has never been stored.
func (m Market) Quote(updatedAt *time.Time) engine.QuoteSnapshot {
	return engine.QuoteSnapshot{
		Ticker:            m.Ticker,
		YesBid:            m.YesBid,
		YesAsk:            m.YesAsk,
		NoBid:             m.NoBid,
		NoAsk:             m.NoAsk,
		LastPrice:         m.LastPrice,
		PreviousYesBid:    m.PreviousYesBid,
		PreviousYesAsk:    m.PreviousYesAsk,
		PreviousLastPrice: m.PreviousPrice,
		Volume24h:         m.Volume24h,
		OpenInterest:      m.OpenInterest,
		LiquidityDollars:  m.LiquidityDollars,
		CloseTime:         m.CloseTime,
		UpdatedAt:         updatedAt,
	}
}

// MarketsPage is one page of the paginated markets listing.
type MarketsPage struct {
	Cursor  string   `json:"cursor"`
	Markets []Market `json:"markets"`
}

// MarketsQuery narrows the markets listing. Zero values are omitted from
// the request.
type MarketsQuery struct {
	Limit        int
	Cursor       string
	EventTicker  string
	SeriesTicker string
	Status       string
	Tickers      string
	MinCloseTS   int64
	MaxCloseTS   int64
}

// orderbookEnvelope is the wire shape of the orderbook endpoint: ladders
// arrive as [price, quantity] pairs on each bid side.
type orderbookEnvelope struct {
	Orderbook struct {
		Yes [][2]int `json:"yes"`
		No  [][2]int `json:"no"`
	} `json:"orderbook"`
}

func (e orderbookEnvelope) snapshot(ticker string) engine.OrderbookSnapshot {
	ob := engine.OrderbookSnapshot{
		Ticker: ticker,
		Yes:    make([]engine.OrderbookLevel, 0, len(e.Orderbook.Yes)),
		No:     make([]engine.OrderbookLevel, 0, len(e.Orderbook.No)),
	}
	for _, lvl := range e.Orderbook.Yes {
		ob.Yes = append(ob.Yes, engine.OrderbookLevel{Price: lvl[0], Quantity: lvl[1]})
	}
	for _, lvl := range e.Orderbook.No {
		ob.No = append(ob.No, engine.OrderbookLevel{Price: lvl[0], Quantity: lvl[1]})
	}

	// The exchange lists bids worst-to-best; the engine contract is
	// best-to-worst on both sides.
	sort.Slice(ob.Yes, func(i, j int) bool { return ob.Yes[i].Price > ob.Yes[j].Price })
	sort.Slice(ob.No, func(i, j int) bool { return ob.No[i].Price > ob.No[j].Price })

	return ob
}
