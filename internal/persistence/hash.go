package persistence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// hashableMarket pins the exact field set and ordering that participates
// in change detection. Score columns and bookkeeping timestamps are
// excluded so rescoring and crawl bookkeeping never register as market
// changes.
type hashableMarket struct {
	Ticker           string `json:"ticker"`
	EventTicker      string `json:"event_ticker"`
	MarketType       string `json:"market_type"`
	Title            string `json:"title"`
	Subtitle         string `json:"subtitle"`
	Status           string `json:"status"`
	Category         string `json:"category"`
	Result           string `json:"result"`
	YesBid           int    `json:"yes_bid"`
	YesAsk           int    `json:"yes_ask"`
	NoBid            int    `json:"no_bid"`
	NoAsk            int    `json:"no_ask"`
	LastPrice        int    `json:"last_price"`
	LastPriceDollars string `json:"last_price_dollars"`
	PreviousYesBid   int    `json:"previous_yes_bid"`
	PreviousYesAsk   int    `json:"previous_yes_ask"`
	PreviousPrice    int    `json:"previous_price"`
	Volume           int    `json:"volume"`
	Volume24h        int    `json:"volume_24h"`
	Liquidity        int    `json:"liquidity"`
	LiquidityDollars string `json:"liquidity_dollars"`
	OpenInterest     int    `json:"open_interest"`
	OpenTime         string `json:"open_time"`
	CloseTime        string `json:"close_time"`
	ExpirationTime   string `json:"expiration_time"`
	CanCloseEarly    bool   `json:"can_close_early"`
}

// ComputeDataHash fingerprints the market's exchange-visible fields with
// SHA-256 over a canonical JSON encoding.
func (r MarketRecord) ComputeDataHash() string {
	h := hashableMarket{
		Ticker:           r.Ticker,
		EventTicker:      r.EventTicker,
		MarketType:       r.MarketType,
		Title:            r.Title,
		Subtitle:         r.Subtitle,
		Status:           r.Status,
		Category:         r.Category,
		Result:           r.Result,
		YesBid:           r.YesBid,
		YesAsk:           r.YesAsk,
		NoBid:            r.NoBid,
		NoAsk:            r.NoAsk,
		LastPrice:        r.LastPrice,
		LastPriceDollars: r.LastPriceDollars,
		PreviousYesBid:   r.PreviousYesBid,
		PreviousYesAsk:   r.PreviousYesAsk,
		PreviousPrice:    r.PreviousPrice,
		Volume:           r.Volume,
		Volume24h:        r.Volume24h,
		Liquidity:        r.Liquidity,
		LiquidityDollars: r.LiquidityDollars,
		OpenInterest:     r.OpenInterest,
		OpenTime:         r.OpenTime.UTC().Format(time.RFC3339Nano),
		CloseTime:        r.CloseTime.UTC().Format(time.RFC3339Nano),
		ExpirationTime:   r.ExpirationTime.UTC().Format(time.RFC3339Nano),
		CanCloseEarly:    r.CanCloseEarly,
	}

	data, _ := json.Marshal(h)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
