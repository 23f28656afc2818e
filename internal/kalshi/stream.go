package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/kalshirun/internal/engine"
)

// wsCommand is the exchange websocket command envelope.
type wsCommand struct {
	ID     int      `json:"id"`
	Cmd    string   `json:"cmd"`
	Params wsParams `json:"params"`
}

type wsParams struct {
	Channels      []string `json:"channels"`
	MarketTickers []string `json:"market_tickers"`
}

type wsEnvelope struct {
	Type string `json:"type"`
}

type wsSnapshot struct {
	Msg struct {
		MarketTicker string   `json:"market_ticker"`
		Yes          [][2]int `json:"yes"`
		No           [][2]int `json:"no"`
	} `json:"msg"`
}

type wsDelta struct {
	Msg struct {
		MarketTicker string `json:"market_ticker"`
		Price        int    `json:"price"`
		Delta        int    `json:"delta"`
		Side         string `json:"side"`
	} `json:"msg"`
}

// liveBook holds mutable ladder state for one market while the feed is
// connected.
type liveBook struct {
	yes map[int]int // price cents -> quantity
	no  map[int]int
}

// BookFeed maintains live order books from the exchange websocket
// orderbook channel and emits immutable engine snapshots on every change.
// It is an alternative order-book source to polling Client.Orderbook.
type BookFeed struct {
	url     string
	tickers []string
	out     chan engine.OrderbookSnapshot

	mu    sync.Mutex
	books map[string]*liveBook
	cmdID int
}

// NewBookFeed prepares a feed for the given websocket URL and tickers.
func NewBookFeed(wsURL string, tickers []string) *BookFeed {
	return &BookFeed{
		url:     wsURL,
		tickers: tickers,
		out:     make(chan engine.OrderbookSnapshot, 256),
		books:   make(map[string]*liveBook),
	}
}

// Snapshots returns the channel of normalized book snapshots. Slow
// consumers drop updates rather than stalling the read loop.
func (f *BookFeed) Snapshots() <-chan engine.OrderbookSnapshot {
	return f.out
}

// Run dials the websocket, subscribes, and pumps messages until ctx is
// cancelled or the connection drops. Reconnect policy belongs to the
// caller.
func (f *BookFeed) Run(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", f.url, err)
	}
	defer conn.Close()

	f.cmdID++
	sub := wsCommand{
		ID:  f.cmdID,
		Cmd: "subscribe",
		Params: wsParams{
			Channels:      []string{"orderbook_delta"},
			MarketTickers: f.tickers,
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("websocket subscribe: %w", err)
	}

	log.Info().Int("tickers", len(f.tickers)).Msg("orderbook feed subscribed")

	// Unblock ReadMessage on cancellation.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("websocket read: %w", err)
		}
		f.handleMessage(raw)
	}
}

func (f *BookFeed) handleMessage(raw []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Warn().Err(err).Msg("orderbook feed: invalid JSON")
		return
	}

	switch env.Type {
	case "orderbook_snapshot":
		f.applySnapshot(raw)
	case "orderbook_delta":
		f.applyDelta(raw)
	case "error":
		log.Warn().RawJSON("payload", raw).Msg("orderbook feed: exchange error")
	}
}

func (f *BookFeed) applySnapshot(raw []byte) {
	var snap wsSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Warn().Err(err).Msg("orderbook feed: bad snapshot")
		return
	}

	book := &liveBook{
		yes: make(map[int]int, len(snap.Msg.Yes)),
		no:  make(map[int]int, len(snap.Msg.No)),
	}
	for _, lvl := range snap.Msg.Yes {
		book.yes[lvl[0]] = lvl[1]
	}
	for _, lvl := range snap.Msg.No {
		book.no[lvl[0]] = lvl[1]
	}

	f.mu.Lock()
	f.books[snap.Msg.MarketTicker] = book
	f.mu.Unlock()

	f.emit(snap.Msg.MarketTicker)
}

func (f *BookFeed) applyDelta(raw []byte) {
	var delta wsDelta
	if err := json.Unmarshal(raw, &delta); err != nil {
		log.Warn().Err(err).Msg("orderbook feed: bad delta")
		return
	}

	f.mu.Lock()
	book, ok := f.books[delta.Msg.MarketTicker]
	if !ok {
		// Deltas before the snapshot are unusable.
		f.mu.Unlock()
		return
	}

	side := book.yes
	if delta.Msg.Side == "no" {
		side = book.no
	}
	if qty := side[delta.Msg.Price] + delta.Msg.Delta; qty <= 0 {
		delete(side, delta.Msg.Price)
	} else {
		side[delta.Msg.Price] = qty
	}
	f.mu.Unlock()

	f.emit(delta.Msg.MarketTicker)
}

// emit freezes the current book state into an engine snapshot, sides
// ordered best-to-worst, and offers it to the consumer.
func (f *BookFeed) emit(ticker string) {
	f.mu.Lock()
	book, ok := f.books[ticker]
	if !ok {
		f.mu.Unlock()
		return
	}
	snapshot := engine.OrderbookSnapshot{
		Ticker: ticker,
		Yes:    sortedLevels(book.yes),
		No:     sortedLevels(book.no),
	}
	f.mu.Unlock()

	select {
	case f.out <- snapshot:
	default:
		// Consumer is behind; the next update supersedes this one anyway.
	}
}

func sortedLevels(side map[int]int) []engine.OrderbookLevel {
	levels := make([]engine.OrderbookLevel, 0, len(side))
	for price, qty := range side {
		levels = append(levels, engine.OrderbookLevel{Price: price, Quantity: qty})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })
	return levels
}
