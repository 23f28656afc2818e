package kalshi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/kalshirun/internal/engine"
)

func drainOne(t *testing.T, f *BookFeed) engine.OrderbookSnapshot {
	t.Helper()
	select {
	case snap := <-f.Snapshots():
		return snap
	default:
		t.Fatal("expected a snapshot on the channel")
		return engine.OrderbookSnapshot{}
	}
}

func TestBookFeed_SnapshotThenDelta(t *testing.T) {
	f := NewBookFeed("ws://unused", []string{"KX-A"})

	f.handleMessage([]byte(`{
		"type": "orderbook_snapshot",
		"msg": {"market_ticker": "KX-A", "yes": [[45,100],[48,500]], "no": [[52,400]]}
	}`))

	snap := drainOne(t, f)
	assert.Equal(t, "KX-A", snap.Ticker)
	require.Len(t, snap.Yes, 2)
	// Best price first regardless of wire order.
	assert.Equal(t, 48, snap.Yes[0].Price)
	assert.Equal(t, 500, snap.Yes[0].Quantity)
	require.Len(t, snap.No, 1)

	f.handleMessage([]byte(`{
		"type": "orderbook_delta",
		"msg": {"market_ticker": "KX-A", "price": 48, "delta": -200, "side": "yes"}
	}`))

	snap = drainOne(t, f)
	assert.Equal(t, 300, snap.Yes[0].Quantity)
}

func TestBookFeed_DeltaRemovesExhaustedLevel(t *testing.T) {
	f := NewBookFeed("ws://unused", []string{"KX-A"})

	f.handleMessage([]byte(`{
		"type": "orderbook_snapshot",
		"msg": {"market_ticker": "KX-A", "yes": [[48,100]], "no": []}
	}`))
	drainOne(t, f)

	f.handleMessage([]byte(`{
		"type": "orderbook_delta",
		"msg": {"market_ticker": "KX-A", "price": 48, "delta": -100, "side": "yes"}
	}`))

	snap := drainOne(t, f)
	assert.Empty(t, snap.Yes)
}

func TestBookFeed_DeltaBeforeSnapshotIgnored(t *testing.T) {
	f := NewBookFeed("ws://unused", []string{"KX-A"})

	f.handleMessage([]byte(`{
		"type": "orderbook_delta",
		"msg": {"market_ticker": "KX-A", "price": 48, "delta": 100, "side": "yes"}
	}`))

	select {
	case <-f.Snapshots():
		t.Fatal("delta before snapshot must not emit")
	default:
	}
}

func TestBookFeed_InvalidPayloadsIgnored(t *testing.T) {
	f := NewBookFeed("ws://unused", []string{"KX-A"})

	f.handleMessage([]byte(`not json`))
	f.handleMessage([]byte(`{"type": "error", "msg": {"code": 6}}`))
	f.handleMessage([]byte(`{"type": "subscribed"}`))

	select {
	case <-f.Snapshots():
		t.Fatal("no snapshot expected")
	default:
	}
}

func TestBookFeed_TracksMultipleMarkets(t *testing.T) {
	f := NewBookFeed("ws://unused", []string{"KX-A", "KX-B"})

	f.handleMessage([]byte(`{
		"type": "orderbook_snapshot",
		"msg": {"market_ticker": "KX-A", "yes": [[48,100]], "no": []}
	}`))
	f.handleMessage([]byte(`{
		"type": "orderbook_snapshot",
		"msg": {"market_ticker": "KX-B", "yes": [[30,50]], "no": [[65,75]]}
	}`))

	first := drainOne(t, f)
	second := drainOne(t, f)
	assert.Equal(t, "KX-A", first.Ticker)
	assert.Equal(t, "KX-B", second.Ticker)
	require.Len(t, second.No, 1)
	assert.Equal(t, 65, second.No[0].Price)
}
