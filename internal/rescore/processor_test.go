package rescore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/kalshirun/internal/engine"
	"github.com/sawpanic/kalshirun/internal/persistence"
)

type fakeBooks struct {
	book engine.OrderbookSnapshot
	err  error

	gotTicker string
	gotDepth  int
}

func (f *fakeBooks) Orderbook(_ context.Context, ticker string, depth int) (engine.OrderbookSnapshot, error) {
	f.gotTicker = ticker
	f.gotDepth = depth
	return f.book, f.err
}

type fakeMarkets struct {
	persistence.MarketRepo

	scoreTicker string
	scoreBundle engine.ScoreBundle
	scoreErr    error
}

func (f *fakeMarkets) UpdateOrderbookScores(_ context.Context, ticker string, bundle engine.ScoreBundle) error {
	f.scoreTicker = ticker
	f.scoreBundle = bundle
	return f.scoreErr
}

type fakeOrderbooks struct {
	persistence.OrderbookRepo

	upserted *persistence.OrderbookRecord
	err      error
}

func (f *fakeOrderbooks) Upsert(_ context.Context, rec persistence.OrderbookRecord) error {
	f.upserted = &rec
	return f.err
}

type fakeInvalidator struct {
	dropped []string
	err     error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, ticker string) error {
	f.dropped = append(f.dropped, ticker)
	return f.err
}

func testRecord() persistence.MarketRecord {
	updated := time.Now().UTC()
	return persistence.MarketRecord{
		Ticker:    "KX-TEST",
		YesBid:    47,
		YesAsk:    49,
		Score:     0.3,
		CloseTime: time.Now().Add(3 * time.Hour),
		UpdatedAt: updated,
	}
}

func TestProcessor_Process(t *testing.T) {
	books := &fakeBooks{book: engine.OrderbookSnapshot{
		Ticker: "KX-TEST",
		Yes:    []engine.OrderbookLevel{{Price: 48, Quantity: 500}, {Price: 47, Quantity: 300}},
		No:     []engine.OrderbookLevel{{Price: 52, Quantity: 400}},
	}}
	markets := &fakeMarkets{}
	scans := &fakeOrderbooks{}
	repo := persistence.Repository{Markets: markets, Orderbooks: scans}

	p := NewProcessor(books, repo, nil, engine.DefaultScoringConfig(), 3, zerolog.Nop())
	bundle, err := p.Process(context.Background(), testRecord())
	require.NoError(t, err)

	assert.Equal(t, "KX-TEST", books.gotTicker)
	assert.Equal(t, 3, books.gotDepth)

	require.NotNil(t, scans.upserted)
	assert.Equal(t, "KX-TEST", scans.upserted.Ticker)
	assert.Len(t, scans.upserted.Yes, 2)
	assert.Equal(t, bundle.Score, scans.upserted.Score)
	require.NotNil(t, scans.upserted.Metrics.BestYesBid)
	assert.Equal(t, 48, *scans.upserted.Metrics.BestYesBid)

	assert.Equal(t, "KX-TEST", markets.scoreTicker)
	assert.Equal(t, bundle, markets.scoreBundle)
	assert.Greater(t, bundle.Score, 0.0)
}

func TestProcessor_Process_EmptyBookScoresZero(t *testing.T) {
	books := &fakeBooks{book: engine.OrderbookSnapshot{Ticker: "KX-TEST"}}
	markets := &fakeMarkets{}
	scans := &fakeOrderbooks{}
	repo := persistence.Repository{Markets: markets, Orderbooks: scans}

	p := NewProcessor(books, repo, nil, engine.DefaultScoringConfig(), 0, zerolog.Nop())
	bundle, err := p.Process(context.Background(), testRecord())
	require.NoError(t, err)

	assert.Zero(t, bundle.TakerPotential)
	assert.Zero(t, bundle.MakerPotential)
	assert.Zero(t, bundle.Score)
	require.NotNil(t, scans.upserted)
}

func TestProcessor_Process_DropsCachedRows(t *testing.T) {
	books := &fakeBooks{book: engine.OrderbookSnapshot{
		Ticker: "KX-TEST",
		Yes:    []engine.OrderbookLevel{{Price: 48, Quantity: 500}},
	}}
	markets := &fakeMarkets{}
	scans := &fakeOrderbooks{}
	repo := persistence.Repository{Markets: markets, Orderbooks: scans}
	hot := &fakeInvalidator{}

	p := NewProcessor(books, repo, hot, engine.DefaultScoringConfig(), 0, zerolog.Nop())
	_, err := p.Process(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, []string{"KX-TEST"}, hot.dropped)

	// Invalidation failures are logged, never surfaced.
	hot.err = errors.New("redis down")
	_, err = p.Process(context.Background(), testRecord())
	require.NoError(t, err)
}

func TestProcessor_Process_FetchError(t *testing.T) {
	books := &fakeBooks{err: errors.New("exchange down")}
	markets := &fakeMarkets{}
	scans := &fakeOrderbooks{}
	repo := persistence.Repository{Markets: markets, Orderbooks: scans}

	p := NewProcessor(books, repo, nil, engine.DefaultScoringConfig(), 0, zerolog.Nop())
	_, err := p.Process(context.Background(), testRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange down")
	assert.Nil(t, scans.upserted)
	assert.Empty(t, markets.scoreTicker)
}

func TestProcessor_Process_PersistError(t *testing.T) {
	books := &fakeBooks{book: engine.OrderbookSnapshot{Ticker: "KX-TEST"}}
	markets := &fakeMarkets{}
	scans := &fakeOrderbooks{err: errors.New("db unavailable")}
	repo := persistence.Repository{Markets: markets, Orderbooks: scans}

	p := NewProcessor(books, repo, nil, engine.DefaultScoringConfig(), 0, zerolog.Nop())
	_, err := p.Process(context.Background(), testRecord())
	require.Error(t, err)
	assert.Empty(t, markets.scoreTicker)
}
