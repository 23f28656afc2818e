package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/kalshirun/internal/engine"
	"github.com/sawpanic/kalshirun/internal/persistence"
)

// marketsRepo implements MarketRepo on PostgreSQL.
type marketsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewMarketsRepo creates the PostgreSQL markets repository.
func NewMarketsRepo(db *sqlx.DB, timeout time.Duration) persistence.MarketRepo {
	return &marketsRepo{db: db, timeout: timeout}
}

const marketColumns = `ticker, event_ticker, market_type, title, subtitle, status, category, result,
	yes_bid, yes_ask, no_bid, no_ask, last_price, last_price_dollars,
	previous_yes_bid, previous_yes_ask, previous_price,
	volume, volume_24h, liquidity, liquidity_dollars, open_interest,
	open_time, close_time, expiration_time, can_close_early,
	data_hash, score, taker_potential, maker_potential,
	score_orderbook, taker_potential_orderbook, maker_potential_orderbook,
	created_at, updated_at, crawled_at`

// Upsert writes one market row, returning the pre-existing row when there
// was one. created_at survives updates; the deep-scan columns are left
// alone here so a quote upsert never clobbers a concurrent rescore.
func (r *marketsRepo) Upsert(ctx context.Context, rec persistence.MarketRecord) (*persistence.MarketRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin upsert: %w", err)
	}
	defer tx.Rollback()

	var prev persistence.MarketRecord
	prevErr := tx.GetContext(ctx, &prev,
		`SELECT `+marketColumns+` FROM markets WHERE ticker = $1 FOR UPDATE`, rec.Ticker)

	var previous *persistence.MarketRecord
	switch {
	case prevErr == nil:
		previous = &prev
	case errors.Is(prevErr, sql.ErrNoRows):
		previous = nil
	default:
		return nil, fmt.Errorf("failed to read previous market %s: %w", rec.Ticker, prevErr)
	}

	query := `
		INSERT INTO markets (
			ticker, event_ticker, market_type, title, subtitle, status, category, result,
			yes_bid, yes_ask, no_bid, no_ask, last_price, last_price_dollars,
			previous_yes_bid, previous_yes_ask, previous_price,
			volume, volume_24h, liquidity, liquidity_dollars, open_interest,
			open_time, close_time, expiration_time, can_close_early,
			data_hash, score, taker_potential, maker_potential,
			created_at, updated_at, crawled_at
		) VALUES (
			:ticker, :event_ticker, :market_type, :title, :subtitle, :status, :category, :result,
			:yes_bid, :yes_ask, :no_bid, :no_ask, :last_price, :last_price_dollars,
			:previous_yes_bid, :previous_yes_ask, :previous_price,
			:volume, :volume_24h, :liquidity, :liquidity_dollars, :open_interest,
			:open_time, :close_time, :expiration_time, :can_close_early,
			:data_hash, :score, :taker_potential, :maker_potential,
			:created_at, :updated_at, :crawled_at
		)
		ON CONFLICT (ticker) DO UPDATE SET
			event_ticker = EXCLUDED.event_ticker,
			market_type = EXCLUDED.market_type,
			title = EXCLUDED.title,
			subtitle = EXCLUDED.subtitle,
			status = EXCLUDED.status,
			category = EXCLUDED.category,
			result = EXCLUDED.result,
			yes_bid = EXCLUDED.yes_bid,
			yes_ask = EXCLUDED.yes_ask,
			no_bid = EXCLUDED.no_bid,
			no_ask = EXCLUDED.no_ask,
			last_price = EXCLUDED.last_price,
			last_price_dollars = EXCLUDED.last_price_dollars,
			previous_yes_bid = EXCLUDED.previous_yes_bid,
			previous_yes_ask = EXCLUDED.previous_yes_ask,
			previous_price = EXCLUDED.previous_price,
			volume = EXCLUDED.volume,
			volume_24h = EXCLUDED.volume_24h,
			liquidity = EXCLUDED.liquidity,
			liquidity_dollars = EXCLUDED.liquidity_dollars,
			open_interest = EXCLUDED.open_interest,
			open_time = EXCLUDED.open_time,
			close_time = EXCLUDED.close_time,
			expiration_time = EXCLUDED.expiration_time,
			can_close_early = EXCLUDED.can_close_early,
			data_hash = EXCLUDED.data_hash,
			score = EXCLUDED.score,
			taker_potential = EXCLUDED.taker_potential,
			maker_potential = EXCLUDED.maker_potential,
			updated_at = EXCLUDED.updated_at,
			crawled_at = EXCLUDED.crawled_at`

	if _, err := tx.NamedExecContext(ctx, query, rec); err != nil {
		return nil, fmt.Errorf("failed to upsert market %s: %w", rec.Ticker, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit upsert of %s: %w", rec.Ticker, err)
	}

	return previous, nil
}

func (r *marketsRepo) Get(ctx context.Context, ticker string) (*persistence.MarketRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rec persistence.MarketRecord
	err := r.db.GetContext(ctx, &rec,
		`SELECT `+marketColumns+` FROM markets WHERE ticker = $1`, ticker)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market %s: %w", ticker, err)
	}
	return &rec, nil
}

// UpdateOrderbookScores writes only the deep-scan columns. updated_at is
// left alone so a deep scan never reads as a data refresh.
func (r *marketsRepo) UpdateOrderbookScores(ctx context.Context, ticker string, bundle engine.ScoreBundle) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE markets SET
			score_orderbook = $2,
			taker_potential_orderbook = $3,
			maker_potential_orderbook = $4
		WHERE ticker = $1`,
		ticker, bundle.Score, bundle.TakerPotential, bundle.MakerPotential)
	if err != nil {
		return fmt.Errorf("failed to update orderbook scores for %s: %w", ticker, err)
	}

	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("market %s not found", ticker)
	}
	return nil
}

func (r *marketsRepo) TopScored(ctx context.Context, limit int) ([]persistence.MarketRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var recs []persistence.MarketRecord
	err := r.db.SelectContext(ctx, &recs, `
		SELECT `+marketColumns+`
		FROM markets
		WHERE status NOT IN ('closed', 'settled')
		ORDER BY score DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top-scored markets: %w", err)
	}
	return recs, nil
}

func (r *marketsRepo) StaleActiveTickers(ctx context.Context, cutoff time.Time) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var tickers []string
	err := r.db.SelectContext(ctx, &tickers, `
		SELECT ticker
		FROM markets
		WHERE status NOT IN ('closed', 'settled') AND updated_at < $1
		ORDER BY updated_at`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale markets: %w", err)
	}
	return tickers, nil
}

func (r *marketsRepo) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM markets`); err != nil {
		return 0, fmt.Errorf("failed to count markets: %w", err)
	}
	return count, nil
}
