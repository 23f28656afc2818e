package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/kalshirun/internal/persistence"
)

// orderbooksRepo implements OrderbookRepo on PostgreSQL. Ladders and
// derived metrics are stored as JSONB; scores get their own columns so
// they stay queryable.
type orderbooksRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewOrderbooksRepo creates the PostgreSQL orderbooks repository.
func NewOrderbooksRepo(db *sqlx.DB, timeout time.Duration) persistence.OrderbookRepo {
	return &orderbooksRepo{db: db, timeout: timeout}
}

func (r *orderbooksRepo) Upsert(ctx context.Context, rec persistence.OrderbookRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	yesJSON, err := json.Marshal(rec.Yes)
	if err != nil {
		return fmt.Errorf("failed to marshal yes ladder for %s: %w", rec.Ticker, err)
	}
	noJSON, err := json.Marshal(rec.No)
	if err != nil {
		return fmt.Errorf("failed to marshal no ladder for %s: %w", rec.Ticker, err)
	}
	metricsJSON, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics for %s: %w", rec.Ticker, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orderbooks (
			ticker, yes_levels, no_levels, metrics,
			score, taker_potential, maker_potential,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (ticker) DO UPDATE SET
			yes_levels = EXCLUDED.yes_levels,
			no_levels = EXCLUDED.no_levels,
			metrics = EXCLUDED.metrics,
			score = EXCLUDED.score,
			taker_potential = EXCLUDED.taker_potential,
			maker_potential = EXCLUDED.maker_potential,
			updated_at = now()`,
		rec.Ticker, yesJSON, noJSON, metricsJSON,
		rec.Score, rec.TakerPotential, rec.MakerPotential)
	if err != nil {
		return fmt.Errorf("failed to upsert orderbook for %s: %w", rec.Ticker, err)
	}
	return nil
}

func (r *orderbooksRepo) Get(ctx context.Context, ticker string) (*persistence.OrderbookRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row struct {
		Ticker         string    `db:"ticker"`
		YesLevels      []byte    `db:"yes_levels"`
		NoLevels       []byte    `db:"no_levels"`
		Metrics        []byte    `db:"metrics"`
		Score          float64   `db:"score"`
		TakerPotential float64   `db:"taker_potential"`
		MakerPotential float64   `db:"maker_potential"`
		CreatedAt      time.Time `db:"created_at"`
		UpdatedAt      time.Time `db:"updated_at"`
	}

	err := r.db.GetContext(ctx, &row, `
		SELECT ticker, yes_levels, no_levels, metrics,
		       score, taker_potential, maker_potential,
		       created_at, updated_at
		FROM orderbooks WHERE ticker = $1`, ticker)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get orderbook for %s: %w", ticker, err)
	}

	rec := persistence.OrderbookRecord{
		Ticker:         row.Ticker,
		Score:          row.Score,
		TakerPotential: row.TakerPotential,
		MakerPotential: row.MakerPotential,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if err := json.Unmarshal(row.YesLevels, &rec.Yes); err != nil {
		return nil, fmt.Errorf("failed to decode yes ladder for %s: %w", ticker, err)
	}
	if err := json.Unmarshal(row.NoLevels, &rec.No); err != nil {
		return nil, fmt.Errorf("failed to decode no ladder for %s: %w", ticker, err)
	}
	if err := json.Unmarshal(row.Metrics, &rec.Metrics); err != nil {
		return nil, fmt.Errorf("failed to decode metrics for %s: %w", ticker, err)
	}
	return &rec, nil
}
