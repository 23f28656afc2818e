// Package postgres implements the persistence interfaces on PostgreSQL
// via sqlx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS markets (
	ticker                    TEXT PRIMARY KEY,
	event_ticker              TEXT NOT NULL,
	market_type               TEXT NOT NULL DEFAULT 'binary',
	title                     TEXT NOT NULL DEFAULT '',
	subtitle                  TEXT NOT NULL DEFAULT '',
	status                    TEXT NOT NULL,
	category                  TEXT NOT NULL DEFAULT '',
	result                    TEXT NOT NULL DEFAULT '',
	yes_bid                   INTEGER NOT NULL DEFAULT 0,
	yes_ask                   INTEGER NOT NULL DEFAULT 0,
	no_bid                    INTEGER NOT NULL DEFAULT 0,
	no_ask                    INTEGER NOT NULL DEFAULT 0,
	last_price                INTEGER NOT NULL DEFAULT 0,
	last_price_dollars        TEXT NOT NULL DEFAULT '',
	previous_yes_bid          INTEGER NOT NULL DEFAULT 0,
	previous_yes_ask          INTEGER NOT NULL DEFAULT 0,
	previous_price            INTEGER NOT NULL DEFAULT 0,
	volume                    BIGINT NOT NULL DEFAULT 0,
	volume_24h                BIGINT NOT NULL DEFAULT 0,
	liquidity                 BIGINT NOT NULL DEFAULT 0,
	liquidity_dollars         TEXT NOT NULL DEFAULT '',
	open_interest             BIGINT NOT NULL DEFAULT 0,
	open_time                 TIMESTAMPTZ NOT NULL,
	close_time                TIMESTAMPTZ NOT NULL,
	expiration_time           TIMESTAMPTZ NOT NULL,
	can_close_early           BOOLEAN NOT NULL DEFAULT FALSE,
	data_hash                 TEXT NOT NULL,
	score                     DOUBLE PRECISION NOT NULL DEFAULT 0,
	taker_potential           DOUBLE PRECISION NOT NULL DEFAULT 0,
	maker_potential           DOUBLE PRECISION NOT NULL DEFAULT 0,
	score_orderbook           DOUBLE PRECISION,
	taker_potential_orderbook DOUBLE PRECISION,
	maker_potential_orderbook DOUBLE PRECISION,
	created_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
	crawled_at                TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_markets_status ON markets (status);
CREATE INDEX IF NOT EXISTS idx_markets_score ON markets (score DESC);
CREATE INDEX IF NOT EXISTS idx_markets_updated_at ON markets (updated_at);
CREATE INDEX IF NOT EXISTS idx_markets_close_time ON markets (close_time);

CREATE TABLE IF NOT EXISTS orderbooks (
	ticker          TEXT PRIMARY KEY,
	yes_levels      JSONB NOT NULL,
	no_levels       JSONB NOT NULL,
	metrics         JSONB NOT NULL,
	score           DOUBLE PRECISION NOT NULL,
	taker_potential DOUBLE PRECISION NOT NULL,
	maker_potential DOUBLE PRECISION NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_orderbooks_score ON orderbooks (score DESC);

CREATE TABLE IF NOT EXISTS engine_events (
	event_id       TEXT PRIMARY KEY,
	ts             TIMESTAMPTZ NOT NULL,
	event_name     TEXT NOT NULL,
	event_metadata JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE INDEX IF NOT EXISTS idx_engine_events_ts ON engine_events (ts DESC);
CREATE INDEX IF NOT EXISTS idx_engine_events_name ON engine_events (event_name);
`

// EnsureSchema creates the tables and indexes when they do not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Connect opens a pooled connection and verifies it.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}
