package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/kalshirun/internal/persistence"
)

// eventsRepo implements EventRepo on PostgreSQL.
type eventsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewEventsRepo creates the PostgreSQL events repository.
func NewEventsRepo(db *sqlx.DB, timeout time.Duration) persistence.EventRepo {
	return &eventsRepo{db: db, timeout: timeout}
}

func (r *eventsRepo) Insert(ctx context.Context, ev persistence.EngineEvent) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	metadata := ev.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO engine_events (event_id, ts, event_name, event_metadata)
		VALUES ($1, $2, $3, $4)`,
		ev.EventID, ev.Timestamp, ev.Name, metadataJSON)
	if err != nil {
		// Duplicate event ids happen on redelivery; treat as already stored.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil
		}
		return fmt.Errorf("failed to insert event %s: %w", ev.EventID, err)
	}
	return nil
}

func (r *eventsRepo) ListRecent(ctx context.Context, limit int) ([]persistence.EngineEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT event_id, ts, event_name, event_metadata
		FROM engine_events
		ORDER BY ts DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []persistence.EngineEvent
	for rows.Next() {
		var (
			ev           persistence.EngineEvent
			metadataJSON []byte
		)
		if err := rows.Scan(&ev.EventID, &ev.Timestamp, &ev.Name, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &ev.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode event metadata: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event rows: %w", err)
	}
	return events, nil
}
