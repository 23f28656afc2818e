// Package events publishes engine lifecycle events (market created,
// updated, closed, settled, crawl completed) to Redis pub/sub and the
// audit table.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sawpanic/kalshirun/internal/persistence"
)

// Event names emitted by the crawler.
const (
	MarketCreated  = "market.created"
	MarketUpdated  = "market.updated"
	MarketClosed   = "market.closed"
	MarketSettled  = "market.settled"
	CrawlCompleted = "crawl.completed"
)

// Channel is the Redis pub/sub channel events go out on.
const Channel = "kalshirun.events"

// RedisPublisher sends events over Redis pub/sub.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Publisher fans engine events out to Redis subscribers and, when an
// event repository is attached, to the audit table. Redis delivery is
// best effort; the audit write is authoritative.
type Publisher struct {
	rdb    redisPublisher
	repo   persistence.EventRepo
	logger zerolog.Logger
}

// NewPublisher wires an event publisher. repo may be nil when audit
// persistence is disabled.
func NewPublisher(rdb *redis.Client, repo persistence.EventRepo, logger zerolog.Logger) *Publisher {
	p := &Publisher{
		repo:   repo,
		logger: logger.With().Str("component", "events").Logger(),
	}
	if rdb != nil {
		p.rdb = rdb
	}
	return p
}

// Publish emits one named event with metadata. The event id is a fresh
// UUID so downstream consumers can deduplicate on redelivery.
func (p *Publisher) Publish(ctx context.Context, name string, metadata map[string]any) error {
	ev := persistence.EngineEvent{
		EventID:   uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Name:      name,
		Metadata:  metadata,
	}

	if p.repo != nil {
		if err := p.repo.Insert(ctx, ev); err != nil {
			return fmt.Errorf("failed to record event %s: %w", name, err)
		}
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", name, err)
	}

	if p.rdb != nil {
		if err := p.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
			// Subscribers are ephemeral; a failed publish is logged, not fatal.
			p.logger.Warn().Err(err).Str("event", name).Msg("pub/sub publish failed")
		}
	}

	p.logger.Debug().Str("event", name).Str("event_id", ev.EventID).Msg("event published")
	return nil
}

// MarketEventName maps a status transition to the event to emit. created
// reports whether this is the first time the market was seen.
func MarketEventName(created bool, prevStatus, currStatus string) string {
	if created {
		return MarketCreated
	}
	if prevStatus != currStatus {
		switch currStatus {
		case "closed":
			return MarketClosed
		case "settled", "finalized":
			return MarketSettled
		}
	}
	return MarketUpdated
}
