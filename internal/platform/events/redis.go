// Package events publishes lifecycle events on a Redis channel so other
// services can react to record integrations without polling the database.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gip-inclusion/employee-records/internal/platform/config"
	"github.com/redis/go-redis/v9"
)

// Publisher pushes JSON envelopes on one Redis pub/sub channel.
type Publisher struct {
	client  *redis.Client
	channel string
}

// envelope is the wire form of a published event.
type envelope struct {
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// NewPublisher connects to Redis and verifies the connection. Returns nil
// when no address is configured, which callers treat as publishing
// disabled.
func NewPublisher(ctx context.Context, cfg config.RedisConfig) (*Publisher, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("events: ping redis: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = "employee_records.events"
	}
	return &Publisher{client: client, channel: channel}, nil
}

// Publish sends one event. A nil Publisher is a no-op.
func (p *Publisher) Publish(ctx context.Context, event string, payload any) error {
	if p == nil {
		return nil
	}

	body, err := json.Marshal(envelope{
		Event:      event,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", event, err)
	}

	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("events: publish %s: %w", event, err)
	}
	return nil
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}
