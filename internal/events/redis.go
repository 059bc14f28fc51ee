// Package events mirrors tracker snapshots and demo events onto Redis so
// other services can follow the dashboard without holding an SSE stream.
//
// Snapshots go to the "<prefix>.snapshots" channel and the latest one is
// also stored under "<prefix>:latest" with a short TTL. Demo events go to
// "<prefix>.demo".
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/star/satdash/internal/tracker"
)

// Config holds Redis publisher settings.
type Config struct {
	Addr      string        // host:port; empty disables publishing
	Password  string
	DB        int
	Prefix    string        // channel/key prefix (default "satdash")
	LatestTTL time.Duration // lifetime of the latest-snapshot key (default 10s)
}

// redisAPI is the subset of redis.Cmdable the publisher uses.
type redisAPI interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Envelope wraps every message published to Redis.
type Envelope struct {
	Type      string    `json:"type"`
	Instance  string    `json:"instance"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Publisher publishes snapshots and demo events to Redis.
type Publisher struct {
	rdb      redisAPI
	closer   func() error
	config   Config
	instance string
	now      func() time.Time
	logger   *slog.Logger
}

// NewPublisher connects to Redis and verifies the connection with PING.
func NewPublisher(ctx context.Context, config Config, instance string, logger *slog.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", config.Addr, err)
	}
	p := newPublisher(client, config, instance, logger)
	p.closer = client.Close
	return p, nil
}

func newPublisher(rdb redisAPI, config Config, instance string, logger *slog.Logger) *Publisher {
	if config.Prefix == "" {
		config.Prefix = "satdash"
	}
	if config.LatestTTL <= 0 {
		config.LatestTTL = 10 * time.Second
	}
	return &Publisher{
		rdb:      rdb,
		config:   config,
		instance: instance,
		now:      time.Now,
		logger:   logger,
	}
}

// SnapshotChannel is the channel carrying tracker snapshots.
func (p *Publisher) SnapshotChannel() string { return p.config.Prefix + ".snapshots" }

// DemoChannel is the channel carrying demo events.
func (p *Publisher) DemoChannel() string { return p.config.Prefix + ".demo" }

// LatestKey holds the most recent snapshot.
func (p *Publisher) LatestKey() string { return p.config.Prefix + ":latest" }

// Name identifies the publisher as a tracker sink.
func (p *Publisher) Name() string { return "redis" }

// Publish sends a snapshot to the snapshot channel and refreshes the latest key.
func (p *Publisher) Publish(ctx context.Context, snap *tracker.Snapshot) error {
	payload, err := p.encode("snapshot", snap)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.SnapshotChannel(), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.SnapshotChannel(), err)
	}
	if err := p.rdb.Set(ctx, p.LatestKey(), payload, p.config.LatestTTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", p.LatestKey(), err)
	}
	return nil
}

// PublishEvent sends a demo event. Failures are logged, not returned, so
// demo playback never depends on Redis.
func (p *Publisher) PublishEvent(ctx context.Context, eventType string, data any) {
	payload, err := p.encode(eventType, data)
	if err != nil {
		p.logger.Warn("redis event encode failed", "type", eventType, "error", err)
		return
	}
	if err := p.rdb.Publish(ctx, p.DemoChannel(), payload).Err(); err != nil {
		p.logger.Warn("redis event publish failed", "type", eventType, "error", err)
	}
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

func (p *Publisher) encode(eventType string, data any) ([]byte, error) {
	b, err := json.Marshal(Envelope{
		Type:      eventType,
		Instance:  p.instance,
		Timestamp: p.now().UTC(),
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return b, nil
}
