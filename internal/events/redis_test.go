package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/satdash/internal/orbit"
	"github.com/star/satdash/internal/tracker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type published struct {
	channel string
	payload []byte
}

type setCall struct {
	key     string
	payload []byte
	ttl     time.Duration
}

type fakeRedis struct {
	published []published
	sets      []setCall
	err       error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.published = append(f.published, published{channel, message.([]byte)})
	cmd.SetVal(1)
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.sets = append(f.sets, setCall{key, value.([]byte), expiration})
	cmd.SetVal("OK")
	return cmd
}

var fixedNow = time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC)

func newTestPublisher(f *fakeRedis, cfg Config) *Publisher {
	p := newPublisher(f, cfg, "satdash-test", testLogger())
	p.now = func() time.Time { return fixedNow }
	return p
}

func TestPublishSnapshot(t *testing.T) {
	f := &fakeRedis{}
	p := newTestPublisher(f, Config{})

	snap := &tracker.Snapshot{
		Seq:       3,
		Timestamp: fixedNow,
		Positions: []orbit.Position{{SatelliteID: "sat-1", Lat: 10, Lng: 20}},
	}
	require.NoError(t, p.Publish(context.Background(), snap))

	require.Len(t, f.published, 1)
	assert.Equal(t, "satdash.snapshots", f.published[0].channel)

	var env struct {
		Type      string           `json:"type"`
		Instance  string           `json:"instance"`
		Timestamp time.Time        `json:"timestamp"`
		Data      tracker.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(f.published[0].payload, &env))
	assert.Equal(t, "snapshot", env.Type)
	assert.Equal(t, "satdash-test", env.Instance)
	assert.True(t, env.Timestamp.Equal(fixedNow))
	assert.Equal(t, uint64(3), env.Data.Seq)
	require.Len(t, env.Data.Positions, 1)
	assert.Equal(t, "sat-1", env.Data.Positions[0].SatelliteID)

	require.Len(t, f.sets, 1)
	assert.Equal(t, "satdash:latest", f.sets[0].key)
	assert.Equal(t, 10*time.Second, f.sets[0].ttl)
	assert.Equal(t, f.published[0].payload, f.sets[0].payload)
}

func TestPublishSnapshotError(t *testing.T) {
	f := &fakeRedis{err: errors.New("connection refused")}
	p := newTestPublisher(f, Config{Prefix: "dash"})

	err := p.Publish(context.Background(), &tracker.Snapshot{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dash.snapshots")
}

func TestPublishEvent(t *testing.T) {
	f := &fakeRedis{}
	p := newTestPublisher(f, Config{Prefix: "ops", LatestTTL: time.Minute})

	p.PublishEvent(context.Background(), "demo_step", map[string]any{"index": 2})
	require.Len(t, f.published, 1)
	assert.Equal(t, "ops.demo", f.published[0].channel)
	assert.JSONEq(t,
		`{"type":"demo_step","instance":"satdash-test","timestamp":"2026-07-15T10:00:00Z","data":{"index":2}}`,
		string(f.published[0].payload))

	// Errors are swallowed.
	f.err = errors.New("down")
	p.PublishEvent(context.Background(), "demo_error", nil)
	assert.Len(t, f.published, 1)
}

func TestNewPublisherUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := NewPublisher(ctx, Config{Addr: "127.0.0.1:1"}, "x", testLogger())
	assert.Error(t, err)
}
