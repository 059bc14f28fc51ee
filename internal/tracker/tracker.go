// Package tracker runs the periodic position update loop.
//
// Every interval the tracker recomputes the position of each active satellite
// through a position cache and publishes a new snapshot when any satellite
// moved more than the change threshold since the last published snapshot, or
// when the set of tracked satellites changed.
package tracker

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/star/satdash/internal/metrics"
	"github.com/star/satdash/internal/orbit"
)

// Config holds tracker configuration loaded from environment variables.
type Config struct {
	Interval     time.Duration // Update interval (default: 1s)
	ThresholdDeg float64       // Minimum lat/lng change to publish (default: 0.01)
	TrailLength  int           // Points kept per satellite trail (default: 30)
}

// DefaultConfig returns the standard loop settings.
func DefaultConfig() Config {
	return Config{
		Interval:     time.Second,
		ThresholdDeg: 0.01,
		TrailLength:  30,
	}
}

// Source supplies the satellites to track.
type Source interface {
	Active() []orbit.Satellite
}

// Sink receives every published snapshot.
type Sink interface {
	Name() string
	Publish(ctx context.Context, snap *Snapshot) error
}

// Snapshot is one published set of positions.
type Snapshot struct {
	Seq       uint64           `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
	Positions []orbit.Position `json:"positions"`
}

// TrailPoint is one past position on a satellite's trail.
type TrailPoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracker owns the position cache and the latest published snapshot.
// Safe for concurrent use; Tick calls are serialized.
type Tracker struct {
	config Config
	source Source
	cache  *orbit.PositionCache
	logger *slog.Logger
	now    func() time.Time
	tracer trace.Tracer

	latest atomic.Pointer[Snapshot]

	tickMu sync.Mutex
	sinks  []Sink

	trailMu sync.RWMutex
	trails  map[string][]TrailPoint
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the clock used to timestamp ticks.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithSinks registers snapshot subscribers.
func WithSinks(sinks ...Sink) Option {
	return func(t *Tracker) { t.sinks = append(t.sinks, sinks...) }
}

// New creates a tracker. The cache is owned by the tracker from here on.
func New(config Config, source Source, cache *orbit.PositionCache, logger *slog.Logger, opts ...Option) *Tracker {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.ThresholdDeg <= 0 {
		config.ThresholdDeg = def.ThresholdDeg
	}
	if config.TrailLength <= 0 {
		config.TrailLength = def.TrailLength
	}
	if cache == nil {
		cache = orbit.NewPositionCache(orbit.DefaultCacheTTL)
	}

	t := &Tracker{
		config: config,
		source: source,
		cache:  cache,
		logger: logger,
		now:    time.Now,
		tracer: otel.Tracer("satdash/tracker"),
		trails: make(map[string][]TrailPoint),
	}
	for _, opt := range opts {
		opt(t)
	}

	logger.Info("tracker initialized",
		"interval_ms", config.Interval.Milliseconds(),
		"threshold_deg", config.ThresholdDeg,
		"trail_length", config.TrailLength,
		"sinks", len(t.sinks),
	)
	return t
}

// AddSink registers a snapshot subscriber.
func (t *Tracker) AddSink(s Sink) {
	t.tickMu.Lock()
	t.sinks = append(t.sinks, s)
	t.tickMu.Unlock()
}

// Run ticks immediately and then every interval until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	t.Tick(ctx)

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracker stopped")
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

// Tick recomputes every active satellite's position and publishes a snapshot
// if the change threshold was crossed. It reports whether it published.
func (t *Tracker) Tick(ctx context.Context) bool {
	t.tickMu.Lock()
	defer t.tickMu.Unlock()

	ctx, span := t.tracer.Start(ctx, "tracker.tick")
	defer span.End()

	start := time.Now()
	now := t.now().UTC()

	prev := t.latest.Load()
	if prev != nil && now.Before(prev.Timestamp) {
		// Wall clock stepped backwards; published timestamps never do.
		now = prev.Timestamp
	}

	sats := t.source.Active()
	positions := make([]orbit.Position, len(sats))
	for i, s := range sats {
		positions[i] = t.cache.Position(now, s)
	}
	metrics.SetSatellitesTracked(len(sats))

	if !t.changed(prev, positions) {
		metrics.RecordTick(time.Since(start), false)
		span.SetAttributes(attribute.Bool("published", false))
		return false
	}

	var seq uint64 = 1
	if prev != nil {
		seq = prev.Seq + 1
	}
	snap := &Snapshot{Seq: seq, Timestamp: now, Positions: positions}
	t.latest.Store(snap)
	t.recordTrails(snap)

	for _, sink := range t.sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			t.logger.Warn("snapshot sink failed", "sink", sink.Name(), "seq", seq, "error", err)
			metrics.IncSinkErrors(sink.Name())
		}
	}

	metrics.RecordTick(time.Since(start), true)
	span.SetAttributes(
		attribute.Bool("published", true),
		attribute.Int64("seq", int64(seq)),
		attribute.Int("satellites", len(positions)),
	)
	t.logger.Debug("snapshot published", "seq", seq, "satellites", len(positions))
	return true
}

// changed reports whether positions differ from prev by more than the
// threshold, or track a different set of satellites.
func (t *Tracker) changed(prev *Snapshot, positions []orbit.Position) bool {
	if prev == nil || len(prev.Positions) != len(positions) {
		return true
	}
	for i, p := range positions {
		old := prev.Positions[i]
		if old.SatelliteID != p.SatelliteID {
			return true
		}
		if math.Abs(p.Lat-old.Lat) > t.config.ThresholdDeg || lngDelta(p.Lng, old.Lng) > t.config.ThresholdDeg {
			return true
		}
	}
	return false
}

// lngDelta is the absolute longitude difference across the antimeridian.
func lngDelta(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > 180 {
		d = 360 - d
	}
	return d
}

func (t *Tracker) recordTrails(snap *Snapshot) {
	t.trailMu.Lock()
	defer t.trailMu.Unlock()

	live := make(map[string]bool, len(snap.Positions))
	for _, p := range snap.Positions {
		live[p.SatelliteID] = true
		trail := append(t.trails[p.SatelliteID], TrailPoint{Lat: p.Lat, Lng: p.Lng, Timestamp: p.Timestamp})
		if len(trail) > t.config.TrailLength {
			trail = trail[len(trail)-t.config.TrailLength:]
		}
		t.trails[p.SatelliteID] = trail
	}
	for id := range t.trails {
		if !live[id] {
			delete(t.trails, id)
		}
	}
}

// Latest returns the most recently published snapshot, or nil before the
// first tick.
func (t *Tracker) Latest() *Snapshot {
	return t.latest.Load()
}

// Position returns the latest published position of one satellite.
func (t *Tracker) Position(id string) (orbit.Position, bool) {
	snap := t.latest.Load()
	if snap == nil {
		return orbit.Position{}, false
	}
	for _, p := range snap.Positions {
		if p.SatelliteID == id {
			return p, true
		}
	}
	return orbit.Position{}, false
}

// PositionAt computes a position through the tracker's cache without
// publishing it.
func (t *Tracker) PositionAt(at time.Time, s orbit.Satellite) orbit.Position {
	return t.cache.Position(at, s)
}

// Trails returns a copy of every satellite's trail, oldest point first.
func (t *Tracker) Trails() map[string][]TrailPoint {
	t.trailMu.RLock()
	defer t.trailMu.RUnlock()

	out := make(map[string][]TrailPoint, len(t.trails))
	for id, trail := range t.trails {
		out[id] = append([]TrailPoint(nil), trail...)
	}
	return out
}

// CacheStats returns the position cache counters.
func (t *Tracker) CacheStats() orbit.CacheStats {
	return t.cache.Stats()
}

// Config returns the tracker configuration.
func (t *Tracker) Config() Config {
	return t.config
}
