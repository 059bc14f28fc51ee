package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/star/satdash/internal/metrics"
	"github.com/star/satdash/internal/orbit"
	"github.com/star/satdash/internal/tracker"
)

// Message types pushed to dashboard clients.
const (
	TypeMetadata  = "metadata"
	TypeSnapshot  = "snapshot"
	TypeDemoStep  = "demo_step"
	TypeDemoState = "demo_state"
	TypeDemoError = "demo_error"
	TypeZones     = "zones"
)

// Message is one SSE payload: {"type": ..., "data": ...}.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// subscriber receives encoded messages. Sends never block; a full buffer
// drops the message for that subscriber only.
type subscriber struct {
	ch chan []byte
}

// Hub fans encoded messages out to every connected stream.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	buffer int
	logger *slog.Logger

	trails func() map[string][]tracker.TrailPoint
}

// NewHub creates a hub with a per-subscriber buffer of the given size.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[*subscriber]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

func (h *Hub) subscribe() *subscriber {
	s := &subscriber{ch: make(chan []byte, h.buffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// SetTrailSource makes snapshot broadcasts carry each satellite's trail.
func (h *Hub) SetTrailSource(fn func() map[string][]tracker.TrailPoint) {
	h.mu.Lock()
	h.trails = fn
	h.mu.Unlock()
}

// Subscribers returns the number of connected streams.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast encodes msg once and queues it for every subscriber.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		metrics.IncStreamErrors("marshal_error")
		h.logger.Warn("stream marshal error", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.ch <- data:
		default:
			metrics.IncStreamErrors("slow_client")
		}
	}
}

// Name identifies the hub as a tracker sink.
func (h *Hub) Name() string { return "sse" }

// Publish broadcasts a tracker snapshot.
func (h *Hub) Publish(_ context.Context, snap *tracker.Snapshot) error {
	h.mu.RLock()
	fn := h.trails
	h.mu.RUnlock()

	var trails map[string][]tracker.TrailPoint
	if fn != nil {
		trails = fn()
	}
	h.Broadcast(SnapshotMessage(snap, trails))
	return nil
}

// SnapshotPayload is the wire form of a tracker snapshot.
type SnapshotPayload struct {
	Seq       uint64                          `json:"seq"`
	Timestamp time.Time                       `json:"timestamp"`
	Positions []orbit.Position                `json:"positions"`
	Trails    map[string][]tracker.TrailPoint `json:"trails,omitempty"`
}

// SnapshotMessage wraps a snapshot and optional trails for the wire.
func SnapshotMessage(snap *tracker.Snapshot, trails map[string][]tracker.TrailPoint) Message {
	return Message{Type: TypeSnapshot, Data: SnapshotPayload{
		Seq:       snap.Seq,
		Timestamp: snap.Timestamp,
		Positions: snap.Positions,
		Trails:    trails,
	}}
}
