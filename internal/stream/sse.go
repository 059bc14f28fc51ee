// Package stream pushes dashboard updates to browsers over Server-Sent Events.
// Clients connect via GET /api/stream and receive every tracker snapshot and
// demo event the Hub broadcasts.
//
// SSE message format:
//
//	data: {"type":"snapshot","data":{"seq":12,"timestamp":"...","positions":[...]}}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","data":{"server_time":"...","subscribers":3}}\n\n
//
// then whatever the InitialFunc supplies. Idle connections get a ":" comment
// every KeepaliveInterval. Clients that fall behind lose messages rather than
// stalling the broadcaster; the next snapshot supersedes what they missed.
package stream

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/star/satdash/internal/httputil"
	"github.com/star/satdash/internal/metrics"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Max concurrent streams overall (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Read the client IP from proxy headers.
}

// InitialFunc returns the messages sent right after metadata, typically the
// latest snapshot, zones and demo state.
type InitialFunc func() []Message

// Handler serves GET /api/stream.
type Handler struct {
	hub     *Hub
	initial InitialFunc
	config  Config
	gate    *connGate
	logger  *slog.Logger
}

// NewHandler creates a streaming handler fed by hub.
func NewHandler(hub *Hub, config Config, initial InitialFunc, logger *slog.Logger) *Handler {
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		hub:     hub,
		initial: initial,
		config:  config,
		gate:    newConnGate(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
	}
}

type metadataPayload struct {
	ServerTime  time.Time `json:"server_time"`
	Subscribers int       `json:"subscribers"`
}

func (h *Handler) reject(w http.ResponseWriter, ip string, err error) {
	reason := "rate_limit"
	if errors.Is(err, errGlobalLimit) {
		reason = "capacity"
	}
	metrics.IncStreamErrors(reason)
	forIP, total := h.gate.inUse(ip)
	h.logger.Warn("stream rejected", "remote_ip", ip, "reason", reason, "ip_streams", forIP, "total_streams", total)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "30")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	release, err := h.gate.admit(ip)
	if err != nil {
		h.reject(w, ip, err)
		return
	}
	defer release()

	if _, ok := w.(http.Flusher); !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "streaming not supported"})
		return
	}

	// Subscribe before the initial state so nothing broadcast in between
	// is lost.
	sub := h.hub.subscribe()
	defer h.hub.unsubscribe(sub)

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()
	c := newConn(w, ip, h.logger)
	started := time.Now()
	h.logger.Info("stream connected", "remote_ip", ip, "user_agent", r.Header.Get("User-Agent"))
	defer func() {
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(started).Seconds()),
			"frames", c.frames,
			"bytes", c.bytes,
		)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// The server WriteTimeout would otherwise cut the stream; each frame
	// sets its own deadline instead.
	if err := c.rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	// Spread reconnects over 3-7s after a restart.
	opening := []Message{{Type: TypeMetadata, Data: metadataPayload{
		ServerTime:  time.Now().UTC(),
		Subscribers: h.hub.Subscribers(),
	}}}
	if h.initial != nil {
		opening = append(opening, h.initial()...)
	}
	if err := c.retry(time.Duration(3000+rand.IntN(4000)) * time.Millisecond); err != nil {
		h.sendFailed(ip, err)
		return
	}
	for _, msg := range opening {
		if err := c.event(msg); err != nil {
			h.sendFailed(ip, err)
			return
		}
	}

	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-sub.ch:
			if err := c.data(data); err != nil {
				h.sendFailed(ip, err)
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)
		case <-keepalive.C:
			if err := c.keepalive(); err != nil {
				h.sendFailed(ip, err)
				return
			}
		}
	}
}

func (h *Handler) sendFailed(ip string, err error) {
	metrics.IncStreamErrors("send_error")
	h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
}
