package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/star/satdash/internal/orbit"
	"github.com/star/satdash/internal/tracker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func testSnapshot() *tracker.Snapshot {
	ts := time.Date(2026, 2, 6, 4, 0, 0, 0, time.UTC)
	return &tracker.Snapshot{
		Seq:       7,
		Timestamp: ts,
		Positions: []orbit.Position{
			{SatelliteID: "sat-1", Lat: 12.5, Lng: 77.25, AltitudeKm: 408, VelocityKmS: 7.66, Timestamp: ts},
		},
	}
}

// parseDataLines returns the decoded JSON of every "data: " line in body.
func parseDataLines(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			t.Errorf("invalid JSON in SSE data line: %v", err)
			continue
		}
		out = append(out, msg)
	}
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSnapshotMessageJSON(t *testing.T) {
	trails := map[string][]tracker.TrailPoint{
		"sat-1": {{Lat: 12, Lng: 77, Timestamp: time.Date(2026, 2, 6, 3, 59, 59, 0, time.UTC)}},
	}
	data, err := json.Marshal(SnapshotMessage(testSnapshot(), trails))
	if err != nil {
		t.Fatal(err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed["type"] != TypeSnapshot {
		t.Errorf("type = %v, want %s", parsed["type"], TypeSnapshot)
	}
	payload := parsed["data"].(map[string]any)
	if payload["seq"].(float64) != 7 {
		t.Errorf("seq = %v, want 7", payload["seq"])
	}
	positions := payload["positions"].([]any)
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}
	if id := positions[0].(map[string]any)["satellite_id"]; id != "sat-1" {
		t.Errorf("satellite_id = %v, want sat-1", id)
	}
	if _, ok := payload["trails"].(map[string]any)["sat-1"]; !ok {
		t.Error("trails missing sat-1")
	}

	// Trails are omitted when absent.
	data, _ = json.Marshal(SnapshotMessage(testSnapshot(), nil))
	if strings.Contains(string(data), "trails") {
		t.Errorf("unexpected trails in %s", data)
	}
}

func TestHubFanout(t *testing.T) {
	hub := NewHub(4, testLogger())
	a, b := hub.subscribe(), hub.subscribe()
	if n := hub.Subscribers(); n != 2 {
		t.Fatalf("subscribers = %d, want 2", n)
	}

	if err := hub.Publish(context.Background(), testSnapshot()); err != nil {
		t.Fatal(err)
	}
	for _, s := range []*subscriber{a, b} {
		select {
		case data := <-s.ch:
			if !strings.Contains(string(data), `"type":"snapshot"`) {
				t.Errorf("unexpected message %s", data)
			}
		default:
			t.Error("subscriber did not receive snapshot")
		}
	}

	hub.unsubscribe(a)
	hub.Broadcast(Message{Type: TypeDemoState, Data: map[string]string{"state": "playing"}})
	if len(a.ch) != 0 {
		t.Error("unsubscribed client received a message")
	}
	if len(b.ch) != 1 {
		t.Errorf("b queued %d messages, want 1", len(b.ch))
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(2, testLogger())
	slow := hub.subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			hub.Broadcast(Message{Type: TypeZones, Data: i})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full subscriber")
	}
	if len(slow.ch) != 2 {
		t.Errorf("queued = %d, want 2 (buffer size)", len(slow.ch))
	}
}

func TestHubTrailSource(t *testing.T) {
	hub := NewHub(1, testLogger())
	hub.SetTrailSource(func() map[string][]tracker.TrailPoint {
		return map[string][]tracker.TrailPoint{"sat-1": {{Lat: 1, Lng: 2}}}
	})
	s := hub.subscribe()
	hub.Publish(context.Background(), testSnapshot())

	data := <-s.ch
	if !strings.Contains(string(data), `"trails":{"sat-1"`) {
		t.Errorf("snapshot missing trails: %s", data)
	}
}

// TestSSEMessageFormat verifies the SSE wire format: "data: {json}\n\n".
func TestSSEMessageFormat(t *testing.T) {
	hub := NewHub(8, testLogger())
	initial := func() []Message {
		return []Message{SnapshotMessage(testSnapshot(), nil)}
	}
	handler := NewHandler(hub, Config{
		MaxConcurrentPerIP: 10,
		KeepaliveInterval:  5 * time.Second,
	}, initial, testLogger())

	req := httptest.NewRequest("GET", "/api/stream", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(w, req)
	}()

	waitFor(t, func() bool { return hub.Subscribers() == 1 })
	hub.Broadcast(Message{Type: TypeDemoStep, Data: map[string]any{"index": 2}})
	// Give the handler a moment to drain the subscription before cancelling.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	resp := w.Result()
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", resp.Header.Get("Cache-Control"))
	}

	body := w.Body.String()
	msgs := parseDataLines(t, body)
	var types []string
	for _, m := range msgs {
		types = append(types, m["type"].(string))
	}
	want := []string{TypeMetadata, TypeSnapshot, TypeDemoStep}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("message types = %v, want %v", types, want)
	}

	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") && !strings.HasPrefix(line, "retry: ") && line != ":" {
			t.Errorf("unexpected SSE line: %q", line)
		}
	}

	if n := hub.Subscribers(); n != 0 {
		t.Errorf("subscribers after disconnect = %d, want 0", n)
	}
}

func TestKeepalive(t *testing.T) {
	hub := NewHub(1, testLogger())
	handler := NewHandler(hub, Config{
		MaxConcurrentPerIP: 1,
		KeepaliveInterval:  20 * time.Millisecond,
	}, nil, testLogger())

	req := httptest.NewRequest("GET", "/api/stream", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 120*time.Millisecond)
	defer cancel()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req.WithContext(ctx))

	if !strings.Contains(w.Body.String(), "\n:\n\n") {
		t.Errorf("no keepalive comment in %q", w.Body.String())
	}
}

func TestConnGatePerIP(t *testing.T) {
	gate := newConnGate(3, 0)

	var releases []func()
	for i := 0; i < 3; i++ {
		release, err := gate.admit("10.0.0.1")
		if err != nil {
			t.Fatalf("admit %d: %v", i+1, err)
		}
		releases = append(releases, release)
	}
	if _, err := gate.admit("10.0.0.1"); !errors.Is(err, errPerIPLimit) {
		t.Errorf("admit beyond per-IP cap: err = %v, want errPerIPLimit", err)
	}
	if _, err := gate.admit("10.0.0.2"); err != nil {
		t.Errorf("other address should be admitted: %v", err)
	}

	releases[0]()
	releases[0]() // second call is a no-op
	if forIP, total := gate.inUse("10.0.0.1"); forIP != 2 || total != 3 {
		t.Errorf("inUse = (%d, %d), want (2, 3)", forIP, total)
	}
	if _, err := gate.admit("10.0.0.1"); err != nil {
		t.Errorf("admit after release: %v", err)
	}
}

func TestConnGateGlobalCap(t *testing.T) {
	gate := newConnGate(5, 2)
	r1, err1 := gate.admit("10.0.0.1")
	_, err2 := gate.admit("10.0.0.2")
	if err1 != nil || err2 != nil {
		t.Fatalf("admit under the global cap: %v, %v", err1, err2)
	}
	if _, err := gate.admit("10.0.0.3"); !errors.Is(err, errGlobalLimit) {
		t.Errorf("admit beyond global cap: err = %v, want errGlobalLimit", err)
	}
	r1()
	if _, err := gate.admit("10.0.0.3"); err != nil {
		t.Errorf("admit after release: %v", err)
	}
}

func TestConnGateConcurrent(t *testing.T) {
	gate := newConnGate(100, 0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if release, err := gate.admit("10.0.0.1"); err == nil {
				defer release()
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if forIP, total := gate.inUse("10.0.0.1"); forIP != 0 || total != 0 {
		t.Errorf("inUse after all released = (%d, %d), want (0, 0)", forIP, total)
	}
}

// TestRateLimitHTTPResponse verifies 429 response when limit exceeded.
func TestRateLimitHTTPResponse(t *testing.T) {
	hub := NewHub(1, testLogger())
	handler := NewHandler(hub, Config{
		MaxConcurrentPerIP: 1,
		KeepaliveInterval:  30 * time.Second,
	}, nil, testLogger())

	req := httptest.NewRequest("GET", "/api/stream", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	ctx, cancel := context.WithCancel(req.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))
	}()
	waitFor(t, func() bool { return hub.Subscribers() == 1 })

	second := httptest.NewRequest("GET", "/api/stream", nil)
	second.RemoteAddr = "10.0.0.1:54321"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, second)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	cancel()
	<-done
}

func TestProxyHeadersOnlyWhenTrusted(t *testing.T) {
	hub := NewHub(1, testLogger())
	handler := NewHandler(hub, Config{MaxConcurrentPerIP: 1, TrustProxy: true}, nil, testLogger())

	req := httptest.NewRequest("GET", "/api/stream", nil)
	req.RemoteAddr = "10.0.0.1:1"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	ctx, cancel := context.WithCancel(req.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))
	}()
	waitFor(t, func() bool { return hub.Subscribers() == 1 })

	if c, _ := handler.gate.inUse("203.0.113.9"); c != 1 {
		t.Errorf("forwarded IP count = %d, want 1", c)
	}
	cancel()
	<-done
}
