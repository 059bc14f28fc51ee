package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestDisabledClient(t *testing.T) {
	c := New(Config{}, testLogger())
	if c.Enabled() {
		t.Fatal("client without URL must be disabled")
	}
	var out map[string]any
	if err := c.GetJSON(context.Background(), "/api/zones", nil, &out); !errors.Is(err, ErrDisabled) {
		t.Errorf("GetJSON error = %v, want ErrDisabled", err)
	}
	if c.CheckHealth(context.Background()) {
		t.Error("disabled client reported healthy")
	}

	bad := New(Config{BaseURL: "not a url"}, testLogger())
	if bad.Enabled() {
		t.Error("invalid URL must disable the client")
	}
}

func TestHealthTransitions(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/"}, testLogger())
	if !c.CheckHealth(context.Background()) || !c.Online() {
		t.Fatal("expected online")
	}

	healthy.Store(false)
	if c.CheckHealth(context.Background()) || c.Online() {
		t.Error("expected offline after 503")
	}
	if c.Status().LastCheck == nil {
		t.Error("last check not recorded")
	}
}

func TestGetJSONQueryAndTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			time.Sleep(200 * time.Millisecond)
		}
		json.NewEncoder(w).Encode(map[string]string{"lat": r.URL.Query().Get("lat")})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, testLogger())

	var out map[string]string
	if err := c.GetJSON(context.Background(), "/api/environmental/risk", url.Values{"lat": {"26.5"}}, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out["lat"] != "26.5" {
		t.Errorf("query not forwarded: %v", out)
	}

	if err := c.GetJSON(context.Background(), "/slow", nil, &out); err == nil {
		t.Error("expected timeout error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, HealthInterval: 10 * time.Millisecond}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	if !c.Online() {
		t.Error("expected online after polling a healthy backend")
	}
}
