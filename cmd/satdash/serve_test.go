package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/star/satdash/internal/archive"
	"github.com/star/satdash/internal/demo"
	"github.com/star/satdash/internal/stream"
	"github.com/star/satdash/internal/tracker"
	"github.com/star/satdash/internal/zones"
)

func testAppConfig() appConfig {
	return appConfig{
		Addr:         ":0",
		Tracker:      tracker.DefaultConfig(),
		StreamBuffer: 8,
		Stream:       stream.Config{MaxConcurrentPerIP: 2, MaxTotal: 10},
		Demo:         demoConfig{Tick: 10 * time.Millisecond},
	}
}

func TestBuildAppServesProbes(t *testing.T) {
	a, err := buildApp(context.Background(), testAppConfig(), testLogger())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.close()

	h := a.server.HTTPServer().Handler

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/healthz = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz before first tick = %d, want 503", rec.Code)
	}

	a.tracker.Tick(context.Background())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/readyz after first tick = %d, want 200", rec.Code)
	}
}

func TestBuildAppSkipsUnreachableBackends(t *testing.T) {
	cfg := testAppConfig()
	cfg.Redis.Addr = "127.0.0.1:1"
	cfg.Registry.Addr = "127.0.0.1:1"
	cfg.Registry.ServiceName = "satdash-test"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := buildApp(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.close()

	if a.publisher != nil {
		t.Error("publisher should be nil when redis is unreachable")
	}
	if a.registry != nil {
		t.Error("registry should be nil when consul is unreachable")
	}
}

func TestBuildAppArchivesSnapshots(t *testing.T) {
	cfg := testAppConfig()
	cfg.Archive.Path = filepath.Join(t.TempDir(), "positions.db")

	a, err := buildApp(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.close()
	if a.archive == nil {
		t.Fatal("archive should be open")
	}

	ctx := context.Background()
	if !a.tracker.Tick(ctx) {
		t.Fatal("first tick should publish")
	}

	got, err := a.archive.History(ctx, archive.Query{SatelliteID: "sat-1"})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("archived %d positions for sat-1, want 1", len(got))
	}
}

func TestInitialMessages(t *testing.T) {
	a, err := buildApp(context.Background(), testAppConfig(), testLogger())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.close()

	types := func() []string {
		var out []string
		for _, m := range a.initialMessages() {
			out = append(out, m.Type)
		}
		return out
	}

	if got := strings.Join(types(), ","); got != "zones,demo_state" {
		t.Errorf("before first tick: %s", got)
	}

	a.tracker.Tick(context.Background())
	if got := strings.Join(types(), ","); got != "snapshot,zones,demo_state" {
		t.Errorf("after first tick: %s", got)
	}
}

func TestDemoStepReplacesZones(t *testing.T) {
	a, err := buildApp(context.Background(), testAppConfig(), testLogger())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.close()

	zs := []zones.RiskZone{{ID: "z1", Name: "Flood", Lat: 26.1, Lng: 91.7, RadiusKm: 10, Severity: zones.SeverityHigh}}
	a.onDemoStep(context.Background(), 1, demo.Step{
		At:     5 * time.Second,
		Title:  "Flood detected",
		Effect: demo.Effect{Zones: zs},
	})

	set := a.zones.Current()
	if set.Source != "demo" {
		t.Errorf("zone source = %q, want demo", set.Source)
	}
	if len(set.Zones) != 1 || set.Zones[0].ID != "z1" {
		t.Errorf("zones = %+v", set.Zones)
	}

	before := a.zones.Current().Version
	a.onDemoStep(context.Background(), 2, demo.Step{At: 6 * time.Second, Title: "Toast only"})
	if a.zones.Current().Version != before {
		t.Error("a step without zones must not replace the zone set")
	}
}

func TestRunDemoFast(t *testing.T) {
	var buf bytes.Buffer
	if err := runDemo(context.Background(), &buf, 100*time.Millisecond, true, testLogger()); err != nil {
		t.Fatalf("runDemo: %v", err)
	}

	steps := demo.FloodScenario().Steps
	out := buf.String()
	for _, s := range steps {
		if !strings.Contains(out, s.Title) {
			t.Errorf("output missing step %q", s.Title)
		}
	}
}

func TestRunSimulate(t *testing.T) {
	var buf bytes.Buffer
	cfg := tracker.DefaultConfig()
	cfg.Interval = 10 * time.Millisecond

	if err := runSimulate(context.Background(), &buf, cfg, 0, 3, testLogger()); err != nil {
		t.Fatalf("runSimulate: %v", err)
	}

	sc := bufio.NewScanner(&buf)
	lines := 0
	for sc.Scan() {
		var snap tracker.Snapshot
		if err := json.Unmarshal(sc.Bytes(), &snap); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}
		if len(snap.Positions) == 0 {
			t.Errorf("line %d has no positions", lines)
		}
		lines++
	}
	if lines < 1 || lines > 3 {
		t.Errorf("published %d snapshots over 3 ticks", lines)
	}
}
