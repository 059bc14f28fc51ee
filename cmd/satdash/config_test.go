package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/star/satdash/internal/orbit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadAuthConfig(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		t.Setenv("SATDASH_AUTH_ENABLED", "")
		cfg, err := loadAuthConfig(testLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Enabled {
			t.Error("auth should be disabled")
		}
	})

	t.Run("enabled without token", func(t *testing.T) {
		t.Setenv("SATDASH_AUTH_ENABLED", "true")
		t.Setenv("SATDASH_AUTH_TOKEN", "")
		if _, err := loadAuthConfig(testLogger()); err == nil {
			t.Error("expected error for missing token")
		}
	})

	t.Run("invalid bool", func(t *testing.T) {
		t.Setenv("SATDASH_AUTH_ENABLED", "maybe")
		if _, err := loadAuthConfig(testLogger()); err == nil {
			t.Error("expected error for invalid boolean")
		}
	})

	t.Run("enabled with token", func(t *testing.T) {
		t.Setenv("SATDASH_AUTH_ENABLED", "1")
		t.Setenv("SATDASH_AUTH_TOKEN", "secret")
		t.Setenv("SATDASH_AUTH_PUBLIC_READS", "false")
		cfg, err := loadAuthConfig(testLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cfg.Enabled || cfg.Token != "secret" || cfg.PublicReads {
			t.Errorf("cfg = %+v", cfg)
		}
	})
}

func TestLoadTrackerConfigFallsBack(t *testing.T) {
	t.Setenv("SATDASH_TRACKER_INTERVAL_MS", "abc")
	t.Setenv("SATDASH_TRACKER_THRESHOLD_DEG", "-1")
	t.Setenv("SATDASH_TRACKER_TRAIL_LENGTH", "50")
	t.Setenv("SATDASH_CACHE_TTL_MS", "0")

	cfg, ttl := loadTrackerConfig(testLogger())
	if cfg.Interval != time.Second {
		t.Errorf("Interval = %v, want 1s", cfg.Interval)
	}
	if cfg.ThresholdDeg != 0.01 {
		t.Errorf("ThresholdDeg = %v, want 0.01", cfg.ThresholdDeg)
	}
	if cfg.TrailLength != 50 {
		t.Errorf("TrailLength = %d, want 50", cfg.TrailLength)
	}
	if ttl != orbit.DefaultCacheTTL {
		t.Errorf("cache TTL = %v, want %v", ttl, orbit.DefaultCacheTTL)
	}
}

func TestLoadUpstreamTimeoutBounds(t *testing.T) {
	t.Setenv("SATDASH_UPSTREAM_URL", "http://backend:8000")
	t.Setenv("SATDASH_UPSTREAM_TIMEOUT_MS", "9000")

	cfg := loadUpstreamConfig(testLogger())
	if cfg.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s for an out-of-range value", cfg.Timeout)
	}

	t.Setenv("SATDASH_UPSTREAM_TIMEOUT_MS", "4500")
	if got := loadUpstreamConfig(testLogger()).Timeout; got != 4500*time.Millisecond {
		t.Errorf("Timeout = %v, want 4.5s", got)
	}
}

func TestLoadRegistryConfigPort(t *testing.T) {
	t.Setenv("SATDASH_CONSUL_ADDR", "consul:8500")
	t.Setenv("SATDASH_SERVICE_HOST", "dash-1")

	cfg := loadRegistryConfig(testLogger(), ":9090")
	if cfg.ServicePort != 9090 {
		t.Errorf("ServicePort = %d, want 9090", cfg.ServicePort)
	}
	if cfg.ServiceHost != "dash-1" {
		t.Errorf("ServiceHost = %q", cfg.ServiceHost)
	}
	if cfg.TTL != 10*time.Second {
		t.Errorf("TTL = %v, want 10s", cfg.TTL)
	}
}

func TestParseLevel(t *testing.T) {
	t.Setenv("SATDASH_LOG_LEVEL", "warn")
	if got := parseLevel(""); got != slog.LevelWarn {
		t.Errorf("env level = %v, want warn", got)
	}
	if got := parseLevel("debug"); got != slog.LevelDebug {
		t.Errorf("flag level = %v, want debug", got)
	}
	if got := parseLevel("bogus"); got != slog.LevelInfo {
		t.Errorf("fallback level = %v, want info", got)
	}
}

func TestLoadEnvFileMissingIsIgnored(t *testing.T) {
	if err := loadEnvFile(t.TempDir() + "/absent.env"); err != nil {
		t.Errorf("missing env file: %v", err)
	}
}
