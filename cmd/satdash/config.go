package main

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/star/satdash/internal/archive"
	"github.com/star/satdash/internal/auth"
	"github.com/star/satdash/internal/events"
	"github.com/star/satdash/internal/orbit"
	"github.com/star/satdash/internal/registry"
	"github.com/star/satdash/internal/stream"
	"github.com/star/satdash/internal/tracker"
	"github.com/star/satdash/internal/upstream"
)

// intEnv reads an integer variable in [lo, hi], warning and returning def
// for anything else.
func intEnv(logger *slog.Logger, name string, def, lo, hi int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		logger.Warn("invalid "+name+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}

func boolEnv(logger *slog.Logger, name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+name+" value, using default", "value", v, "default", def)
		return def
	}
	return b
}

func loadAddr() string {
	addr := os.Getenv("SATDASH_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return addr
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("SATDASH_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("SATDASH_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("SATDASH_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("SATDASH_AUTH_TOKEN is required when auth is enabled")
		}
		cfg.PublicReads = boolEnv(logger, "SATDASH_AUTH_PUBLIC_READS", true)
		logger.Info("auth enabled", "public_reads", cfg.PublicReads)
	}

	return cfg, nil
}

func loadTrackerConfig(logger *slog.Logger) (tracker.Config, time.Duration) {
	def := tracker.DefaultConfig()
	cfg := tracker.Config{
		Interval:     time.Duration(intEnv(logger, "SATDASH_TRACKER_INTERVAL_MS", int(def.Interval.Milliseconds()), 100, 60000)) * time.Millisecond,
		ThresholdDeg: def.ThresholdDeg,
		TrailLength:  intEnv(logger, "SATDASH_TRACKER_TRAIL_LENGTH", def.TrailLength, 1, 1000),
	}

	if v := os.Getenv("SATDASH_TRACKER_THRESHOLD_DEG"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 10 {
			logger.Warn("invalid SATDASH_TRACKER_THRESHOLD_DEG value, using default", "value", v, "default", def.ThresholdDeg)
		} else {
			cfg.ThresholdDeg = f
		}
	}

	ttl := time.Duration(intEnv(logger, "SATDASH_CACHE_TTL_MS", int(orbit.DefaultCacheTTL.Milliseconds()), 1, 60000)) * time.Millisecond

	logger.Info("tracker config",
		"interval_ms", cfg.Interval.Milliseconds(),
		"threshold_deg", cfg.ThresholdDeg,
		"trail_length", cfg.TrailLength,
		"cache_ttl_ms", ttl.Milliseconds(),
	)
	return cfg, ttl
}

func loadStreamConfig(logger *slog.Logger) (stream.Config, int) {
	cfg := stream.Config{
		MaxConcurrentPerIP: intEnv(logger, "SATDASH_STREAM_MAX_CONCURRENT", 10, 1, 1000),
		MaxTotal:           intEnv(logger, "SATDASH_STREAM_MAX_TOTAL", 1000, 1, 100000),
		KeepaliveInterval:  time.Duration(intEnv(logger, "SATDASH_STREAM_KEEPALIVE_INTERVAL", 30, 1, 3600)) * time.Second,
		TrustProxy:         boolEnv(logger, "SATDASH_TRUST_PROXY", false),
	}
	buffer := intEnv(logger, "SATDASH_STREAM_BUFFER", 32, 1, 4096)

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_total", cfg.MaxTotal,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
		"buffer", buffer,
	)
	return cfg, buffer
}

func loadUpstreamConfig(logger *slog.Logger) upstream.Config {
	cfg := upstream.Config{
		BaseURL:        os.Getenv("SATDASH_UPSTREAM_URL"),
		Timeout:        time.Duration(intEnv(logger, "SATDASH_UPSTREAM_TIMEOUT_MS", 3000, 2000, 5000)) * time.Millisecond,
		HealthInterval: time.Duration(intEnv(logger, "SATDASH_UPSTREAM_HEALTH_INTERVAL", 30, 1, 3600)) * time.Second,
	}
	if cfg.BaseURL != "" {
		logger.Info("upstream config",
			"base_url", cfg.BaseURL,
			"timeout_ms", cfg.Timeout.Milliseconds(),
			"health_interval_seconds", cfg.HealthInterval.Seconds(),
		)
	}
	return cfg
}

func loadRedisConfig(logger *slog.Logger) events.Config {
	return events.Config{
		Addr:      os.Getenv("SATDASH_REDIS_ADDR"),
		Password:  os.Getenv("SATDASH_REDIS_PASSWORD"),
		DB:        intEnv(logger, "SATDASH_REDIS_DB", 0, 0, 15),
		Prefix:    os.Getenv("SATDASH_REDIS_PREFIX"),
		LatestTTL: time.Duration(intEnv(logger, "SATDASH_REDIS_LATEST_TTL", 10, 1, 3600)) * time.Second,
	}
}

func loadArchiveConfig(logger *slog.Logger) archive.Config {
	return archive.Config{
		Path:          os.Getenv("SATDASH_ARCHIVE_PATH"),
		Retention:     time.Duration(intEnv(logger, "SATDASH_ARCHIVE_RETENTION", 3600, 60, 30*86400)) * time.Second,
		PruneInterval: time.Duration(intEnv(logger, "SATDASH_ARCHIVE_PRUNE_INTERVAL", 60, 1, 86400)) * time.Second,
	}
}

// loadRegistryConfig advertises the HTTP port from addr and the host from
// SATDASH_SERVICE_HOST, falling back to the machine hostname.
func loadRegistryConfig(logger *slog.Logger, addr string) registry.Config {
	cfg := registry.Config{
		Addr:        os.Getenv("SATDASH_CONSUL_ADDR"),
		ServiceName: os.Getenv("SATDASH_SERVICE_NAME"),
		ServiceHost: os.Getenv("SATDASH_SERVICE_HOST"),
		TTL:         time.Duration(intEnv(logger, "SATDASH_CONSUL_TTL", 10, 2, 600)) * time.Second,
		Tags:        []string{"dashboard", "sse"},
	}
	if cfg.ServiceHost == "" {
		cfg.ServiceHost, _ = os.Hostname()
	}
	if _, port, err := net.SplitHostPort(addr); err == nil {
		cfg.ServicePort, _ = strconv.Atoi(port)
	}
	return cfg
}

type demoConfig struct {
	Tick      time.Duration
	AutoStart bool
}

func loadDemoConfig(logger *slog.Logger) demoConfig {
	return demoConfig{
		Tick:      time.Duration(intEnv(logger, "SATDASH_DEMO_TICK_MS", 100, 10, 5000)) * time.Millisecond,
		AutoStart: boolEnv(logger, "SATDASH_DEMO_AUTOSTART", false),
	}
}
