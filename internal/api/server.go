// Package api wires the dashboard's HTTP surface: satellite tracking,
// environmental analysis, demo control, the SSE stream and the embedded UI.
package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/satdash/internal/archive"
	"github.com/star/satdash/internal/auth"
	"github.com/star/satdash/internal/catalog"
	"github.com/star/satdash/internal/demo"
	"github.com/star/satdash/internal/environment"
	"github.com/star/satdash/internal/health"
	"github.com/star/satdash/internal/httputil"
	"github.com/star/satdash/internal/metrics"
	"github.com/star/satdash/internal/telemetry"
	"github.com/star/satdash/internal/tracing"
	"github.com/star/satdash/internal/tracker"
	"github.com/star/satdash/internal/upstream"
	"github.com/star/satdash/internal/zones"
)

// Version is reported by the health endpoints.
const Version = "1.0.0"

// Config holds HTTP server settings.
type Config struct {
	Addr string
	Auth auth.Config
}

// Deps are the components served over HTTP. Archive, Upstream, Stream and
// Web are optional.
type Deps struct {
	Catalog  *catalog.Catalog
	Tracker  *tracker.Tracker
	Zones    *zones.Store
	Player   *demo.Player
	Upstream *upstream.Client
	Archive  *archive.Recorder
	Stream   http.Handler
	Web      fs.FS
	Observer telemetry.Observer
	Now      func() time.Time
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, d Deps, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewHandler(cfg, d, logger),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed handler with the full middleware chain.
func NewHandler(cfg Config, d Deps, logger *slog.Logger) http.Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Observer == (telemetry.Observer{}) {
		d.Observer = telemetry.DefaultObserver
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() error {
		if d.Tracker.Latest() == nil {
			return errors.New("no snapshot published yet")
		}
		return nil
	}))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health", healthHandler(d))
	mux.HandleFunc("GET /api/health", apiHealthHandler(d))

	mux.HandleFunc("GET /api/satellites", listSatellitesHandler(d))
	mux.HandleFunc("POST /api/satellites", addSatelliteHandler(d, logger))
	mux.HandleFunc("DELETE /api/satellites/{id}", removeSatelliteHandler(d, logger))
	mux.HandleFunc("GET /api/satellites/positions", positionsHandler(d))
	mux.HandleFunc("GET /api/satellites/telemetry", allTelemetryHandler(d, logger))
	mux.HandleFunc("GET /api/satellites/passes", passesHandler(d))
	mux.HandleFunc("GET /api/satellites/{id}/position", positionHandler(d))
	mux.HandleFunc("GET /api/satellites/{id}/telemetry", telemetryHandler(d))

	mux.HandleFunc("GET /api/fusion/metrics", fusionMetricsHandler(d, logger))
	mux.HandleFunc("POST /api/data/fuse", fuseHandler(d))
	mux.HandleFunc("GET /api/data/datasets", datasetsHandler)
	mux.HandleFunc("GET /api/data/datasets/{id}", datasetHandler)

	mux.HandleFunc("GET /api/environmental/risk", riskHandler(d, logger))
	mux.HandleFunc("GET /api/environmental/risk/national", nationalRiskHandler(d, logger))
	mux.HandleFunc("GET /api/zones", zonesHandler(d))
	mux.HandleFunc("POST /api/zones/reset", resetZonesHandler(d))

	mux.HandleFunc("GET /api/disaster/summary", disasterHandler(d, "summary", logger))
	for _, layer := range environment.HazardLayers {
		mux.HandleFunc("GET /api/disaster/"+layer, disasterHandler(d, layer, logger))
	}

	mux.HandleFunc("GET /api/isro/satellites", isroSatellitesHandler(d))
	mux.HandleFunc("GET /api/isro/data/{name}", isroDataHandler(d))

	mux.HandleFunc("GET /api/demo", demoStatusHandler(d))
	mux.HandleFunc("POST /api/demo/{action}", demoActionHandler(d, logger))

	mux.HandleFunc("GET /api/history/positions", historyHandler(d))

	if d.Stream != nil {
		mux.Handle("GET /api/stream", d.Stream)
	}
	if d.Web != nil {
		mux.Handle("GET /", http.FileServerFS(d.Web))
	}

	// Build middleware chain: metrics -> tracing -> request id -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = httputil.RequestID(handler)
	handler = tracing.Middleware(func(r *http.Request) string { return metrics.Route(r.URL.Path) }, handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/health" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"request_id", httputil.RequestIDFrom(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}

func healthHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"timestamp": d.Now().UTC(),
		})
	}
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func apiHealthHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"status":    "healthy",
			"timestamp": d.Now().UTC(),
			"service":   "satdash",
			"version":   Version,
			"modules": map[string]string{
				"satellite_tracking":       "enabled",
				"environmental_monitoring": "enabled",
				"disaster_layers":          "enabled",
				"demo":                     "enabled",
				"archive":                  enabled(d.Archive != nil),
				"stream":                   enabled(d.Stream != nil),
				"upstream":                 enabled(d.Upstream != nil && d.Upstream.Enabled()),
			},
			"satellites": len(d.Catalog.Active()),
			"cache":      d.Tracker.CacheStats(),
		}
		if snap := d.Tracker.Latest(); snap != nil {
			resp["snapshot_seq"] = snap.Seq
			resp["snapshot_time"] = snap.Timestamp
		}
		if d.Upstream != nil {
			resp["upstream"] = d.Upstream.Status()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
