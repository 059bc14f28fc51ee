package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satdash_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satdash_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	positionCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satdash_position_cache_lookups_total",
			Help: "Position cache lookups by result (hit, miss).",
		},
		[]string{"result"},
	)

	positionCachePurged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satdash_position_cache_purged_total",
		Help: "Position cache entries purged after exceeding twice the TTL.",
	})

	positionCacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satdash_position_cache_entries",
		Help: "Current number of entries in the position cache.",
	})

	trackerTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satdash_tracker_ticks_total",
			Help: "Update loop ticks by outcome (published, unchanged).",
		},
		[]string{"outcome"},
	)

	trackerTickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "satdash_tracker_tick_duration_seconds",
		Help:    "Time spent recomputing all tracked positions in one tick.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	satellitesTracked = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satdash_satellites_tracked",
		Help: "Number of active satellites in the latest snapshot.",
	})

	sinkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satdash_sink_errors_total",
			Help: "Snapshot or event sink failures by sink name.",
		},
		[]string{"sink"},
	)

	demoStepsDispatched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satdash_demo_steps_dispatched_total",
		Help: "Demo scenario steps dispatched.",
	})

	demoErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satdash_demo_errors_total",
		Help: "Demo playbacks halted by a step lookup or dispatch error.",
	})

	demoState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "satdash_demo_state",
			Help: "Demo player state (1 for the current state, 0 otherwise).",
		},
		[]string{"state"},
	)

	upstreamOnline = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satdash_upstream_online",
		Help: "1 when the optional upstream backend answered its last health check.",
	})

	upstreamFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satdash_upstream_fallbacks_total",
			Help: "Requests served from local simulation after an upstream failure.",
		},
		[]string{"resource"},
	)

	streamConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satdash_stream_connections_total",
			Help: "SSE connection events (connect, disconnect).",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satdash_streams_active",
		Help: "Currently open SSE streams.",
	})

	streamMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satdash_stream_messages_total",
		Help: "SSE messages written.",
	})

	streamBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satdash_stream_bytes_total",
		Help: "SSE bytes written.",
	})

	streamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satdash_stream_errors_total",
			Help: "SSE errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		positionCacheLookups,
		positionCachePurged,
		positionCacheEntries,
		trackerTicks,
		trackerTickDuration,
		satellitesTracked,
		sinkErrors,
		demoStepsDispatched,
		demoErrors,
		demoState,
		upstreamOnline,
		upstreamFallbacks,
		streamConnections,
		streamsActive,
		streamMessages,
		streamBytes,
		streamErrors,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// knownRoutes are exact paths reported under their own label.
var knownRoutes = map[string]bool{
	"/":                                true,
	"/health":                          true,
	"/healthz":                         true,
	"/readyz":                          true,
	"/metrics":                         true,
	"/api/health":                      true,
	"/api/satellites":                  true,
	"/api/satellites/positions":        true,
	"/api/satellites/telemetry":        true,
	"/api/satellites/passes":           true,
	"/api/fusion/metrics":              true,
	"/api/data/fuse":                   true,
	"/api/data/datasets":               true,
	"/api/environmental/risk":          true,
	"/api/environmental/risk/national": true,
	"/api/zones":                       true,
	"/api/zones/reset":                 true,
	"/api/disaster/summary":            true,
	"/api/disaster/weather":            true,
	"/api/disaster/flood":              true,
	"/api/disaster/fire":               true,
	"/api/disaster/seismic":            true,
	"/api/disaster/drought":            true,
	"/api/disaster/cyclone":            true,
	"/api/disaster/landslide":          true,
	"/api/isro/satellites":             true,
	"/api/demo":                        true,
	"/api/history/positions":           true,
	"/api/stream":                      true,
}

// normalizeRoute collapses parameterized and unknown paths so that label
// cardinality stays bounded.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	switch {
	case strings.HasPrefix(path, "/api/demo/"):
		return "/api/demo/{action}"
	case strings.HasPrefix(path, "/api/data/datasets/"):
		return "/api/data/datasets/{id}"
	case strings.HasPrefix(path, "/api/isro/data/"):
		return "/api/isro/data/{name}"
	case strings.HasPrefix(path, "/api/satellites/"):
		rest := strings.TrimPrefix(path, "/api/satellites/")
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && parts[0] != "":
			return "/api/satellites/{id}"
		case len(parts) == 2 && parts[1] == "position":
			return "/api/satellites/{id}/position"
		case len(parts) == 2 && parts[1] == "telemetry":
			return "/api/satellites/{id}/telemetry"
		}
	case strings.HasPrefix(path, "/static/"):
		return "/static/"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

// Position cache.

func IncCacheHits()   { positionCacheLookups.WithLabelValues("hit").Inc() }
func IncCacheMisses() { positionCacheLookups.WithLabelValues("miss").Inc() }

func AddCachePurged(n int) { positionCachePurged.Add(float64(n)) }

func SetCacheEntries(n int) { positionCacheEntries.Set(float64(n)) }

// Update loop.

// RecordTick observes one tracker tick.
func RecordTick(d time.Duration, published bool) {
	trackerTickDuration.Observe(d.Seconds())
	if published {
		trackerTicks.WithLabelValues("published").Inc()
		return
	}
	trackerTicks.WithLabelValues("unchanged").Inc()
}

func SetSatellitesTracked(n int) { satellitesTracked.Set(float64(n)) }

func IncSinkErrors(sink string) { sinkErrors.WithLabelValues(sink).Inc() }

// Demo player.

func IncDemoSteps()  { demoStepsDispatched.Inc() }
func IncDemoErrors() { demoErrors.Inc() }

var demoStates = []string{"stopped", "playing", "paused"}

// SetDemoState marks state as the current demo player state.
func SetDemoState(state string) {
	for _, s := range demoStates {
		v := 0.0
		if s == state {
			v = 1
		}
		demoState.WithLabelValues(s).Set(v)
	}
}

// Upstream backend.

func SetUpstreamOnline(online bool) {
	if online {
		upstreamOnline.Set(1)
		return
	}
	upstreamOnline.Set(0)
}

func IncUpstreamFallbacks(resource string) { upstreamFallbacks.WithLabelValues(resource).Inc() }

// Streaming.

func IncStreamConnections(event string) { streamConnections.WithLabelValues(event).Inc() }
func IncStreamsActive()                 { streamsActive.Inc() }
func DecStreamsActive()                 { streamsActive.Dec() }
func IncStreamMessages()                { streamMessages.Inc() }
func AddStreamBytes(n int64)            { streamBytes.Add(float64(n)) }
func IncStreamErrors(reason string)     { streamErrors.WithLabelValues(reason).Inc() }

// Route returns the bounded route label for path, as used by Middleware.
func Route(path string) string { return normalizeRoute(path) }
