package tracing

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("SATDASH_TRACING_ENABLED", "TRUE")
	t.Setenv("SATDASH_TRACING_EXPORTER", "OTLP")
	t.Setenv("SATDASH_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("SATDASH_OTLP_ENDPOINT", "collector:4317")

	cfg := ConfigFromEnv()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "otlp", cfg.Exporter)
	assert.Equal(t, "satdash", cfg.ServiceName)
	assert.Equal(t, 0.25, cfg.SampleRatio)
	assert.Equal(t, "collector:4317", cfg.Endpoint)

	t.Setenv("SATDASH_TRACING_SAMPLE_RATIO", "7")
	assert.Equal(t, 1.0, ConfigFromEnv().SampleRatio, "out-of-range ratio falls back to 1")
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{}, testLogger())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitUnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true, Exporter: "zipkin"}, testLogger())
	assert.Error(t, err)
}

func TestMiddlewareRecordsSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	h := Middleware(func(*http.Request) string { return "/api/satellites/{id}" },
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/satellites/sat-1", nil))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/satellites/{id}", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int("http.response.status_code", 503))
}
