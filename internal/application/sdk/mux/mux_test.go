package mux

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/aura-radar/pkg/common/logger"
)

type countingMetrics struct{ requests int }

func (m *countingMetrics) ObserveRequestLatency(context.Context, string, string, int, time.Duration) {}
func (m *countingMetrics) IncRequestCount(context.Context, string, string, int)                     { m.requests++ }
func (m *countingMetrics) TrackConcurrentRequests(_ context.Context, _ string, f func() error) error {
	return f()
}

func newHandler(m *countingMetrics, ready func(context.Context) error, opts ...func(*Options)) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	cfg := Config{
		Build:      "test",
		Log:        logger.Noop(),
		Tracer:     noop.NewTracerProvider().Tracer("test"),
		APIMetrics: m,
		Ready:      ready,
	}
	return WrapWithMiddleware(cfg, inner, opts...)
}

func TestProbesBypassMiddleware(t *testing.T) {
	m := &countingMetrics{}
	h := newHandler(m, func(context.Context) error { return errors.New("starting") })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, LivenessPath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, ReadinessPath, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	assert.Zero(t, m.requests)
}

func TestWrappedHandler(t *testing.T) {
	m := &countingMetrics{}
	h := newHandler(m, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Build"))
	assert.Equal(t, 1, m.requests)
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"preflight allowed", http.MethodOptions, "http://dash.local", http.StatusOK, "http://dash.local"},
		{"preflight other origin", http.MethodOptions, "http://evil.local", http.StatusOK, ""},
		{"regular request", http.MethodGet, "http://dash.local", http.StatusTeapot, "http://dash.local"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHandler(&countingMetrics{}, nil, WithCORS([]string{"http://dash.local"}))

			req := httptest.NewRequest(tc.method, "/api/v1/traffic", nil)
			req.Header.Set("Origin", tc.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantAllow, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
