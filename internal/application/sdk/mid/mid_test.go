package mid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/aura-radar/internal/application/sdk/mid"
	"github.com/ahrav/aura-radar/pkg/common/logger"
)

type request struct {
	endpoint string
	method   string
	status   int
}

type recordingMetrics struct {
	mu       sync.Mutex
	counted  []request
	observed int
	inflight int
}

func (m *recordingMetrics) ObserveRequestLatency(_ context.Context, _, _ string, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed++
}

func (m *recordingMetrics) IncRequestCount(_ context.Context, endpoint, method string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counted = append(m.counted, request{endpoint, method, status})
}

func (m *recordingMetrics) TrackConcurrentRequests(_ context.Context, _ string, f func() error) error {
	m.mu.Lock()
	m.inflight++
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inflight--
		m.mu.Unlock()
	}()
	return f()
}

func newRouter(m mid.APIMetrics) http.Handler {
	r := chi.NewRouter()
	for _, mw := range mid.GetMiddlewareChain(logger.Noop(), noop.NewTracerProvider().Tracer("test"), m) {
		r.Use(mw)
	}
	r.Delete("/blocked/{address}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("kaboom") })
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	return r
}

func TestMiddlewareChain(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		path         string
		wantStatus   int
		wantEndpoint string
	}{
		{"route pattern labels", http.MethodDelete, "/blocked/45.1.1.1", http.StatusNoContent, "/blocked/{address}"},
		{"implicit ok", http.MethodGet, "/ok", http.StatusOK, "/ok"},
		{"panic recovered", http.MethodGet, "/boom", http.StatusInternalServerError, "/boom"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := &recordingMetrics{}
			rec := httptest.NewRecorder()

			newRouter(m).ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))

			assert.Equal(t, tc.wantStatus, rec.Code)
			require.Len(t, m.counted, 1)
			assert.Equal(t, request{tc.wantEndpoint, tc.method, tc.wantStatus}, m.counted[0])
			assert.Equal(t, 1, m.observed)
			assert.Zero(t, m.inflight)
		})
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) mid.HTTPMiddleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := mid.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("outer"), mark("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
