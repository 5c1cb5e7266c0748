package mid

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// APIMetrics defines metrics for API operations.
type APIMetrics interface {
	// ObserveRequestLatency records the latency of API requests.
	ObserveRequestLatency(ctx context.Context, endpoint string, method string, statusCode int, duration time.Duration)

	// IncRequestCount increments the count of requests by endpoint and status.
	IncRequestCount(ctx context.Context, endpoint string, method string, statusCode int)

	// TrackConcurrentRequests tracks the number of concurrent requests.
	TrackConcurrentRequests(ctx context.Context, endpoint string, f func() error) error
}

// MetricsMiddleware creates middleware that records API metrics. Endpoints are
// labeled by their route pattern, so /blocked/{address} is one series.
func MetricsMiddleware(metrics APIMetrics) HTTPMiddleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			err := metrics.TrackConcurrentRequests(r.Context(), r.URL.Path, func() error {
				next.ServeHTTP(sw, r)
				return nil
			})

			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}
			endpoint := routePattern(r)

			metrics.IncRequestCount(r.Context(), endpoint, r.Method, status)
			metrics.ObserveRequestLatency(r.Context(), endpoint, r.Method, status, time.Since(start))

			// If there was an error in the middleware itself (not from the handler).
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
