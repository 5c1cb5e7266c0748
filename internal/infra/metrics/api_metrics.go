package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/aura-radar/internal/application/sdk/mid"
)

var _ mid.APIMetrics = (*apiMetrics)(nil)

// apiMetrics implements mid.APIMetrics for the presentation API.
type apiMetrics struct {
	requestLatency     metric.Float64Histogram
	requestCount       metric.Int64Counter
	concurrentRequests metric.Int64UpDownCounter
}

func newAPIMetrics(mp metric.MeterProvider) (*apiMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(apiMetrics)
	var err error

	if m.requestLatency, err = meter.Float64Histogram(
		"api_request_latency_seconds",
		metric.WithDescription("Latency of presentation API requests in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.requestCount, err = meter.Int64Counter(
		"api_request_total",
		metric.WithDescription("Total number of presentation API requests"),
	); err != nil {
		return nil, err
	}

	if m.concurrentRequests, err = meter.Int64UpDownCounter(
		"api_concurrent_requests",
		metric.WithDescription("Number of in-flight presentation API requests"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func requestAttrs(endpoint, method string, statusCode int) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("method", method),
		attribute.Int("status_code", statusCode),
	)
}

// ObserveRequestLatency records how long a request took.
func (m *apiMetrics) ObserveRequestLatency(ctx context.Context, endpoint string, method string, statusCode int, duration time.Duration) {
	m.requestLatency.Record(ctx, duration.Seconds(), requestAttrs(endpoint, method, statusCode))
}

// IncRequestCount increments the count of requests by endpoint and status.
func (m *apiMetrics) IncRequestCount(ctx context.Context, endpoint string, method string, statusCode int) {
	m.requestCount.Add(ctx, 1, requestAttrs(endpoint, method, statusCode))
}

// TrackConcurrentRequests tracks the number of concurrent requests.
func (m *apiMetrics) TrackConcurrentRequests(ctx context.Context, endpoint string, f func() error) error {
	attrs := metric.WithAttributes(attribute.String("endpoint", endpoint))
	m.concurrentRequests.Add(ctx, 1, attrs)
	defer m.concurrentRequests.Add(ctx, -1, attrs)

	return f()
}
