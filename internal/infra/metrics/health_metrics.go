package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/aura-radar/internal/application/health"
)

var _ health.HealthMetrics = (*healthMetrics)(nil)

type healthMetrics struct {
	systemHealth    metric.Int64Gauge
	componentHealth metric.Int64Gauge
}

func newHealthMetrics(mp metric.MeterProvider) (*healthMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(healthMetrics)
	var err error

	if m.systemHealth, err = meter.Int64Gauge(
		"system_health",
		metric.WithDescription("1 when every readiness probe passes, 0 otherwise"),
	); err != nil {
		return nil, err
	}

	if m.componentHealth, err = meter.Int64Gauge(
		"component_health",
		metric.WithDescription("Readiness probe outcome by component"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func boolGauge(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (m *healthMetrics) SetSystemHealth(ctx context.Context, status bool) {
	m.systemHealth.Record(ctx, boolGauge(status))
}

func (m *healthMetrics) SetComponentHealth(ctx context.Context, component string, healthy bool) {
	m.componentHealth.Record(ctx, boolGauge(healthy), metric.WithAttributes(
		attribute.String("component", component),
	))
}
