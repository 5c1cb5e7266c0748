package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/aura-radar/internal/application/behavior"
	"github.com/ahrav/aura-radar/internal/domain/threat"
)

var _ behavior.Metrics = (*behaviorMetrics)(nil)

type behaviorMetrics struct {
	score       metric.Float64Histogram
	evictions   metric.Int64Counter
	transitions metric.Int64Counter
}

func newBehaviorMetrics(mp metric.MeterProvider) (*behaviorMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(behaviorMetrics)
	var err error

	if m.score, err = meter.Float64Histogram(
		"behavior_score",
		metric.WithDescription("Distribution of behavioral anomaly scores"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.4, 0.6, 0.8, 1.0),
	); err != nil {
		return nil, err
	}

	if m.evictions, err = meter.Int64Counter(
		"behavior_activity_evictions_total",
		metric.WithDescription("Total activity records evicted by the capacity bound"),
	); err != nil {
		return nil, err
	}

	if m.transitions, err = meter.Int64Counter(
		"behavior_mode_transitions_total",
		metric.WithDescription("Total scorer mode transitions"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *behaviorMetrics) ObserveScore(ctx context.Context, score float64) {
	m.score.Record(ctx, score)
}

func (m *behaviorMetrics) IncEvictions(ctx context.Context) { m.evictions.Add(ctx, 1) }

func (m *behaviorMetrics) RecordModeTransition(ctx context.Context, from, to threat.Mode) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}
