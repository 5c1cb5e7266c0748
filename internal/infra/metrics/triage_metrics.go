package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/aura-radar/internal/application/triage"
)

var _ triage.Metrics = (*triageMetrics)(nil)

type triageMetrics struct {
	flowsTriaged  metric.Int64Counter
	flowsSkipped  metric.Int64Counter
	combinedScore metric.Float64Histogram
}

// newTriageMetrics creates the flow triage instruments.
func newTriageMetrics(mp metric.MeterProvider) (*triageMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(triageMetrics)
	var err error

	if m.flowsTriaged, err = meter.Int64Counter(
		"triage_flows_total",
		metric.WithDescription("Total flows triaged, by block decision"),
	); err != nil {
		return nil, err
	}

	if m.flowsSkipped, err = meter.Int64Counter(
		"triage_flows_skipped_total",
		metric.WithDescription("Total internal-to-internal flows skipped"),
	); err != nil {
		return nil, err
	}

	if m.combinedScore, err = meter.Float64Histogram(
		"triage_combined_score",
		metric.WithDescription("Distribution of combined threat scores"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *triageMetrics) IncTriaged(ctx context.Context, blocked bool) {
	m.flowsTriaged.Add(ctx, 1, metric.WithAttributes(attribute.Bool("blocked", blocked)))
}

func (m *triageMetrics) IncSkipped(ctx context.Context) { m.flowsSkipped.Add(ctx, 1) }

func (m *triageMetrics) ObserveCombinedScore(ctx context.Context, score float64) {
	m.combinedScore.Record(ctx, score)
}
