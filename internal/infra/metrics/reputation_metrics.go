package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/aura-radar/internal/application/reputation"
)

var _ reputation.Metrics = (*reputationMetrics)(nil)

type reputationMetrics struct {
	resolved        metric.Int64Counter
	lookupFailures  metric.Int64Counter
	lookupSkipped   metric.Int64Counter
	refreshFailures metric.Int64Counter
	dropListEntries metric.Int64Gauge
}

func newReputationMetrics(mp metric.MeterProvider) (*reputationMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(reputationMetrics)
	var err error

	if m.resolved, err = meter.Int64Counter(
		"reputation_resolved_total",
		metric.WithDescription("Total reputation scores resolved, by stage"),
	); err != nil {
		return nil, err
	}

	if m.lookupFailures, err = meter.Int64Counter(
		"reputation_lookup_failures_total",
		metric.WithDescription("Total failed external reputation lookups"),
	); err != nil {
		return nil, err
	}

	if m.lookupSkipped, err = meter.Int64Counter(
		"reputation_lookup_skipped_total",
		metric.WithDescription("Total external lookups skipped during a cool-down"),
	); err != nil {
		return nil, err
	}

	if m.refreshFailures, err = meter.Int64Counter(
		"reputation_droplist_refresh_failures_total",
		metric.WithDescription("Total drop-list refresh failures, by source"),
	); err != nil {
		return nil, err
	}

	if m.dropListEntries, err = meter.Int64Gauge(
		"reputation_droplist_entries",
		metric.WithDescription("Number of loaded drop-list entries"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *reputationMetrics) IncResolved(ctx context.Context, source string) {
	m.resolved.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (m *reputationMetrics) IncLookupFailures(ctx context.Context) { m.lookupFailures.Add(ctx, 1) }

func (m *reputationMetrics) IncLookupSkipped(ctx context.Context) { m.lookupSkipped.Add(ctx, 1) }

func (m *reputationMetrics) IncRefreshFailures(ctx context.Context, source string) {
	m.refreshFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (m *reputationMetrics) SetDropListEntries(ctx context.Context, n int) {
	m.dropListEntries.Record(ctx, int64(n))
}
