package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/aura-radar/internal/application/events"
)

var _ events.Metrics = (*eventsMetrics)(nil)

type eventsMetrics struct {
	published       metric.Int64Counter
	dropped         metric.Int64Counter
	forwardFailures metric.Int64Counter
}

func newEventsMetrics(mp metric.MeterProvider) (*eventsMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(eventsMetrics)
	var err error

	if m.published, err = meter.Int64Counter(
		"events_published_total",
		metric.WithDescription("Total events accepted by a mailbox"),
	); err != nil {
		return nil, err
	}

	if m.dropped, err = meter.Int64Counter(
		"events_dropped_total",
		metric.WithDescription("Total events discarded because a mailbox was full"),
	); err != nil {
		return nil, err
	}

	if m.forwardFailures, err = meter.Int64Counter(
		"events_forward_failures_total",
		metric.WithDescription("Total events a sink failed to forward"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func queueAttr(queue string) metric.AddOption {
	return metric.WithAttributes(attribute.String("queue", queue))
}

func (m *eventsMetrics) IncPublished(ctx context.Context, queue string) {
	m.published.Add(ctx, 1, queueAttr(queue))
}

func (m *eventsMetrics) IncDropped(ctx context.Context, queue string) {
	m.dropped.Add(ctx, 1, queueAttr(queue))
}

func (m *eventsMetrics) IncForwardFailures(ctx context.Context, sink string) {
	m.forwardFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}
