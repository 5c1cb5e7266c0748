package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/aura-radar/internal/application/firewall"
)

var _ firewall.Metrics = (*firewallMetrics)(nil)

type firewallMetrics struct {
	blocks              metric.Int64Counter
	unblocks            metric.Int64Counter
	enforcementFailures metric.Int64Counter
	persistFailures     metric.Int64Counter
	blocked             metric.Int64Gauge
}

func newFirewallMetrics(mp metric.MeterProvider) (*firewallMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(firewallMetrics)
	var err error

	if m.blocks, err = meter.Int64Counter(
		"firewall_blocks_total",
		metric.WithDescription("Total addresses newly blocked"),
	); err != nil {
		return nil, err
	}

	if m.unblocks, err = meter.Int64Counter(
		"firewall_unblocks_total",
		metric.WithDescription("Total addresses unblocked"),
	); err != nil {
		return nil, err
	}

	if m.enforcementFailures, err = meter.Int64Counter(
		"firewall_enforcement_failures_total",
		metric.WithDescription("Total packet filter errors, by operation"),
	); err != nil {
		return nil, err
	}

	if m.persistFailures, err = meter.Int64Counter(
		"firewall_persist_failures_total",
		metric.WithDescription("Total failed saves of the blocked set"),
	); err != nil {
		return nil, err
	}

	if m.blocked, err = meter.Int64Gauge(
		"firewall_blocked_addresses",
		metric.WithDescription("Number of currently blocked addresses"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *firewallMetrics) IncBlocks(ctx context.Context)   { m.blocks.Add(ctx, 1) }
func (m *firewallMetrics) IncUnblocks(ctx context.Context) { m.unblocks.Add(ctx, 1) }

func (m *firewallMetrics) IncEnforcementFailures(ctx context.Context, op string) {
	m.enforcementFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

func (m *firewallMetrics) IncPersistFailures(ctx context.Context) { m.persistFailures.Add(ctx, 1) }

func (m *firewallMetrics) SetBlocked(ctx context.Context, n int) {
	m.blocked.Record(ctx, int64(n))
}
