package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/aura-radar/internal/application/integrity"
)

var _ integrity.Metrics = (*integrityMetrics)(nil)

type integrityMetrics struct {
	scanDuration     metric.Float64Histogram
	baselineDuration metric.Float64Histogram
	baselineFiles    metric.Int64Gauge
	driftEvents      metric.Int64Counter
	driftChanges     metric.Int64Counter
	hashFailures     metric.Int64Counter
	forcedScans      metric.Int64Counter
}

// newIntegrityMetrics creates the drift detector instruments.
func newIntegrityMetrics(mp metric.MeterProvider) (*integrityMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(integrityMetrics)
	var err error

	if m.scanDuration, err = meter.Float64Histogram(
		"integrity_scan_duration_seconds",
		metric.WithDescription("Duration of integrity drift scans in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.baselineDuration, err = meter.Float64Histogram(
		"integrity_baseline_duration_seconds",
		metric.WithDescription("Duration of integrity baseline rebuilds in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.baselineFiles, err = meter.Int64Gauge(
		"integrity_baseline_files",
		metric.WithDescription("Number of files in the integrity baseline"),
	); err != nil {
		return nil, err
	}

	if m.driftEvents, err = meter.Int64Counter(
		"integrity_drift_events_total",
		metric.WithDescription("Total drift events emitted"),
	); err != nil {
		return nil, err
	}

	if m.driftChanges, err = meter.Int64Counter(
		"integrity_drift_changes_total",
		metric.WithDescription("Total changed paths reported, by kind"),
	); err != nil {
		return nil, err
	}

	if m.hashFailures, err = meter.Int64Counter(
		"integrity_hash_failures_total",
		metric.WithDescription("Total files skipped because they could not be read"),
	); err != nil {
		return nil, err
	}

	if m.forcedScans, err = meter.Int64Counter(
		"integrity_forced_scans_total",
		metric.WithDescription("Total scans requested on demand"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *integrityMetrics) ObserveScanDuration(ctx context.Context, d time.Duration) {
	m.scanDuration.Record(ctx, d.Seconds())
}

func (m *integrityMetrics) ObserveBaselineDuration(ctx context.Context, d time.Duration) {
	m.baselineDuration.Record(ctx, d.Seconds())
}

func (m *integrityMetrics) SetBaselineFiles(ctx context.Context, n int) {
	m.baselineFiles.Record(ctx, int64(n))
}

func (m *integrityMetrics) IncDrift(ctx context.Context, added, modified, removed int) {
	m.driftEvents.Add(ctx, 1)
	for kind, n := range map[string]int{"added": added, "modified": modified, "removed": removed} {
		if n > 0 {
			m.driftChanges.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
		}
	}
}

func (m *integrityMetrics) IncHashFailures(ctx context.Context) { m.hashFailures.Add(ctx, 1) }

func (m *integrityMetrics) IncForcedScans(ctx context.Context) { m.forcedScans.Add(ctx, 1) }
