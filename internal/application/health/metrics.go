package health

import "context"

// HealthMetrics defines metrics for readiness reporting.
type HealthMetrics interface {
	// SetSystemHealth records whether every probe passed.
	SetSystemHealth(ctx context.Context, status bool)

	// SetComponentHealth records the outcome of a single probe.
	SetComponentHealth(ctx context.Context, component string, healthy bool)
}
