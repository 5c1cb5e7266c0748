package integrity

import (
	"context"
	"time"
)

// Metrics defines metrics for the integrity drift detector.
type Metrics interface {
	// ObserveScanDuration records how long one drift scan took.
	ObserveScanDuration(ctx context.Context, d time.Duration)

	// ObserveBaselineDuration records how long a baseline rebuild took.
	ObserveBaselineDuration(ctx context.Context, d time.Duration)

	// SetBaselineFiles records the number of files in the baseline.
	SetBaselineFiles(ctx context.Context, n int)

	// IncDrift counts a drift event with its per-kind change counts.
	IncDrift(ctx context.Context, added, modified, removed int)

	// IncHashFailures counts files that could not be read.
	IncHashFailures(ctx context.Context)

	// IncForcedScans counts scans requested through ForceScan.
	IncForcedScans(ctx context.Context)
}
