package triage

import "context"

// Metrics defines metrics for the triage pipeline.
type Metrics interface {
	// IncTriaged counts triaged flows, split by whether they were blocked.
	IncTriaged(ctx context.Context, blocked bool)

	// IncSkipped counts internal-to-internal flows that were not triaged.
	IncSkipped(ctx context.Context)

	// ObserveCombinedScore records the combined score of a triaged flow.
	ObserveCombinedScore(ctx context.Context, score float64)
}
