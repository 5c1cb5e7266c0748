package reputation

import "context"

// Metrics defines metrics for the reputation engine.
type Metrics interface {
	// IncResolved counts a resolved score by the stage that produced it.
	IncResolved(ctx context.Context, source string)

	// IncLookupFailures counts failed external lookups.
	IncLookupFailures(ctx context.Context)

	// IncLookupSkipped counts external lookups skipped during a cool-down.
	IncLookupSkipped(ctx context.Context)

	// IncRefreshFailures counts drop-list sources that failed to refresh.
	IncRefreshFailures(ctx context.Context, source string)

	// SetDropListEntries records the number of loaded drop-list entries.
	SetDropListEntries(ctx context.Context, n int)
}
