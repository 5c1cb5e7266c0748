package integrity

import "context"

// BaselineRepository persists the trusted snapshot. Load on a missing or
// corrupt record returns an empty snapshot together with an error describing
// why, so callers can log and carry on.
type BaselineRepository interface {
	// Load reads the stored baseline.
	Load(ctx context.Context) (Snapshot, error)

	// Save replaces the stored baseline wholesale.
	Save(ctx context.Context, s Snapshot) error
}
