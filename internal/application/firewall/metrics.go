package firewall

import "context"

// Metrics defines metrics for the firewall controller.
type Metrics interface {
	// IncBlocks counts newly blocked addresses.
	IncBlocks(ctx context.Context)

	// IncUnblocks counts removed blocks.
	IncUnblocks(ctx context.Context)

	// IncEnforcementFailures counts enforcer errors by operation.
	IncEnforcementFailures(ctx context.Context, op string)

	// IncPersistFailures counts failed saves of the blocked set.
	IncPersistFailures(ctx context.Context)

	// SetBlocked records the size of the blocked set.
	SetBlocked(ctx context.Context, n int)
}
