package events

import "context"

// Metrics defines metrics for the event mailboxes.
type Metrics interface {
	// IncPublished counts items accepted by a mailbox.
	IncPublished(ctx context.Context, queue string)

	// IncDropped counts items discarded because a mailbox was full.
	IncDropped(ctx context.Context, queue string)

	// IncForwardFailures counts events a sink failed to forward.
	IncForwardFailures(ctx context.Context, sink string)
}
