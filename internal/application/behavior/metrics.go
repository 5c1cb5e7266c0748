package behavior

import (
	"context"

	"github.com/ahrav/aura-radar/internal/domain/threat"
)

// Metrics defines metrics for the behavioral scorer.
type Metrics interface {
	// ObserveScore records a computed behavior score.
	ObserveScore(ctx context.Context, score float64)

	// IncEvictions counts activity records dropped by the capacity bound.
	IncEvictions(ctx context.Context)

	// RecordModeTransition records the one-time switch out of learning mode.
	RecordModeTransition(ctx context.Context, from, to threat.Mode)
}
