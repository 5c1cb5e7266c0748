package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/ahrav/aura-radar/internal/domain/threat"
)

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(noop.NewMeterProvider())
	require.NoError(t, err)

	assert.NotNil(t, reg.API)
	assert.NotNil(t, reg.Triage)
	assert.NotNil(t, reg.Behavior)
	assert.NotNil(t, reg.Reputation)
	assert.NotNil(t, reg.Firewall)
	assert.NotNil(t, reg.Integrity)
	assert.NotNil(t, reg.Events)
	assert.NotNil(t, reg.Health)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		reg.Triage.IncTriaged(ctx, true)
		reg.Behavior.RecordModeTransition(ctx, threat.ModeLearning, threat.ModeMonitoring)
		reg.Reputation.IncResolved(ctx, "heuristic")
		reg.Firewall.SetBlocked(ctx, 3)
		reg.Integrity.IncDrift(ctx, 1, 0, 2)
		reg.Integrity.ObserveScanDuration(ctx, time.Second)
		reg.Events.IncDropped(ctx, "threat")
		reg.Health.SetComponentHealth(ctx, "storage", false)
		_ = reg.API.TrackConcurrentRequests(ctx, "/status", func() error { return nil })
	})
}
