package health

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/aura-radar/pkg/common/logger"
)

type recordingMetrics struct {
	mu         sync.Mutex
	system     []bool
	components map[string]bool
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{components: make(map[string]bool)}
}

func (m *recordingMetrics) SetSystemHealth(_ context.Context, status bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.system = append(m.system, status)
}

func (m *recordingMetrics) SetComponentHealth(_ context.Context, component string, healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[component] = healthy
}

func TestCheckerNotReadyUntilMarked(t *testing.T) {
	m := newRecordingMetrics()
	c := NewChecker(logger.Noop(), m)

	assert.ErrorIs(t, c.Ready(context.Background()), ErrNotReady)

	c.MarkReady()
	assert.NoError(t, c.Ready(context.Background()))

	c.MarkNotReady()
	assert.ErrorIs(t, c.Ready(context.Background()), ErrNotReady)
}

func TestCheckerProbes(t *testing.T) {
	tests := []struct {
		name      string
		probes    map[string]Probe
		wantReady bool
	}{
		{
			name:      "all passing",
			probes:    map[string]Probe{"storage": func(context.Context) error { return nil }},
			wantReady: true,
		},
		{
			name: "one failing",
			probes: map[string]Probe{
				"storage": func(context.Context) error { return nil },
				"capture": func(context.Context) error { return errors.New("source closed") },
			},
			wantReady: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := newRecordingMetrics()
			c := NewChecker(logger.Noop(), m)
			for name, p := range tc.probes {
				c.Register(name, p)
			}
			c.MarkReady()

			err := c.Ready(context.Background())
			if tc.wantReady {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "capture")
			}

			rep := c.Check(context.Background())
			assert.Equal(t, tc.wantReady, rep.Healthy)
			assert.Len(t, rep.Components, len(tc.probes))
			for name := range tc.probes {
				assert.Contains(t, m.components, name)
			}
			assert.Equal(t, tc.wantReady, m.system[len(m.system)-1])
		})
	}
}
