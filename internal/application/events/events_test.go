package events_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/aura-radar/internal/application/events"
	"github.com/ahrav/aura-radar/internal/domain/integrity"
	"github.com/ahrav/aura-radar/internal/domain/threat"
	"github.com/ahrav/aura-radar/pkg/common/logger"
)

type countingMetrics struct {
	published atomic.Int64
	dropped   atomic.Int64
	failures  atomic.Int64
}

func (c *countingMetrics) IncPublished(context.Context, string)      { c.published.Add(1) }
func (c *countingMetrics) IncDropped(context.Context, string)        { c.dropped.Add(1) }
func (c *countingMetrics) IncForwardFailures(context.Context, string) { c.failures.Add(1) }

// MockSink is a testify mock for events.Sink.
type MockSink struct{ mock.Mock }

func (m *MockSink) Name() string { return "mock" }

func (m *MockSink) ForwardThreat(ctx context.Context, ev threat.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockSink) ForwardIntegrity(ctx context.Context, ev *integrity.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func TestQueue_FIFOAndDrain(t *testing.T) {
	ctx := context.Background()
	q := events.NewQueue[int]("test", 8, &countingMetrics{})

	for i := range 5 {
		q.Publish(ctx, i)
	}
	assert.Equal(t, 5, q.Len())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, q.Drain())
	assert.Empty(t, q.Drain(), "drain is destructive")
	assert.Zero(t, q.Len())
}

func TestQueue_DropsOldestWhenFull(t *testing.T) {
	ctx := context.Background()
	m := &countingMetrics{}
	q := events.NewQueue[int]("test", 3, m)

	for i := range 5 {
		q.Publish(ctx, i)
	}

	assert.Equal(t, []int{2, 3, 4}, q.Drain())
	assert.Equal(t, uint64(2), q.Dropped())
	assert.Equal(t, int64(2), m.dropped.Load())
	assert.Equal(t, int64(5), m.published.Load())
}

func TestQueue_ConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	ctx := context.Background()
	q := events.NewQueue[string]("test", 1024, &countingMetrics{})

	const producers, perProducer = 4, 100
	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				q.Publish(ctx, fmt.Sprintf("%d:%03d", p, i))
			}
		}()
	}
	wg.Wait()

	got := q.Drain()
	require.Len(t, got, producers*perProducer)

	last := make(map[byte]string)
	for _, item := range got {
		prev, ok := last[item[0]]
		if ok {
			assert.Less(t, prev, item)
		}
		last[item[0]] = item
	}
}

func TestHub_PublishAndForward(t *testing.T) {
	ctx := context.Background()
	m := &countingMetrics{}
	sink := new(MockSink)
	sink.On("ForwardThreat", mock.Anything, mock.Anything).Return(nil)
	sink.On("ForwardIntegrity", mock.Anything, mock.Anything).Return(errors.New("nats: connection closed"))

	hub := events.NewHub(16, logger.Noop(), m, sink)

	hub.PublishThreat(ctx, threat.Event{ExternalAddr: "45.1.1.1", CombinedScore: 0.7, Blocked: true})
	hub.PublishIntegrity(ctx, integrity.NewEvent("id-1", time.Now(), integrity.Changes{Added: []string{"/x"}}))
	hub.PublishIntegrity(ctx, nil)

	threats := hub.DrainThreats()
	require.Len(t, threats, 1)
	assert.Equal(t, "45.1.1.1", threats[0].ExternalAddr)

	drift := hub.DrainIntegrity()
	require.Len(t, drift, 1)
	assert.Equal(t, 1, drift[0].TotalChanges)

	assert.Equal(t, int64(1), m.failures.Load(), "forward failure is counted, not fatal")
	sink.AssertNumberOfCalls(t, "ForwardThreat", 1)
	sink.AssertNumberOfCalls(t, "ForwardIntegrity", 1)

	stats := hub.Stats()
	assert.Zero(t, stats[events.ThreatQueue].Depth)
	assert.Zero(t, stats[events.IntegrityQueue].Dropped)
}
