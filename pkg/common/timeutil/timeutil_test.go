package timeutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealProvider_Now(t *testing.T) {
	provider := RealProvider{}
	now := provider.Now()

	assert.InEpsilon(t, time.Now().UTC().Unix(), now.Unix(), 10, "Time should be close to current time")
	assert.Equal(t, time.UTC, now.Location())
}

func TestMock_Now(t *testing.T) {
	fixedTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	provider := NewMock(fixedTime)

	assert.Equal(t, fixedTime, provider.Now(), "Mock provider should return the fixed time")
}

func TestMock_Since(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	provider := NewMock(start)

	provider.Advance(1500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, provider.Since(start))
	assert.InDelta(t, 1.5, Seconds(provider.Since(start)), 1e-9)
}

func TestMock_SetNow(t *testing.T) {
	initialTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newTime := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)

	provider := NewMock(initialTime)
	assert.Equal(t, initialTime, provider.Now(), "Initial time should match")

	provider.SetNow(newTime)
	assert.Equal(t, newTime, provider.Now(), "Time should be updated after SetNow")
}

func TestMock_ConcurrentAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	provider := NewMock(start)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			provider.Advance(time.Second)
			_ = provider.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, start.Add(50*time.Second), provider.Now())
}

func TestDefault(t *testing.T) {
	provider := Default()

	_, ok := provider.(RealProvider)
	assert.True(t, ok, "Default provider should be a RealProvider")
}
