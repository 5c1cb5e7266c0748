// Package timeutil provides a clock abstraction shared by the scorer, the
// reputation cool-down and the drift scheduler, so that learning windows and
// cool-downs can be driven deterministically in tests.
package timeutil

import (
	"sync"
	"time"
)

// Provider defines the time operations used by the triage pipeline.
type Provider interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the time elapsed since t.
	Since(t time.Time) time.Duration
}

// RealProvider reads the system clock.
type RealProvider struct{}

// Now returns the current time in UTC.
func (RealProvider) Now() time.Time { return time.Now().UTC() }

// Since returns the time elapsed since t.
func (RealProvider) Since(t time.Time) time.Duration { return time.Since(t) }

// Mock is a Provider whose time only moves when told to. It is safe for
// concurrent use because the scorer and detector read it from several
// goroutines.
type Mock struct {
	mu  sync.RWMutex
	now time.Time
}

// Now returns the preset time.
func (m *Mock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Since returns the mock time elapsed since t.
func (m *Mock) Since(t time.Time) time.Duration { return m.Now().Sub(t) }

// SetNow directly sets the current time.
func (m *Mock) SetNow(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the mock time forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Seconds converts a duration into the fractional seconds the scoring
// formulas work in.
func Seconds(d time.Duration) float64 { return d.Seconds() }

// Default returns a Provider that uses the real system time.
func Default() Provider { return RealProvider{} }

// NewMock creates a mock provider starting at t.
func NewMock(t time.Time) *Mock { return &Mock{now: t} }
