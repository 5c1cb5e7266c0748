// Package health aggregates component readiness probes.
package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ahrav/aura-radar/pkg/common/logger"
)

// ErrNotReady is returned while the process is still wiring components.
var ErrNotReady = errors.New("not ready")

// Probe reports nil when a component is usable.
type Probe func(ctx context.Context) error

// Report is the result of running every probe.
type Report struct {
	Healthy    bool              `json:"healthy"`
	Components map[string]string `json:"components"`
}

// Checker runs named probes. It reports not ready until MarkReady is called.
type Checker struct {
	ready atomic.Bool

	mu     sync.RWMutex
	probes map[string]Probe
	order  []string

	logger  *logger.Logger
	metrics HealthMetrics
}

// NewChecker creates a checker with no probes.
func NewChecker(log *logger.Logger, metrics HealthMetrics) *Checker {
	return &Checker{
		probes:  make(map[string]Probe),
		logger:  log.With("component", "health"),
		metrics: metrics,
	}
}

// Register adds or replaces a named probe.
func (c *Checker) Register(name string, p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.probes[name]; !ok {
		c.order = append(c.order, name)
	}
	c.probes[name] = p
}

// MarkReady flips the checker to ready.
func (c *Checker) MarkReady() { c.ready.Store(true) }

// MarkNotReady is used during shutdown so load balancers stop routing.
func (c *Checker) MarkNotReady() { c.ready.Store(false) }

// Check runs all probes and records their outcome.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	names := append([]string(nil), c.order...)
	probes := make([]Probe, len(names))
	for i, n := range names {
		probes[i] = c.probes[n]
	}
	c.mu.RUnlock()

	rep := Report{Healthy: c.ready.Load(), Components: make(map[string]string, len(names))}
	for i, name := range names {
		status := "ok"
		healthy := true
		if err := probes[i](ctx); err != nil {
			status = err.Error()
			healthy = false
			rep.Healthy = false
		}
		rep.Components[name] = status
		c.metrics.SetComponentHealth(ctx, name, healthy)
	}
	c.metrics.SetSystemHealth(ctx, rep.Healthy)

	return rep
}

// Ready returns nil when the checker is marked ready and every probe passes.
func (c *Checker) Ready(ctx context.Context) error {
	if !c.ready.Load() {
		return ErrNotReady
	}

	rep := c.Check(ctx)
	if rep.Healthy {
		return nil
	}

	for _, name := range c.names() {
		if s := rep.Components[name]; s != "ok" {
			c.logger.Warn(ctx, "Readiness probe failed", "probe", name, "reason", s)
			return fmt.Errorf("%s: %s", name, s)
		}
	}
	return ErrNotReady
}

func (c *Checker) names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}
