// Package firewall keeps the authoritative set of blocked addresses, applies
// blocks through a platform enforcer and persists the set after every change.
package firewall

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/aura-radar/internal/domain/firewall"
	"github.com/ahrav/aura-radar/internal/domain/threat"
	"github.com/ahrav/aura-radar/pkg/common/logger"
)

// Controller is the stateful firewall. Mutation and persistence of the
// blocked set happen under one lock so the stored record never runs ahead of
// or behind memory.
type Controller struct {
	mu         sync.Mutex
	blocked    map[string]struct{}
	persistErr error
	enforcing  bool

	enforcer firewall.Enforcer
	repo     firewall.BlockedRepository

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics Metrics
}

// NewController loads the persisted set and returns a controller. A missing
// or corrupt record starts from an empty set.
func NewController(
	ctx context.Context,
	enforcer firewall.Enforcer,
	repo firewall.BlockedRepository,
	log *logger.Logger,
	tracer trace.Tracer,
	metrics Metrics,
) *Controller {
	c := &Controller{
		blocked:  make(map[string]struct{}),
		enforcer: enforcer,
		repo:     repo,
		logger:   log.With("component", "firewall_controller"),
		tracer:   tracer,
		metrics:  metrics,
	}
	c.enforcing = enforcer != nil && enforcer.Available()

	addrs, err := repo.Load(ctx)
	if err != nil {
		c.logger.Warn(ctx, "failed to load blocked addresses, starting empty", "error", err)
	}
	for _, a := range addrs {
		canon, err := threat.Canonical(a)
		if err != nil || threat.IsInternal(canon) {
			c.logger.Warn(ctx, "skipping invalid persisted address", "address", a)
			continue
		}
		c.blocked[canon] = struct{}{}
	}

	if c.enforcing {
		c.logger.Info(ctx, "firewall controller initialized",
			"backend", enforcer.Name(),
			"blocked", len(c.blocked),
		)
	} else {
		c.logger.Warn(ctx, "no enforcement backend available, recording blocks only",
			"blocked", len(c.blocked),
		)
	}
	c.metrics.SetBlocked(ctx, len(c.blocked))

	return c
}

// Block adds address to the blocked set. It returns true only when the
// address was newly blocked. Internal and unparsable addresses are ignored.
func (c *Controller) Block(ctx context.Context, address string) bool {
	ctx, span := c.tracer.Start(ctx, "firewall.Block",
		trace.WithAttributes(attribute.String("address", address)),
	)
	defer span.End()

	canon, ok := c.external(address)
	if !ok {
		span.SetAttributes(attribute.Bool("ignored", true))
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.blocked[canon]; exists {
		return false
	}

	if c.enforcing {
		if err := c.enforcer.Block(ctx, canon); err != nil {
			span.RecordError(err)
			c.metrics.IncEnforcementFailures(ctx, "block")
			c.logger.Error(ctx, "enforcement failed, recording block anyway",
				"address", canon,
				"backend", c.enforcer.Name(),
				"error", err,
			)
		}
	}

	c.blocked[canon] = struct{}{}
	c.persistLocked(ctx, span)
	c.metrics.IncBlocks(ctx)
	c.metrics.SetBlocked(ctx, len(c.blocked))
	c.logger.Info(ctx, "blocked address", "address", canon)

	return true
}

// Unblock removes address from the blocked set. It returns true when the
// address was blocked before the call.
func (c *Controller) Unblock(ctx context.Context, address string) bool {
	ctx, span := c.tracer.Start(ctx, "firewall.Unblock",
		trace.WithAttributes(attribute.String("address", address)),
	)
	defer span.End()

	canon, err := threat.Canonical(address)
	if err != nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.blocked[canon]; !exists {
		return false
	}

	if c.enforcing {
		if err := c.enforcer.Unblock(ctx, canon); err != nil {
			span.RecordError(err)
			c.metrics.IncEnforcementFailures(ctx, "unblock")
			c.logger.Error(ctx, "enforcement removal failed, dropping record anyway",
				"address", canon,
				"backend", c.enforcer.Name(),
				"error", err,
			)
		}
	}

	delete(c.blocked, canon)
	c.persistLocked(ctx, span)
	c.metrics.IncUnblocks(ctx)
	c.metrics.SetBlocked(ctx, len(c.blocked))
	c.logger.Info(ctx, "unblocked address", "address", canon)

	return true
}

// IsBlocked reports whether address is in the blocked set.
func (c *Controller) IsBlocked(address string) bool {
	canon, err := threat.Canonical(address)
	if err != nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.blocked[canon]
	return ok
}

// ListBlocked returns the blocked addresses in sorted order.
func (c *Controller) ListBlocked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedLocked()
}

// Status reports whether blocks are enforced or only recorded.
func (c *Controller) Status() firewall.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := firewall.Status{
		Enforcing: c.enforcing,
		Backend:   "none",
		Blocked:   len(c.blocked),
	}
	if c.enforcer != nil {
		st.Backend = c.enforcer.Name()
	}
	if c.persistErr != nil {
		st.LastPersistError = c.persistErr.Error()
	}
	return st
}

func (c *Controller) external(address string) (string, bool) {
	canon, err := threat.Canonical(address)
	if err != nil {
		return "", false
	}
	if threat.IsInternal(canon) {
		return "", false
	}
	return canon, true
}

func (c *Controller) sortedLocked() []string {
	out := make([]string, 0, len(c.blocked))
	for a := range c.blocked {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

// persistLocked writes the in-memory set. A failure is logged and reported in
// status; the next successful save reconciles the record.
func (c *Controller) persistLocked(ctx context.Context, span trace.Span) {
	err := c.repo.Save(ctx, c.sortedLocked())
	if err == nil {
		c.persistErr = nil
		return
	}

	err = fmt.Errorf("persist blocked addresses: %w", errors.Join(threat.ErrTransientIO, err))
	c.persistErr = err
	span.RecordError(err)
	span.SetStatus(codes.Error, "failed to persist blocked addresses")
	c.metrics.IncPersistFailures(ctx)
	c.logger.Error(ctx, "failed to persist blocked addresses", "error", err)
}
