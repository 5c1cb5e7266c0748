package events

import (
	"context"

	"github.com/ahrav/aura-radar/internal/domain/integrity"
	"github.com/ahrav/aura-radar/internal/domain/threat"
	"github.com/ahrav/aura-radar/pkg/common/logger"
)

// Mailbox names.
const (
	ThreatQueue    = "threat"
	IntegrityQueue = "integrity"
)

// Sink receives a copy of every event, e.g. a message bus forwarder.
type Sink interface {
	Name() string
	ForwardThreat(ctx context.Context, ev threat.Event) error
	ForwardIntegrity(ctx context.Context, ev *integrity.Event) error
}

// Hub owns the threat and integrity mailboxes and fans events out to sinks.
type Hub struct {
	threats   *Queue[threat.Event]
	integrity *Queue[*integrity.Event]
	sinks     []Sink

	logger  *logger.Logger
	metrics Metrics
}

// NewHub creates both mailboxes with the given capacity.
func NewHub(capacity int, log *logger.Logger, metrics Metrics, sinks ...Sink) *Hub {
	return &Hub{
		threats:   NewQueue[threat.Event](ThreatQueue, capacity, metrics),
		integrity: NewQueue[*integrity.Event](IntegrityQueue, capacity, metrics),
		sinks:     sinks,
		logger:    log.With("component", "event_hub"),
		metrics:   metrics,
	}
}

// PublishThreat queues a triage result and forwards it to every sink.
func (h *Hub) PublishThreat(ctx context.Context, ev threat.Event) {
	h.threats.Publish(ctx, ev)
	for _, s := range h.sinks {
		if err := s.ForwardThreat(ctx, ev); err != nil {
			h.forwardFailed(ctx, s, ThreatQueue, err)
		}
	}
}

// PublishIntegrity queues a drift event and forwards it to every sink.
func (h *Hub) PublishIntegrity(ctx context.Context, ev *integrity.Event) {
	if ev == nil {
		return
	}
	h.integrity.Publish(ctx, ev)
	for _, s := range h.sinks {
		if err := s.ForwardIntegrity(ctx, ev); err != nil {
			h.forwardFailed(ctx, s, IntegrityQueue, err)
		}
	}
}

func (h *Hub) forwardFailed(ctx context.Context, s Sink, kind string, err error) {
	h.metrics.IncForwardFailures(ctx, s.Name())
	h.logger.Warn(ctx, "failed to forward event", "sink", s.Name(), "kind", kind, "error", err)
}

// DrainThreats returns and removes all queued triage results.
func (h *Hub) DrainThreats() []threat.Event { return h.threats.Drain() }

// DrainIntegrity returns and removes all queued drift events.
func (h *Hub) DrainIntegrity() []*integrity.Event { return h.integrity.Drain() }

// Stats reports depth and drops per mailbox.
func (h *Hub) Stats() map[string]QueueStats {
	return map[string]QueueStats{
		ThreatQueue:    {Depth: h.threats.Len(), Dropped: h.threats.Dropped()},
		IntegrityQueue: {Depth: h.integrity.Len(), Dropped: h.integrity.Dropped()},
	}
}

// QueueStats describes one mailbox.
type QueueStats struct {
	Depth   int    `json:"depth"`
	Dropped uint64 `json:"dropped"`
}
