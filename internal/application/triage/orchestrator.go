// Package triage combines reputation and behavior scores for each observed
// flow, blocks addresses that cross the threshold and publishes the result.
package triage

import (
	"context"
	"math"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/aura-radar/internal/domain/threat"
	"github.com/ahrav/aura-radar/pkg/common/logger"
	"github.com/ahrav/aura-radar/pkg/common/timeutil"
)

// ReputationScorer scores an address by what is known about it.
type ReputationScorer interface {
	Reputation(ctx context.Context, address string) float64
}

// BehaviorScorer scores an address by its timing.
type BehaviorScorer interface {
	Score(ctx context.Context, address string) float64
}

// Blocker blocks addresses.
type Blocker interface {
	Block(ctx context.Context, address string) bool
}

// Locator geolocates addresses.
type Locator interface {
	Locate(address string) (threat.Location, bool)
}

// Publisher receives triage results.
type Publisher interface {
	PublishThreat(ctx context.Context, ev threat.Event)
}

// Orchestrator is stateless beyond its collaborators and safe for concurrent
// callers.
type Orchestrator struct {
	reputation ReputationScorer
	behavior   BehaviorScorer
	blocker    Blocker
	locator    Locator
	publisher  Publisher
	clock      timeutil.Provider
	newID      func() string

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics Metrics
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the wall clock.
func WithClock(c timeutil.Provider) Option { return func(o *Orchestrator) { o.clock = c } }

// WithIDGenerator replaces the event ID generator.
func WithIDGenerator(fn func() string) Option { return func(o *Orchestrator) { o.newID = fn } }

// NewOrchestrator wires the triage pipeline. A nil locator reports every
// address as unknown.
func NewOrchestrator(
	reputation ReputationScorer,
	behavior BehaviorScorer,
	blocker Blocker,
	locator Locator,
	publisher Publisher,
	log *logger.Logger,
	tracer trace.Tracer,
	metrics Metrics,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		reputation: reputation,
		behavior:   behavior,
		blocker:    blocker,
		locator:    locator,
		publisher:  publisher,
		clock:      timeutil.Default(),
		newID:      uuid.NewString,
		logger:     log.With("component", "triage"),
		tracer:     tracer,
		metrics:    metrics,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Triage scores one flow. It returns false, and publishes nothing, when both
// sides are internal.
func (o *Orchestrator) Triage(ctx context.Context, flow threat.Flow) (threat.Event, bool) {
	external, ok := threat.ExternalSide(flow)
	if !ok {
		o.metrics.IncSkipped(ctx)
		return threat.Event{}, false
	}

	ctx, span := o.tracer.Start(ctx, "triage.Triage",
		trace.WithAttributes(
			attribute.String("src", flow.Src),
			attribute.String("dst", flow.Dst),
			attribute.String("external", external),
		),
	)
	defer span.End()

	rep := o.reputation.Reputation(ctx, external)
	beh := o.behavior.Score(ctx, external)
	combined := math.Min(1.0, math.Round((rep+beh)*100)/100)

	blocked := combined >= threat.BlockThreshold
	if blocked {
		if o.blocker.Block(ctx, external) {
			o.logger.Warn(ctx, "threat blocked",
				"address", external,
				"score", combined,
				"reputation", rep,
				"behavior", beh,
			)
		}
	}

	loc := threat.UnknownLocation
	if o.locator != nil {
		if l, found := o.locator.Locate(external); found {
			loc = l
		}
	}

	ev := threat.Event{
		ID:            o.newID(),
		ObservedAt:    o.clock.Now(),
		SrcAddress:    flow.Src,
		DstAddress:    flow.Dst,
		ExternalAddr:  external,
		CombinedScore: combined,
		Reputation:    rep,
		Behavior:      beh,
		Country:       loc.Country,
		Latitude:      loc.Latitude,
		Longitude:     loc.Longitude,
		Blocked:       blocked,
	}

	span.SetAttributes(
		attribute.Float64("score", combined),
		attribute.Bool("blocked", blocked),
	)
	o.metrics.ObserveCombinedScore(ctx, combined)
	o.metrics.IncTriaged(ctx, blocked)
	o.logger.Debug(ctx, "flow triaged",
		"src", flow.Src,
		"dst", flow.Dst,
		"score", combined,
		"blocked", blocked,
	)

	o.publisher.PublishThreat(ctx, ev)
	return ev, true
}

// TriageBatch triages every flow in order, stopping early when ctx is
// canceled. It returns the number of flows that produced an event.
func (o *Orchestrator) TriageBatch(ctx context.Context, flows []threat.Flow) int {
	n := 0
	for _, f := range flows {
		if ctx.Err() != nil {
			return n
		}
		if _, ok := o.Triage(ctx, f); ok {
			n++
		}
	}
	return n
}
