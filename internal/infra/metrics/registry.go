package metrics

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/aura-radar/internal/application/behavior"
	"github.com/ahrav/aura-radar/internal/application/events"
	"github.com/ahrav/aura-radar/internal/application/firewall"
	"github.com/ahrav/aura-radar/internal/application/health"
	"github.com/ahrav/aura-radar/internal/application/integrity"
	"github.com/ahrav/aura-radar/internal/application/reputation"
	"github.com/ahrav/aura-radar/internal/application/sdk/mid"
	"github.com/ahrav/aura-radar/internal/application/triage"
)

const namespace = "aura_radar"

// Registry provides access to all metric implementations.
// It centralizes the creation and management of metrics instances.
type Registry struct {
	API        mid.APIMetrics
	Triage     triage.Metrics
	Behavior   behavior.Metrics
	Reputation reputation.Metrics
	Firewall   firewall.Metrics
	Integrity  integrity.Metrics
	Events     events.Metrics
	Health     health.HealthMetrics
}

// NewRegistry creates and initializes all metrics implementations.
// It uses a single meter provider to ensure consistent configuration.
func NewRegistry(mp metric.MeterProvider) (*Registry, error) {
	apiMetrics, err := newAPIMetrics(mp)
	if err != nil {
		return nil, err
	}

	triageMetrics, err := newTriageMetrics(mp)
	if err != nil {
		return nil, err
	}

	behaviorMetrics, err := newBehaviorMetrics(mp)
	if err != nil {
		return nil, err
	}

	reputationMetrics, err := newReputationMetrics(mp)
	if err != nil {
		return nil, err
	}

	firewallMetrics, err := newFirewallMetrics(mp)
	if err != nil {
		return nil, err
	}

	integrityMetrics, err := newIntegrityMetrics(mp)
	if err != nil {
		return nil, err
	}

	eventsMetrics, err := newEventsMetrics(mp)
	if err != nil {
		return nil, err
	}

	healthMetrics, err := newHealthMetrics(mp)
	if err != nil {
		return nil, err
	}

	return &Registry{
		API:        apiMetrics,
		Triage:     triageMetrics,
		Behavior:   behaviorMetrics,
		Reputation: reputationMetrics,
		Firewall:   firewallMetrics,
		Integrity:  integrityMetrics,
		Events:     eventsMetrics,
		Health:     healthMetrics,
	}, nil
}
