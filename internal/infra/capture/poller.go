package capture

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/aura-radar/internal/domain/threat"
	"github.com/ahrav/aura-radar/pkg/common/logger"
	"github.com/ahrav/aura-radar/pkg/common/timeutil"
)

// DefaultInterval is how often the source is polled when none is configured.
const DefaultInterval = time.Second

// Triager consumes captured flows.
type Triager interface {
	TriageBatch(ctx context.Context, flows []threat.Flow) int
}

// Status is what the presentation surface shows for capture.
type Status struct {
	Source     string    `json:"source"`
	Enabled    bool      `json:"enabled"`
	Polls      uint64    `json:"polls"`
	LastFlows  int       `json:"last_flows"`
	LastNew    int       `json:"last_new"`
	LastError  string    `json:"last_error,omitempty"`
	LastPollAt time.Time `json:"last_poll_at,omitzero"`
}

// Poller feeds the flows of a Source to a Triager on a fixed interval.
// Sources report live connections, so a flow still present from the previous
// snapshot is not triaged again; only connections that appeared since the last
// poll reach the scorer.
type Poller struct {
	source   Source
	triager  Triager
	interval time.Duration
	clock    timeutil.Provider

	mu     sync.RWMutex
	status Status
	prev   map[threat.Flow]int

	logger *logger.Logger
	tracer trace.Tracer
}

// NewPoller creates a poller. A nil source disables capture.
func NewPoller(src Source, triager Triager, interval time.Duration, log *logger.Logger, tracer trace.Tracer) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}

	name := SourceNone
	if src != nil {
		name = src.Name()
	}

	return &Poller{
		source:   src,
		triager:  triager,
		interval: interval,
		clock:    timeutil.Default(),
		status:   Status{Source: name, Enabled: src != nil},
		logger:   log.With("component", "capture", "source", name),
		tracer:   tracer,
	}
}

// Poll takes one snapshot and triages the flows that were not in the previous
// one. It returns the number of flows that were triaged.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	if p.source == nil {
		return 0, nil
	}

	ctx, span := p.tracer.Start(ctx, "capture.Poll", trace.WithAttributes(
		attribute.String("source", p.source.Name()),
	))
	defer span.End()

	flows, err := p.source.Snapshot(ctx)

	p.mu.Lock()
	p.status.Polls++
	p.status.LastPollAt = p.clock.Now()
	p.status.LastFlows = len(flows)
	p.status.LastNew = 0
	p.status.LastError = ""
	if err != nil {
		p.status.LastError = err.Error()
	} else {
		flows = p.freshLocked(flows)
		p.status.LastNew = len(flows)
	}
	p.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot failed")
		return 0, err
	}

	n := p.triager.TriageBatch(ctx, flows)
	span.SetAttributes(attribute.Int("new_flows", len(flows)), attribute.Int("triaged", n))
	return n, nil
}

// freshLocked returns the flows of snapshot that the previous snapshot did
// not hold and remembers snapshot for the next poll. Flows are counted per
// address pair, so a second connection to the same host is still new.
func (p *Poller) freshLocked(snapshot []threat.Flow) []threat.Flow {
	counts := make(map[threat.Flow]int, len(snapshot))
	fresh := make([]threat.Flow, 0, len(snapshot))
	for _, f := range snapshot {
		counts[f]++
		if counts[f] > p.prev[f] {
			fresh = append(fresh, f)
		}
	}
	p.prev = counts
	return fresh
}

// Run polls until ctx is cancelled. Snapshot errors are logged and retried on
// the next tick; consecutive identical errors are logged once.
func (p *Poller) Run(ctx context.Context) error {
	if p.source == nil {
		p.logger.Info(ctx, "capture disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	p.logger.Info(ctx, "capture started", "interval", p.interval.String())
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var lastErr string
	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			if err.Error() != lastErr {
				p.logger.Warn(ctx, "capture snapshot failed", "error", err)
			}
			lastErr = err.Error()
		} else {
			lastErr = ""
		}

		select {
		case <-ctx.Done():
			p.logger.Info(ctx, "capture stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Status returns a copy of the poller status.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}
