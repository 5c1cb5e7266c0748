// Package behavior implements the adaptive timing scorer: every external
// address gets a baseline inter-arrival interval, and gaps shorter than the
// baseline raise its behavior score.
package behavior

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/aura-radar/internal/domain/threat"
	"github.com/ahrav/aura-radar/pkg/common/logger"
	"github.com/ahrav/aura-radar/pkg/common/timeutil"
)

const (
	minSeedInterval = 0.5
	maxSeedInterval = 3.0

	burstInterval = 0.3
	burstBonus    = 0.3
	maxJitter     = 0.2

	minDeviationFactor = 0.6
	maxDeviationFactor = 1.0

	// DefaultCapacity bounds the number of tracked addresses.
	DefaultCapacity = 65536
	// DefaultLearningWindow is how long the scorer learns after startup.
	DefaultLearningWindow = 15 * time.Second
)

// ActivityRecord is the per-address timing state.
type ActivityRecord struct {
	OccurrenceCount  uint64
	LastSeenAt       time.Time
	BaselineInterval float64
}

// Random is the source of the scorer's uniform jitter. *rand.Rand satisfies it.
type Random interface {
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }

// Config contains the tunables of the scorer.
type Config struct {
	LearningWindow time.Duration
	Capacity       int
}

// Option customizes a Scorer.
type Option func(*Scorer)

// WithClock replaces the wall clock.
func WithClock(c timeutil.Provider) Option { return func(s *Scorer) { s.clock = c } }

// WithRandom replaces the jitter source.
func WithRandom(r Random) Option { return func(s *Scorer) { s.rand = r } }

// WithBaselineSeeder replaces the function that seeds the baseline interval
// of a newly seen address.
func WithBaselineSeeder(fn func() float64) Option { return func(s *Scorer) { s.seed = fn } }

// Scorer computes behavior scores. It is safe for concurrent use; a single
// mutex serializes the read-modify-write of activity records.
type Scorer struct {
	mu      sync.Mutex
	records *lru.Cache[string, *ActivityRecord]

	mode    atomic.Value // threat.Mode
	started time.Time
	window  time.Duration

	clock timeutil.Provider
	rand  Random
	seed  func() float64

	evictions atomic.Uint64

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics Metrics
}

// NewScorer creates a scorer in Learning mode. The learning window starts now.
func NewScorer(cfg Config, log *logger.Logger, tracer trace.Tracer, metrics Metrics, opts ...Option) (*Scorer, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.LearningWindow <= 0 {
		cfg.LearningWindow = DefaultLearningWindow
	}

	s := &Scorer{
		window:  cfg.LearningWindow,
		clock:   timeutil.Default(),
		rand:    globalRandom{},
		logger:  log.With("component", "behavior_scorer"),
		tracer:  tracer,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seed == nil {
		s.seed = func() float64 { return s.uniform(minSeedInterval, maxSeedInterval) }
	}

	records, err := lru.NewWithEvict(cfg.Capacity, func(string, *ActivityRecord) {
		s.evictions.Add(1)
		s.metrics.IncEvictions(context.Background())
	})
	if err != nil {
		return nil, err
	}
	s.records = records
	s.started = s.clock.Now()
	s.mode.Store(threat.ModeLearning)

	s.logger.Info(context.Background(), "behavioral scorer initialized",
		"mode", threat.ModeLearning,
		"learning_window", cfg.LearningWindow.String(),
		"capacity", cfg.Capacity,
	)

	return s, nil
}

// Score returns the behavior score of address in [0,1] and records the
// observation.
func (s *Scorer) Score(ctx context.Context, address string) float64 {
	_, span := s.tracer.Start(ctx, "behavior.Score")
	defer span.End()

	mode := s.evaluateMode(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	rec, ok := s.records.Get(address)
	if !ok {
		// A newly seen address starts with a zero gap, so its first score
		// runs the same formula as every later one.
		rec = &ActivityRecord{LastSeenAt: now, BaselineInterval: s.seed()}
		s.records.Add(address, rec)
	}

	interval := timeutil.Seconds(now.Sub(rec.LastSeenAt))
	if interval < 0 {
		interval = 0
	}
	rec.LastSeenAt = now
	rec.OccurrenceCount++

	score := s.compute(rec.BaselineInterval, interval)

	if mode == threat.ModeLearning {
		rec.BaselineInterval = (rec.BaselineInterval + interval) / 2
	}

	s.metrics.ObserveScore(ctx, score)
	return score
}

func (s *Scorer) compute(baseline, interval float64) float64 {
	var deviation float64
	if baseline > 0 {
		deviation = math.Max(0, (baseline-interval)/baseline)
	}
	base := deviation * s.uniform(minDeviationFactor, maxDeviationFactor)

	if interval < burstInterval {
		base += burstBonus
	}

	return round2(math.Min(1.0, base+s.uniform(0, maxJitter)))
}

// Status reports the scorer mode and, while learning, the whole seconds left
// in the learning window. TimeRemaining is nil once monitoring.
func (s *Scorer) Status(ctx context.Context) threat.ModeStatus {
	if s.evaluateMode(ctx) == threat.ModeMonitoring {
		return threat.ModeStatus{Mode: threat.ModeMonitoring}
	}

	remaining := int((s.window - s.clock.Since(s.started)).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return threat.ModeStatus{Mode: threat.ModeLearning, TimeRemaining: &remaining}
}

// Record returns a copy of the activity record for address.
func (s *Scorer) Record(address string) (ActivityRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records.Peek(address)
	if !ok {
		return ActivityRecord{}, false
	}
	return *rec, true
}

// Tracked returns the number of addresses currently held.
func (s *Scorer) Tracked() int { return s.records.Len() }

// Evictions returns how many records were dropped to honor the capacity.
func (s *Scorer) Evictions() uint64 { return s.evictions.Load() }

// evaluateMode flips Learning to Monitoring once the window has elapsed. The
// compare-and-swap guarantees a single observed transition.
func (s *Scorer) evaluateMode(ctx context.Context) threat.Mode {
	mode := s.mode.Load().(threat.Mode)
	if mode == threat.ModeMonitoring {
		return mode
	}
	if s.clock.Since(s.started) < s.window {
		return mode
	}
	if s.mode.CompareAndSwap(threat.ModeLearning, threat.ModeMonitoring) {
		s.logger.Info(ctx, "behavioral model switched to monitoring mode",
			"elapsed", s.clock.Since(s.started).String(),
		)
		s.metrics.RecordModeTransition(ctx, threat.ModeLearning, threat.ModeMonitoring)
	}
	return threat.ModeMonitoring
}

func (s *Scorer) uniform(lo, hi float64) float64 { return lo + (hi-lo)*s.rand.Float64() }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
