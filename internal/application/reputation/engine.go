// Package reputation scores external addresses from static drop-lists, an
// optional external reputation API and a prefix heuristic, in that order.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/aura-radar/internal/domain/threat"
	"github.com/ahrav/aura-radar/pkg/common/logger"
	"github.com/ahrav/aura-radar/pkg/common/timeutil"
)

// Default tunables.
const (
	DefaultCooldown  = 5 * time.Second
	DefaultCacheTTL  = 30 * time.Minute
	DefaultCacheSize = 8192
)

// DefaultSources are the Spamhaus DROP and EDROP lists.
var DefaultSources = []string{
	"https://www.spamhaus.org/drop/drop.txt",
	"https://www.spamhaus.org/drop/edrop.txt",
}

var (
	highRiskPrefixes   = []string{"45.", "185.", "103.", "198.", "156."}
	mediumRiskPrefixes = []string{"13.", "20.", "34.", "52.", "104.", "40.", "23."}
)

// Source of the resolved score, used for metrics and tracing.
const (
	sourceInternal  = "internal"
	sourceDropList  = "droplist"
	sourceCache     = "cache"
	sourceLookup    = "lookup"
	sourceHeuristic = "heuristic"
)

// Lookup queries an external reputation service. It returns a confidence
// value in 0..100.
type Lookup interface {
	Check(ctx context.Context, address string) (int, error)
}

// Fetcher retrieves the raw entries of one drop-list source.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]string, error)
}

// CacheEntry is a cached external lookup result.
type CacheEntry struct {
	Address   string
	Score     float64
	FetchedAt time.Time
}

// Config contains the tunables of the engine.
type Config struct {
	Sources   []string
	Cooldown  time.Duration
	CacheTTL  time.Duration
	CacheSize int
}

// SourceStatus describes the last refresh of one drop-list source.
type SourceStatus struct {
	Source      string    `json:"source"`
	Entries     int       `json:"entries"`
	LastError   string    `json:"last_error,omitempty"`
	RefreshedAt time.Time `json:"refreshed_at,omitzero"`
}

// Status is the observable state of the engine.
type Status struct {
	DropListEntries int            `json:"droplist_entries"`
	Sources         []SourceStatus `json:"sources"`
	LookupEnabled   bool           `json:"lookup_enabled"`
	CooldownUntil   time.Time      `json:"cooldown_until,omitzero"`
	CachedLookups   int            `json:"cached_lookups"`
}

// entry is one parsed drop-list line.
type entry struct {
	raw    string
	prefix netip.Prefix
	addr   netip.Addr
}

func parseEntry(raw string) entry {
	e := entry{raw: raw}
	if strings.Contains(raw, "/") {
		if p, err := netip.ParsePrefix(raw); err == nil {
			e.prefix = p.Masked()
		}
		return e
	}
	if a, err := netip.ParseAddr(raw); err == nil {
		e.addr = a.Unmap()
	}
	return e
}

// matches reports whether addr, with canonical form text, is covered by the entry.
// A malformed CIDR falls back to comparing against its address portion as a
// string prefix.
func (e entry) matches(addr netip.Addr, text string) bool {
	switch {
	case e.prefix.IsValid():
		return e.prefix.Contains(addr)
	case strings.Contains(e.raw, "/"):
		head, _, _ := strings.Cut(e.raw, "/")
		return head != "" && strings.HasPrefix(text, head)
	case e.addr.IsValid():
		return e.addr == addr
	default:
		return e.raw == text
	}
}

type sourceState struct {
	entries     []entry
	lastErr     error
	refreshedAt time.Time
}

// Engine resolves reputation scores. It is safe for concurrent use.
type Engine struct {
	cfg     Config
	lookup  Lookup
	fetcher Fetcher

	mu      sync.RWMutex
	sources map[string]*sourceState

	coolMu        sync.Mutex
	cooldownUntil time.Time

	cache *expirable.LRU[string, CacheEntry]
	clock timeutil.Provider

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics Metrics
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(c timeutil.Provider) Option { return func(e *Engine) { e.clock = c } }

// NewEngine creates an engine. A nil lookup disables the external service;
// a nil fetcher leaves the drop-list empty.
func NewEngine(
	cfg Config,
	lookup Lookup,
	fetcher Fetcher,
	log *logger.Logger,
	tracer trace.Tracer,
	metrics Metrics,
	opts ...Option,
) *Engine {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}

	e := &Engine{
		cfg:     cfg,
		lookup:  lookup,
		fetcher: fetcher,
		sources: make(map[string]*sourceState, len(cfg.Sources)),
		cache:   expirable.NewLRU[string, CacheEntry](cfg.CacheSize, nil, cfg.CacheTTL),
		clock:   timeutil.Default(),
		logger:  log.With("component", "reputation_engine"),
		tracer:  tracer,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, src := range cfg.Sources {
		e.sources[src] = &sourceState{}
	}

	if lookup == nil {
		e.logger.Info(context.Background(), "external reputation lookup disabled: no credential configured")
	}
	return e
}

// Reputation returns the reputation score of address in [0,1].
func (e *Engine) Reputation(ctx context.Context, address string) float64 {
	ctx, span := e.tracer.Start(ctx, "reputation.Reputation",
		trace.WithAttributes(attribute.String("address", address)),
	)
	defer span.End()

	score, source := e.resolve(ctx, address)
	span.SetAttributes(
		attribute.String("source", source),
		attribute.Float64("score", score),
	)
	e.metrics.IncResolved(ctx, source)
	return score
}

func (e *Engine) resolve(ctx context.Context, address string) (float64, string) {
	addr, err := threat.ParseAddr(address)
	if err != nil || threat.IsInternalAddr(addr) {
		return 0.0, sourceInternal
	}
	text := addr.String()

	if e.inDropList(addr, text) {
		return 1.0, sourceDropList
	}

	if e.lookup != nil {
		if cached, ok := e.cache.Get(text); ok {
			return cached.Score, sourceCache
		}
		if score, ok := e.external(ctx, text); ok {
			return score, sourceLookup
		}
	}

	return heuristic(text), sourceHeuristic
}

func (e *Engine) inDropList(addr netip.Addr, text string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, st := range e.sources {
		for _, ent := range st.entries {
			if ent.matches(addr, text) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) external(ctx context.Context, text string) (float64, bool) {
	now := e.clock.Now()

	e.coolMu.Lock()
	cooling := now.Before(e.cooldownUntil)
	e.coolMu.Unlock()
	if cooling {
		e.metrics.IncLookupSkipped(ctx)
		return 0, false
	}

	span := trace.SpanFromContext(ctx)
	raw, err := e.lookup.Check(ctx, text)
	if err != nil {
		e.coolMu.Lock()
		e.cooldownUntil = e.clock.Now().Add(e.cfg.Cooldown)
		e.coolMu.Unlock()

		span.RecordError(err)
		span.SetStatus(codes.Error, "external reputation lookup failed")
		e.metrics.IncLookupFailures(ctx)
		e.logger.Warn(ctx, "external reputation lookup failed, cooling down",
			"address", text,
			"cooldown", e.cfg.Cooldown.String(),
			"error", err,
		)
		return 0, false
	}

	score := round2(math.Min(1.0, math.Max(0.0, float64(raw)/100.0)))
	e.cache.Add(text, CacheEntry{Address: text, Score: score, FetchedAt: e.clock.Now()})
	return score, true
}

// heuristic scores by well-known hosting prefixes with a jitter derived from
// the address itself, so the same address always gets the same score.
func heuristic(text string) float64 {
	h := float64(xxhash.Sum64String(text)%10) / 10.0

	for _, p := range highRiskPrefixes {
		if strings.HasPrefix(text, p) {
			return round2(0.75 + 0.2*h)
		}
	}
	for _, p := range mediumRiskPrefixes {
		if strings.HasPrefix(text, p) {
			return round2(0.2 + 0.15*h)
		}
	}
	return round2(0.02 * h)
}

// RefreshDropList fetches every configured source. A failing source keeps
// its previous entries. The returned error joins the per-source failures and
// is informational only.
func (e *Engine) RefreshDropList(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "reputation.RefreshDropList")
	defer span.End()

	if e.fetcher == nil || len(e.cfg.Sources) == 0 {
		return nil
	}

	var errs []error
	for _, src := range e.cfg.Sources {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		lines, err := e.fetcher.Fetch(ctx, src)
		if err != nil {
			err = fmt.Errorf("drop-list %s: %w", src, err)
			errs = append(errs, err)
			e.metrics.IncRefreshFailures(ctx, src)
			e.logger.Warn(ctx, "drop-list refresh failed, keeping previous entries",
				"source", src,
				"error", err,
			)
			e.mu.Lock()
			e.sources[src].lastErr = err
			e.mu.Unlock()
			continue
		}

		entries := make([]entry, 0, len(lines))
		for _, l := range lines {
			entries = append(entries, parseEntry(l))
		}

		e.mu.Lock()
		st := e.sources[src]
		st.entries = entries
		st.lastErr = nil
		st.refreshedAt = e.clock.Now()
		e.mu.Unlock()

		e.logger.Info(ctx, "drop-list refreshed", "source", src, "entries", len(entries))
	}

	total := e.entryCount()
	e.metrics.SetDropListEntries(ctx, total)
	span.SetAttributes(attribute.Int("entries", total))

	if len(errs) > 0 {
		err := errors.Join(errs...)
		span.RecordError(err)
		span.SetStatus(codes.Error, "drop-list refresh incomplete")
		return err
	}
	return nil
}

// Run refreshes the drop-lists every interval until ctx is canceled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = e.RefreshDropList(ctx)
		}
	}
}

func (e *Engine) entryCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for _, st := range e.sources {
		n += len(st.entries)
	}
	return n
}

// Status reports drop-list and lookup state.
func (e *Engine) Status() Status {
	e.mu.RLock()
	st := Status{
		LookupEnabled: e.lookup != nil,
		Sources:       make([]SourceStatus, 0, len(e.cfg.Sources)),
		CachedLookups: e.cache.Len(),
	}
	for _, src := range e.cfg.Sources {
		s := e.sources[src]
		ss := SourceStatus{Source: src, Entries: len(s.entries), RefreshedAt: s.refreshedAt}
		if s.lastErr != nil {
			ss.LastError = s.lastErr.Error()
		}
		st.DropListEntries += ss.Entries
		st.Sources = append(st.Sources, ss)
	}
	e.mu.RUnlock()

	e.coolMu.Lock()
	if e.clock.Now().Before(e.cooldownUntil) {
		st.CooldownUntil = e.cooldownUntil
	}
	e.coolMu.Unlock()

	return st
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
