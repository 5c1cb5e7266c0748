// Package integrity detects filesystem drift against a trusted baseline of
// per-file SHA-256 digests.
package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/aura-radar/internal/domain/integrity"
	"github.com/ahrav/aura-radar/internal/domain/threat"
	"github.com/ahrav/aura-radar/pkg/common/logger"
	"github.com/ahrav/aura-radar/pkg/common/timeutil"
)

// Default scheduling.
const (
	DefaultInterval     = 30 * time.Second
	DefaultInitialDelay = time.Second
)

// Publisher receives drift events.
type Publisher interface {
	PublishIntegrity(ctx context.Context, ev *integrity.Event)
}

// Config contains the tunables of the detector.
type Config struct {
	Roots        []string
	MaxFiles     int
	Interval     time.Duration
	InitialDelay time.Duration
	// FoldCase lower-cases paths. It is forced on for case-insensitive
	// platforms.
	FoldCase bool
}

// Status is the observable state of the detector.
type Status struct {
	State         integrity.State `json:"state"`
	BaselineFiles int             `json:"baseline_files"`
	Partial       bool            `json:"partial"`
	MissingRoots  []string        `json:"missing_roots,omitempty"`
	LastScanAt    time.Time       `json:"last_scan_at,omitzero"`
	LastResult    string          `json:"last_result,omitempty"`
}

// Scan results reported in status.
const (
	resultChanged     = "changed"
	resultNoChange    = "ok"
	resultInterrupted = "interrupted"
)

// Detector owns the baseline. Scans and baseline rebuilds share one critical
// section, so a forced scan never races a scheduled one.
type Detector struct {
	cfg Config

	// scanMu serializes CreateBaseline, DetectDrift and ForceScan.
	scanMu sync.Mutex

	mu         sync.RWMutex
	baseline   integrity.Snapshot
	state      integrity.State
	partial    bool
	missing    []string
	lastScanAt time.Time
	lastResult string

	repo      integrity.BaselineRepository
	publisher Publisher
	clock     timeutil.Provider
	newID     func() string

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics Metrics
}

// Option customizes a Detector.
type Option func(*Detector)

// WithClock replaces the wall clock.
func WithClock(c timeutil.Provider) Option { return func(d *Detector) { d.clock = c } }

// WithIDGenerator replaces the event ID generator.
func WithIDGenerator(fn func() string) Option { return func(d *Detector) { d.newID = fn } }

// NewDetector creates a detector and loads any persisted baseline. A missing
// or corrupt record leaves the detector in the no-baseline state.
func NewDetector(
	ctx context.Context,
	cfg Config,
	repo integrity.BaselineRepository,
	publisher Publisher,
	log *logger.Logger,
	tracer trace.Tracer,
	metrics Metrics,
	opts ...Option,
) *Detector {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		cfg.FoldCase = true
	}

	d := &Detector{
		cfg:       cfg,
		state:     integrity.StateNoBaseline,
		repo:      repo,
		publisher: publisher,
		clock:     timeutil.Default(),
		newID:     uuid.NewString,
		logger:    log.With("component", "integrity_detector"),
		tracer:    tracer,
		metrics:   metrics,
	}
	for _, opt := range opts {
		opt(d)
	}

	snap, err := repo.Load(ctx)
	switch {
	case err != nil:
		d.logger.Warn(ctx, "failed to load integrity baseline", "error", err)
	case len(snap) == 0:
		d.logger.Info(ctx, "integrity baseline not found")
	default:
		d.baseline = d.normalizeSnapshot(snap)
		d.state = integrity.StateIdle
		d.logger.Info(ctx, "integrity baseline loaded", "files", len(d.baseline))
	}

	return d
}

// CreateBaseline walks the watch roots, replaces the baseline wholesale and
// persists it. The in-memory baseline is only replaced once the save
// succeeds.
func (d *Detector) CreateBaseline(ctx context.Context) (integrity.Snapshot, error) {
	d.scanMu.Lock()
	defer d.scanMu.Unlock()

	return d.createBaselineLocked(ctx)
}

func (d *Detector) createBaselineLocked(ctx context.Context) (integrity.Snapshot, error) {
	ctx, span := d.tracer.Start(ctx, "integrity.CreateBaseline")
	defer span.End()

	prev := d.setState(integrity.StateBaselineBuilding)
	start := d.clock.Now()

	res, err := d.snapshot(ctx)
	if err != nil {
		d.setState(prev)
		span.RecordError(err)
		span.SetStatus(codes.Error, "baseline walk interrupted")
		return nil, fmt.Errorf("build baseline: %w", err)
	}

	if err := d.repo.Save(ctx, res.snap); err != nil {
		d.setState(prev)
		err = fmt.Errorf("persist baseline: %w", errors.Join(threat.ErrTransientIO, err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist baseline")
		d.logger.Error(ctx, "failed to persist integrity baseline", "error", err)
		return nil, err
	}

	d.mu.Lock()
	d.baseline = res.snap
	d.partial = res.partial
	d.missing = res.missing
	d.state = integrity.StateIdle
	d.mu.Unlock()

	span.SetAttributes(
		attribute.Int("files", len(res.snap)),
		attribute.Bool("partial", res.partial),
	)
	d.metrics.ObserveBaselineDuration(ctx, d.clock.Since(start))
	d.metrics.SetBaselineFiles(ctx, len(res.snap))
	d.logger.Info(ctx, "integrity baseline created",
		"files", len(res.snap),
		"partial", res.partial,
	)

	return res.snap.Clone(), nil
}

// DetectDrift compares the watch roots against the baseline. It returns nil
// when nothing changed. The baseline is never modified.
func (d *Detector) DetectDrift(ctx context.Context) (*integrity.Event, error) {
	d.scanMu.Lock()
	defer d.scanMu.Unlock()

	return d.detectLocked(ctx)
}

// ForceScan runs a drift scan immediately, waiting for any scan or rebuild
// already in progress.
func (d *Detector) ForceScan(ctx context.Context) (*integrity.Event, error) {
	d.metrics.IncForcedScans(ctx)
	return d.DetectDrift(ctx)
}

func (d *Detector) detectLocked(ctx context.Context) (*integrity.Event, error) {
	ctx, span := d.tracer.Start(ctx, "integrity.DetectDrift")
	defer span.End()

	d.mu.RLock()
	baseline := d.baseline
	hasBaseline := d.state != integrity.StateNoBaseline
	d.mu.RUnlock()
	if !hasBaseline {
		span.SetStatus(codes.Error, "no baseline")
		return nil, integrity.ErrNoBaseline
	}

	d.setState(integrity.StateScanning)
	defer d.setState(integrity.StateIdle)
	start := d.clock.Now()

	res, err := d.snapshot(ctx)
	if err != nil {
		d.recordScan(resultInterrupted)
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan interrupted")
		return nil, fmt.Errorf("scan watch roots: %w", err)
	}

	d.mu.Lock()
	d.missing = res.missing
	d.mu.Unlock()

	changes := integrity.Diff(baseline, res.snap)
	d.metrics.ObserveScanDuration(ctx, d.clock.Since(start))
	span.SetAttributes(attribute.Int("changes", changes.Total()))

	if changes.Empty() {
		d.recordScan(resultNoChange)
		d.logger.Debug(ctx, "no integrity drift detected", "files", len(res.snap))
		return nil, nil
	}

	ev := integrity.NewEvent(d.newID(), d.clock.Now(), changes)
	d.recordScan(resultChanged)
	d.metrics.IncDrift(ctx, len(changes.Added), len(changes.Modified), len(changes.Removed))
	d.logger.Warn(ctx, "integrity drift detected",
		"added", len(changes.Added),
		"modified", len(changes.Modified),
		"removed", len(changes.Removed),
	)
	if d.publisher != nil {
		d.publisher.PublishIntegrity(ctx, ev)
	}

	return ev, nil
}

// Run builds a baseline when none is loaded, waits the initial delay, then
// scans every interval until ctx is canceled.
func (d *Detector) Run(ctx context.Context) error {
	if !d.hasBaseline() {
		d.logger.Info(ctx, "no integrity baseline loaded, creating one")
		if _, err := d.CreateBaseline(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.logger.Error(ctx, "initial baseline failed", "error", err)
		}
	}

	timer := time.NewTimer(d.cfg.InitialDelay)
	defer timer.Stop()

	d.logger.Info(ctx, "integrity monitor started", "interval", d.cfg.Interval.String())
	for {
		select {
		case <-ctx.Done():
			d.logger.Info(ctx, "integrity monitor stopped")
			return nil
		case <-timer.C:
		}

		if !d.hasBaseline() {
			// A previous rebuild failed; try again before scanning.
			if _, err := d.CreateBaseline(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error(ctx, "baseline retry failed", "error", err)
			}
		} else if _, err := d.DetectDrift(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error(ctx, "integrity scan failed", "error", err)
		}

		timer.Reset(d.cfg.Interval)
	}
}

// Status reports the detector state.
func (d *Detector) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return Status{
		State:         d.state,
		BaselineFiles: len(d.baseline),
		Partial:       d.partial,
		MissingRoots:  append([]string(nil), d.missing...),
		LastScanAt:    d.lastScanAt,
		LastResult:    d.lastResult,
	}
}

func (d *Detector) hasBaseline() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state != integrity.StateNoBaseline
}

func (d *Detector) setState(s integrity.State) integrity.State {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.state
	// No baseline exists until one is saved, so a failed or interrupted
	// rebuild falls back to it.
	if s == integrity.StateIdle && d.baseline == nil {
		s = integrity.StateNoBaseline
	}
	d.state = s
	return prev
}

func (d *Detector) recordScan(result string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastScanAt = d.clock.Now()
	d.lastResult = result
}

type walkResult struct {
	snap    integrity.Snapshot
	partial bool
	missing []string
}

var errCapReached = errors.New("file cap reached")

// snapshot hashes every regular file under the watch roots. Missing roots
// are skipped. Unreadable files are left out. The only error is ctx's.
func (d *Detector) snapshot(ctx context.Context) (walkResult, error) {
	res := walkResult{snap: make(integrity.Snapshot)}
	visited := 0

	for _, root := range d.cfg.Roots {
		if err := ctx.Err(); err != nil {
			return walkResult{}, err
		}

		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			res.missing = append(res.missing, root)
			d.logger.Warn(ctx, "watch root missing, skipping",
				"root", root,
				"error", errors.Join(threat.ErrConfigurationGap, err),
			)
			continue
		}

		err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				d.logger.Debug(ctx, "skipping unreadable path", "path", path, "error", err)
				if entry != nil && entry.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if !entry.Type().IsRegular() {
				return nil
			}

			visited++
			if digest, err := hashFile(path); err == nil {
				res.snap[d.normalize(path)] = digest
			} else {
				d.metrics.IncHashFailures(ctx)
				d.logger.Debug(ctx, "skipping unhashable file", "path", path, "error", err)
			}

			if d.cfg.MaxFiles > 0 && visited >= d.cfg.MaxFiles {
				return errCapReached
			}
			return nil
		})

		switch {
		case errors.Is(err, errCapReached):
			res.partial = true
			d.logger.Warn(ctx, "file cap reached, snapshot is partial", "max_files", d.cfg.MaxFiles)
			return res, nil
		case err != nil:
			return walkResult{}, err
		}
	}

	return res, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// normalize makes paths from different walks comparable.
func (d *Detector) normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.Clean(path)
	if d.cfg.FoldCase {
		path = strings.ToLower(path)
	}
	return path
}

func (d *Detector) normalizeSnapshot(s integrity.Snapshot) integrity.Snapshot {
	out := make(integrity.Snapshot, len(s))
	for path, digest := range s {
		out[d.normalize(path)] = digest
	}
	return out
}
