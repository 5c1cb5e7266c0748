package integrity_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/aura-radar/internal/application/integrity"
	domain "github.com/ahrav/aura-radar/internal/domain/integrity"
	"github.com/ahrav/aura-radar/pkg/common/logger"
)

type memBaseline struct {
	mu      sync.Mutex
	snap    domain.Snapshot
	saveErr error
	saves   int
}

func (m *memBaseline) Load(context.Context) (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return domain.Snapshot{}, nil
	}
	return m.snap.Clone(), nil
}

func (m *memBaseline) Save(_ context.Context, s domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snap = s.Clone()
	return nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []*domain.Event
}

func (c *capturePublisher) PublishIntegrity(_ context.Context, ev *domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *capturePublisher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type nopMetrics struct{}

func (nopMetrics) ObserveScanDuration(context.Context, time.Duration)     {}
func (nopMetrics) ObserveBaselineDuration(context.Context, time.Duration) {}
func (nopMetrics) SetBaselineFiles(context.Context, int)                  {}
func (nopMetrics) IncDrift(context.Context, int, int, int)                {}
func (nopMetrics) IncHashFailures(context.Context)                        {}
func (nopMetrics) IncForcedScans(context.Context)                         {}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newDetector(t *testing.T, cfg integrity.Config, repo *memBaseline, pub *capturePublisher) *integrity.Detector {
	t.Helper()
	var p integrity.Publisher
	if pub != nil {
		p = pub
	}
	return integrity.NewDetector(
		context.Background(), cfg, repo, p,
		logger.Noop(), noop.NewTracerProvider().Tracer("test"), nopMetrics{},
	)
}

func TestDetector_DriftScenario(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	a := filepath.Join(root, "a.txt")
	b := filepath.Join(root, "sub", "b.txt")
	c := filepath.Join(root, "c.txt")
	writeFile(t, a, "alpha")
	writeFile(t, b, "bravo")

	repo, pub := &memBaseline{}, &capturePublisher{}
	cfg := integrity.Config{Roots: []string{root}}
	d := newDetector(t, cfg, repo, pub)
	assert.Equal(t, domain.StateNoBaseline, d.Status().State)

	_, err := d.DetectDrift(ctx)
	require.ErrorIs(t, err, domain.ErrNoBaseline)

	snap, err := d.CreateBaseline(ctx)
	require.NoError(t, err)
	assert.Len(t, snap, 2)
	assert.Equal(t, domain.StateIdle, d.Status().State)
	assert.Equal(t, 1, repo.saves)

	// Modify a, remove b, add c.
	writeFile(t, a, "alpha-tampered")
	require.NoError(t, os.Remove(b))
	writeFile(t, c, "charlie")

	ev, err := d.DetectDrift(ctx)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, 3, ev.TotalChanges)
	assert.Len(t, ev.Modified, 1)
	assert.Len(t, ev.Removed, 1)
	assert.Len(t, ev.Added, 1)
	assert.True(t, strings.HasSuffix(ev.Modified[0], "a.txt"))
	assert.True(t, strings.HasSuffix(ev.Removed[0], "b.txt"))
	assert.True(t, strings.HasSuffix(ev.Added[0], "c.txt"))

	// The baseline is not updated, so the same drift is reported again.
	again, err := d.DetectDrift(ctx)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, ev.Added, again.Added)
	assert.Equal(t, ev.Modified, again.Modified)
	assert.Equal(t, ev.Removed, again.Removed)
	assert.Equal(t, 2, pub.count())
	assert.Equal(t, 1, repo.saves, "drift detection never persists")

	st := d.Status()
	assert.Equal(t, "changed", st.LastResult)
	assert.Equal(t, 2, st.BaselineFiles)
}

func TestDetector_NoChange(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "x"), "x")

	pub := &capturePublisher{}
	d := newDetector(t, integrity.Config{Roots: []string{root}}, &memBaseline{}, pub)
	_, err := d.CreateBaseline(ctx)
	require.NoError(t, err)

	ev, err := d.ForceScan(ctx)
	require.NoError(t, err)
	assert.Nil(t, ev)
	assert.Zero(t, pub.count())
	assert.Equal(t, "ok", d.Status().LastResult)
}

func TestDetector_LoadsPersistedBaseline(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	path := filepath.Join(root, "kept.txt")
	writeFile(t, path, "v1")

	repo := &memBaseline{}
	first := newDetector(t, integrity.Config{Roots: []string{root}}, repo, nil)
	_, err := first.CreateBaseline(ctx)
	require.NoError(t, err)

	writeFile(t, path, "v2")

	second := newDetector(t, integrity.Config{Roots: []string{root}}, repo, nil)
	assert.Equal(t, domain.StateIdle, second.Status().State)

	ev, err := second.DetectDrift(ctx)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Len(t, ev.Modified, 1)
}

func TestDetector_FileCapMarksPartial(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	for _, name := range []string{"1", "2", "3", "4", "5"} {
		writeFile(t, filepath.Join(root, name), name)
	}

	d := newDetector(t, integrity.Config{Roots: []string{root}, MaxFiles: 3}, &memBaseline{}, nil)
	snap, err := d.CreateBaseline(ctx)
	require.NoError(t, err)

	assert.Len(t, snap, 3)
	assert.True(t, d.Status().Partial)
}

func TestDetector_MissingRootSkipped(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "present"), "p")
	missing := filepath.Join(root, "does-not-exist")

	d := newDetector(t, integrity.Config{Roots: []string{missing, root}}, &memBaseline{}, nil)
	snap, err := d.CreateBaseline(ctx)
	require.NoError(t, err)

	assert.Len(t, snap, 1)
	assert.Equal(t, []string{missing}, d.Status().MissingRoots)
}

func TestDetector_FailedSaveKeepsPreviousBaseline(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "one"), "1")

	repo := &memBaseline{}
	d := newDetector(t, integrity.Config{Roots: []string{root}}, repo, nil)
	_, err := d.CreateBaseline(ctx)
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, "two"), "2")
	repo.mu.Lock()
	repo.saveErr = errors.New("read-only file system")
	repo.mu.Unlock()

	_, err = d.CreateBaseline(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, d.Status().BaselineFiles)
	assert.Equal(t, domain.StateIdle, d.Status().State)

	ev, err := d.DetectDrift(ctx)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Len(t, ev.Added, 1)
}

func TestDetector_CanceledScanEmitsNothing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "f"), "f")

	pub := &capturePublisher{}
	d := newDetector(t, integrity.Config{Roots: []string{root}}, &memBaseline{}, pub)
	_, err := d.CreateBaseline(context.Background())
	require.NoError(t, err)
	writeFile(t, filepath.Join(root, "g"), "g")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ev, err := d.DetectDrift(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, ev)
	assert.Zero(t, pub.count())
	assert.Equal(t, "interrupted", d.Status().LastResult)
}

func TestDetector_ConcurrentForceScans(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "f"), "f")

	pub := &capturePublisher{}
	d := newDetector(t, integrity.Config{Roots: []string{root}}, &memBaseline{}, pub)
	_, err := d.CreateBaseline(ctx)
	require.NoError(t, err)
	writeFile(t, filepath.Join(root, "added"), "new")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev, err := d.ForceScan(ctx)
			assert.NoError(t, err)
			assert.NotNil(t, ev)
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, pub.count())
	assert.Equal(t, domain.StateIdle, d.Status().State)
}

func TestDetector_RunBuildsBaselineAndScans(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "f"), "f")

	repo, pub := &memBaseline{}, &capturePublisher{}
	d := newDetector(t, integrity.Config{
		Roots:        []string{root},
		Interval:     10 * time.Millisecond,
		InitialDelay: time.Millisecond,
	}, repo, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return d.Status().LastScanAt != (time.Time{}) },
		time.Second, 5*time.Millisecond)
	writeFile(t, filepath.Join(root, "late"), "late")
	require.Eventually(t, func() bool { return pub.count() > 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Equal(t, 1, repo.saves)
}
