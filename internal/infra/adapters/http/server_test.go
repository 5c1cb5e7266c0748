package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/aura-radar/internal/application/events"
	"github.com/ahrav/aura-radar/internal/application/integrity"
	"github.com/ahrav/aura-radar/internal/application/reputation"
	"github.com/ahrav/aura-radar/internal/domain/firewall"
	domain "github.com/ahrav/aura-radar/internal/domain/integrity"
	"github.com/ahrav/aura-radar/internal/domain/threat"
	"github.com/ahrav/aura-radar/internal/infra/capture"
	handler "github.com/ahrav/aura-radar/internal/infra/adapters/http/handler"
)

type fakeMode struct{ status threat.ModeStatus }

func (f fakeMode) Status(context.Context) threat.ModeStatus { return f.status }

type fakeReputation struct{}

func (fakeReputation) Status() reputation.Status { return reputation.Status{DropListEntries: 2} }

type fakeCapture struct{}

func (fakeCapture) Status() capture.Status { return capture.Status{Source: "conntrack", Enabled: true} }

type fakeIntegrityStatus struct{}

func (fakeIntegrityStatus) Status() integrity.Status {
	return integrity.Status{State: domain.StateIdle, BaselineFiles: 4}
}

type MockFirewall struct{ mock.Mock }

func (m *MockFirewall) Status() firewall.Status { return firewall.Status{Backend: "none", Blocked: 1} }
func (m *MockFirewall) ListBlocked() []string   { return []string{"45.1.1.1"} }
func (m *MockFirewall) Unblock(ctx context.Context, address string) bool {
	return m.Called(ctx, address).Bool(0)
}

type MockDetector struct{ mock.Mock }

func (m *MockDetector) ForceScan(ctx context.Context) (*domain.Event, error) {
	args := m.Called(ctx)
	ev, _ := args.Get(0).(*domain.Event)
	return ev, args.Error(1)
}

func (m *MockDetector) CreateBaseline(ctx context.Context) (domain.Snapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(domain.Snapshot)
	return snap, args.Error(1)
}

type fakeFeed struct {
	threats   []threat.Event
	integrity []*domain.Event
}

func (f *fakeFeed) DrainThreats() []threat.Event {
	out := f.threats
	f.threats = nil
	return out
}

func (f *fakeFeed) DrainIntegrity() []*domain.Event {
	out := f.integrity
	f.integrity = nil
	return out
}

func (f *fakeFeed) Stats() map[string]events.QueueStats {
	return map[string]events.QueueStats{events.ThreatQueue: {Depth: len(f.threats)}}
}

type fixture struct {
	router   http.Handler
	firewall *MockFirewall
	detector *MockDetector
	feed     *fakeFeed
}

func seconds(n int) *int { return &n }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithMode(t, threat.ModeStatus{Mode: threat.ModeLearning, TimeRemaining: seconds(12)})
}

func newFixtureWithMode(t *testing.T, mode threat.ModeStatus) *fixture {
	t.Helper()

	f := &fixture{firewall: new(MockFirewall), detector: new(MockDetector), feed: &fakeFeed{}}
	th := handler.NewThreatHandler(
		fakeMode{mode},
		fakeReputation{}, f.firewall, f.feed, fakeCapture{}, fakeIntegrityStatus{},
	)
	ih := handler.NewIntegrityHandler(f.detector, f.feed)

	r, err := NewHTTPServer(NewServerAdapter(th, ih), true)
	require.NoError(t, err)
	f.router = r
	return f
}

func (f *fixture) do(method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Learning", body["mode"])
	assert.EqualValues(t, 12, body["time_remaining"])
	assert.Contains(t, body, "firewall")
	assert.Contains(t, body, "reputation")
	assert.Contains(t, body, "integrity")
	assert.Contains(t, body, "capture")
	assert.Contains(t, body, "queues")
}

func TestStatus_TimeRemaining(t *testing.T) {
	tests := []struct {
		name    string
		mode    threat.ModeStatus
		want    any
		present bool
	}{
		{name: "learning at zero", mode: threat.ModeStatus{Mode: threat.ModeLearning, TimeRemaining: seconds(0)}, want: 0.0, present: true},
		{name: "monitoring", mode: threat.ModeStatus{Mode: threat.ModeMonitoring}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newFixtureWithMode(t, tt.mode).do(http.MethodGet, "/api/v1/status")
			require.Equal(t, http.StatusOK, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			got, ok := body["time_remaining"]
			assert.Equal(t, tt.present, ok)
			if tt.present {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestTrafficDrains(t *testing.T) {
	f := newFixture(t)
	f.feed.threats = []threat.Event{{ID: "a"}, {ID: "b"}}

	rec := f.do(http.MethodGet, "/api/v1/traffic")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []threat.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)

	rec = f.do(http.MethodGet, "/api/v1/traffic")
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/v1/integrity")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestBlockedEndpoints(t *testing.T) {
	f := newFixture(t)
	f.firewall.On("Unblock", mock.Anything, "45.1.1.1").Return(true).Once()
	f.firewall.On("Unblock", mock.Anything, "8.8.8.8").Return(false).Once()

	rec := f.do(http.MethodGet, "/api/v1/blocked")
	assert.JSONEq(t, `["45.1.1.1"]`, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/v1/blocked/45.1.1.1").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/v1/blocked/8.8.8.8").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodDelete, "/api/v1/blocked/nope").Code)

	f.firewall.AssertExpectations(t)
}

func TestIntegrityScan(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		event      *domain.Event
		err        error
		wantStatus int
		wantBody   string
	}{
		{"changed", http.MethodPost, "/api/v1/integrity/scan", &domain.Event{ID: "d1"}, nil, http.StatusOK, "changed"},
		{"no change", http.MethodPost, "/api/v1/integrity/scan", nil, nil, http.StatusOK, "ok"},
		{"legacy path", http.MethodGet, "/api/v1/force_integrity", nil, nil, http.StatusOK, "ok"},
		{"no baseline", http.MethodPost, "/api/v1/integrity/scan", nil, domain.ErrNoBaseline, http.StatusConflict, ""},
		{"interrupted", http.MethodPost, "/api/v1/integrity/scan", nil, context.Canceled, http.StatusServiceUnavailable, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.detector.On("ForceScan", mock.Anything).Return(tc.event, tc.err).Once()

			rec := f.do(tc.method, tc.path)
			require.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantBody != "" {
				var body handler.ScanResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tc.wantBody, body.Status)
				assert.Equal(t, tc.event, body.Event)
			}
			f.detector.AssertExpectations(t)
		})
	}
}

func TestIntegrityBaseline(t *testing.T) {
	f := newFixture(t)
	f.detector.On("CreateBaseline", mock.Anything).Return(domain.Snapshot{"/a": "1", "/b": "2"}, nil).Once()
	f.detector.On("CreateBaseline", mock.Anything).Return(nil, errors.New("disk full")).Once()

	rec := f.do(http.MethodPost, "/api/v1/integrity/baseline")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"files":2}`, rec.Body.String())

	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodPost, "/api/v1/integrity/baseline").Code)
}

func TestStatsvizMounted(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusMovedPermanently, f.do(http.MethodGet, "/debug/statsviz").Code)
	assert.NotEqual(t, http.StatusNotFound, f.do(http.MethodGet, "/debug/statsviz/").Code)
}
