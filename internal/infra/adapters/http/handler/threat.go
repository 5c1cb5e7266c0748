package httphandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ahrav/aura-radar/internal/application/events"
	"github.com/ahrav/aura-radar/internal/application/integrity"
	"github.com/ahrav/aura-radar/internal/application/reputation"
	"github.com/ahrav/aura-radar/internal/domain/firewall"
	"github.com/ahrav/aura-radar/internal/domain/threat"
	"github.com/ahrav/aura-radar/internal/infra/capture"
)

// ModeReporter reports the behavioral scorer mode.
type ModeReporter interface {
	Status(ctx context.Context) threat.ModeStatus
}

// ReputationReporter reports drop-list and lookup state.
type ReputationReporter interface {
	Status() reputation.Status
}

// Firewall is the part of the firewall controller the API exposes.
type Firewall interface {
	Status() firewall.Status
	ListBlocked() []string
	Unblock(ctx context.Context, address string) bool
}

// ThreatFeed drains triage results.
type ThreatFeed interface {
	DrainThreats() []threat.Event
	Stats() map[string]events.QueueStats
}

// CaptureReporter reports capture state.
type CaptureReporter interface {
	Status() capture.Status
}

// IntegrityReporter reports drift detector state.
type IntegrityReporter interface {
	Status() integrity.Status
}

// StatusResponse keeps mode and time_remaining at the top level so existing
// dashboards keep working.
type StatusResponse struct {
	threat.ModeStatus
	Firewall   firewall.Status              `json:"firewall"`
	Reputation reputation.Status            `json:"reputation"`
	Integrity  integrity.Status             `json:"integrity"`
	Capture    capture.Status               `json:"capture"`
	Queues     map[string]events.QueueStats `json:"queues"`
}

// ThreatHandler serves status, traffic and blocked-list endpoints.
type ThreatHandler struct {
	mode       ModeReporter
	reputation ReputationReporter
	firewall   Firewall
	feed       ThreatFeed
	capture    CaptureReporter
	integrity  IntegrityReporter
}

// NewThreatHandler creates the handler.
func NewThreatHandler(
	mode ModeReporter,
	rep ReputationReporter,
	fw Firewall,
	feed ThreatFeed,
	cr CaptureReporter,
	integ IntegrityReporter,
) *ThreatHandler {
	return &ThreatHandler{
		mode:       mode,
		reputation: rep,
		firewall:   fw,
		feed:       feed,
		capture:    cr,
		integrity:  integ,
	}
}

// Status handles GET /status.
func (h *ThreatHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		ModeStatus: h.mode.Status(r.Context()),
		Firewall:   h.firewall.Status(),
		Reputation: h.reputation.Status(),
		Integrity:  h.integrity.Status(),
		Capture:    h.capture.Status(),
		Queues:     h.feed.Stats(),
	})
}

// Traffic handles GET /traffic. Every call consumes the queued events.
func (h *ThreatHandler) Traffic(w http.ResponseWriter, _ *http.Request) {
	evs := h.feed.DrainThreats()
	if evs == nil {
		evs = []threat.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

// Blocked handles GET /blocked.
func (h *ThreatHandler) Blocked(w http.ResponseWriter, _ *http.Request) {
	list := h.firewall.ListBlocked()
	if list == nil {
		list = []string{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Unblock handles DELETE /blocked/{address}.
func (h *ThreatHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	if _, err := threat.Canonical(addr); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", err.Error())
		return
	}

	if !h.firewall.Unblock(r.Context(), addr) {
		writeError(w, http.StatusNotFound, "not_blocked", addr+" is not blocked")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
