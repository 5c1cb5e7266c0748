package httphandler

import (
	"context"
	"errors"
	"net/http"

	domain "github.com/ahrav/aura-radar/internal/domain/integrity"
)

// IntegrityService is the part of the drift detector the API drives.
type IntegrityService interface {
	ForceScan(ctx context.Context) (*domain.Event, error)
	CreateBaseline(ctx context.Context) (domain.Snapshot, error)
}

// IntegrityFeed drains drift events.
type IntegrityFeed interface {
	DrainIntegrity() []*domain.Event
}

// ScanResponse is the result of a forced scan.
type ScanResponse struct {
	Status string        `json:"status"`
	Event  *domain.Event `json:"event"`
}

// BaselineResponse is the result of a baseline rebuild.
type BaselineResponse struct {
	Files int `json:"files"`
}

// IntegrityHandler serves the drift detector endpoints.
type IntegrityHandler struct {
	detector IntegrityService
	feed     IntegrityFeed
}

// NewIntegrityHandler creates the handler.
func NewIntegrityHandler(detector IntegrityService, feed IntegrityFeed) *IntegrityHandler {
	return &IntegrityHandler{detector: detector, feed: feed}
}

// Events handles GET /integrity. Every call consumes the queued events.
func (h *IntegrityHandler) Events(w http.ResponseWriter, _ *http.Request) {
	evs := h.feed.DrainIntegrity()
	if evs == nil {
		evs = []*domain.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

// Scan handles POST /integrity/scan and GET /force_integrity.
func (h *IntegrityHandler) Scan(w http.ResponseWriter, r *http.Request) {
	ev, err := h.detector.ForceScan(r.Context())
	switch {
	case errors.Is(err, domain.ErrNoBaseline):
		writeError(w, http.StatusConflict, "no_baseline", err.Error())
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, "scan_failed", err.Error())
		return
	}

	if ev == nil {
		writeJSON(w, http.StatusOK, ScanResponse{Status: "ok"})
		return
	}
	writeJSON(w, http.StatusOK, ScanResponse{Status: "changed", Event: ev})
}

// Baseline handles POST /integrity/baseline.
func (h *IntegrityHandler) Baseline(w http.ResponseWriter, r *http.Request) {
	snap, err := h.detector.CreateBaseline(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "baseline_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, BaselineResponse{Files: len(snap)})
}
