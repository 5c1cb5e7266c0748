// Package common provides shared utilities for the system.
package common

import (
	"context"
	"net/http"
)

// ReadinessFunc reports nil when the service can take traffic.
type ReadinessFunc func(ctx context.Context) error

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	ready ReadinessFunc
}

// NewHealthHandlers creates probe handlers. A nil ready func means always ready.
func NewHealthHandlers(ready ReadinessFunc) *HealthHandlers {
	if ready == nil {
		ready = func(context.Context) error { return nil }
	}
	return &HealthHandlers{ready: ready}
}

// Liveness always returns 200 OK as long as the server is running.
func (h *HealthHandlers) Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"up"}`))
	}
}

// Readiness returns 503 until the ready func passes.
func (h *HealthHandlers) Readiness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := h.ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"down"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"up"}`))
	}
}
