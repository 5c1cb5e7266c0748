package common

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandlers(t *testing.T) {
	tests := []struct {
		name       string
		ready      ReadinessFunc
		wantStatus int
		wantBody   string
	}{
		{"nil is ready", nil, http.StatusOK, `{"status":"up"}`},
		{"ready", func(context.Context) error { return nil }, http.StatusOK, `{"status":"up"}`},
		{"not ready", func(context.Context) error { return errors.New("wiring") }, http.StatusServiceUnavailable, `{"status":"down"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandlers(tc.ready)

			rec := httptest.NewRecorder()
			h.Readiness()(rec, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.JSONEq(t, tc.wantBody, rec.Body.String())

			rec = httptest.NewRecorder()
			h.Liveness()(rec, httptest.NewRequest(http.MethodGet, "/health/liveness", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}
