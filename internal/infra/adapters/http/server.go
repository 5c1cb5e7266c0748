// Package http assembles the presentation API router.
package http

import (
	"net/http"

	"github.com/arl/statsviz"
	"github.com/go-chi/chi/v5"

	handler "github.com/ahrav/aura-radar/internal/infra/adapters/http/handler"
)

// APIPrefix is where the presentation endpoints are mounted.
const APIPrefix = "/api/v1"

// QuietPaths are polled continuously by dashboards and logged at debug level.
var QuietPaths = []string{APIPrefix + "/status", APIPrefix + "/traffic", APIPrefix + "/integrity"}

// ServerAdapter routes requests to the domain-specific handlers.
type ServerAdapter struct {
	threatHandler    *handler.ThreatHandler
	integrityHandler *handler.IntegrityHandler
}

// NewServerAdapter creates a new server adapter with the provided handlers.
func NewServerAdapter(threatHandler *handler.ThreatHandler, integrityHandler *handler.IntegrityHandler) *ServerAdapter {
	return &ServerAdapter{
		threatHandler:    threatHandler,
		integrityHandler: integrityHandler,
	}
}

// NewHTTPServer creates the chi router for the presentation API. statsviz is
// mounted under /debug/statsviz when withDebug is set.
func NewHTTPServer(a *ServerAdapter, withDebug bool) (http.Handler, error) {
	r := chi.NewRouter()

	r.Route(APIPrefix, func(r chi.Router) {
		r.Get("/status", a.threatHandler.Status)
		r.Get("/traffic", a.threatHandler.Traffic)
		r.Get("/blocked", a.threatHandler.Blocked)
		r.Delete("/blocked/{address}", a.threatHandler.Unblock)

		r.Get("/integrity", a.integrityHandler.Events)
		r.Post("/integrity/scan", a.integrityHandler.Scan)
		r.Post("/integrity/baseline", a.integrityHandler.Baseline)
		r.Get("/force_integrity", a.integrityHandler.Scan)
	})

	if withDebug {
		srv, err := statsviz.NewServer()
		if err != nil {
			return nil, err
		}
		r.Get("/debug/statsviz/ws", srv.Ws())
		r.Get("/debug/statsviz", http.RedirectHandler("/debug/statsviz/", http.StatusMovedPermanently).ServeHTTP)
		r.Handle("/debug/statsviz/*", srv.Index())
	}

	return r, nil
}
