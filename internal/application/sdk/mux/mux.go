// Package mux assembles the HTTP handler tree: probes outside the middleware,
// everything else behind the standard chain.
package mux

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/aura-radar/internal/application/sdk/mid"
	"github.com/ahrav/aura-radar/pkg/common"
	"github.com/ahrav/aura-radar/pkg/common/logger"
)

// Probe paths, registered without middleware so probes stay quiet and cheap.
const (
	LivenessPath  = "/api/v1/health/liveness"
	ReadinessPath = "/api/v1/health/readiness"
)

// Options represent optional parameters.
type Options struct {
	corsOrigin []string
	quietPaths []string
}

// WithCORS provides configuration options for CORS.
func WithCORS(origins []string) func(opts *Options) {
	return func(opts *Options) {
		opts.corsOrigin = origins
	}
}

// WithQuietPaths logs requests to the given paths at debug level. Used for
// endpoints that dashboards poll every second.
func WithQuietPaths(paths ...string) func(opts *Options) {
	return func(opts *Options) {
		opts.quietPaths = append(opts.quietPaths, paths...)
	}
}

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Build      string
	Log        *logger.Logger
	Tracer     trace.Tracer
	APIMetrics mid.APIMetrics
	Ready      common.ReadinessFunc
}

func allowedOrigin(origins []string, origin string) bool {
	for _, host := range origins {
		if host == "*" || host == origin {
			return true
		}
	}
	return false
}

func cors(origins []string) mid.HTTPMiddleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && allowedOrigin(origins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WrapWithMiddleware applies the standard middleware stack to an existing HTTP handler
// and mounts the health probes beside it.
func WrapWithMiddleware(cfg Config, handler http.Handler, options ...func(opts *Options)) http.Handler {
	var opts Options
	for _, option := range options {
		option(&opts)
	}

	chain := mid.GetMiddlewareChain(cfg.Log, cfg.Tracer, cfg.APIMetrics, opts.quietPaths...)
	if len(opts.corsOrigin) > 0 {
		// Outermost so preflight requests never reach the handler.
		chain = append([]mid.HTTPMiddleware{cors(opts.corsOrigin)}, chain...)
	}
	wrapped := mid.Chain(handler, chain...)

	probes := common.NewHealthHandlers(cfg.Ready)
	finalMux := http.NewServeMux()
	finalMux.HandleFunc(LivenessPath, probes.Liveness())
	finalMux.HandleFunc(ReadinessPath, probes.Readiness())
	finalMux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.Build != "" && strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("X-Build", cfg.Build)
		}
		wrapped.ServeHTTP(w, r)
	}))

	return finalMux
}
