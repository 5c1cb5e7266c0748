// Package mid provides app level middleware support.
package mid

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/aura-radar/pkg/common/logger"
)

// HTTPMiddleware represents a standard Go HTTP middleware function. It wraps an HTTP
// handler and returns a new handler, allowing for pre and post-processing of requests.
type HTTPMiddleware func(http.Handler) http.Handler

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and passes it to the wrapped ResponseWriter.
func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Write captures a 200 status if WriteHeader hasn't been called yet.
func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Hijack lets websocket upgrades (statsviz) pass through the chain.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

// Flush forwards to the underlying writer when it supports flushing.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggerHTTP provides a standard HTTP middleware for request logging. It logs the
// completion of HTTP requests along with the method, path, status code and duration.
// Requests for paths in quiet, such as probes, are logged at debug level.
func LoggerHTTP(log *logger.Logger, quiet ...string) HTTPMiddleware {
	skip := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			logFn := log.Info
			if _, ok := skip[r.URL.Path]; ok {
				logFn = log.Debug
			}
			logFn(ctx, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"status_code", sw.status,
				"took", time.Since(start).String(),
			)
		})
	}
}

// OtelHTTP provides a standard HTTP middleware for OpenTelemetry tracing. It creates
// a span for each request, propagates trace context from incoming headers, and records
// key request/response data as span attributes for observability.
func OtelHTTP(tracer trace.Tracer) HTTPMiddleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			startTime := time.Now()

			// Extract trace context from request headers.
			ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.url", r.URL.String()),
				),
			)
			defer span.End()

			sw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r.WithContext(ctx))

			span.SetAttributes(
				attribute.Int("http.status_code", sw.status),
				attribute.String("http.response_time", time.Since(startTime).String()),
			)
			if sw.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(sw.status))
			}
		})
	}
}

// Panics recovers from panics in handlers, logs the stack and answers with a
// 500 so one bad request never takes the server down.
func Panics(log *logger.Logger) HTTPMiddleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err := fmt.Errorf("panic: %v", rec)
					trace.SpanFromContext(r.Context()).RecordError(err)
					log.Error(r.Context(), "handler panicked",
						"path", r.URL.Path,
						"error", err,
						"stack", string(debug.Stack()),
					)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// GetMiddlewareChain returns the standard middleware stack, outermost first.
func GetMiddlewareChain(log *logger.Logger, tracer trace.Tracer, metrics APIMetrics, quiet ...string) []HTTPMiddleware {
	return []HTTPMiddleware{
		OtelHTTP(tracer),
		MetricsMiddleware(metrics),
		LoggerHTTP(log, quiet...),
		Panics(log),
	}
}

// Chain wraps h with mw so that mw[0] is the outermost handler.
func Chain(h http.Handler, mw ...HTTPMiddleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
