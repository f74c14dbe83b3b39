// Package middleware provides shared HTTP middleware utilities.
package middleware

import (
	"net/http"
	"time"

	"settleup/pkg/logger"
	"settleup/pkg/metrics"

	"github.com/gorilla/mux"
)

// LoggingMiddleware records basic request metrics using the provided logger.
type LoggingMiddleware struct {
	logger  logger.Logger
	metrics *metrics.HTTPMetrics
}

// NewLoggingMiddleware constructs a LoggingMiddleware. m may be nil.
func NewLoggingMiddleware(log logger.Logger, m *metrics.HTTPMetrics) *LoggingMiddleware {
	return &LoggingMiddleware{logger: log, metrics: m}
}

// Log wraps handlers with structured request/response logging.
func (m *LoggingMiddleware) Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		elapsed := time.Since(start)

		m.logger.Info("HTTP Request", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": elapsed.Milliseconds(),
			"ip":          r.RemoteAddr,
			"user_agent":  r.UserAgent(),
			"request_id":  RequestID(r.Context()),
		})

		if m.metrics != nil {
			m.metrics.Observe(r.Method, routeTemplate(r), wrapped.statusCode, elapsed.Seconds())
		}
	})
}

// routeTemplate keeps metric label cardinality bounded: "/api/v1/settlements/{id}"
// rather than one label per run ID.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
