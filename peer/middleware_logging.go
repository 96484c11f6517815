package peer

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// LoggerConfig configures the request-log middleware.
type LoggerConfig struct {
	Logger zerolog.Logger

	// serviceName is set by the server.
	serviceName string

	// SkipPaths are not logged, e.g. "/metrics".
	SkipPaths []string
}

// Logger returns middleware that writes one log event per request. The level
// follows the status: Info below 400, Warn from 400 and Error from 500.
func Logger(cfg LoggerConfig) Middleware {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			status := wrapped.Status()
			var event *zerolog.Event
			switch {
			case status >= http.StatusInternalServerError:
				event = cfg.Logger.Error()
			case status >= http.StatusBadRequest:
				event = cfg.Logger.Warn()
			default:
				event = cfg.Logger.Info()
			}

			event.
				Str("service", cfg.serviceName).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Int("bytes", wrapped.BytesWritten()).
				Int64("request_size", r.ContentLength).
				Str("remote_addr", r.RemoteAddr)

			if route := routePattern(r); route != "" {
				event.Str("route", route)
			}
			if id := RequestIDFromContext(r.Context()); id != "" {
				event.Str("request_id", id)
			}

			event.Msg("request completed")
		})
	}
}

// routePattern returns the chi route that matched r, once routing is done.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
