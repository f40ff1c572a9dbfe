// Package middleware holds the HTTP middleware of the API server.
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
)

// LoggingConfig tunes RequestLogging.
type LoggingConfig struct {
	SkipPaths []string // probes and scrapes, matched exactly
	// SlowThreshold raises successful requests that take at least this long
	// to warn; zero disables it.
	SlowThreshold time.Duration
}

func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:     []string{"/health", "/healthz", "/readyz", "/metrics"},
		SlowThreshold: 3 * time.Second,
	}
}

// statusOf reports what the client saw: a handler that never wrote
// produced an implicit 200.
func statusOf(ww chimw.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}

// RequestLogging writes one entry per request, at error for 5xx, warn for
// 4xx and slow requests, info otherwise.  Installed after chi's RequestID,
// it also copies the request ID into the context for Logger.WithContext.
func RequestLogging(logger logging.Logger, cfg LoggingConfig) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := chimw.GetReqID(r.Context())
			if rid != "" {
				r = r.WithContext(logging.WithRequestID(r.Context(), rid))
			}
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			took := time.Since(start)
			status := statusOf(ww)

			fields := []logging.Field{
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", status),
				logging.Duration("duration", took),
				logging.Int64("bytes", int64(ww.BytesWritten())),
				logging.String("remote_addr", r.RemoteAddr),
				logging.String(logging.FieldRequestID, rid),
			}
			if ua := r.UserAgent(); ua != "" {
				fields = append(fields, logging.String("user_agent", ua))
			}

			log := logger.Info
			msg := "HTTP request completed"
			switch {
			case status >= 500:
				log, msg = logger.Error, msg+" with server error"
			case status >= 400:
				log, msg = logger.Warn, msg+" with client error"
			case cfg.SlowThreshold > 0 && took >= cfg.SlowThreshold:
				log, msg = logger.Warn, msg+" (slow)"
			}
			log(msg, fields...)
		})
	}
}

//Personal.AI order the ending
