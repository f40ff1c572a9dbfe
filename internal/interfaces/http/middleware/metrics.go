package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// HTTPRecorder receives request metrics.  *prometheus.AppMetrics satisfies it.
type HTTPRecorder interface {
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)
	TrackInFlight(method string) func()
}

// unmatchedRoute labels requests no route matched, keeping raw URLs out of
// metric labels.
const unmatchedRoute = "unmatched"

// Metrics records request count, latency and in-flight gauge labelled by the
// chi route pattern.
func Metrics(rec HTTPRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			done := rec.TrackInFlight(r.Method)
			defer done()

			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			rec.RecordHTTPRequest(r.Method, route, statusOf(ww), time.Since(start))
		})
	}
}

//Personal.AI order the ending
