package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/internal/testutil"
)

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		_, _ = w.Write([]byte("body"))
	})
}

func TestRequestLogging_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
		msg    string
	}{
		{http.StatusOK, "info", "HTTP request completed"},
		{http.StatusNotFound, "warn", "HTTP request completed with client error"},
		{http.StatusBadGateway, "error", "HTTP request completed with server error"},
	}
	for _, tt := range tests {
		log := testutil.NewMockLogger()
		h := chimw.RequestID(RequestLogging(log, DefaultLoggingConfig())(statusHandler(tt.status)))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/molecules", nil))

		assert.Equal(t, tt.status, w.Code)
		assert.True(t, log.HasMessage(tt.level, tt.msg), "status %d", tt.status)
		v, ok := log.FieldValue(tt.msg, "status")
		require.True(t, ok)
		assert.Equal(t, int64(tt.status), v)
		v, ok = log.FieldValue(tt.msg, "bytes")
		require.True(t, ok)
		assert.Equal(t, int64(4), v)
		rid, _ := log.FieldValue(tt.msg, logging.FieldRequestID)
		assert.NotEmpty(t, rid)
	}
}

func TestRequestLogging_SkipPaths(t *testing.T) {
	log := testutil.NewMockLogger()
	h := RequestLogging(log, DefaultLoggingConfig())(statusHandler(http.StatusOK))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, log.GetMessages())
}

func TestRequestLogging_Slow(t *testing.T) {
	log := testutil.NewMockLogger()
	cfg := LoggingConfig{SlowThreshold: time.Millisecond}
	h := RequestLogging(log, cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.True(t, log.HasMessage("warn", "HTTP request completed (slow)"))
}

func TestRequestLogging_PropagatesRequestID(t *testing.T) {
	var seen string
	h := chimw.RequestID(RequestLogging(logging.NewNopLogger(), DefaultLoggingConfig())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = logging.RequestIDFromContext(r.Context())
		})))

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("X-Request-Id", "req-123")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "req-123", seen)
}

//Personal.AI order the ending
