package prometheus

import (
	"strconv"
	"time"

	"github.com/turtacn/molstruct/internal/domain/molecule/parser"
	"github.com/turtacn/molstruct/pkg/errors"
)

// AppMetrics holds all application metrics.  It implements parser.Observer
// and the molecule service's Metrics interface.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Parsing
	ParseAttemptsTotal  CounterVec
	ParseDuration       HistogramVec
	ParseFallbacksTotal CounterVec

	// Service
	UploadsTotal         CounterVec
	UploadSize           HistogramVec
	CacheHitsTotal       CounterVec
	CacheMissesTotal     CounterVec
	MoleculesStoredTotal CounterVec

	// Worker
	MessagesTotal          CounterVec
	MessageProcessDuration HistogramVec

	HealthCheckStatus GaugeVec
}

var (
	DefaultHTTPDurationBuckets  = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultParseDurationBuckets = []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5}
	DefaultSizeBuckets          = []float64{100, 1000, 10000, 100000, 1000000, 10000000}
)

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	m.ParseAttemptsTotal = collector.RegisterCounter("parse_attempts_total", "Parse attempts by engine and outcome", "engine", "format", "result")
	m.ParseDuration = collector.RegisterHistogram("parse_duration_seconds", "Parse attempt duration", DefaultParseDurationBuckets, "engine", "format")
	m.ParseFallbacksTotal = collector.RegisterCounter("parse_fallbacks_total", "Parses handed to the fallback engine", "format")

	m.UploadsTotal = collector.RegisterCounter("uploads_total", "Structure files received", "format")
	m.UploadSize = collector.RegisterHistogram("upload_size_bytes", "Structure file size", DefaultSizeBuckets, "format")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Parse cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Parse cache misses", "cache")
	m.MoleculesStoredTotal = collector.RegisterCounter("molecules_stored_total", "Molecules persisted", "source")

	m.MessagesTotal = collector.RegisterCounter("messages_total", "Consumed messages by outcome", "topic", "status")
	m.MessageProcessDuration = collector.RegisterHistogram("message_process_duration_seconds", "Message handling duration", DefaultHTTPDurationBuckets, "topic")

	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	return m
}

// ObserveAttempt records one engine attempt.  Failures are labelled with
// their error code.
func (m *AppMetrics) ObserveAttempt(engine string, format parser.Format, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = string(errors.GetCode(err))
	}
	m.ParseAttemptsTotal.WithLabelValues(engine, format.String(), result).Inc()
	m.ParseDuration.WithLabelValues(engine, format.String()).Observe(elapsed.Seconds())
}

func (m *AppMetrics) ObserveFallback(format parser.Format) {
	m.ParseFallbacksTotal.WithLabelValues(format.String()).Inc()
}

func (m *AppMetrics) ObserveUpload(format string, size int) {
	m.UploadsTotal.WithLabelValues(format).Inc()
	m.UploadSize.WithLabelValues(format).Observe(float64(size))
}

func (m *AppMetrics) ObserveCache(hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues("parse").Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues("parse").Inc()
	}
}

func (m *AppMetrics) ObserveStored(source string) {
	m.MoleculesStoredTotal.WithLabelValues(source).Inc()
}

// RecordHTTPRequest records a finished request.  path should be the route
// pattern, not the raw URL, to keep label cardinality bounded.
func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TrackInFlight marks a request as active; call the returned func when it ends.
func (m *AppMetrics) TrackInFlight(method string) func() {
	g := m.HTTPActiveRequests.WithLabelValues(method)
	g.Inc()
	return g.Dec
}

// RecordMessage records one handled message.
func (m *AppMetrics) RecordMessage(topic string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.MessagesTotal.WithLabelValues(topic, status).Inc()
	m.MessageProcessDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// SetHealth publishes a component's health as 1 or 0.
func (m *AppMetrics) SetHealth(component string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}

//Personal.AI order the ending
