// Package prometheus exposes molstruct metrics through a private registry.
// Components see only the small vector interfaces below, so a metric that
// fails to register degrades to a no-op instead of a panic.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
)

// MetricsCollector creates metric vectors and serves the registry.
type MetricsCollector interface {
	RegisterCounter(name, help string, labels ...string) CounterVec
	RegisterGauge(name, help string, labels ...string) GaugeVec
	// RegisterHistogram uses the configured default buckets when buckets is nil.
	RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec
	Handler() http.Handler
	Gatherer() prometheus.Gatherer
}

type (
	CounterVec   interface{ WithLabelValues(lvs ...string) Counter }
	GaugeVec     interface{ WithLabelValues(lvs ...string) Gauge }
	HistogramVec interface{ WithLabelValues(lvs ...string) Histogram }

	Counter interface {
		Inc()
		Add(delta float64)
	}
	Gauge interface {
		Set(value float64)
		Inc()
		Dec()
	}
	Histogram interface{ Observe(value float64) }
)

// CollectorConfig is the "metrics" configuration section.
type CollectorConfig struct {
	Enabled                 bool              `mapstructure:"enabled"`
	Path                    string            `mapstructure:"path"`
	Namespace               string            `mapstructure:"namespace"`
	Subsystem               string            `mapstructure:"subsystem"`
	EnableProcessMetrics    bool              `mapstructure:"enable_process_metrics"`
	EnableGoMetrics         bool              `mapstructure:"enable_go_metrics"`
	DefaultHistogramBuckets []float64         `mapstructure:"default_histogram_buckets"`
	ConstLabels             map[string]string `mapstructure:"const_labels"`
}

type registry struct {
	reg     *prometheus.Registry
	cfg     CollectorConfig
	buckets []float64
	logger  logging.Logger
}

// NewMetricsCollector creates a collector over a fresh registry.  A namespace
// is required so every series is prefixed.
func NewMetricsCollector(cfg CollectorConfig, logger logging.Logger) (MetricsCollector, error) {
	if cfg.Namespace == "" {
		return nil, errors.New(errors.ErrCodeValidation, "metrics namespace is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := &registry{reg: prometheus.NewRegistry(), cfg: cfg, buckets: cfg.DefaultHistogramBuckets, logger: logger}
	if r.buckets == nil {
		r.buckets = prometheus.DefBuckets
	}
	if cfg.EnableProcessMetrics {
		r.reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: cfg.Namespace}))
	}
	if cfg.EnableGoMetrics {
		r.reg.MustRegister(collectors.NewGoCollector())
	}
	return r, nil
}

func (r *registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (r *registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *registry) opts(name, help string) prometheus.Opts {
	return prometheus.Opts{
		Namespace:   r.cfg.Namespace,
		Subsystem:   r.cfg.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: r.cfg.ConstLabels,
	}
}

// register adds vec to the registry.  Registering the same metric twice
// yields the first vector; any other conflict reports ok=false.
func register[V prometheus.Collector](r *registry, kind, name string, vec V) (V, bool) {
	err := r.reg.Register(vec)
	if err == nil {
		return vec, true
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(V); ok {
			return existing, true
		}
	}
	r.logger.Error("metric registration failed",
		logging.String("kind", kind), logging.String("name", name), logging.Err(err))
	var zero V
	return zero, false
}

func (r *registry) RegisterCounter(name, help string, labels ...string) CounterVec {
	vec, ok := register(r, "counter", name, prometheus.NewCounterVec(prometheus.CounterOpts(r.opts(name, help)), labels))
	if !ok {
		return noopCounters{}
	}
	return counterVec{vec}
}

func (r *registry) RegisterGauge(name, help string, labels ...string) GaugeVec {
	vec, ok := register(r, "gauge", name, prometheus.NewGaugeVec(prometheus.GaugeOpts(r.opts(name, help)), labels))
	if !ok {
		return noopGauges{}
	}
	return gaugeVec{vec}
}

func (r *registry) RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec {
	if buckets == nil {
		buckets = r.buckets
	}
	o := r.opts(name, help)
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   o.Namespace,
		Subsystem:   o.Subsystem,
		Name:        o.Name,
		Help:        o.Help,
		ConstLabels: o.ConstLabels,
		Buckets:     buckets,
	}, labels)
	vec, ok := register(r, "histogram", name, hv)
	if !ok {
		return noopHistograms{}
	}
	return histogramVec{vec}
}

// ─── adapters ────────────────────────────────────────────────────────────────

type counterVec struct{ *prometheus.CounterVec }

func (v counterVec) WithLabelValues(lvs ...string) Counter {
	return v.CounterVec.WithLabelValues(lvs...)
}

type gaugeVec struct{ *prometheus.GaugeVec }

func (v gaugeVec) WithLabelValues(lvs ...string) Gauge { return v.GaugeVec.WithLabelValues(lvs...) }

type histogramVec struct{ *prometheus.HistogramVec }

func (v histogramVec) WithLabelValues(lvs ...string) Histogram {
	return v.HistogramVec.WithLabelValues(lvs...)
}

type noop struct{}

func (noop) Inc()            {}
func (noop) Dec()            {}
func (noop) Add(float64)     {}
func (noop) Set(float64)     {}
func (noop) Observe(float64) {}

type (
	noopCounters   struct{}
	noopGauges     struct{}
	noopHistograms struct{}
)

func (noopCounters) WithLabelValues(...string) Counter     { return noop{} }
func (noopGauges) WithLabelValues(...string) Gauge         { return noop{} }
func (noopHistograms) WithLabelValues(...string) Histogram { return noop{} }

//Personal.AI order the ending
