// Package prometheus provides a Prometheus-backed metrics.Recorder. It is
// optional and only imported when Prometheus metrics are needed.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sandrolain/nfhttp/metrics"
)

// Recorder implements metrics.Recorder via Prometheus client_golang.
type Recorder struct {
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	poolEvents       *prometheus.CounterVec
	cacheOps         *prometheus.CounterVec
	cacheOpDuration  *prometheus.HistogramVec
	cacheSize        *prometheus.GaugeVec
	httpResponseSize *prometheus.CounterVec
	staleResponses   *prometheus.CounterVec
}

// Config configures a Recorder.
type Config struct {
	// Registry is the Prometheus registry to use. Defaults to
	// prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
	// Namespace for all metrics. Defaults to "nfhttp".
	Namespace string
	// Subsystem for all metrics (optional).
	Subsystem string
	// ConstLabels are added to every metric.
	ConstLabels prometheus.Labels
}

// NewRecorder creates a Recorder registered against the default registry.
func NewRecorder() *Recorder {
	return NewRecorderWithConfig(Config{})
}

// NewRecorderWithRegistry creates a Recorder registered against reg.
func NewRecorderWithRegistry(reg prometheus.Registerer) *Recorder {
	return NewRecorderWithConfig(Config{Registry: reg})
}

// NewRecorderWithConfig creates a Recorder with full control over naming.
func NewRecorderWithConfig(config Config) *Recorder {
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if config.Namespace == "" {
		config.Namespace = "nfhttp"
	}

	factory := promauto.With(config.Registry)

	return &Recorder{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace, Subsystem: config.Subsystem,
			Name: "requests_total", Help: "Total number of transport requests.",
			ConstLabels: config.ConstLabels,
		}, []string{"method", "outcome", "status_code"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace, Subsystem: config.Subsystem,
			Name: "request_duration_seconds", Help: "Transport request duration in seconds.",
			Buckets:     []float64{.01, .05, .1, .5, 1, 2, 5, 10, 30},
			ConstLabels: config.ConstLabels,
		}, []string{"method", "outcome"}),
		poolEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace, Subsystem: config.Subsystem,
			Name: "pool_events_total", Help: "Connection pool lifecycle events.",
			ConstLabels: config.ConstLabels,
		}, []string{"event", "host"}),
		cacheOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace, Subsystem: config.Subsystem,
			Name: "cache_operations_total", Help: "Total number of cache store operations.",
			ConstLabels: config.ConstLabels,
		}, []string{"operation", "backend", "result"}),
		cacheOpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace, Subsystem: config.Subsystem,
			Name: "cache_operation_duration_seconds", Help: "Cache store operation duration in seconds.",
			Buckets:     []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			ConstLabels: config.ConstLabels,
		}, []string{"operation", "backend"}),
		cacheSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace, Subsystem: config.Subsystem,
			Name: "cache_size_bytes", Help: "Current size of a cache backend in bytes.",
			ConstLabels: config.ConstLabels,
		}, []string{"backend"}),
		httpResponseSize: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace, Subsystem: config.Subsystem,
			Name: "response_size_bytes_total", Help: "Total size of response bodies in bytes.",
			ConstLabels: config.ConstLabels,
		}, []string{"cache_status"}),
		staleResponses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace, Subsystem: config.Subsystem,
			Name: "stale_responses_total", Help: "Total number of stale responses served in place of a failed revalidation.",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),
	}
}

func (r *Recorder) RecordRequest(method, outcome string, statusCode int, duration time.Duration) {
	r.requests.WithLabelValues(method, outcome, strconv.Itoa(statusCode)).Inc()
	r.requestDuration.WithLabelValues(method, outcome).Observe(duration.Seconds())
}

func (r *Recorder) RecordPoolEvent(event, host string) {
	r.poolEvents.WithLabelValues(event, host).Inc()
}

func (r *Recorder) RecordCacheOperation(operation, backend, result string, duration time.Duration) {
	r.cacheOps.WithLabelValues(operation, backend, result).Inc()
	r.cacheOpDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

func (r *Recorder) RecordCacheSize(backend string, sizeBytes int64) {
	r.cacheSize.WithLabelValues(backend).Set(float64(sizeBytes))
}

func (r *Recorder) RecordHTTPResponseSize(cacheStatus string, sizeBytes int64) {
	r.httpResponseSize.WithLabelValues(cacheStatus).Add(float64(sizeBytes))
}

func (r *Recorder) RecordStaleResponse(reason string) {
	r.staleResponses.WithLabelValues(reason).Inc()
}

var _ metrics.Recorder = (*Recorder)(nil)
