// Package metrics owns the process metrics registry and its exposition.
// The registry is constructed explicitly and injected wherever metrics are
// recorded or rendered; nothing here touches prometheus.DefaultRegisterer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every application metric.
const Namespace = "apiprobe"

// Result label values for readiness checks.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// NewRegistry returns a registry carrying the Go runtime and process
// collectors, so it renders meaningful exposition before any application
// metric has been touched.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProbeMetrics records readiness outcomes. It satisfies health.Recorder.
type ProbeMetrics struct {
	checks   *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewProbeMetrics registers readiness metrics on reg.
func NewProbeMetrics(reg prometheus.Registerer) *ProbeMetrics {
	m := &ProbeMetrics{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "db_checks_total",
			Help:      "Readiness database checks by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "db_check_duration_seconds",
			Help:      "Wall time of readiness database checks, connect through close.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}
	// both series exist from registration
	m.checks.WithLabelValues(ResultOK)
	m.checks.WithLabelValues(ResultError)
	reg.MustRegister(m.checks, m.duration)
	return m
}

// ObserveDBCheck implements health.Recorder.
func (m *ProbeMetrics) ObserveDBCheck(ok bool, d time.Duration) {
	result := ResultError
	if ok {
		result = ResultOK
	}
	m.checks.WithLabelValues(result).Inc()
	m.duration.Observe(d.Seconds())
}

// HTTPMetrics instruments HTTP handlers.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers HTTP request metrics on reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by handler, status code and method.",
		}, []string{"handler", "code", "method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by handler and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler", "method"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

// Wrap instruments next under the given handler label.
func (m *HTTPMetrics) Wrap(handler string, next http.Handler) http.Handler {
	labels := prometheus.Labels{"handler": handler}
	return promhttp.InstrumentHandlerDuration(
		m.duration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(m.requests.MustCurryWith(labels), next),
	)
}
