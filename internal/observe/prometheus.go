package observe

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports operation outcomes through a Prometheus
// registry for deployments that scrape metrics instead of reading expvar.
type PrometheusMetricsRecorder struct {
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder registers the engine collectors on the supplied
// registerer. Passing nil registers on the default registry.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "examcore",
		Subsystem: "sync",
		Name:      "operation_duration_seconds",
		Help:      "Duration of exam sync operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "examcore",
		Subsystem: "sync",
		Name:      "operation_results_total",
		Help:      "Outcome counts of exam sync operations.",
	}, []string{"operation", "status"})

	for _, c := range []prometheus.Collector{durations, results} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return &PrometheusMetricsRecorder{durations: durations, results: results}, nil
}

// Observe records a sync operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}
