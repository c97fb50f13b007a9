// Package metrics provides Prometheus instrumentation for the registry server
// and the deployment validator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled  bool
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Validation metrics
	chainChecksTotal    *prometheus.CounterVec
	contractChecksTotal *prometheus.CounterVec
	rpcCallDuration     *prometheus.HistogramVec
	lastRunPassed       *prometheus.GaugeVec
	runsRecordedTotal   *prometheus.CounterVec
)

// Init initializes the metrics system. Calling it again replaces all
// collectors.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag

	if !enabled {
		return
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"service": svcName}, registry))

	httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	chainChecksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_chain_total",
			Help: "Total number of chains validated",
		},
		[]string{"status"},
	)

	contractChecksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_contract_total",
			Help: "Total number of contract code checks",
		},
		[]string{"status"},
	)

	rpcCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rpc_call_duration_seconds",
			Help:    "JSON-RPC call latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "result"},
	)

	lastRunPassed = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "validation_last_run_passed",
			Help: "1 if the most recent validation run of a version passed, 0 otherwise",
		},
		[]string{"version"},
	)

	runsRecordedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_runs_recorded_total",
			Help: "Total number of validation runs stored",
		},
		[]string{"status"},
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}
