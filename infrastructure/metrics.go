package infrastructure

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the Prometheus registry and the collectors the API reports to.
// It implements Observer for storage, cache and event operations.
type Metrics struct {
	Registry *prometheus.Registry

	operations      *prometheus.CounterVec
	operationTime   *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	httpRequestTime *prometheus.HistogramVec
}

// NewMetrics registers the process, Go runtime and application collectors on a fresh
// registry, labelled with the service name.
func NewMetrics(cfg *Config) *Metrics {
	registry := prometheus.NewRegistry()
	reg := prometheus.WrapRegistererWith(prometheus.Labels{"service": cfg.ServiceName}, registry)

	m := &Metrics{
		Registry: registry,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "infrastructure_operations_total",
			Help: "Completed infrastructure operations by component, operation, resource and status.",
		}, []string{"component", "operation", "resource", "status"}),
		operationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "infrastructure_operation_duration_seconds",
			Help:    "Infrastructure operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"component", "operation", "resource"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpRequestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.operations,
		m.operationTime,
		m.httpRequests,
		m.httpRequestTime,
	)
	return m
}

// ObserveOperation implements Observer.
func (m *Metrics) ObserveOperation(op OperationContext) {
	status := "ok"
	if op.Error != nil {
		status = "error"
	}
	m.operations.WithLabelValues(op.Component, op.Operation, op.Resource, status).Inc()
	m.operationTime.WithLabelValues(op.Component, op.Operation, op.Resource).Observe(op.Duration.Seconds())
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpRequestTime.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
