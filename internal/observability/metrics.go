package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors for the HTTP layer and the pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	errors         *prometheus.CounterVec
	runs           *prometheus.CounterVec
	stageLatency   *prometheus.HistogramVec
	chunks         *prometheus.HistogramVec
	routes         *prometheus.CounterVec
	batchTickets   *prometheus.CounterVec
}

// NewMetrics registers all collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_router_http_requests_total",
			Help: "HTTP requests by path, method and status",
		}, []string{"path", "method", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticket_router_http_request_duration_ms",
			Help:    "HTTP request latency in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_router_http_errors_total",
			Help: "HTTP errors by path, method and error code",
		}, []string{"path", "method", "code"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_router_pipeline_runs_total",
			Help: "Pipeline runs by final stage",
		}, []string{"outcome"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticket_router_stage_latency_ms",
			Help:    "Latency of each pipeline stage in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3200, 6400, 12800},
		}, []string{"stage"}),
		chunks: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticket_router_retrieved_chunks",
			Help:    "Number of chunks retrieved per query",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
		}, []string{"collection"}),
		routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_router_route_decisions_total",
			Help: "Router decisions by route and collection",
		}, []string{"route", "collection"}),
		batchTickets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_router_batch_tickets_total",
			Help: "Tickets processed by the bulk classification job",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.requestLatency, m.errors,
		m.runs, m.stageLatency, m.chunks, m.routes, m.batchTickets,
	)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(path, method).Observe(float64(duration.Milliseconds()))
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordRun counts a finished pipeline run by its final stage.
func (m *Metrics) RecordRun(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage).Observe(float64(time.Since(start).Milliseconds()))
}

// ObserveChunks records the result size of one retrieval.
func (m *Metrics) ObserveChunks(collection string, n int) {
	if m == nil {
		return
	}
	m.chunks.WithLabelValues(collection).Observe(float64(n))
}

// RecordRoute counts a router decision.
func (m *Metrics) RecordRoute(route, collection string) {
	if m == nil {
		return
	}
	m.routes.WithLabelValues(route, collection).Inc()
}

// RecordBatchTicket counts one ticket of a bulk job as classified or failed.
func (m *Metrics) RecordBatchTicket(result string) {
	if m == nil {
		return
	}
	m.batchTickets.WithLabelValues(result).Inc()
}
