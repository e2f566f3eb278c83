package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// PollCycles counts poll cycles by outcome: committed, partial, stale, failed
	PollCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleet_poll_cycles_total", Help: "Poll cycles by result."},
		[]string{"result"},
	)
	// SourceFailures counts failed fetches per feed source
	SourceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleet_source_failures_total", Help: "Failed feed fetches by source."},
		[]string{"source"},
	)
	// FetchDuration tracks per-source fetch latency in seconds
	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "fleet_fetch_duration_seconds", Help: "Feed fetch duration in seconds.", Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10}},
		[]string{"source"},
	)
	// Generation is the generation of the last committed snapshot
	Generation = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "fleet_snapshot_generation", Help: "Generation of the last committed snapshot."},
	)

	// ReconcileOps counts engine calls made by the scene reconciler
	ReconcileOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "scene_reconcile_ops_total", Help: "Scene engine operations by entity kind and op."},
		[]string{"kind", "op"},
	)
	// LiveHandles is the number of live engine handles per kind
	LiveHandles = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "scene_live_handles", Help: "Live engine handles by entity kind."},
		[]string{"kind"},
	)
	// ViewerConnections is the number of connected websocket viewers
	ViewerConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "scene_viewer_connections", Help: "Connected scene viewers."},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(PollCycles, SourceFailures, FetchDuration, Generation)
		Registry.MustRegister(ReconcileOps, LiveHandles, ViewerConnections)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
