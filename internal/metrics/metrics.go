package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route pattern, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)
	// HTTPRateLimited counts requests rejected by the rate limiter
	HTTPRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "http_rate_limited_total", Help: "Requests rejected with 429."},
	)

	// OrdersIngested counts normalized orders by coordinate source (explicit, gazetteer, none)
	OrdersIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_ingested_total", Help: "Orders produced by the normalizer."},
		[]string{"coord_source"},
	)
	// OrdersSkipped counts malformed rows dropped during ingest
	OrdersSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "orders_skipped_total", Help: "Rows skipped as malformed."},
	)
	RoutesBuilt = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "routes_built_total", Help: "Routes produced by the route builder."},
	)
	RoutesAssigned = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "routes_assigned_total", Help: "Routes handed to a worker."},
	)
	// OverflowPairs counts pairings beyond one route per worker
	OverflowPairs = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "assignment_overflow_pairs_total", Help: "Routes assigned to a worker already holding one from the same run."},
	)
	RouteHardship = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "route_hardship_score", Help: "Hardship score of assigned routes.", Buckets: []float64{25, 50, 100, 150, 200, 300, 500, 1000}},
	)
	// AssignmentRuns counts runs by entry point (import, pending, poller) and outcome
	AssignmentRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "assignment_runs_total", Help: "Assignment runs by entry point and outcome."},
		[]string{"entry", "outcome"},
	)
	AssignmentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "assignment_run_duration_seconds", Help: "Assignment run duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"entry"},
	)
	// EventsPublished counts broker publishes by event type
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_events_published_total", Help: "Route events published."},
		[]string{"type"},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(HTTPRateLimited)
		Registry.MustRegister(OrdersIngested)
		Registry.MustRegister(OrdersSkipped)
		Registry.MustRegister(RoutesBuilt)
		Registry.MustRegister(RoutesAssigned)
		Registry.MustRegister(OverflowPairs)
		Registry.MustRegister(RouteHardship)
		Registry.MustRegister(AssignmentRuns)
		Registry.MustRegister(AssignmentDuration)
		Registry.MustRegister(EventsPublished)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
