package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fairroute/internal/metrics"
)

// Handler returns the full HTTP surface with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Orders and routes
	mux.HandleFunc("POST /v1/orders/import", s.ImportOrdersHandler)
	mux.HandleFunc("POST /v1/routes/assign", s.AssignPendingHandler)
	mux.HandleFunc("GET /v1/routes", s.ListRoutesHandler)
	mux.HandleFunc("GET /v1/routes/{id}", s.GetRouteHandler)
	mux.HandleFunc("PATCH /v1/routes/{id}/stops/{index}", s.UpdateStopHandler)

	// Workers
	mux.HandleFunc("POST /v1/workers", s.CreateWorkerHandler)
	mux.HandleFunc("GET /v1/workers", s.ListWorkersHandler)
	mux.HandleFunc("GET /v1/workers/{id}", s.GetWorkerHandler)
	mux.HandleFunc("DELETE /v1/workers/{id}", s.DeleteWorkerHandler)
	mux.HandleFunc("POST /v1/workers/{id}/approve", s.ApproveWorkerHandler)
	mux.HandleFunc("POST /v1/workers/{id}/duty", s.ToggleDutyHandler)
	mux.HandleFunc("GET /v1/workers/{id}/route", s.WorkerRouteHandler)

	// Admin
	mux.HandleFunc("DELETE /v1/admin/routes", s.ResetRoutesHandler)
	mux.HandleFunc("GET /v1/admin/duty-lock", s.GetDutyLockHandler)
	mux.HandleFunc("POST /v1/admin/duty-lock", s.ToggleDutyLockHandler)
	mux.HandleFunc("GET /v1/admin/runs", s.RunsHandler)
	mux.HandleFunc("GET /v1/params", s.ParamsHandler)

	// Events
	mux.HandleFunc("GET /v1/events/ws", s.EventsWSHandler)

	// Ops
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.HandleFunc("GET /debug/info", s.DebugJSON)
	mux.HandleFunc("GET /openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("GET /docs", s.DocsHandler)
	metrics.RegisterDefault()
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return s.tenantScope(s.instrument(s.rateLimit(mux)))
}
