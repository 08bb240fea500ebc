package store

import (
	"context"
	"errors"

	"fairroute/internal/model"
)

// Store is the persistence interface used by the dispatch service and the API.
type Store interface {
	// Workers
	CreateWorker(ctx context.Context, tenantID string, in model.WorkerIn) (model.Worker, error)
	GetWorker(ctx context.Context, tenantID, id string) (model.Worker, error)
	ListWorkers(ctx context.Context, tenantID string) ([]model.Worker, error)
	ApproveWorker(ctx context.Context, tenantID, id string) (model.Worker, error)
	ToggleDuty(ctx context.Context, tenantID, id string) (model.Worker, error)
	// DeleteWorker removes a worker. Routes it still holds go back to pending;
	// completed routes keep their orders but lose the worker reference.
	DeleteWorker(ctx context.Context, tenantID, id string) error

	// Routes, oldest first. An empty status lists every route.
	ListRoutes(ctx context.Context, tenantID string, status model.RouteStatus) ([]model.Route, error)
	GetRoute(ctx context.Context, tenantID, routeID string) (model.Route, error)
	ActiveRouteForWorker(ctx context.Context, tenantID, workerID string) (model.Route, error)
	SetStopStatus(ctx context.Context, tenantID, routeID string, index int, status model.OrderStatus) (model.Route, error)
	DeleteRoutes(ctx context.Context, tenantID string) (int, error)

	// CommitAssignment persists the routes of one run together with the
	// workers' updated statistics. Either everything is written or nothing.
	CommitAssignment(ctx context.Context, tenantID string, c Commit) ([]model.Route, error)

	// Settings
	GetSettings(ctx context.Context, tenantID string) (model.Settings, error)
	ToggleDutyLock(ctx context.Context, tenantID string) (model.Settings, error)

	Ping(ctx context.Context) error
}

// Commit is the write set of one assignment run. Routes without an ID are
// inserted; routes with one are updated in place.
type Commit struct {
	Routes  []model.Route
	Workers []model.Worker
}

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidStop = errors.New("invalid stop index")
)
