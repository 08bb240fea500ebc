package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"fairroute/internal/metrics"
	"fairroute/internal/model"
)

// UpdateStop sets the status of the order at index on a route. The route
// becomes completed once all of its orders are.
func (s *Service) UpdateStop(ctx context.Context, tenantID, routeID string, index int, status string) (model.Route, error) {
	st, ok := model.ParseOrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if !ok {
		return model.Route{}, fmt.Errorf("update stop: %q: %w", status, ErrInvalidStatus)
	}
	r, err := s.store.SetStopStatus(ctx, tenantID, routeID, index, st)
	if err != nil {
		return model.Route{}, fmt.Errorf("update stop: %w", err)
	}
	s.publish(tenantID, model.RouteEvent{
		Type:     model.EventRouteStopUpdated,
		RouteID:  r.ID,
		WorkerID: r.AssignedWorkerID,
		Data:     map[string]any{"index": index, "orderId": r.Orders[index].OrderID, "status": string(st)},
	})
	if r.Status == model.RouteCompleted {
		s.publish(tenantID, model.RouteEvent{Type: model.EventRouteCompleted, RouteID: r.ID, WorkerID: r.AssignedWorkerID})
	}
	return r, nil
}

// ToggleDuty flips a worker's on-duty flag unless the tenant has locked duty
// changes.
func (s *Service) ToggleDuty(ctx context.Context, tenantID, workerID string) (model.Worker, error) {
	set, err := s.store.GetSettings(ctx, tenantID)
	if err != nil {
		return model.Worker{}, fmt.Errorf("toggle duty: %w", err)
	}
	if set.DutyLocked {
		return model.Worker{}, fmt.Errorf("toggle duty: %w", ErrDutyLocked)
	}
	w, err := s.store.ToggleDuty(ctx, tenantID, workerID)
	if err != nil {
		return model.Worker{}, fmt.Errorf("toggle duty: %w", err)
	}
	s.log.Info("worker duty toggled", zap.String("tenant", tenantID), zap.String("worker", w.ID), zap.Bool("onDuty", w.OnDuty))
	return w, nil
}

// DeleteWorker removes a worker. It holds the assignment lock so a run in
// flight cannot pair routes with the departing worker; routes it still held
// become pending again.
func (s *Service) DeleteWorker(ctx context.Context, tenantID, workerID string) error {
	unlock, err := s.locker.Lock(ctx, "assign:"+tenantID)
	if err != nil {
		return fmt.Errorf("delete worker: %w", err)
	}
	defer unlock()
	if err := s.store.DeleteWorker(ctx, tenantID, workerID); err != nil {
		return fmt.Errorf("delete worker: %w", err)
	}
	s.log.Info("worker deleted", zap.String("tenant", tenantID), zap.String("worker", workerID))
	return nil
}

func (s *Service) ToggleDutyLock(ctx context.Context, tenantID string) (model.Settings, error) {
	set, err := s.store.ToggleDutyLock(ctx, tenantID)
	if err != nil {
		return set, fmt.Errorf("toggle duty lock: %w", err)
	}
	s.log.Info("duty lock toggled", zap.String("tenant", tenantID), zap.Bool("locked", set.DutyLocked))
	return set, nil
}

// ResetRoutes deletes every route of the tenant. Worker statistics are kept.
func (s *Service) ResetRoutes(ctx context.Context, tenantID string) (int, error) {
	unlock, err := s.locker.Lock(ctx, "assign:"+tenantID)
	if err != nil {
		return 0, fmt.Errorf("reset routes: %w", err)
	}
	defer unlock()
	n, err := s.store.DeleteRoutes(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("reset routes: %w", err)
	}
	s.publish(tenantID, model.RouteEvent{Type: model.EventRoutesReset, Data: map[string]any{"deleted": n}})
	return n, nil
}

func (s *Service) publish(tenantID string, evt model.RouteEvent) {
	evt.TenantID = tenantID
	if evt.TS == "" {
		evt.TS = s.now().Format(time.RFC3339)
	}
	s.pub.Publish(tenantID, evt)
	metrics.EventsPublished.WithLabelValues(evt.Type).Inc()
}
