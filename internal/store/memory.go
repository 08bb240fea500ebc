package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fairroute/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu       sync.Mutex
	workers  map[string]model.Worker   // id -> worker
	wByTen   map[string][]string       // tenant -> worker ids
	routes   map[string]model.Route    // id -> route
	rByTen   map[string][]string       // tenant -> route ids, insertion order
	settings map[string]model.Settings // tenant -> settings
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		workers:  map[string]model.Worker{},
		wByTen:   map[string][]string{},
		routes:   map[string]model.Route{},
		rByTen:   map[string][]string{},
		settings: map[string]model.Settings{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) CreateWorker(ctx context.Context, tenantID string, in model.WorkerIn) (model.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := model.Worker{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		Name:       in.Name,
		Email:      in.Email,
		Phone:      in.Phone,
		OnDuty:     in.OnDuty,
		IsActive:   true,
		IsApproved: in.Approved,
		CreatedAt:  m.now(),
	}
	m.workers[w.ID] = w
	m.wByTen[tenantID] = append(m.wByTen[tenantID], w.ID)
	return w, nil
}

func (m *Memory) GetWorker(ctx context.Context, tenantID, id string) (model.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workerLocked(tenantID, id)
}

func (m *Memory) workerLocked(tenantID, id string) (model.Worker, error) {
	w, ok := m.workers[id]
	if !ok || w.TenantID != tenantID {
		return model.Worker{}, ErrNotFound
	}
	return w, nil
}

func (m *Memory) ListWorkers(ctx context.Context, tenantID string) ([]model.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Worker, 0, len(m.wByTen[tenantID]))
	for _, id := range m.wByTen[tenantID] {
		out = append(out, m.workers[id])
	}
	return out, nil
}

func (m *Memory) ApproveWorker(ctx context.Context, tenantID, id string) (model.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, err := m.workerLocked(tenantID, id)
	if err != nil {
		return w, err
	}
	w.IsApproved = true
	m.workers[id] = w
	return w, nil
}

func (m *Memory) ToggleDuty(ctx context.Context, tenantID, id string) (model.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, err := m.workerLocked(tenantID, id)
	if err != nil {
		return w, err
	}
	w.OnDuty = !w.OnDuty
	m.workers[id] = w
	return w, nil
}

func (m *Memory) DeleteWorker(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.workerLocked(tenantID, id); err != nil {
		return err
	}
	delete(m.workers, id)
	m.wByTen[tenantID] = removeID(m.wByTen[tenantID], id)
	now := m.now()
	for _, rid := range m.rByTen[tenantID] {
		r := m.routes[rid]
		if r.AssignedWorkerID != id {
			continue
		}
		r.AssignedWorkerID = ""
		r.Status = r.RollupStatus()
		r.UpdatedAt = now
		m.routes[rid] = r
	}
	return nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (m *Memory) ListRoutes(ctx context.Context, tenantID string, status model.RouteStatus) ([]model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Route{}
	for _, id := range m.rByTen[tenantID] {
		r := m.routes[id]
		if status == "" || r.Status == status {
			out = append(out, cloneRoute(r))
		}
	}
	return out, nil
}

func (m *Memory) GetRoute(ctx context.Context, tenantID, routeID string) (model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[routeID]
	if !ok || r.TenantID != tenantID {
		return model.Route{}, ErrNotFound
	}
	return cloneRoute(r), nil
}

func (m *Memory) ActiveRouteForWorker(ctx context.Context, tenantID, workerID string) (model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.rByTen[tenantID] {
		r := m.routes[id]
		if r.AssignedWorkerID == workerID && r.Status == model.RouteAssigned {
			return cloneRoute(r), nil
		}
	}
	return model.Route{}, ErrNotFound
}

func (m *Memory) SetStopStatus(ctx context.Context, tenantID, routeID string, index int, status model.OrderStatus) (model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[routeID]
	if !ok || r.TenantID != tenantID {
		return model.Route{}, ErrNotFound
	}
	if index < 0 || index >= len(r.Orders) {
		return model.Route{}, fmt.Errorf("set stop status: index %d of %d: %w", index, len(r.Orders), ErrInvalidStop)
	}
	r = cloneRoute(r)
	r.Orders[index].Status = status
	r.Status = r.RollupStatus()
	r.UpdatedAt = m.now()
	m.routes[routeID] = r
	return cloneRoute(r), nil
}

func (m *Memory) DeleteRoutes(ctx context.Context, tenantID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.rByTen[tenantID]
	for _, id := range ids {
		delete(m.routes, id)
	}
	delete(m.rByTen, tenantID)
	return len(ids), nil
}

func (m *Memory) CommitAssignment(ctx context.Context, tenantID string, c Commit) ([]model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate first so a bad reference leaves nothing half-written.
	for _, w := range c.Workers {
		if _, err := m.workerLocked(tenantID, w.ID); err != nil {
			return nil, fmt.Errorf("commit assignment: worker %s: %w", w.ID, err)
		}
	}
	for _, r := range c.Routes {
		if r.ID == "" {
			continue
		}
		if cur, ok := m.routes[r.ID]; !ok || cur.TenantID != tenantID {
			return nil, fmt.Errorf("commit assignment: route %s: %w", r.ID, ErrNotFound)
		}
	}

	now := m.now()
	saved := make([]model.Route, 0, len(c.Routes))
	for _, r := range c.Routes {
		r = cloneRoute(r)
		r.TenantID = tenantID
		r.UpdatedAt = now
		if r.ID == "" {
			r.ID = uuid.New().String()
			r.CreatedAt = now
			m.rByTen[tenantID] = append(m.rByTen[tenantID], r.ID)
		}
		m.routes[r.ID] = r
		saved = append(saved, cloneRoute(r))
	}
	for _, w := range c.Workers {
		cur := m.workers[w.ID]
		cur.AverageHardshipScore = w.AverageHardshipScore
		cur.TotalRoutesCompleted = w.TotalRoutesCompleted
		cur.LastAssignedAt = w.LastAssignedAt
		m.workers[w.ID] = cur
	}
	return saved, nil
}

func (m *Memory) GetSettings(ctx context.Context, tenantID string) (model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings[tenantID], nil
}

func (m *Memory) ToggleDutyLock(ctx context.Context, tenantID string) (model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.settings[tenantID]
	s.DutyLocked = !s.DutyLocked
	if s.DutyLocked {
		t := m.now()
		s.LockedAt = &t
	} else {
		s.LockedAt = nil
	}
	m.settings[tenantID] = s
	return s, nil
}

// cloneRoute copies the order slice so callers never share backing arrays
// with the store.
func cloneRoute(r model.Route) model.Route {
	r.Orders = append([]model.Order(nil), r.Orders...)
	return r
}
