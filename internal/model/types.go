package model

import "time"

// Core domain types shared by the pipeline, the store and the API.

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CoordSource records how an order's coordinates were resolved.
type CoordSource string

const (
	CoordExplicit  CoordSource = "explicit"
	CoordGazetteer CoordSource = "gazetteer"
)

type DeliveryMode string

const (
	ModeApartment    DeliveryMode = "apartment"
	ModeHouse        DeliveryMode = "house"
	ModeOffice       DeliveryMode = "office"
	ModeNotMentioned DeliveryMode = "notmentioned"
)

// ParseMode maps free text onto a known mode, defaulting to notmentioned.
func ParseMode(s string) DeliveryMode {
	switch m := DeliveryMode(s); m {
	case ModeApartment, ModeHouse, ModeOffice:
		return m
	}
	return ModeNotMentioned
}

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority maps free text onto a known priority, defaulting to normal.
func ParsePriority(s string) Priority {
	switch p := Priority(s); p {
	case PriorityHigh, PriorityUrgent:
		return p
	}
	return PriorityNormal
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
)

// ParseOrderStatus returns the status and whether s named a known one.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderPending, OrderCompleted:
		return st, true
	}
	return OrderPending, false
}

type RouteStatus string

const (
	RoutePending   RouteStatus = "pending"
	RouteAssigned  RouteStatus = "assigned"
	RouteCompleted RouteStatus = "completed"
)

// Order is one delivery request.
type Order struct {
	OrderID     string       `json:"orderId"`
	Address     string       `json:"address"`
	Coordinates *GeoPoint    `json:"coordinates"`
	CoordSource CoordSource  `json:"coordSource,omitempty"`
	Weight      float64      `json:"weight"`
	Mode        DeliveryMode `json:"mode"`
	Priority    Priority     `json:"priority"`
	Status      OrderStatus  `json:"status"`
}

// Route is a bundle of orders handed to one worker.
// NumberOfStops always equals len(Orders) and TotalWeight the sum of order weights.
type Route struct {
	ID                 string      `json:"id"`
	TenantID           string      `json:"tenantId"`
	Region             string      `json:"region"`
	Orders             []Order     `json:"orders"`
	TotalDistance      float64     `json:"totalDistance"`
	NumberOfStops      int         `json:"numberOfStops"`
	TotalWeight        float64     `json:"totalWeight"`
	TurnCount          int         `json:"turnCount"`
	ETA                float64     `json:"eta"`
	ModeScore          float64     `json:"modeScore"`
	PriorityScore      float64     `json:"priorityScore"`
	RouteHardshipScore *float64    `json:"routeHardshipScore"`
	AssignedWorkerID   string      `json:"assignedWorkerId,omitempty"`
	Status             RouteStatus `json:"status"`
	Centroid           *GeoPoint   `json:"centroid,omitempty"`
	SpanMeters         float64     `json:"spanMeters,omitempty"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

// Score returns the hardship score, or 0 when the route has not been scored.
func (r Route) Score() float64 {
	if r.RouteHardshipScore == nil {
		return 0
	}
	return *r.RouteHardshipScore
}

// RollupStatus derives the route status from its orders: completed once every
// order is completed, otherwise assigned when a worker holds it.
func (r Route) RollupStatus() RouteStatus {
	if len(r.Orders) > 0 {
		done := true
		for _, o := range r.Orders {
			if o.Status != OrderCompleted {
				done = false
				break
			}
		}
		if done {
			return RouteCompleted
		}
	}
	if r.AssignedWorkerID != "" {
		return RouteAssigned
	}
	return RoutePending
}

// Worker is a delivery agent.
type Worker struct {
	ID                   string     `json:"id"`
	TenantID             string     `json:"tenantId"`
	Name                 string     `json:"name"`
	Email                string     `json:"email,omitempty"`
	Phone                string     `json:"phone,omitempty"`
	OnDuty               bool       `json:"onDuty"`
	IsActive             bool       `json:"isActive"`
	IsApproved           bool       `json:"isApproved"`
	AverageHardshipScore float64    `json:"averageHardshipScore"`
	TotalRoutesCompleted int        `json:"totalRoutesCompleted"`
	LastAssignedAt       *time.Time `json:"lastAssignedAt,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
}

// Eligible reports whether the worker may receive routes.
func (w Worker) Eligible() bool { return w.IsApproved && w.IsActive && w.OnDuty }

type WorkerIn struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Approved bool   `json:"approved,omitempty"`
	OnDuty   bool   `json:"onDuty,omitempty"`
}

// Settings holds tenant-wide switches.
type Settings struct {
	DutyLocked bool       `json:"dutyLocked"`
	LockedAt   *time.Time `json:"lockedAt,omitempty"`
}

const (
	EventRouteAssigned    = "route.assigned"
	EventRouteStopUpdated = "route.stop.updated"
	EventRouteCompleted   = "route.completed"
	EventRoutesReset      = "routes.reset"
)

// RouteEvent is published to subscribers whenever routes change.
type RouteEvent struct {
	Type     string         `json:"type"`
	TenantID string         `json:"tenantId"`
	RouteID  string         `json:"routeId,omitempty"`
	WorkerID string         `json:"workerId,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	TS       string         `json:"ts"`
}

type StopStatusPatch struct {
	Status string `json:"status"`
}
