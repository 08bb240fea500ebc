package opt

import "fairroute/internal/model"

// Hardship is the result of scoring one route.
type Hardship struct {
	ModeScore     float64 `json:"modeScore"`
	PriorityScore float64 `json:"priorityScore"`
	Total         float64 `json:"total"`
}

// Score computes a route's hardship from its aggregate metrics and the
// delivery-mode and priority mix of its orders. It has no side effects, so
// scoring the same route twice yields the same result.
func (p Params) Score(r model.Route) Hardship {
	var h Hardship
	for _, o := range r.Orders {
		h.ModeScore += p.modeWeight(o.Mode)
		h.PriorityScore += p.priorityWeight(o.Priority)
	}
	h.Total = r.TotalDistance*p.DistanceWeight +
		float64(r.NumberOfStops)*p.StopWeight +
		r.TotalWeight*p.LoadWeight +
		h.ModeScore +
		h.PriorityScore +
		float64(r.TurnCount)*p.TurnWeight +
		r.ETA*p.ETAWeight
	return h
}

func (p Params) modeWeight(m model.DeliveryMode) float64 {
	if w, ok := p.ModeWeights[m]; ok {
		return w
	}
	return p.DefaultModeWeight
}

func (p Params) priorityWeight(pr model.Priority) float64 {
	if w, ok := p.PriorityWeights[pr]; ok {
		return w
	}
	return p.DefaultPriorityWeight
}

// ApplyHardship records a scoring result on the route.
func ApplyHardship(r *model.Route, h Hardship) {
	r.ModeScore = h.ModeScore
	r.PriorityScore = h.PriorityScore
	total := h.Total
	r.RouteHardshipScore = &total
}

// ScoreAll scores every route in place and returns the same slice.
func ScoreAll(routes []model.Route, p Params) []model.Route {
	for i := range routes {
		ApplyHardship(&routes[i], p.Score(routes[i]))
	}
	return routes
}
