package opt

import (
	"fmt"
	"math"
	"sort"

	"fairroute/internal/model"
)

// Pair binds one route to the worker that should drive it.
type Pair struct {
	Route  model.Route  `json:"route"`
	Worker model.Worker `json:"worker"`
}

// Plan is the output of Assign. Overflow counts the pairs handed to a worker
// that already received a route in the same pass (routes beyond len(workers)).
type Plan struct {
	Pairs    []Pair `json:"pairs"`
	Overflow int    `json:"overflow"`
}

// Fairness ranks a worker's accumulated burden: the average hardship weighted
// by the log of completed routes. New workers always score 0.
func Fairness(w model.Worker) float64 {
	return w.AverageHardshipScore * math.Log(float64(w.TotalRoutesCompleted)+1)
}

// Assign pairs the hardest routes with the least burdened workers.
//
// Workers are ordered by ascending Fairness and routes by descending hardship,
// ties keeping input order. Route i goes to worker i mod len(workers), so when
// routes outnumber workers the list wraps round-robin. Inputs are not modified.
func Assign(routes []model.Route, workers []model.Worker) (Plan, error) {
	if len(workers) == 0 {
		return Plan{}, fmt.Errorf("assign: %w", ErrNoEligibleWorkers)
	}
	for i, r := range routes {
		if r.RouteHardshipScore == nil {
			return Plan{}, fmt.Errorf("assign: route %d (%s): %w", i, r.Region, ErrUnscoredRoute)
		}
	}

	ws := append([]model.Worker(nil), workers...)
	sort.SliceStable(ws, func(i, j int) bool { return Fairness(ws[i]) < Fairness(ws[j]) })

	rs := append([]model.Route(nil), routes...)
	sort.SliceStable(rs, func(i, j int) bool { return *rs[i].RouteHardshipScore > *rs[j].RouteHardshipScore })

	plan := Plan{Pairs: make([]Pair, 0, len(rs))}
	for i, r := range rs {
		plan.Pairs = append(plan.Pairs, Pair{Route: r, Worker: ws[i%len(ws)]})
	}
	if len(rs) > len(ws) {
		plan.Overflow = len(rs) - len(ws)
	}
	return plan, nil
}
