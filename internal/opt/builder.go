package opt

import (
	"fmt"

	"fairroute/internal/model"
)

// BuildRoutes partitions orders into contiguous chunks, one per worker, and
// fills in each chunk's aggregate metrics.
//
// Chunks are ceil(len(orders)/len(workers)) long; trailing empty chunks are
// skipped when workers outnumber orders. Region labels follow the chunk index
// so identical input yields identical labels. Returned routes are unscored,
// pending and carry no ID; the store assigns one on commit.
func BuildRoutes(orders []model.Order, workers []model.Worker, p Params) ([]model.Route, error) {
	if len(workers) == 0 {
		return nil, fmt.Errorf("build routes: %w", ErrNoEligibleWorkers)
	}

	nWorkers := len(workers)
	nOrders := len(orders)
	chunkSize := (nOrders + nWorkers - 1) / nWorkers

	routes := make([]model.Route, 0, nWorkers)
	for i := 0; i < nWorkers; i++ {
		start := i * chunkSize
		if start >= nOrders {
			break
		}
		end := min(start+chunkSize, nOrders)

		chunk := make([]model.Order, end-start)
		copy(chunk, orders[start:end])
		routes = append(routes, newRoute(ZoneLabel(i), chunk, p))
	}
	return routes, nil
}

func newRoute(region string, orders []model.Order, p Params) model.Route {
	stops := len(orders)
	weight := 0.0
	for _, o := range orders {
		weight += o.Weight
	}
	r := model.Route{
		Region:        region,
		Orders:        orders,
		NumberOfStops: stops,
		TotalWeight:   weight,
		TotalDistance: float64(stops) * p.DistancePerStop,
		TurnCount:     stops * p.TurnsPerStop,
		ETA:           float64(stops) * p.ETAPerStop,
		Status:        model.RoutePending,
	}
	r.Centroid, r.SpanMeters = Footprint(orders)
	return r
}

// ZoneLabel maps a chunk index to "Zone A", "Zone B", ... "Zone Z", "Zone AA".
func ZoneLabel(i int) string {
	if i < 0 {
		i = 0
	}
	var buf []byte
	for n := i + 1; n > 0; n = (n - 1) / 26 {
		buf = append([]byte{byte('A' + (n-1)%26)}, buf...)
	}
	return "Zone " + string(buf)
}
