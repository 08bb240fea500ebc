package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairroute/internal/model"
)

func ordersN(n int) []model.Order {
	out := make([]model.Order, n)
	for i := range out {
		out[i] = model.Order{
			OrderID:  string(rune('a' + i)),
			Address:  "addr",
			Weight:   float64(i) + 0.5,
			Mode:     model.ModeHouse,
			Priority: model.PriorityNormal,
			Status:   model.OrderPending,
		}
	}
	return out
}

func workersN(n int) []model.Worker {
	out := make([]model.Worker, n)
	for i := range out {
		out[i] = model.Worker{ID: string(rune('A' + i)), IsApproved: true, IsActive: true, OnDuty: true}
	}
	return out
}

func TestBuildRoutes_ChunksAndTotals(t *testing.T) {
	orders := ordersN(7)
	routes, err := BuildRoutes(orders, workersN(3), DefaultParams())
	require.NoError(t, err)
	require.Len(t, routes, 3)

	sizes := []int{3, 3, 1}
	next := 0
	for i, r := range routes {
		assert.Equal(t, sizes[i], len(r.Orders))
		assert.Equal(t, len(r.Orders), r.NumberOfStops)

		sum := 0.0
		for _, o := range r.Orders {
			assert.Equal(t, orders[next].OrderID, o.OrderID, "chunks must keep input order")
			sum += o.Weight
			next++
		}
		assert.InDelta(t, sum, r.TotalWeight, 1e-9)
		assert.Equal(t, model.RoutePending, r.Status)
		assert.Nil(t, r.RouteHardshipScore)
	}
	assert.Equal(t, []string{"Zone A", "Zone B", "Zone C"}, []string{routes[0].Region, routes[1].Region, routes[2].Region})
}

func TestBuildRoutes_MockMetrics(t *testing.T) {
	routes, err := BuildRoutes(ordersN(4), workersN(1), DefaultParams())
	require.NoError(t, err)
	require.Len(t, routes, 1)
	r := routes[0]
	assert.Equal(t, 10.0, r.TotalDistance)
	assert.Equal(t, 12, r.TurnCount)
	assert.Equal(t, 40.0, r.ETA)

	p := DefaultParams()
	p.DistancePerStop = 1
	p.TurnsPerStop = 2
	p.ETAPerStop = 7
	routes, err = BuildRoutes(ordersN(4), workersN(1), p)
	require.NoError(t, err)
	assert.Equal(t, 4.0, routes[0].TotalDistance)
	assert.Equal(t, 8, routes[0].TurnCount)
	assert.Equal(t, 28.0, routes[0].ETA)
}

func TestBuildRoutes_MoreWorkersThanOrders(t *testing.T) {
	routes, err := BuildRoutes(ordersN(2), workersN(5), DefaultParams())
	require.NoError(t, err)
	require.Len(t, routes, 2)
	for _, r := range routes {
		assert.Equal(t, 1, r.NumberOfStops)
	}
}

func TestBuildRoutes_NoOrders(t *testing.T) {
	routes, err := BuildRoutes(nil, workersN(2), DefaultParams())
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestBuildRoutes_NoWorkers(t *testing.T) {
	_, err := BuildRoutes(ordersN(3), nil, DefaultParams())
	require.ErrorIs(t, err, ErrNoEligibleWorkers)
}

func TestBuildRoutes_DoesNotAliasInput(t *testing.T) {
	orders := ordersN(2)
	routes, err := BuildRoutes(orders, workersN(1), DefaultParams())
	require.NoError(t, err)
	orders[0].Address = "changed"
	assert.Equal(t, "addr", routes[0].Orders[0].Address)
}

func TestBuildRoutes_Reproducible(t *testing.T) {
	a, err := BuildRoutes(ordersN(9), workersN(4), DefaultParams())
	require.NoError(t, err)
	b, err := BuildRoutes(ordersN(9), workersN(4), DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestZoneLabel(t *testing.T) {
	cases := map[int]string{0: "Zone A", 1: "Zone B", 25: "Zone Z", 26: "Zone AA", 27: "Zone AB", 51: "Zone AZ", 52: "Zone BA", 701: "Zone ZZ", 702: "Zone AAA"}
	for i, want := range cases {
		assert.Equal(t, want, ZoneLabel(i), "index %d", i)
	}
}

func TestFootprint_IgnoresUnresolved(t *testing.T) {
	orders := []model.Order{
		{OrderID: "1", Coordinates: &model.GeoPoint{Lat: 11.0, Lng: 77.0}},
		{OrderID: "2"},
		{OrderID: "3", Coordinates: &model.GeoPoint{Lat: 11.2, Lng: 77.2}},
	}
	c, span := Footprint(orders)
	require.NotNil(t, c)
	assert.InDelta(t, 11.1, c.Lat, 1e-9)
	assert.InDelta(t, 77.1, c.Lng, 1e-9)
	assert.Greater(t, span, 10000.0)
	assert.Less(t, span, 20000.0)

	c, span = Footprint([]model.Order{{OrderID: "x"}})
	assert.Nil(t, c)
	assert.Zero(t, span)
}
