//go:build postgres_integration

package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairroute/internal/model"
)

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	require.NoError(t, err)
	defer p.Close()
	ctx := t.Context()
	require.NoError(t, p.Migrate(ctx))

	tenant := "t_it_" + t.Name()
	_, err = p.DeleteRoutes(ctx, tenant)
	require.NoError(t, err)

	w, err := p.CreateWorker(ctx, tenant, model.WorkerIn{Name: "Integration", Approved: true, OnDuty: true})
	require.NoError(t, err)
	assert.True(t, w.Eligible())

	w.AverageHardshipScore, w.TotalRoutesCompleted = 33, 1
	saved, err := p.CommitAssignment(ctx, tenant, Commit{
		Routes: []model.Route{{
			Region:             "Zone A",
			Orders:             []model.Order{{OrderID: "o1", Address: "Erode", Status: model.OrderPending}},
			NumberOfStops:      1,
			RouteHardshipScore: score(33),
			AssignedWorkerID:   w.ID,
			Status:             model.RouteAssigned,
			Centroid:           &model.GeoPoint{Lat: 11.34, Lng: 77.71},
		}},
		Workers: []model.Worker{w},
	})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.NotNil(t, saved[0].Centroid)

	r, err := p.SetStopStatus(ctx, tenant, saved[0].ID, 0, model.OrderCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.RouteCompleted, r.Status)

	_, err = p.SetStopStatus(ctx, tenant, saved[0].ID, 5, model.OrderCompleted)
	assert.ErrorIs(t, err, ErrInvalidStop)

	got, err := p.GetWorker(ctx, tenant, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 33.0, got.AverageHardshipScore)

	s1, err := p.ToggleDutyLock(ctx, tenant)
	require.NoError(t, err)
	s2, err := p.ToggleDutyLock(ctx, tenant)
	require.NoError(t, err)
	assert.NotEqual(t, s1.DutyLocked, s2.DutyLocked)

	held, err := p.CommitAssignment(ctx, tenant, Commit{Routes: []model.Route{{
		Region:             "Zone B",
		Orders:             []model.Order{{OrderID: "o2", Address: "Erode", Status: model.OrderPending}},
		NumberOfStops:      1,
		RouteHardshipScore: score(12),
		AssignedWorkerID:   w.ID,
		Status:             model.RouteAssigned,
	}}})
	require.NoError(t, err)

	require.NoError(t, p.DeleteWorker(ctx, tenant, w.ID))
	assert.ErrorIs(t, p.DeleteWorker(ctx, tenant, w.ID), ErrNotFound)
	released, err := p.GetRoute(ctx, tenant, held[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoutePending, released.Status)
	assert.Empty(t, released.AssignedWorkerID)
	done, err := p.GetRoute(ctx, tenant, saved[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.RouteCompleted, done.Status)
	assert.Empty(t, done.AssignedWorkerID)
}
