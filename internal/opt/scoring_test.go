package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"fairroute/internal/model"
)

func scenarioRoute() model.Route {
	return model.Route{
		Orders: []model.Order{
			{Mode: model.ModeApartment, Priority: model.PriorityUrgent},
			{Mode: model.ModeHouse, Priority: model.PriorityNormal},
			{Mode: model.ModeOffice, Priority: model.PriorityHigh},
		},
		TotalDistance: 7.5,
		NumberOfStops: 3,
		TotalWeight:   0,
		TurnCount:     9,
		ETA:           30,
	}
}

func TestScore_Scenario(t *testing.T) {
	h := DefaultParams().Score(scenarioRoute())
	assert.Equal(t, 10.0, h.ModeScore)
	assert.Equal(t, 15.0, h.PriorityScore)
	assert.Equal(t, 79.0, h.Total)
}

func TestScore_Idempotent(t *testing.T) {
	p := DefaultParams()
	r := scenarioRoute()
	first := p.Score(r)
	ApplyHardship(&r, first)
	second := p.Score(r)
	assert.Equal(t, first, second)
	require.NotNil(t, r.RouteHardshipScore)
	assert.Equal(t, first.Total, *r.RouteHardshipScore)
	assert.Equal(t, first.ModeScore, r.ModeScore)
	assert.Equal(t, first.PriorityScore, r.PriorityScore)
}

func TestScore_EmptyRoute(t *testing.T) {
	r := model.Route{TotalDistance: 4, TotalWeight: 2, TurnCount: 3, ETA: 6}
	h := DefaultParams().Score(r)
	assert.Zero(t, h.ModeScore)
	assert.Zero(t, h.PriorityScore)
	assert.Equal(t, 4*2+2*1.5+3+6*0.5, h.Total)
}

func TestScore_UnknownModeAndPriorityUseDefaults(t *testing.T) {
	r := model.Route{Orders: []model.Order{{Mode: "boat", Priority: "whenever"}}}
	h := DefaultParams().Score(r)
	assert.Equal(t, OtherModeWeight, h.ModeScore)
	assert.Equal(t, OtherPriorityWeight, h.PriorityScore)
}

func TestScoreAll(t *testing.T) {
	routes := ScoreAll([]model.Route{scenarioRoute(), {}}, DefaultParams())
	require.NotNil(t, routes[0].RouteHardshipScore)
	require.NotNil(t, routes[1].RouteHardshipScore)
	assert.Equal(t, 79.0, *routes[0].RouteHardshipScore)
	assert.Zero(t, *routes[1].RouteHardshipScore)
}

func TestParams_PartialYAML(t *testing.T) {
	doc := []byte("distancePerStop: 4\nmodeWeights:\n  apartment: 8\n")
	var p Params
	require.NoError(t, yaml.Unmarshal(doc, &p))
	assert.Equal(t, 4.0, p.DistancePerStop)
	assert.Equal(t, DefaultTurnsPerStop, p.TurnsPerStop)
	assert.Equal(t, 8.0, p.ModeWeights[model.ModeApartment])
	assert.Equal(t, HouseWeight, p.ModeWeights[model.ModeHouse])
	assert.Equal(t, UrgentWeight, p.PriorityWeights[model.PriorityUrgent])
	require.NoError(t, p.Validate())

	p.ModeWeights[model.ModeHouse] = -1
	assert.Error(t, p.Validate())
}
