package opt

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"fairroute/internal/model"
)

var (
	// ErrNoEligibleWorkers is returned when routes cannot be built or assigned
	// because the worker list is empty.
	ErrNoEligibleWorkers = errors.New("no eligible workers")
	// ErrUnscoredRoute is returned by Assign when a route has no hardship score.
	ErrUnscoredRoute = errors.New("route has no hardship score")
)

// Params holds the tunable constants of route construction and hardship scoring.
//
// The per-stop metrics are placeholder estimates standing in for a real
// distance engine; they are exposed so deployments can calibrate them.
type Params struct {
	DistancePerStop float64 `yaml:"distancePerStop" json:"distancePerStop"`
	TurnsPerStop    int     `yaml:"turnsPerStop" json:"turnsPerStop"`
	ETAPerStop      float64 `yaml:"etaPerStop" json:"etaPerStop"`

	DistanceWeight float64 `yaml:"distanceWeight" json:"distanceWeight"`
	StopWeight     float64 `yaml:"stopWeight" json:"stopWeight"`
	LoadWeight     float64 `yaml:"loadWeight" json:"loadWeight"`
	TurnWeight     float64 `yaml:"turnWeight" json:"turnWeight"`
	ETAWeight      float64 `yaml:"etaWeight" json:"etaWeight"`

	ModeWeights           map[model.DeliveryMode]float64 `yaml:"modeWeights" json:"modeWeights"`
	DefaultModeWeight     float64                        `yaml:"defaultModeWeight" json:"defaultModeWeight"`
	PriorityWeights       map[model.Priority]float64     `yaml:"priorityWeights" json:"priorityWeights"`
	DefaultPriorityWeight float64                        `yaml:"defaultPriorityWeight" json:"defaultPriorityWeight"`
}

const (
	DefaultDistancePerStop = 2.5
	DefaultTurnsPerStop    = 3
	DefaultETAPerStop      = 10.0

	DefaultDistanceWeight = 2.0
	DefaultStopWeight     = 5.0
	DefaultLoadWeight     = 1.5
	DefaultTurnWeight     = 1.0
	DefaultETAWeight      = 0.5

	ApartmentWeight     = 5.0
	OfficeWeight        = 3.0
	HouseWeight         = 2.0
	OtherModeWeight     = 3.0
	UrgentWeight        = 10.0
	HighWeight          = 5.0
	NormalWeight        = 0.0
	OtherPriorityWeight = 0.0
)

// DefaultParams returns the stock calibration.
func DefaultParams() Params {
	return Params{
		DistancePerStop: DefaultDistancePerStop,
		TurnsPerStop:    DefaultTurnsPerStop,
		ETAPerStop:      DefaultETAPerStop,
		DistanceWeight:  DefaultDistanceWeight,
		StopWeight:      DefaultStopWeight,
		LoadWeight:      DefaultLoadWeight,
		TurnWeight:      DefaultTurnWeight,
		ETAWeight:       DefaultETAWeight,
		ModeWeights: map[model.DeliveryMode]float64{
			model.ModeApartment:    ApartmentWeight,
			model.ModeOffice:       OfficeWeight,
			model.ModeHouse:        HouseWeight,
			model.ModeNotMentioned: OtherModeWeight,
		},
		DefaultModeWeight: OtherModeWeight,
		PriorityWeights: map[model.Priority]float64{
			model.PriorityUrgent: UrgentWeight,
			model.PriorityHigh:   HighWeight,
			model.PriorityNormal: NormalWeight,
		},
		DefaultPriorityWeight: OtherPriorityWeight,
	}
}

// Validate rejects calibrations that would produce negative metrics.
func (p Params) Validate() error {
	if p.DistancePerStop < 0 || p.TurnsPerStop < 0 || p.ETAPerStop < 0 {
		return fmt.Errorf("params: per-stop estimates must be >= 0")
	}
	for k, v := range p.ModeWeights {
		if v < 0 {
			return fmt.Errorf("params: mode weight %s must be >= 0", k)
		}
	}
	for k, v := range p.PriorityWeights {
		if v < 0 {
			return fmt.Errorf("params: priority weight %s must be >= 0", k)
		}
	}
	return nil
}

// UnmarshalYAML starts from the defaults so a partial document only
// overrides the keys it names.
func (p *Params) UnmarshalYAML(value *yaml.Node) error {
	type plain Params
	out := plain(DefaultParams())
	// Maps are merged key by key rather than replaced.
	modes, prios := out.ModeWeights, out.PriorityWeights
	out.ModeWeights, out.PriorityWeights = nil, nil
	if err := value.Decode(&out); err != nil {
		return err
	}
	for k, v := range out.ModeWeights {
		modes[k] = v
	}
	for k, v := range out.PriorityWeights {
		prios[k] = v
	}
	out.ModeWeights, out.PriorityWeights = modes, prios
	*p = Params(out)
	return nil
}
