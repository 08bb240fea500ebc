package opt

import (
	"time"

	"fairroute/internal/model"
)

// RecordAssignment folds one route's hardship into the worker's running mean:
//
//	newAvg = (oldAvg*oldTotal + score) / (oldTotal + 1)
//
// It is the only running-average update in the module.
func RecordAssignment(w model.Worker, score float64, at time.Time) model.Worker {
	oldTotal := float64(w.TotalRoutesCompleted)
	w.AverageHardshipScore = (w.AverageHardshipScore*oldTotal + score) / (oldTotal + 1)
	w.TotalRoutesCompleted++
	t := at
	w.LastAssignedAt = &t
	return w
}
