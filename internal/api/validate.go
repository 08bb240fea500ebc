package api

import (
	"fmt"
	"strconv"
	"strings"

	"fairroute/internal/model"
)

func validateWorkerIn(in *model.WorkerIn) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Name == "" {
		return fmt.Errorf("name is required")
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		return fmt.Errorf("invalid email: %s", in.Email)
	}
	return nil
}

// parseApprovedFilter returns nil when no filter was given.
func parseApprovedFilter(v string) (*bool, error) {
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("invalid approved: %s (want true or false)", v)
	}
	return &b, nil
}

// parseRouteStatus accepts an empty filter or one of the route statuses.
func parseRouteStatus(v string) (model.RouteStatus, error) {
	switch st := model.RouteStatus(strings.ToLower(strings.TrimSpace(v))); st {
	case "", model.RoutePending, model.RouteAssigned, model.RouteCompleted:
		return st, nil
	}
	return "", fmt.Errorf("invalid status: %s (allowed: pending,assigned,completed)", v)
}
