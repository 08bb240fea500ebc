package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"fairroute/internal/dispatch"
	"fairroute/internal/opt"
	"fairroute/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// errorStatus maps domain errors to HTTP statuses.
func errorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, opt.ErrNoEligibleWorkers):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidStop),
		errors.Is(err, dispatch.ErrInvalidStatus),
		errors.Is(err, dispatch.ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrDutyLocked):
		return http.StatusForbidden
	case errors.Is(err, dispatch.ErrLockTimeout):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, title string, err error) {
	status := errorStatus(err)
	if status >= 500 {
		tenant, _ := TenantFromContext(r.Context())
		s.Log.Error(title, zap.String("tenant", tenant), zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeProblem(w, status, title, err.Error(), r.URL.Path)
}
