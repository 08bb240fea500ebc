package api

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"fairroute/internal/dispatch"
	"fairroute/internal/model"
	"fairroute/internal/opt"
)

const maxUploadBytes = 10 << 20

// ImportOrdersHandler handles POST /v1/orders/import. The body is CSV text, or
// a multipart form with the CSV in the "file" field. ?assign=false stores the
// routes as pending.
func (s *Server) ImportOrdersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var body io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		f, _, err := r.FormFile("file")
		if err != nil {
			status := http.StatusBadRequest
			if errorStatus(err) == http.StatusRequestEntityTooLarge {
				status = http.StatusRequestEntityTooLarge
			}
			writeProblem(w, status, "Invalid upload", err.Error(), r.URL.Path)
			return
		}
		defer func() { _ = f.Close() }()
		body = f
	}
	opts := dispatch.ImportOptions{}
	if v := r.URL.Query().Get("assign"); v != "" {
		assign, err := strconv.ParseBool(v)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid query", "assign must be a boolean", r.URL.Path)
			return
		}
		opts.Hold = !assign
	}

	res, err := s.Dispatch.ImportCSV(ctx, tenant, body, opts)
	if err != nil {
		s.writeError(w, r, "Import failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// AssignPendingHandler handles POST /v1/routes/assign
func (s *Server) AssignPendingHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	res, err := s.Dispatch.AssignPending(ctx, tenant)
	if err != nil {
		s.writeError(w, r, "Assignment failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) ListRoutesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	status, err := parseRouteStatus(r.URL.Query().Get("status"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid query", err.Error(), r.URL.Path)
		return
	}
	items, err := s.Store.ListRoutes(ctx, tenant, status)
	if err != nil {
		s.writeError(w, r, "List routes failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) GetRouteHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	rt, err := s.Store.GetRoute(ctx, tenant, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, "Get route failed", err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// UpdateStopHandler handles PATCH /v1/routes/{id}/stops/{index}
func (s *Server) UpdateStopHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid stop index", err.Error(), r.URL.Path)
		return
	}
	var patch model.StopStatusPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	rt, err := s.Dispatch.UpdateStop(ctx, tenant, r.PathValue("id"), index, patch.Status)
	if err != nil {
		s.writeError(w, r, "Update stop failed", err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// ResetRoutesHandler handles DELETE /v1/admin/routes
func (s *Server) ResetRoutesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	n, err := s.Dispatch.ResetRoutes(ctx, tenant)
	if err != nil {
		s.writeError(w, r, "Reset routes failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

func (s *Server) CreateWorkerHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	var in model.WorkerIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateWorkerIn(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid worker", err.Error(), r.URL.Path)
		return
	}
	wk, err := s.Store.CreateWorker(ctx, tenant, in)
	if err != nil {
		s.writeError(w, r, "Create worker failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, wk)
}

// workerView adds the fairness rank used by the assigner.
type workerView struct {
	model.Worker
	Fairness float64 `json:"fairness"`
	Eligible bool    `json:"eligible"`
}

func newWorkerView(wk model.Worker) workerView {
	return workerView{Worker: wk, Fairness: opt.Fairness(wk), Eligible: wk.Eligible()}
}

// ListWorkersHandler handles GET /v1/workers. ?approved=false lists workers
// waiting for approval, ?approved=true the approved ones.
func (s *Server) ListWorkersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	approved, err := parseApprovedFilter(r.URL.Query().Get("approved"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid query", err.Error(), r.URL.Path)
		return
	}
	ws, err := s.Store.ListWorkers(ctx, tenant)
	if err != nil {
		s.writeError(w, r, "List workers failed", err)
		return
	}
	items := make([]workerView, 0, len(ws))
	for _, wk := range ws {
		if approved != nil && wk.IsApproved != *approved {
			continue
		}
		items = append(items, newWorkerView(wk))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) GetWorkerHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	wk, err := s.Store.GetWorker(ctx, tenant, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, "Get worker failed", err)
		return
	}
	writeJSON(w, http.StatusOK, newWorkerView(wk))
}

// DeleteWorkerHandler handles DELETE /v1/workers/{id}
func (s *Server) DeleteWorkerHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	id := r.PathValue("id")
	if err := s.Dispatch.DeleteWorker(ctx, tenant, id); err != nil {
		s.writeError(w, r, "Delete worker failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) ApproveWorkerHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	wk, err := s.Store.ApproveWorker(ctx, tenant, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, "Approve worker failed", err)
		return
	}
	writeJSON(w, http.StatusOK, wk)
}

func (s *Server) ToggleDutyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	wk, err := s.Dispatch.ToggleDuty(ctx, tenant, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, "Toggle duty failed", err)
		return
	}
	writeJSON(w, http.StatusOK, wk)
}

// WorkerRouteHandler returns the worker's assigned route, or null.
func (s *Server) WorkerRouteHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	id := r.PathValue("id")
	if _, err := s.Store.GetWorker(ctx, tenant, id); err != nil {
		s.writeError(w, r, "Get worker failed", err)
		return
	}
	rt, err := s.Store.ActiveRouteForWorker(ctx, tenant, id)
	if err != nil {
		if errorStatus(err) == http.StatusNotFound {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		s.writeError(w, r, "Get worker route failed", err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (s *Server) GetDutyLockHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	set, err := s.Store.GetSettings(ctx, tenant)
	if err != nil {
		s.writeError(w, r, "Get settings failed", err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) ToggleDutyLockHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	set, err := s.Dispatch.ToggleDutyLock(ctx, tenant)
	if err != nil {
		s.writeError(w, r, "Toggle duty lock failed", err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	_, tenant := s.withTenant(r)
	writeJSON(w, http.StatusOK, map[string]any{"items": s.Dispatch.Runs(tenant)})
}

func (s *Server) ParamsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"scoring":   s.Dispatch.Params(),
		"gazetteer": s.Config.Params.Gazetteer,
		"jitter":    s.Config.Params.Jitter,
	})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
