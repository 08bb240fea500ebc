package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fairroute/internal/config"
	"fairroute/internal/dispatch"
	"fairroute/internal/ingest"
	"fairroute/internal/model"
	"fairroute/internal/opt"
)

func newTestServer(t *testing.T, env map[string]string) *Server {
	t.Helper()
	cfg, err := config.FromEnv(func(k string) string { return env[k] })
	require.NoError(t, err)
	s, err := NewServer(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func call(t *testing.T, h http.Handler, method, path string, body io.Reader, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("X-Tenant-Id", "t_test")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func createWorker(t *testing.T, h http.Handler, name string, eligible bool) model.Worker {
	t.Helper()
	b, _ := json.Marshal(model.WorkerIn{Name: name, Approved: eligible, OnDuty: eligible})
	rr := call(t, h, http.MethodPost, "/v1/workers", bytes.NewReader(b))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[model.Worker](t, rr)
}

const sampleCSV = "Order ID,Address,Weight,Mode,Priority\n" +
	"A1,12 Sathy Road,2,apartment,urgent\n" +
	"A2,4 Erode Main,1,house,normal\n" +
	"A3,Bhavani Market,3,office,high\n" +
	",Perundurai,,,\n"

func TestHealthReady(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/readyz", nil).Code)
	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/debug/info", nil).Code)
	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/metrics", nil).Code)
}

func TestImportWithoutWorkersIsConflict(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rr := call(t, h, http.MethodPost, "/v1/orders/import", bytes.NewBufferString(sampleCSV), "Content-Type", "text/csv")
	require.Equal(t, http.StatusConflict, rr.Code)
	p := decode[Problem](t, rr)
	assert.Equal(t, "Import failed", p.Title)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	rr = call(t, h, http.MethodGet, "/v1/routes", nil)
	list := decode[struct{ Items []model.Route }](t, rr)
	assert.Empty(t, list.Items)
}

func TestImportAssignAndCompleteFlow(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	w1 := createWorker(t, h, "Asha", true)
	w2 := createWorker(t, h, "Ravi", true)
	createWorker(t, h, "Pending approval", false)

	rr := call(t, h, http.MethodPost, "/v1/orders/import", bytes.NewBufferString(sampleCSV), "Content-Type", "text/csv")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	res := decode[dispatch.ImportResult](t, rr)
	assert.Equal(t, 4, res.Orders)
	assert.Zero(t, res.Overflow)
	require.Len(t, res.Routes, 2)

	owners := map[string]bool{}
	for _, r := range res.Routes {
		assert.Equal(t, model.RouteAssigned, r.Status)
		assert.Equal(t, 2, r.NumberOfStops)
		owners[r.AssignedWorkerID] = true
	}
	assert.True(t, owners[w1.ID] && owners[w2.ID])

	// Worker view
	rr = call(t, h, http.MethodGet, "/v1/workers/"+w1.ID+"/route", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	active := decode[model.Route](t, rr)
	assert.Equal(t, w1.ID, active.AssignedWorkerID)

	// Complete both stops
	for i := 0; i < 2; i++ {
		rr = call(t, h, http.MethodPatch, "/v1/routes/"+active.ID+"/stops/"+strconv.Itoa(i), bytes.NewBufferString(`{"status":"completed"}`))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}
	done := decode[model.Route](t, rr)
	assert.Equal(t, model.RouteCompleted, done.Status)

	rr = call(t, h, http.MethodGet, "/v1/workers/"+w1.ID+"/route", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "null\n", rr.Body.String())

	rr = call(t, h, http.MethodGet, "/v1/routes?status=completed", nil)
	list := decode[struct{ Items []model.Route }](t, rr)
	require.Len(t, list.Items, 1)

	rr = call(t, h, http.MethodGet, "/v1/workers", nil)
	workers := decode[struct {
		Items []workerView
	}](t, rr)
	require.Len(t, workers.Items, 3)
	assert.Equal(t, 1, workers.Items[0].TotalRoutesCompleted)
	assert.False(t, workers.Items[2].Eligible)

	rr = call(t, h, http.MethodGet, "/v1/admin/runs", nil)
	runs := decode[struct{ Items []map[string]any }](t, rr)
	require.Len(t, runs.Items, 1)
	assert.Equal(t, "import", runs.Items[0]["entry"])
}

func TestImportMultipartHoldThenAssign(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	createWorker(t, h, "Solo", true)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "orders.csv")
	require.NoError(t, err)
	_, _ = fw.Write([]byte(sampleCSV))
	require.NoError(t, mw.Close())

	rr := call(t, h, http.MethodPost, "/v1/orders/import?assign=false", &buf, "Content-Type", mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	held := decode[dispatch.ImportResult](t, rr)
	require.Len(t, held.Routes, 1)
	assert.Equal(t, model.RoutePending, held.Routes[0].Status)

	rr = call(t, h, http.MethodPost, "/v1/routes/assign", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[dispatch.ImportResult](t, rr)
	require.Len(t, res.Routes, 1)
	assert.Equal(t, held.Routes[0].ID, res.Routes[0].ID)
	assert.Equal(t, model.RouteAssigned, res.Routes[0].Status)
}

func TestBadRequests(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	createWorker(t, h, "w", true)
	rr := call(t, h, http.MethodPost, "/v1/orders/import", bytes.NewBufferString("address\nErode\n"))
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[dispatch.ImportResult](t, rr).Routes[0].ID

	cases := []struct {
		name, method, path, body string
		want                     int
	}{
		{"bad status filter", http.MethodGet, "/v1/routes?status=lost", "", http.StatusBadRequest},
		{"bad assign flag", http.MethodPost, "/v1/orders/import?assign=maybe", "address\n", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/v1/routes/nope", "", http.StatusNotFound},
		{"stop index not a number", http.MethodPatch, "/v1/routes/" + id + "/stops/x", `{"status":"completed"}`, http.StatusBadRequest},
		{"stop index out of range", http.MethodPatch, "/v1/routes/" + id + "/stops/5", `{"status":"completed"}`, http.StatusBadRequest},
		{"unknown stop status", http.MethodPatch, "/v1/routes/" + id + "/stops/0", `{"status":"lost"}`, http.StatusBadRequest},
		{"worker without name", http.MethodPost, "/v1/workers", `{"name":"  "}`, http.StatusBadRequest},
		{"worker bad json", http.MethodPost, "/v1/workers", `{`, http.StatusBadRequest},
		{"approve unknown", http.MethodPost, "/v1/workers/nope/approve", "", http.StatusNotFound},
		{"route of unknown worker", http.MethodGet, "/v1/workers/nope/route", "", http.StatusNotFound},
		{"get unknown worker", http.MethodGet, "/v1/workers/nope", "", http.StatusNotFound},
		{"delete unknown worker", http.MethodDelete, "/v1/workers/nope", "", http.StatusNotFound},
		{"bad approved filter", http.MethodGet, "/v1/workers?approved=maybe", "", http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/v1/orders/import", "", http.StatusMethodNotAllowed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rr := call(t, h, c.method, c.path, bytes.NewBufferString(c.body))
			assert.Equal(t, c.want, rr.Code, rr.Body.String())
		})
	}
}

func TestImportTooLarge(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	createWorker(t, h, "w", true)
	body := "address\n" + strings.Repeat("x", maxUploadBytes)
	rr := call(t, h, http.MethodPost, "/v1/orders/import", strings.NewReader(body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code, rr.Body.String())

	rr = call(t, h, http.MethodGet, "/v1/routes", nil)
	assert.Empty(t, decode[struct{ Items []model.Route }](t, rr).Items)
}

func TestWorkerAdmin(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	ready := createWorker(t, h, "ready", true)
	waiting := createWorker(t, h, "waiting", false)

	rr := call(t, h, http.MethodGet, "/v1/workers?approved=false", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	pending := decode[struct{ Items []workerView }](t, rr).Items
	require.Len(t, pending, 1)
	assert.Equal(t, waiting.ID, pending[0].ID)

	rr = call(t, h, http.MethodGet, "/v1/workers?approved=true", nil)
	approved := decode[struct{ Items []workerView }](t, rr).Items
	require.Len(t, approved, 1)
	assert.Equal(t, ready.ID, approved[0].ID)

	rr = call(t, h, http.MethodGet, "/v1/workers/"+ready.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	one := decode[workerView](t, rr)
	assert.Equal(t, "ready", one.Name)
	assert.True(t, one.Eligible)

	rr = call(t, h, http.MethodPost, "/v1/orders/import", bytes.NewBufferString("address\nErode\n"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = call(t, h, http.MethodDelete, "/v1/workers/"+ready.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, ready.ID, decode[map[string]any](t, rr)["deleted"])

	rr = call(t, h, http.MethodGet, "/v1/workers/"+ready.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = call(t, h, http.MethodGet, "/v1/routes?status=pending", nil)
	released := decode[struct{ Items []model.Route }](t, rr).Items
	require.Len(t, released, 1)
	assert.Empty(t, released[0].AssignedWorkerID)
}

func TestDutyLock(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	w := createWorker(t, h, "w", true)

	rr := call(t, h, http.MethodPost, "/v1/admin/duty-lock", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[model.Settings](t, rr).DutyLocked)

	rr = call(t, h, http.MethodPost, "/v1/workers/"+w.ID+"/duty", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	call(t, h, http.MethodPost, "/v1/admin/duty-lock", nil)
	rr = call(t, h, http.MethodGet, "/v1/admin/duty-lock", nil)
	assert.False(t, decode[model.Settings](t, rr).DutyLocked)

	rr = call(t, h, http.MethodPost, "/v1/workers/"+w.ID+"/duty", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decode[model.Worker](t, rr).OnDuty)
}

func TestApproveAndReset(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	w := createWorker(t, h, "w", false)

	rr := call(t, h, http.MethodPost, "/v1/workers/"+w.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[model.Worker](t, rr).IsApproved)
	call(t, h, http.MethodPost, "/v1/workers/"+w.ID+"/duty", nil)

	rr = call(t, h, http.MethodPost, "/v1/orders/import", bytes.NewBufferString("address\nErode\nBhavani\n"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = call(t, h, http.MethodDelete, "/v1/admin/routes", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1.0, decode[map[string]any](t, rr)["deleted"])
}

func TestTenantsAreIsolated(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	createWorker(t, h, "w", true)
	rr := call(t, h, http.MethodPost, "/v1/orders/import", bytes.NewBufferString("address\nErode\n"))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = call(t, h, http.MethodGet, "/v1/routes", nil, "X-Tenant-Id", "t_other")
	assert.Empty(t, decode[struct{ Items []model.Route }](t, rr).Items)
}

func TestParams(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rr := call(t, h, http.MethodGet, "/v1/params", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[struct {
		Scoring   opt.Params
		Gazetteer ingest.Gazetteer
		Jitter    float64
	}](t, rr)
	assert.Equal(t, opt.DefaultParams(), body.Scoring)
	assert.Len(t, body.Gazetteer, 7)
	assert.Equal(t, ingest.DefaultJitter, body.Jitter)
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, map[string]string{"RATE_RPS": "0.001", "RATE_BURST": "2"}).Handler()
	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/v1/workers", nil).Code)
	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/v1/workers", nil).Code)
	rr := call(t, h, http.MethodGet, "/v1/workers", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	// Ops endpoints are not limited.
	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/healthz", nil).Code)
	// Other tenants have their own bucket.
	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/v1/workers", nil, "X-Tenant-Id", "t_other").Code)
}
