// Package dispatch runs the order pipeline against the store: it normalizes
// uploads, builds and scores routes, assigns them fairly and persists the
// result under a per-tenant lock.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"fairroute/internal/ingest"
	"fairroute/internal/integrations"
	"fairroute/internal/metrics"
	"fairroute/internal/model"
	"fairroute/internal/opt"
	"fairroute/internal/store"
)

var (
	ErrDutyLocked     = errors.New("duty toggling is locked")
	ErrInvalidStatus  = errors.New("invalid order status")
	ErrMalformedInput = errors.New("malformed input")
)

const (
	EntryImport  = "import"
	EntryPending = "assign_pending"
	EntryPoller  = "poller"
)

// Publisher receives route events after they are committed.
type Publisher interface {
	Publish(tenantID string, evt model.RouteEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, model.RouteEvent) {}

type Service struct {
	store     store.Store
	params    opt.Params
	gazetteer ingest.Gazetteer
	jitter    float64
	locker    Locker
	pub       Publisher
	runs      *opt.RunLog
	log       *zap.Logger
	now       func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Service)

func WithParams(p opt.Params) Option         { return func(s *Service) { s.params = p } }
func WithGazetteer(g ingest.Gazetteer) Option { return func(s *Service) { s.gazetteer = g } }
func WithJitter(width float64) Option         { return func(s *Service) { s.jitter = width } }
func WithLocker(l Locker) Option              { return func(s *Service) { s.locker = l } }
func WithPublisher(p Publisher) Option        { return func(s *Service) { s.pub = p } }
func WithLogger(l *zap.Logger) Option         { return func(s *Service) { s.log = l } }
func WithClock(now func() time.Time) Option   { return func(s *Service) { s.now = now } }
func WithRunLog(l *opt.RunLog) Option         { return func(s *Service) { s.runs = l } }

// WithSeed makes jitter and generated order ids reproducible.
func WithSeed(seed int64) Option {
	return func(s *Service) { s.rng = rand.New(rand.NewSource(seed)) }
}

func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		params:    opt.DefaultParams(),
		gazetteer: ingest.DefaultGazetteer(),
		jitter:    ingest.DefaultJitter,
		locker:    NewLocalLocker(),
		pub:       nopPublisher{},
		runs:      opt.NewRunLog(50),
		log:       zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

func (s *Service) Params() opt.Params { return s.params }

func (s *Service) Runs(tenantID string) []opt.RunSummary { return s.runs.Recent(tenantID) }

// ImportOptions controls one import.
type ImportOptions struct {
	// Hold stores the scored routes as pending instead of assigning them.
	Hold bool
}

type Skipped struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Orders     int           `json:"orders"`
	Unresolved int           `json:"unresolved"`
	Skipped    []Skipped     `json:"skipped"`
	Routes     []model.Route `json:"routes"`
	// Overflow counts routes given to a worker that already had one from this
	// run. Non-zero means there were more routes than eligible workers.
	Overflow int `json:"overflow"`
}

// ImportCSV reads a CSV upload and runs ImportOrders over it. A read error
// aborts the import before anything is stored.
func (s *Service) ImportCSV(ctx context.Context, tenantID string, r io.Reader, o ImportOptions) (ImportResult, error) {
	return s.importCSV(ctx, tenantID, r, o, EntryImport)
}

func (s *Service) importCSV(ctx context.Context, tenantID string, r io.Reader, o ImportOptions, entry string) (ImportResult, error) {
	rows, rowErr := ingest.Rows(ingest.ReadCSV(r))
	norm := s.normalize(rows)
	if err := rowErr(); err != nil {
		return ImportResult{}, fmt.Errorf("import: read csv: %w: %w", ErrMalformedInput, err)
	}
	return s.run(ctx, tenantID, norm, o, entry)
}

// ImportOrders normalizes rows into orders, groups them into one route per
// eligible worker, scores the routes and, unless held, assigns them.
func (s *Service) ImportOrders(ctx context.Context, tenantID string, rows iter.Seq[ingest.Row], o ImportOptions) (ImportResult, error) {
	return s.run(ctx, tenantID, s.normalize(rows), o, EntryImport)
}

func (s *Service) normalize(rows iter.Seq[ingest.Row]) ingest.Result {
	s.rngMu.Lock()
	seed := s.rng.Int63()
	s.rngMu.Unlock()
	n := ingest.NewNormalizer(
		ingest.WithSeed(seed),
		ingest.WithClock(s.now),
		ingest.WithGazetteer(s.gazetteer),
		ingest.WithJitter(s.jitter),
		ingest.WithStatusMapper(orderStatus),
	)
	return n.Normalize(rows)
}

// orderStatus accepts our own status names as well as carrier codes.
func orderStatus(v string) (model.OrderStatus, bool) {
	if st, ok := model.ParseOrderStatus(strings.ToLower(v)); ok {
		return st, true
	}
	return integrations.MapStatus(v)
}

func (s *Service) run(ctx context.Context, tenantID string, norm ingest.Result, o ImportOptions, entry string) (res ImportResult, err error) {
	res = ImportResult{Orders: len(norm.Orders), Unresolved: norm.Unresolved, Skipped: make([]Skipped, 0, len(norm.Skipped))}
	for _, sk := range norm.Skipped {
		res.Skipped = append(res.Skipped, Skipped{Index: sk.Index, Reason: sk.Reason()})
	}
	for _, ord := range norm.Orders {
		src := string(ord.CoordSource)
		if src == "" {
			src = "none"
		}
		metrics.OrdersIngested.WithLabelValues(src).Inc()
	}
	metrics.OrdersSkipped.Add(float64(len(norm.Skipped)))

	sum, started := s.begin(entry)
	sum.Orders, sum.Skipped = len(norm.Orders), len(norm.Skipped)
	defer func() { s.finish(tenantID, &sum, started, err) }()

	unlock, err := s.locker.Lock(ctx, "assign:"+tenantID)
	if err != nil {
		return res, fmt.Errorf("import: %w", err)
	}
	defer unlock()

	workers, err := s.eligibleWorkers(ctx, tenantID)
	if err != nil {
		return res, fmt.Errorf("import: %w", err)
	}
	sum.Workers = len(workers)

	routes, err := opt.BuildRoutes(norm.Orders, workers, s.params)
	if err != nil {
		return res, fmt.Errorf("import: %w", err)
	}
	routes = opt.ScoreAll(routes, s.params)
	metrics.RoutesBuilt.Add(float64(len(routes)))
	for i := range routes {
		routes[i].TenantID = tenantID
	}

	if o.Hold {
		saved, err := s.store.CommitAssignment(ctx, tenantID, store.Commit{Routes: routes})
		if err != nil {
			return res, fmt.Errorf("import: %w", err)
		}
		res.Routes = saved
		sum.Routes = len(saved)
		return res, nil
	}

	saved, overflow, err := s.assign(ctx, tenantID, routes, workers, &sum)
	if err != nil {
		return res, fmt.Errorf("import: %w", err)
	}
	res.Routes, res.Overflow = saved, overflow
	return res, nil
}

// AssignPending assigns every stored pending route of the tenant. It follows
// the same contract and eligibility rule as an import.
func (s *Service) AssignPending(ctx context.Context, tenantID string) (res ImportResult, err error) {
	res.Skipped = []Skipped{}
	sum, started := s.begin(EntryPending)
	defer func() { s.finish(tenantID, &sum, started, err) }()

	unlock, err := s.locker.Lock(ctx, "assign:"+tenantID)
	if err != nil {
		return res, fmt.Errorf("assign pending: %w", err)
	}
	defer unlock()

	workers, err := s.eligibleWorkers(ctx, tenantID)
	if err != nil {
		return res, fmt.Errorf("assign pending: %w", err)
	}
	sum.Workers = len(workers)
	if len(workers) == 0 {
		return res, fmt.Errorf("assign pending: %w", opt.ErrNoEligibleWorkers)
	}
	pending, err := s.store.ListRoutes(ctx, tenantID, model.RoutePending)
	if err != nil {
		return res, fmt.Errorf("assign pending: %w", err)
	}
	for _, r := range pending {
		res.Orders += len(r.Orders)
	}
	sum.Orders = res.Orders

	saved, overflow, err := s.assign(ctx, tenantID, pending, workers, &sum)
	if err != nil {
		return res, fmt.Errorf("assign pending: %w", err)
	}
	res.Routes, res.Overflow = saved, overflow
	return res, nil
}

// assign plans the pairing, applies it to routes and workers and commits both
// in one write. Must be called with the tenant lock held.
func (s *Service) assign(ctx context.Context, tenantID string, routes []model.Route, workers []model.Worker, sum *opt.RunSummary) ([]model.Route, int, error) {
	plan, err := opt.Assign(routes, workers)
	if err != nil {
		return nil, 0, err
	}

	now := s.now()
	current := make(map[string]model.Worker, len(workers))
	for _, w := range workers {
		current[w.ID] = w
	}
	touched := []string{}
	out := make([]model.Route, 0, len(plan.Pairs))
	for _, p := range plan.Pairs {
		r := p.Route
		// A worker paired twice in one run is updated twice.
		w := current[p.Worker.ID]
		if !containsID(touched, w.ID) {
			touched = append(touched, w.ID)
		}
		r.AssignedWorkerID = w.ID
		r.Status = model.RouteAssigned
		current[w.ID] = opt.RecordAssignment(w, r.Score(), now)
		out = append(out, r)
		if r.Score() > sum.MaxScore {
			sum.MaxScore = r.Score()
		}
	}
	updated := make([]model.Worker, 0, len(touched))
	for _, id := range touched {
		updated = append(updated, current[id])
	}

	saved, err := s.store.CommitAssignment(ctx, tenantID, store.Commit{Routes: out, Workers: updated})
	if err != nil {
		return nil, 0, err
	}
	sum.Routes, sum.Overflow = len(saved), plan.Overflow

	metrics.RoutesAssigned.Add(float64(len(saved)))
	metrics.OverflowPairs.Add(float64(plan.Overflow))
	for _, r := range saved {
		metrics.RouteHardship.Observe(r.Score())
		s.publish(tenantID, model.RouteEvent{
			Type:     model.EventRouteAssigned,
			RouteID:  r.ID,
			WorkerID: r.AssignedWorkerID,
			Data:     map[string]any{"region": r.Region, "score": r.Score(), "stops": r.NumberOfStops},
		})
	}
	if plan.Overflow > 0 {
		s.log.Warn("more routes than eligible workers; some workers received several routes",
			zap.String("tenant", tenantID), zap.Int("routes", len(saved)), zap.Int("workers", len(workers)), zap.Int("overflow", plan.Overflow))
	}
	return saved, plan.Overflow, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s *Service) eligibleWorkers(ctx context.Context, tenantID string) ([]model.Worker, error) {
	all, err := s.store.ListWorkers(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Worker, 0, len(all))
	for _, w := range all {
		if w.Eligible() {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Service) begin(entry string) (opt.RunSummary, time.Time) {
	return opt.RunSummary{Entry: entry, StartedAt: s.now()}, time.Now()
}

func (s *Service) finish(tenantID string, sum *opt.RunSummary, started time.Time, err error) {
	elapsed := time.Since(started)
	sum.Duration = elapsed.String()
	metrics.AssignmentDuration.WithLabelValues(sum.Entry).Observe(elapsed.Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
		sum.Error = err.Error()
		s.log.Warn("assignment run failed", zap.String("tenant", tenantID), zap.String("entry", sum.Entry), zap.Error(err))
	} else {
		s.log.Info("assignment run",
			zap.String("tenant", tenantID), zap.String("entry", sum.Entry),
			zap.Int("orders", sum.Orders), zap.Int("skipped", sum.Skipped),
			zap.Int("routes", sum.Routes), zap.Int("workers", sum.Workers), zap.Int("overflow", sum.Overflow))
	}
	metrics.AssignmentRuns.WithLabelValues(sum.Entry, outcome).Inc()
	s.runs.Record(tenantID, *sum)
}
