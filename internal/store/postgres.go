package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fairroute/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Migrate applies the embedded schema files in name order. Every statement is
// idempotent so it is safe to run on each start.
func (p *Postgres) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := p.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

const workerCols = `id, tenant_id, name, COALESCE(email,''), COALESCE(phone,''), on_duty, is_active, is_approved,
	average_hardship_score, total_routes_completed, last_assigned_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorker(row rowScanner) (model.Worker, error) {
	var w model.Worker
	var last sql.NullTime
	err := row.Scan(&w.ID, &w.TenantID, &w.Name, &w.Email, &w.Phone, &w.OnDuty, &w.IsActive, &w.IsApproved,
		&w.AverageHardshipScore, &w.TotalRoutesCompleted, &last, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	if last.Valid {
		t := last.Time.UTC()
		w.LastAssignedAt = &t
	}
	w.CreatedAt = w.CreatedAt.UTC()
	return w, nil
}

func (p *Postgres) CreateWorker(ctx context.Context, tenantID string, in model.WorkerIn) (model.Worker, error) {
	row := p.db.QueryRowContext(ctx, `INSERT INTO workers (id, tenant_id, name, email, phone, on_duty, is_approved)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING `+workerCols,
		uuid.New().String(), tenantID, in.Name, nullIfEmpty(in.Email), nullIfEmpty(in.Phone), in.OnDuty, in.Approved)
	return scanWorker(row)
}

func (p *Postgres) GetWorker(ctx context.Context, tenantID, id string) (model.Worker, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+workerCols+` FROM workers WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return scanWorker(row)
}

func (p *Postgres) ListWorkers(ctx context.Context, tenantID string) ([]model.Worker, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+workerCols+` FROM workers WHERE tenant_id=$1 ORDER BY created_at, id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Worker{}
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (p *Postgres) ApproveWorker(ctx context.Context, tenantID, id string) (model.Worker, error) {
	row := p.db.QueryRowContext(ctx, `UPDATE workers SET is_approved=TRUE WHERE tenant_id=$1 AND id=$2 RETURNING `+workerCols, tenantID, id)
	return scanWorker(row)
}

func (p *Postgres) ToggleDuty(ctx context.Context, tenantID, id string) (model.Worker, error) {
	row := p.db.QueryRowContext(ctx, `UPDATE workers SET on_duty = NOT on_duty WHERE tenant_id=$1 AND id=$2 RETURNING `+workerCols, tenantID, id)
	return scanWorker(row)
}

func (p *Postgres) DeleteWorker(ctx context.Context, tenantID, id string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `UPDATE routes SET status='pending', assigned_worker_id=NULL, updated_at=now()
		WHERE tenant_id=$1 AND assigned_worker_id=$2 AND status='assigned'`, tenantID, id); err != nil {
		return fmt.Errorf("release routes: %w", err)
	}
	// Completed routes drop the reference through ON DELETE SET NULL.
	res, err := tx.ExecContext(ctx, `DELETE FROM workers WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

const routeCols = `id, tenant_id, region, orders, total_distance, number_of_stops, total_weight, turn_count, eta,
	mode_score, priority_score, route_hardship_score, COALESCE(assigned_worker_id,''), status,
	centroid_lat, centroid_lng, span_meters, created_at, updated_at`

func scanRoute(row rowScanner) (model.Route, error) {
	var r model.Route
	var orders []byte
	var score, clat, clng sql.NullFloat64
	err := row.Scan(&r.ID, &r.TenantID, &r.Region, &orders, &r.TotalDistance, &r.NumberOfStops, &r.TotalWeight,
		&r.TurnCount, &r.ETA, &r.ModeScore, &r.PriorityScore, &score, &r.AssignedWorkerID, &r.Status,
		&clat, &clng, &r.SpanMeters, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(orders, &r.Orders); err != nil {
		return r, fmt.Errorf("route %s: decode orders: %w", r.ID, err)
	}
	if score.Valid {
		v := score.Float64
		r.RouteHardshipScore = &v
	}
	if clat.Valid && clng.Valid {
		r.Centroid = &model.GeoPoint{Lat: clat.Float64, Lng: clng.Float64}
	}
	r.CreatedAt, r.UpdatedAt = r.CreatedAt.UTC(), r.UpdatedAt.UTC()
	return r, nil
}

func (p *Postgres) ListRoutes(ctx context.Context, tenantID string, status model.RouteStatus) ([]model.Route, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+routeCols+` FROM routes
		WHERE tenant_id=$1 AND ($2='' OR status=$2) ORDER BY seq`, tenantID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Route{}
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) GetRoute(ctx context.Context, tenantID, routeID string) (model.Route, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+routeCols+` FROM routes WHERE tenant_id=$1 AND id=$2`, tenantID, routeID)
	return scanRoute(row)
}

func (p *Postgres) ActiveRouteForWorker(ctx context.Context, tenantID, workerID string) (model.Route, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+routeCols+` FROM routes
		WHERE tenant_id=$1 AND assigned_worker_id=$2 AND status='assigned' ORDER BY seq LIMIT 1`, tenantID, workerID)
	return scanRoute(row)
}

// SetStopStatus locks the route row, patches one order inside the JSONB array
// and recomputes the route status.
func (p *Postgres) SetStopStatus(ctx context.Context, tenantID, routeID string, index int, status model.OrderStatus) (model.Route, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Route{}, err
	}
	defer func() { _ = tx.Rollback() }()

	r, err := scanRoute(tx.QueryRowContext(ctx, `SELECT `+routeCols+` FROM routes WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, routeID))
	if err != nil {
		return model.Route{}, err
	}
	if index < 0 || index >= len(r.Orders) {
		return model.Route{}, fmt.Errorf("set stop status: index %d of %d: %w", index, len(r.Orders), ErrInvalidStop)
	}
	r.Orders[index].Status = status
	r.Status = r.RollupStatus()
	orders, err := json.Marshal(r.Orders)
	if err != nil {
		return model.Route{}, err
	}
	if err := tx.QueryRowContext(ctx, `UPDATE routes SET orders=$3, status=$4, updated_at=now()
		WHERE tenant_id=$1 AND id=$2 RETURNING updated_at`, tenantID, routeID, orders, string(r.Status)).Scan(&r.UpdatedAt); err != nil {
		return model.Route{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Route{}, err
	}
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

func (p *Postgres) DeleteRoutes(ctx context.Context, tenantID string) (int, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM routes WHERE tenant_id=$1`, tenantID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (p *Postgres) CommitAssignment(ctx context.Context, tenantID string, c Commit) ([]model.Route, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	saved := make([]model.Route, 0, len(c.Routes))
	for _, r := range c.Routes {
		orders, err := json.Marshal(r.Orders)
		if err != nil {
			return nil, err
		}
		var clat, clng any
		if r.Centroid != nil {
			clat, clng = r.Centroid.Lat, r.Centroid.Lng
		}
		var row *sql.Row
		if r.ID == "" {
			row = tx.QueryRowContext(ctx, `INSERT INTO routes (id, tenant_id, region, orders, total_distance, number_of_stops,
				total_weight, turn_count, eta, mode_score, priority_score, route_hardship_score, assigned_worker_id, status,
				centroid_lat, centroid_lng, span_meters)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17) RETURNING `+routeCols,
				uuid.New().String(), tenantID, r.Region, orders, r.TotalDistance, r.NumberOfStops, r.TotalWeight,
				r.TurnCount, r.ETA, r.ModeScore, r.PriorityScore, r.RouteHardshipScore, nullIfEmpty(r.AssignedWorkerID),
				string(r.Status), clat, clng, r.SpanMeters)
		} else {
			row = tx.QueryRowContext(ctx, `UPDATE routes SET orders=$3, mode_score=$4, priority_score=$5,
				route_hardship_score=$6, assigned_worker_id=$7, status=$8, updated_at=now()
				WHERE tenant_id=$1 AND id=$2 RETURNING `+routeCols,
				tenantID, r.ID, orders, r.ModeScore, r.PriorityScore, r.RouteHardshipScore,
				nullIfEmpty(r.AssignedWorkerID), string(r.Status))
		}
		out, err := scanRoute(row)
		if err != nil {
			return nil, fmt.Errorf("commit assignment: route %q: %w", r.ID, err)
		}
		saved = append(saved, out)
	}
	for _, w := range c.Workers {
		res, err := tx.ExecContext(ctx, `UPDATE workers SET average_hardship_score=$3, total_routes_completed=$4,
			last_assigned_at=$5 WHERE tenant_id=$1 AND id=$2`,
			tenantID, w.ID, w.AverageHardshipScore, w.TotalRoutesCompleted, nullTime(w.LastAssignedAt))
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("commit assignment: worker %s: %w", w.ID, ErrNotFound)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return saved, nil
}

func (p *Postgres) GetSettings(ctx context.Context, tenantID string) (model.Settings, error) {
	var s model.Settings
	var at sql.NullTime
	err := p.db.QueryRowContext(ctx, `SELECT duty_locked, locked_at FROM settings WHERE tenant_id=$1`, tenantID).Scan(&s.DutyLocked, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Settings{}, nil
	}
	if err != nil {
		return s, err
	}
	if at.Valid {
		t := at.Time.UTC()
		s.LockedAt = &t
	}
	return s, nil
}

func (p *Postgres) ToggleDutyLock(ctx context.Context, tenantID string) (model.Settings, error) {
	var s model.Settings
	var at sql.NullTime
	err := p.db.QueryRowContext(ctx, `INSERT INTO settings (tenant_id, duty_locked, locked_at) VALUES ($1, TRUE, now())
		ON CONFLICT (tenant_id) DO UPDATE SET duty_locked = NOT settings.duty_locked,
			locked_at = CASE WHEN settings.duty_locked THEN NULL ELSE now() END
		RETURNING duty_locked, locked_at`, tenantID).Scan(&s.DutyLocked, &at)
	if err != nil {
		return s, err
	}
	if at.Valid {
		t := at.Time.UTC()
		s.LockedAt = &t
	}
	return s, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
