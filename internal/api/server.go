package api

import (
	"context"
	"net/http"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fairroute/internal/config"
	"fairroute/internal/dispatch"
	"fairroute/internal/store"
)

type Server struct {
	Store    store.Store
	Dispatch *dispatch.Service
	Broker   EventBroker
	Config   *config.Config
	Log      *zap.Logger

	limiter *clientLimiter
	closers []func() error
}

// NewServer wires the store, broker and dispatch service from cfg. Without
// DATABASE_URL routes live in memory; without REDIS_URL events and locks stay
// in-process.
func NewServer(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	s := &Server{Config: cfg, Log: log}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s.Store = store.NewMemory()
		log.Info("using in-memory store")
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pg.Close)
		if cfg.DBMigrate {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, err
			}
		}
		s.Store = pg
		log.Info("using postgres store")
	}

	var locker dispatch.Locker = dispatch.NewLocalLocker()
	s.Broker = NewBroker()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		rdb := redis.NewClient(opts)
		s.closers = append(s.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			// Keep serving on a single replica rather than refusing to start.
			log.Warn("redis unavailable; using in-process broker and locks", zap.Error(err))
		} else {
			s.Broker = NewRedisBroker(rdb)
			locker = dispatch.NewRedisLocker(rdb, cfg.LockTTL)
			log.Info("using redis broker and locks")
		}
	}

	s.Dispatch = dispatch.New(s.Store,
		dispatch.WithParams(cfg.Params.Scoring),
		dispatch.WithGazetteer(cfg.Params.Gazetteer),
		dispatch.WithJitter(cfg.Params.Jitter),
		dispatch.WithLocker(locker),
		dispatch.WithPublisher(s.Broker),
		dispatch.WithLogger(log.Named("dispatch")),
	)
	s.limiter = newClientLimiter(cfg.RateRPS, cfg.RateBurst)
	return s, nil
}

// Close releases the database and Redis connections.
func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
	s.closers = nil
}

type ctxKeyTenant struct{}

// WithTenant returns a copy of ctx carrying the tenant id.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, ctxKeyTenant{}, tenant)
}

// TenantFromContext returns the tenant stored by WithTenant.
func TenantFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(ctxKeyTenant{}).(string)
	return t, ok && t != ""
}

// requestTenant reads the tenant from the X-Tenant-Id header until an auth
// layer supplies it.
func requestTenant(r *http.Request) string {
	if t := r.Header.Get("X-Tenant-Id"); t != "" {
		return t
	}
	return config.DefaultTenant
}

// withTenant returns the request context and its tenant. Requests that did not
// pass through tenantScope fall back to the header.
func (s *Server) withTenant(r *http.Request) (context.Context, string) {
	ctx := r.Context()
	if t, ok := TenantFromContext(ctx); ok {
		return ctx, t
	}
	t := requestTenant(r)
	return WithTenant(ctx, t), t
}
