package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"fairroute/internal/integrations"
)

// Poller drains an OrderSource on a fixed interval and imports each batch for
// one tenant.
type Poller struct {
	Source   integrations.OrderSource
	Service  *Service
	Tenant   string
	Interval time.Duration
	// MaxBatches bounds the work done per tick.
	MaxBatches int

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func NewPoller(src integrations.OrderSource, svc *Service, tenant string, every time.Duration) *Poller {
	if every <= 0 {
		every = 30 * time.Second
	}
	return &Poller{Source: src, Service: svc, Tenant: tenant, Interval: every, MaxBatches: 20,
		stop: make(chan struct{}), done: make(chan struct{})}
}

func (p *Poller) Start() {
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.ProcessOnce(context.Background())
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight tick to finish.
func (p *Poller) Stop() {
	p.once.Do(func() { close(p.stop) })
	<-p.done
}

// ProcessOnce imports up to MaxBatches pending batches and returns how many
// were acknowledged.
func (p *Poller) ProcessOnce(ctx context.Context) int {
	log := p.Service.log.With(zap.String("source", p.Source.Name()), zap.String("tenant", p.Tenant))
	acked := 0
	for i := 0; i < p.MaxBatches; i++ {
		b, ok, err := p.Source.FetchBatch(ctx)
		if err != nil {
			log.Warn("fetch batch", zap.Error(err))
			return acked
		}
		if !ok {
			return acked
		}
		rctx, cancel := context.WithTimeout(ctx, time.Minute)
		res, err := p.Service.importCSV(rctx, p.Tenant, b.Body, ImportOptions{}, EntryPoller)
		cancel()
		_ = b.Body.Close()

		switch {
		case err == nil:
			if err := p.Source.Ack(ctx, b.Ref); err != nil {
				log.Error("ack batch", zap.String("ref", b.Ref), zap.Error(err))
				return acked
			}
			acked++
			log.Info("batch imported", zap.String("ref", b.Ref), zap.Int("orders", res.Orders), zap.Int("routes", len(res.Routes)))
		case !errors.Is(err, ErrMalformedInput):
			// No workers, lock contention or a store outage: leave the batch
			// in place for the next tick.
			log.Info("batch deferred", zap.String("ref", b.Ref), zap.Error(err))
			return acked
		default:
			if rerr := p.Source.Reject(ctx, b.Ref, err.Error()); rerr != nil {
				log.Error("reject batch", zap.String("ref", b.Ref), zap.Error(rerr))
				return acked
			}
			log.Warn("batch rejected", zap.String("ref", b.Ref), zap.Error(err))
		}
	}
	return acked
}
