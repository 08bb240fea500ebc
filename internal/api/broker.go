package api

import (
	"sync"

	"fairroute/internal/model"
)

// EventBroker fans route events out to subscribers of a tenant. Publish
// never blocks; a subscriber that falls behind misses events.
type EventBroker interface {
	Subscribe(tenantID string) chan model.RouteEvent
	Unsubscribe(tenantID string, ch chan model.RouteEvent)
	Publish(tenantID string, evt model.RouteEvent)
}

// Broker is the in-process EventBroker.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan model.RouteEvent]struct{} // tenant -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan model.RouteEvent]struct{}{}}
}

func (b *Broker) Subscribe(tenantID string) chan model.RouteEvent {
	ch := make(chan model.RouteEvent, 16)
	b.mu.Lock()
	if b.subs[tenantID] == nil {
		b.subs[tenantID] = map[chan model.RouteEvent]struct{}{}
	}
	b.subs[tenantID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(tenantID string, ch chan model.RouteEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[tenantID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, tenantID)
	}
	close(ch)
}

func (b *Broker) Publish(tenantID string, evt model.RouteEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[tenantID] {
		select {
		case ch <- evt:
		default:
		}
	}
}
