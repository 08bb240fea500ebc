package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fairroute/internal/model"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	wsPongWait  = 60 * time.Second
	wsPingEvery = 20 * time.Second
	wsWriteWait = 5 * time.Second
)

type wsMessage struct {
	Type  string            `json:"type"`
	Event *model.RouteEvent `json:"event,omitempty"`
}

// EventsWSHandler handles GET /v1/events/ws. It streams the tenant's route
// events, optionally narrowed with ?routeId= or ?workerId=. The first message
// is a connection_ack.
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	_, tenant := s.withTenant(r)
	routeID := r.URL.Query().Get("routeId")
	workerID := r.URL.Query().Get("workerId")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.Broker.Subscribe(tenant)
	defer s.Broker.Unsubscribe(tenant, ch)

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })

	// Reader: only control frames are expected; any error means the peer left.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(m wsMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(m)
	}
	if err := write(wsMessage{Type: "connection_ack"}); err != nil {
		return
	}

	ping := time.NewTicker(wsPingEvery)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if routeID != "" && evt.RouteID != routeID && evt.Type != model.EventRoutesReset {
				continue
			}
			if workerID != "" && evt.WorkerID != workerID && evt.Type != model.EventRoutesReset {
				continue
			}
			if err := write(wsMessage{Type: "event", Event: &evt}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
