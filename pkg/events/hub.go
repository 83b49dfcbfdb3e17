package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

const hubLogPrefix = "events:hub"

type hubConn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
}

// Hub is an EventPublisher that streams events to connected WebSocket clients.
type Hub struct {
	mu    sync.RWMutex
	conns map[*hubConn]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*hubConn]struct{})}
}

// HandleWS upgrades the request to a WebSocket and keeps it registered until the peer
// disconnects. Inbound messages are read and discarded.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		slog.Error(fmt.Sprintf("%s - websocket accept failed: %v", hubLogPrefix, err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &hubConn{ws: ws, cancel: cancel}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	slog.Info(fmt.Sprintf("%s - websocket connected from %s", hubLogPrefix, r.RemoteAddr))

	go func() {
		defer func() {
			h.remove(c)
			_ = ws.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()
}

// PublishRoute broadcasts a route event.
func (h *Hub) PublishRoute(ctx context.Context, event *RouteEvent) error {
	return h.broadcast(ctx, &Envelope{Kind: KindRoute, Route: event})
}

// PublishTurn broadcasts a turn event.
func (h *Hub) PublishTurn(ctx context.Context, event *TurnEvent) error {
	return h.broadcast(ctx, &Envelope{Kind: KindTurn, Turn: event})
}

// ConnectionCount returns the number of connected clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[*hubConn]struct{})
	h.mu.Unlock()
	for c := range conns {
		c.cancel()
		_ = c.ws.Close(websocket.StatusGoingAway, "shutting down")
	}
}

func (h *Hub) broadcast(ctx context.Context, env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%s - failed to encode %s event: %w", hubLogPrefix, env.Kind, err)
	}

	h.mu.RLock()
	targets := make([]*hubConn, 0, len(h.conns))
	for c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug(fmt.Sprintf("%s - websocket write failed: %v", hubLogPrefix, err))
			h.remove(c)
		}
	}
	return nil
}

func (h *Hub) remove(c *hubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info(fmt.Sprintf("%s - websocket disconnected", hubLogPrefix))
	}
}
