package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"github.com/clopfocus/focusd/internal/notify"
	"github.com/clopfocus/focusd/internal/session"
)

// clientSendBuffer is the per-client outbound queue. A client that
// falls this far behind starts missing frames instead of stalling the
// broadcaster.
const clientSendBuffer = 32

// uiClient is one connected UI WebSocket with its outbound queue.
type uiClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// writePump drains the outbound queue onto the connection. It returns
// when the context is canceled, the queue closes, or a write fails.
func (c *uiClient) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
				slog.Debug("UI client write failed", "client_id", c.id, "error", err)
				return
			}
		}
	}
}

// Hub manages active UI WebSocket connections and broadcasts session
// updates, notifications, and overlay commands to all of them. It
// implements notify.Sink.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*uiClient
}

// NewHub creates a new hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*uiClient)}
}

// Register adds a new UI connection. An existing connection with the
// same client ID is closed and replaced.
func (h *Hub) Register(clientID string, conn *websocket.Conn) *uiClient {
	client := &uiClient{
		id:   clientID,
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	h.mu.Lock()
	if existing, ok := h.clients[clientID]; ok && existing.conn != conn {
		_ = existing.conn.Close(websocket.StatusNormalClosure, "session replaced")
	}
	h.clients[clientID] = client
	h.mu.Unlock()

	slog.Info("UI client registered", "client_id", clientID)
	return client
}

// Unregister removes a UI connection. A client replaced by a newer
// connection under the same ID is left untouched.
func (h *Hub) Unregister(client *uiClient) {
	h.mu.Lock()
	if current, ok := h.clients[client.id]; ok && current == client {
		delete(h.clients, client.id)
		slog.Info("UI client unregistered", "client_id", client.id)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected UI clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast marshals v once and queues it for every connected client.
// Slow clients drop frames rather than block.
func (h *Hub) Broadcast(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to marshal broadcast frame", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			slog.Debug("Dropping frame for slow UI client", "client_id", client.id)
		}
	}
}

// PumpUpdates broadcasts session updates until the channel closes or
// ctx is canceled. Updates carry their own type discriminator, so they
// go out unwrapped.
func (h *Hub) PumpUpdates(ctx context.Context, updates <-chan session.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			h.Broadcast(u)
		}
	}
}

// Notify implements notify.Sink.
func (h *Hub) Notify(n notify.Notification) {
	h.Broadcast(map[string]interface{}{
		"type":  "notification",
		"level": n.Level,
		"title": n.Title,
		"body":  n.Body,
	})
}

// Overlay implements notify.Sink.
func (h *Hub) Overlay(cmd notify.OverlayCommand) {
	msg := map[string]interface{}{
		"type":   "overlay",
		"action": cmd.Action,
	}
	if cmd.DurationMs > 0 {
		msg["duration_ms"] = cmd.DurationMs
	}
	h.Broadcast(msg)
}
