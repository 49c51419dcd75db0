package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/clopfocus/focusd/internal/bridge"
	"github.com/clopfocus/focusd/internal/session"
)

// clientIDPattern restricts caller-chosen client IDs. Anything else
// gets a generated ID instead.
var clientIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// uiMessage is the inbound WebSocket message structure.
type uiMessage struct {
	Type      string  `json:"type"`
	Focused   *bool   `json:"focused,omitempty"`
	Source    string  `json:"source,omitempty"`
	Data      string  `json:"data,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`
}

// UIHandler handles the UI WebSocket endpoint. Each connection gets a
// status snapshot on connect and then receives every broadcast frame;
// inbound messages feed focus signals and camera frames into the
// bridge.
type UIHandler struct {
	hub           *Hub
	manager       *session.Manager
	bridge        *bridge.Bridge
	allowedOrigin string
	isDev         bool
}

// NewUIHandler creates a new UI WebSocket handler.
func NewUIHandler(hub *Hub, manager *session.Manager, br *bridge.Bridge, allowedOrigin string, isDev bool) *UIHandler {
	return &UIHandler{
		hub:           hub,
		manager:       manager,
		bridge:        br,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *UIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if !clientIDPattern.MatchString(clientID) {
		clientID = uuid.NewString()
	}
	slog.Info("UI WebSocket connection request", "client_id", clientID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "client_id", clientID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "client_id", clientID)
		}
	}()

	client := h.hub.Register(clientID, ws)
	defer h.hub.Unregister(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := h.writeJSON(ws, map[string]interface{}{
		"type":   "status",
		"status": h.manager.Status(),
	}); err != nil {
		slog.Debug("Failed to send status snapshot", "error", err, "client_id", clientID)
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	// Input loop: UI -> bridge.
	go func() {
		defer wg.Done()
		defer cancel()
		h.readLoop(ctx, ws, clientID)
	}()

	// Output loop: hub broadcasts -> UI.
	go func() {
		defer wg.Done()
		defer cancel()
		client.writePump(ctx)
	}()

	wg.Wait()
	slog.Info("UI WebSocket session ended", "client_id", clientID)
}

func (h *UIHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *UIHandler) readLoop(ctx context.Context, ws *websocket.Conn, clientID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "client_id", clientID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "client_id", clientID)
			}
			return
		}

		var msg uiMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Debug("Ignoring malformed UI message", "error", err, "client_id", clientID)
			continue
		}

		switch msg.Type {
		case "focus":
			if msg.Focused == nil {
				slog.Debug("Focus message without focused flag", "client_id", clientID)
				continue
			}
			h.bridge.ReportFocus(ctx, *msg.Focused, msg.Source)
		case "frame":
			h.bridge.ReportFrame(ctx, msg.Data, frameTime(msg.Timestamp))
		case "ping":
			if err := h.writeJSON(ws, map[string]string{"type": "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		default:
			slog.Debug("Unknown UI message type", "type", msg.Type, "client_id", clientID)
		}
	}
}

// frameTime converts a client frame timestamp in fractional unix
// seconds, falling back to now when absent.
func frameTime(ts float64) time.Time {
	if ts <= 0 {
		return time.Now()
	}
	return time.Unix(0, int64(ts*float64(time.Second)))
}

func (h *UIHandler) writeJSON(ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(context.Background(), websocket.MessageText, data)
}
