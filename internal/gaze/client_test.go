package gaze

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

type fakeHandler struct {
	mu          sync.Mutex
	detections  []*DetectionResult
	focusLosses []*FocusLossNotification
	gazes       []*GazeSample
	statuses    []*ServiceStatus
}

func (f *fakeHandler) OnDetection(res *DetectionResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detections = append(f.detections, res)
}

func (f *fakeHandler) OnFocusLoss(note *FocusLossNotification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focusLosses = append(f.focusLosses, note)
}

func (f *fakeHandler) OnGaze(sample *GazeSample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gazes = append(f.gazes, sample)
}

func (f *fakeHandler) OnStatus(status *ServiceStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *fakeHandler) detectionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.detections)
}

func (f *fakeHandler) focusLossCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.focusLosses)
}

func (f *fakeHandler) lastFocusLoss() *FocusLossNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.focusLosses) == 0 {
		return nil
	}
	return f.focusLosses[len(f.focusLosses)-1]
}

func (f *fakeHandler) gazeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.gazes)
}

func (f *fakeHandler) statusCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.statuses)
}

type gazeServer struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
}

func newGazeServer(t *testing.T) *gazeServer {
	t.Helper()
	gs := &gazeServer{conns: make(chan *websocket.Conn, 4)}
	gs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		gs.conns <- conn
	}))
	t.Cleanup(gs.srv.Close)
	return gs
}

func (g *gazeServer) url() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http")
}

func (g *gazeServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-g.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for client connection")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func startTestClient(t *testing.T, url string, h Handler) *Client {
	t.Helper()
	client := NewClient(Config{
		URL:          url,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		PingInterval: time.Minute,
	}, h, nil, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = client.Run(ctx) }()
	return client
}

// readClientMessage reads one frame sent by the client and unmarshals
// its envelope.
func readClientMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read client message: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal client message: %v", err)
	}
	return msg
}

func serverSend(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
		t.Fatalf("Failed to send server frame: %v", err)
	}
}

func TestClientQueriesStatusOnConnect(t *testing.T) {
	gs := newGazeServer(t)
	startTestClient(t, gs.url(), &fakeHandler{})

	conn := gs.accept(t)
	msg := readClientMessage(t, conn)
	if msg["type"] != TypeGetStatus {
		t.Errorf("Expected get_status on connect, got %v", msg["type"])
	}
}

func TestClientDispatchesDetectionMessages(t *testing.T) {
	gs := newGazeServer(t)
	h := &fakeHandler{}
	startTestClient(t, gs.url(), h)

	conn := gs.accept(t)
	readClientMessage(t, conn) // get_status

	serverSend(t, conn, `{"type":"detection_result","focus_status":"distracted"}`)
	waitFor(t, "detection dispatch", func() bool { return h.detectionCount() == 1 })

	serverSend(t, conn, `{"type":"gaze","gaze":{"h":0.1,"v":0.2},"attention":0.9,"on_screen":true}`)
	waitFor(t, "gaze dispatch", func() bool { return h.gazeCount() == 1 })

	serverSend(t, conn, `{"type":"status","is_monitoring":true}`)
	waitFor(t, "status dispatch", func() bool { return h.statusCount() == 1 })
}

func TestClientMapsFocusAlertToFocusLoss(t *testing.T) {
	gs := newGazeServer(t)
	h := &fakeHandler{}
	startTestClient(t, gs.url(), h)

	conn := gs.accept(t)
	readClientMessage(t, conn) // get_status

	serverSend(t, conn, `{"type":"focus_alert","alert_type":"focus_loss","data":{"focus_score":0.1}}`)
	waitFor(t, "focus alert dispatch", func() bool { return h.focusLossCount() == 1 })

	if note := h.lastFocusLoss(); note.FocusStatus != StatusFocusLost {
		t.Errorf("Expected alert mapped to focus_lost, got %s", note.FocusStatus)
	}
}

func TestClientIgnoresUnknownMessages(t *testing.T) {
	gs := newGazeServer(t)
	h := &fakeHandler{}
	startTestClient(t, gs.url(), h)

	conn := gs.accept(t)
	readClientMessage(t, conn) // get_status

	serverSend(t, conn, `{"type":"telemetry","values":[1]}`)
	serverSend(t, conn, `{"type":"detection_result","focus_status":"focused"}`)
	waitFor(t, "detection after unknown frame", func() bool { return h.detectionCount() == 1 })

	if h.focusLossCount() != 0 || h.gazeCount() != 0 {
		t.Error("Expected unknown frame not to reach the handler")
	}
}

func TestClientSendsFrames(t *testing.T) {
	gs := newGazeServer(t)
	client := startTestClient(t, gs.url(), &fakeHandler{})

	conn := gs.accept(t)
	readClientMessage(t, conn) // get_status
	waitFor(t, "client connected", client.Connected)

	client.SendFrame(context.Background(), "aGVsbG8=", time.Now())

	msg := readClientMessage(t, conn)
	if msg["type"] != TypeFrame {
		t.Errorf("Expected frame message, got %v", msg["type"])
	}
	if msg["data"] != "aGVsbG8=" {
		t.Errorf("Expected frame payload to pass through, got %v", msg["data"])
	}
	if ts, ok := msg["timestamp"].(float64); !ok || ts <= 0 {
		t.Errorf("Expected positive unix timestamp, got %v", msg["timestamp"])
	}
}

func TestClientReconnectsAfterConnectionLoss(t *testing.T) {
	gs := newGazeServer(t)
	client := startTestClient(t, gs.url(), &fakeHandler{})

	conn := gs.accept(t)
	readClientMessage(t, conn) // get_status
	if err := conn.Close(websocket.StatusGoingAway, "restart"); err != nil {
		t.Fatalf("Failed to close server side: %v", err)
	}

	conn = gs.accept(t)
	msg := readClientMessage(t, conn)
	if msg["type"] != TypeGetStatus {
		t.Errorf("Expected get_status after reconnect, got %v", msg["type"])
	}
	waitFor(t, "client reconnected", client.Connected)
	if client.Degraded() {
		t.Error("Expected client not to be degraded after successful reconnect")
	}
}

func TestClientGivesUpAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	client := NewClient(Config{
		URL:         url,
		DialTimeout: 200 * time.Millisecond,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		MaxAttempts: 3,
	}, nil, nil, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.Run(ctx)
	if err == nil {
		t.Fatal("Expected Run to return an error after exhausting attempts")
	}
	if ctx.Err() != nil {
		t.Fatal("Expected Run to give up before the test deadline")
	}
	if !client.Degraded() {
		t.Error("Expected client to be degraded after exhausting attempts")
	}
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	client := NewClient(Config{
		URL:       "ws://localhost:1",
		BaseDelay: time.Second,
		MaxDelay:  10 * time.Second,
	}, nil, nil, slog.Default())

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for i, expected := range want {
		if got := client.backoffDelay(i + 1); got != expected {
			t.Errorf("Expected attempt %d delay %v, got %v", i+1, expected, got)
		}
	}
}
