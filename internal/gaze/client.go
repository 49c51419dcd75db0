package gaze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Config holds connection settings for the detection service client.
type Config struct {
	// URL is the WebSocket endpoint of the detection service.
	URL string
	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration
	// BaseDelay is the first reconnect backoff delay; each failure
	// doubles it up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// MaxAttempts is the number of consecutive dial failures tolerated
	// before the client gives up and enters degraded mode.
	MaxAttempts int
	// PingInterval is the keepalive cadence on an open connection.
	PingInterval time.Duration
}

// DefaultConfig returns the production connection settings.
func DefaultConfig(url string) Config {
	return Config{
		URL:          url,
		DialTimeout:  5 * time.Second,
		BaseDelay:    time.Second,
		MaxDelay:     10 * time.Second,
		MaxAttempts:  5,
		PingInterval: 30 * time.Second,
	}
}

// Handler receives decoded detection messages. Callbacks run on the
// client's read loop and must not block.
type Handler interface {
	OnDetection(res *DetectionResult)
	OnFocusLoss(note *FocusLossNotification)
	OnGaze(sample *GazeSample)
	OnStatus(status *ServiceStatus)
}

// Client maintains the WebSocket connection to the detection service,
// reconnecting with exponential backoff. Outbound messages are
// fire-and-forget: while disconnected they are dropped, since the
// session keeps running without gaze input.
type Client struct {
	cfg     Config
	handler Handler
	trace   *TraceLogger
	logger  *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	degraded bool
}

// NewClient creates a detection service client. handler and trace may
// be nil; logger falls back to slog.Default().
func NewClient(cfg Config, handler Handler, trace *TraceLogger, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig(cfg.URL)
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	return &Client{cfg: cfg, handler: handler, trace: trace, logger: logger}
}

// Run maintains the connection until ctx is canceled. Consecutive dial
// failures back off exponentially; once MaxAttempts is reached the
// client enters degraded mode and returns. A successful connection
// resets the failure count.
func (c *Client) Run(ctx context.Context) error {
	attempts := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := c.dial(ctx)
		if err != nil {
			attempts++
			if attempts >= c.cfg.MaxAttempts {
				c.setDegraded(true)
				c.logger.Error("Gaze service unreachable, entering degraded mode",
					"url", c.cfg.URL, "attempts", attempts, "error", err)
				return fmt.Errorf("gaze service unreachable after %d attempts: %w", attempts, err)
			}
			delay := c.backoffDelay(attempts)
			c.logger.Warn("Gaze service dial failed, retrying",
				"attempt", attempts, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		attempts = 0
		c.setConn(conn)
		c.setDegraded(false)
		c.logger.Info("Connected to gaze service", "url", c.cfg.URL)
		c.send(ctx, outbound{Type: TypeGetStatus})

		readErr := c.readLoop(ctx, conn)
		c.setConn(nil)
		if closeErr := conn.Close(websocket.StatusNormalClosure, "reconnecting"); closeErr != nil {
			c.logger.Debug("Failed to close gaze connection", "error", closeErr)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if status := websocket.CloseStatus(readErr); status != -1 {
			c.logger.Info("Gaze service closed connection, reconnecting", "status", status)
		} else {
			c.logger.Warn("Gaze service connection lost, reconnecting", "error", readErr)
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.cfg.BaseDelay << (attempt - 1)
	if delay > c.cfg.MaxDelay {
		delay = c.cfg.MaxDelay
	}
	return delay
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go c.keepalive(pingCtx)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		c.dispatch(data)
	}
}

func (c *Client) keepalive(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.send(ctx, outbound{Type: TypePing})
		}
	}
}

func (c *Client) dispatch(data []byte) {
	msg, err := Decode(data)
	if err != nil {
		if errors.Is(err, ErrUnknownMessage) {
			c.logger.Warn("Gaze service sent unknown message", "error", err)
		} else {
			c.logger.Warn("Failed to decode gaze message", "error", err)
		}
		return
	}

	if c.trace != nil {
		c.trace.Log(data)
	}

	switch m := msg.(type) {
	case *DetectionResult:
		if c.handler != nil {
			c.handler.OnDetection(m)
		}
	case *FocusLossNotification:
		if c.handler != nil {
			c.handler.OnFocusLoss(m)
		}
	case *GazeSample:
		if c.handler != nil {
			c.handler.OnGaze(m)
		}
	case *FocusAlert:
		// The streaming dialect pushes alerts instead of
		// focus_loss_notification frames.
		if c.handler != nil {
			c.handler.OnFocusLoss(&FocusLossNotification{FocusStatus: StatusFocusLost})
		}
	case *ServiceStatus:
		if c.handler != nil {
			c.handler.OnStatus(m)
		}
	case *SessionStartedInfo:
		c.logger.Debug("Gaze service acknowledged session start")
	case *SessionStoppedInfo:
		c.logger.Info("Gaze service session stopped", "statistics", string(m.Statistics))
	case *ServiceError:
		c.logger.Warn("Gaze service reported error", "message", m.Text())
	case *ConnectionInfo:
		c.logger.Info("Gaze service greeting received", "status", m.Status, "session_id", m.SessionID)
	case *Pong:
		c.logger.Debug("Gaze service pong received")
	case *StatsInfo:
		c.logger.Debug("Gaze service stats received", "data", string(m.Data))
	}
}

// outbound is the envelope for messages sent to the service. Unused
// fields stay empty and are omitted from the wire.
type outbound struct {
	Type      string          `json:"type"`
	Config    json.RawMessage `json:"config,omitempty"`
	Settings  json.RawMessage `json:"settings,omitempty"`
	Data      string          `json:"data,omitempty"`
	Timestamp float64         `json:"timestamp,omitempty"`
}

// StartSession tells the service to begin monitoring with the given
// configuration.
func (c *Client) StartSession(ctx context.Context, config json.RawMessage) {
	c.send(ctx, outbound{Type: TypeStartSession, Config: config})
}

// StopSession tells the service to stop monitoring.
func (c *Client) StopSession(ctx context.Context) {
	c.send(ctx, outbound{Type: TypeStopSession})
}

// UpdateSettings forwards detection settings to the service.
func (c *Client) UpdateSettings(ctx context.Context, settings json.RawMessage) {
	c.send(ctx, outbound{Type: TypeUpdateSettings, Settings: settings})
}

// SendFrame forwards one base64-encoded camera frame for analysis.
func (c *Client) SendFrame(ctx context.Context, data string, ts time.Time) {
	c.send(ctx, outbound{
		Type:      TypeFrame,
		Data:      data,
		Timestamp: float64(ts.UnixNano()) / float64(time.Second),
	})
}

func (c *Client) send(ctx context.Context, msg outbound) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		c.logger.Debug("Gaze service not connected, dropping message", "type", msg.Type)
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Warn("Failed to marshal gaze message", "type", msg.Type, "error", err)
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		c.logger.Debug("Gaze service write failed", "type", msg.Type, "error", err)
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) setDegraded(v bool) {
	c.mu.Lock()
	c.degraded = v
	c.mu.Unlock()
}

// Degraded reports whether the client has given up reconnecting.
func (c *Client) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}
