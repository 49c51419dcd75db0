// Package gaze maintains the WebSocket link to the external gaze
// detection service: the message vocabulary, the reconnecting client,
// and the NDJSON trace log of raw detection frames.
package gaze

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message type tags sent to the detection service.
const (
	TypeGetStatus      = "get_status"
	TypeStartSession   = "start_session"
	TypeStopSession    = "stop_session"
	TypeUpdateSettings = "update_settings"
	TypeFrame          = "frame"
	TypePing           = "ping"
)

// Message type tags received from the detection service. The service
// speaks two dialects depending on its version: the session-aware one
// (detection_result, focus_loss_notification, status) and the raw
// streaming one (gaze, focus_alert, connection). The client accepts
// both.
const (
	TypeDetectionResult       = "detection_result"
	TypeFocusLossNotification = "focus_loss_notification"
	TypeSessionStarted        = "session_started"
	TypeSessionStopped        = "session_stopped"
	TypeStatus                = "status"
	TypeError                 = "error"
	TypeGaze                  = "gaze"
	TypePong                  = "pong"
	TypeConnection            = "connection"
	TypeFocusAlert            = "focus_alert"
	TypeStats                 = "stats"
)

// ErrUnknownMessage reports a frame whose type tag is not part of the
// protocol.
var ErrUnknownMessage = errors.New("unknown message type")

// FocusStatus classifies the user's attention as reported by the
// detection service.
type FocusStatus string

const (
	StatusFocused    FocusStatus = "focused"
	StatusWavering   FocusStatus = "wavering"
	StatusDistracted FocusStatus = "distracted"
	StatusFocusLost  FocusStatus = "focus_lost"
)

// Distracted reports whether the status signals a lost focus. Wavering
// is a warning level and does not open a distraction episode.
func (s FocusStatus) Distracted() bool {
	return s == StatusDistracted || s == StatusFocusLost
}

// DetectionResult is a periodic classification from the session-aware
// service dialect.
type DetectionResult struct {
	Detection    json.RawMessage `json:"detection,omitempty"`
	FocusStatus  FocusStatus     `json:"focus_status"`
	SessionStats json.RawMessage `json:"session_stats,omitempty"`
}

// FocusLossNotification is an explicit focus-loss push from the
// session-aware service dialect.
type FocusLossNotification struct {
	FocusStatus FocusStatus `json:"focus_status"`
}

// SessionStartedInfo acknowledges a start_session command.
type SessionStartedInfo struct {
	Config json.RawMessage `json:"config,omitempty"`
}

// SessionStoppedInfo acknowledges a stop_session command.
type SessionStoppedInfo struct {
	Statistics json.RawMessage `json:"statistics,omitempty"`
}

// ServiceStatus answers a get_status query.
type ServiceStatus struct {
	IsMonitoring bool            `json:"is_monitoring"`
	SessionStats json.RawMessage `json:"session_stats,omitempty"`
}

// ServiceError is an error report. Older service versions nest the
// message under data.
type ServiceError struct {
	Message string `json:"message,omitempty"`
	Data    struct {
		Message string `json:"message,omitempty"`
	} `json:"data,omitempty"`
}

// Text returns the error message from whichever field carries it.
func (e *ServiceError) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Data.Message
}

// FocusAnalysis is the attention classification attached to raw gaze
// samples.
type FocusAnalysis struct {
	Status            FocusStatus `json:"status"`
	FocusScore        float64     `json:"focus_score"`
	AttentionTrend    string      `json:"attention_trend,omitempty"`
	FocusLossDetected bool        `json:"focus_loss_detected"`
	FocusLossCount    int         `json:"focus_loss_count"`
}

// GazeSample is one raw detection sample from the streaming dialect.
type GazeSample struct {
	Gaze struct {
		H float64 `json:"h"`
		V float64 `json:"v"`
	} `json:"gaze"`
	Attention     float64        `json:"attention"`
	OnScreen      bool           `json:"on_screen"`
	FocusAnalysis *FocusAnalysis `json:"focus_analysis,omitempty"`
	Timestamp     float64        `json:"timestamp,omitempty"`
}

// FocusAlert is a pushed focus-loss alert from the streaming dialect.
type FocusAlert struct {
	AlertType string          `json:"alert_type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp float64         `json:"timestamp,omitempty"`
}

// ConnectionInfo is the greeting the streaming dialect sends on
// connect.
type ConnectionInfo struct {
	Status          string          `json:"status,omitempty"`
	SessionID       string          `json:"session_id,omitempty"`
	FocusThresholds json.RawMessage `json:"focus_thresholds,omitempty"`
}

// Pong answers a keepalive ping.
type Pong struct {
	Timestamp float64 `json:"timestamp,omitempty"`
}

// StatsInfo carries service-side session statistics.
type StatsInfo struct {
	Data json.RawMessage `json:"data,omitempty"`
}

type envelope struct {
	Type string `json:"type"`
}

// Decode parses one service frame into its typed payload. Frames with
// an unrecognized type tag return ErrUnknownMessage.
func Decode(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode frame envelope: %w", err)
	}

	var payload any
	switch env.Type {
	case TypeDetectionResult:
		payload = &DetectionResult{}
	case TypeFocusLossNotification:
		payload = &FocusLossNotification{}
	case TypeSessionStarted:
		payload = &SessionStartedInfo{}
	case TypeSessionStopped:
		payload = &SessionStoppedInfo{}
	case TypeStatus:
		payload = &ServiceStatus{}
	case TypeError:
		payload = &ServiceError{}
	case TypeGaze:
		payload = &GazeSample{}
	case TypePong:
		payload = &Pong{}
	case TypeConnection:
		payload = &ConnectionInfo{}
	case TypeFocusAlert:
		payload = &FocusAlert{}
	case TypeStats:
		payload = &StatsInfo{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}

	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("decode %s frame: %w", env.Type, err)
	}
	return payload, nil
}
