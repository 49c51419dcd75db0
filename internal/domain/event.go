package domain

import (
	"encoding/json"
	"time"
)

// EventType identifies a session event kind. The camelCase literals are
// the wire values stored in event history since the first release.
type EventType string

const (
	EventPause       EventType = "pause"
	EventResume      EventType = "resume"
	EventDistraction EventType = "distraction"
	EventLifeLost    EventType = "lifeLost"
	EventCoinEarned  EventType = "coinEarned"
)

// SessionEvent is one entry in the append-only per-session event log.
// Events are never mutated or removed once written.
type SessionEvent struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	At        time.Time       `json:"at"`
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
}
