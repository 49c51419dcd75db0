package session

import (
	"time"

	"github.com/clopfocus/focusd/internal/domain"
)

// UpdateType identifies the kind of state change an Update carries.
type UpdateType string

const (
	UpdateSessionStarted   UpdateType = "session_started"
	UpdateTick             UpdateType = "tick"
	UpdatePaused           UpdateType = "paused"
	UpdateResumed          UpdateType = "resumed"
	UpdateDistraction      UpdateType = "distraction"
	UpdateFocusRegained    UpdateType = "focus_regained"
	UpdateLifeLost         UpdateType = "life_lost"
	UpdateCoinEarned       UpdateType = "coin_earned"
	UpdateSessionCompleted UpdateType = "session_completed"
)

// Update is a push notification about the active session, fanned out to
// subscribers. Session is a value copy, safe to read after delivery.
// Source names the signal origin on distraction and focus_regained
// updates and is empty otherwise.
type Update struct {
	Type         UpdateType     `json:"type"`
	State        string         `json:"state"`
	Session      domain.Session `json:"session"`
	ElapsedSec   int            `json:"elapsed_sec"`
	RemainingSec int            `json:"remaining_sec"`
	Lives        int            `json:"lives"`
	Source       string         `json:"source,omitempty"`
	At           time.Time      `json:"at"`
}

// Status is a point-in-time snapshot of the manager, served over the
// API and sent to UI sockets on connect. Session is nil when idle.
type Status struct {
	State        string          `json:"state"`
	Session      *domain.Session `json:"session,omitempty"`
	ElapsedSec   int             `json:"elapsed_sec"`
	RemainingSec int             `json:"remaining_sec"`
	Lives        int             `json:"lives"`
}
