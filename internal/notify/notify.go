// Package notify delivers user-facing alerts and overlay commands for
// session events, honoring the user's notification filter.
package notify

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/clopfocus/focusd/internal/domain"
)

// Level classifies a notification's urgency.
type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Notification is a user-facing alert.
type Notification struct {
	Level Level  `json:"level"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Overlay actions.
const (
	OverlayFlash = "flash"
	OverlayShow  = "show"
	OverlayHide  = "hide"
)

// OverlayCommand drives the on-screen attention overlay.
type OverlayCommand struct {
	Action     string `json:"action"`
	DurationMs int    `json:"duration_ms,omitempty"`
}

// Sink receives notifications and overlay commands. Delivery is
// fire-and-forget; a sink must not block.
type Sink interface {
	Notify(n Notification)
	Overlay(cmd OverlayCommand)
}

// Dispatcher fans session alerts out to sinks. The filter decides
// which classes get through: "all" delivers everything, "alerts" only
// focus and life warnings, "none" suppresses the lot.
type Dispatcher struct {
	mu     sync.RWMutex
	filter domain.NotifFilter
	sinks  []Sink
}

// NewDispatcher creates a dispatcher with the given filter and sinks.
// An invalid filter falls back to delivering everything.
func NewDispatcher(filter domain.NotifFilter, sinks ...Sink) *Dispatcher {
	if !filter.Valid() {
		filter = domain.NotifAll
	}
	return &Dispatcher{filter: filter, sinks: sinks}
}

// SetFilter switches the active filter. Invalid values are ignored.
func (d *Dispatcher) SetFilter(filter domain.NotifFilter) {
	if !filter.Valid() {
		return
	}
	d.mu.Lock()
	d.filter = filter
	d.mu.Unlock()
	slog.Debug("Notification filter updated", "filter", filter)
}

// Filter returns the active filter.
func (d *Dispatcher) Filter() domain.NotifFilter {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.filter
}

// FocusLoss warns that attention drifted. Delivered unless
// notifications are off.
func (d *Dispatcher) FocusLoss(source string) {
	if !d.alertsAllowed() {
		return
	}
	slog.Debug("Dispatching focus loss alert", "source", source)
	d.notify(Notification{
		Level: LevelWarning,
		Title: "Focus lost",
		Body:  "Look back at your work to keep your lives.",
	})
	d.overlay(OverlayCommand{Action: OverlayFlash, DurationMs: 1500})
}

// LifeLost announces a life lost after the grace period ran out. The
// overlay stays up until focus returns. Delivered unless notifications
// are off.
func (d *Dispatcher) LifeLost(livesLeft int) {
	if !d.alertsAllowed() {
		return
	}
	d.notify(Notification{
		Level: LevelCritical,
		Title: "Life lost",
		Body:  fmt.Sprintf("You have %d lives left.", livesLeft),
	})
	d.overlay(OverlayCommand{Action: OverlayShow})
}

// FocusRegained clears the attention overlay. Always delivered so a
// stale overlay never lingers after a filter change.
func (d *Dispatcher) FocusRegained() {
	d.overlay(OverlayCommand{Action: OverlayHide})
}

// CoinEarned celebrates a new coin. Delivered only when the filter is
// set to everything.
func (d *Dispatcher) CoinEarned(coins int) {
	if !d.everythingAllowed() {
		return
	}
	d.notify(Notification{
		Level: LevelInfo,
		Title: "Coin earned",
		Body:  fmt.Sprintf("Coin #%d collected. Keep going.", coins),
	})
}

// SessionCompleted announces the final score. Delivered only when the
// filter is set to everything; the overlay is cleared regardless.
func (d *Dispatcher) SessionCompleted(score float64) {
	d.overlay(OverlayCommand{Action: OverlayHide})
	if !d.everythingAllowed() {
		return
	}
	d.notify(Notification{
		Level: LevelInfo,
		Title: "Session complete",
		Body:  fmt.Sprintf("Final score: %.0f.", score),
	})
}

func (d *Dispatcher) alertsAllowed() bool {
	return d.Filter() != domain.NotifNone
}

func (d *Dispatcher) everythingAllowed() bool {
	return d.Filter() == domain.NotifAll
}

func (d *Dispatcher) notify(n Notification) {
	for _, sink := range d.sinks {
		sink.Notify(n)
	}
}

func (d *Dispatcher) overlay(cmd OverlayCommand) {
	for _, sink := range d.sinks {
		sink.Overlay(cmd)
	}
}
