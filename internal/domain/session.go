// Package domain contains core domain types for the focusd application.
package domain

import (
	"time"
)

// Session states as reported to the UI.
const (
	StateIdle       = "idle"
	StateRunning    = "running"
	StatePaused     = "paused"
	StateDistracted = "distracted"
	StateCompleted  = "completed"
)

// StartingLives is the number of lives a session begins with.
const StartingLives = 3

// Session represents one timed focus attempt. At most one non-completed
// session exists at a time, owned by the session manager. A completed
// session is never mutated again.
type Session struct {
	ID           string     `json:"id"`
	Level        Level      `json:"level"`
	DurationSec  int        `json:"duration_sec"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	FocusMs      int64      `json:"focus_ms"`
	Pauses       int        `json:"pauses"`
	Distractions int        `json:"distractions"`
	LivesLost    int        `json:"lives_lost"`
	Coins        int        `json:"coins"`
	Score        *float64   `json:"score,omitempty"`
	Completed    bool       `json:"completed"`
}

// Lives returns the remaining lives, floored at zero. LivesLost keeps
// counting past three so the score penalty still accumulates.
func (s *Session) Lives() int {
	lives := StartingLives - s.LivesLost
	if lives < 0 {
		return 0
	}
	return lives
}

// FocusDuration returns the accumulated focused time.
func (s *Session) FocusDuration() time.Duration {
	return time.Duration(s.FocusMs) * time.Millisecond
}

// TargetDuration returns the configured session length.
func (s *Session) TargetDuration() time.Duration {
	return time.Duration(s.DurationSec) * time.Second
}

// ElapsedSec returns whole wall-clock seconds since the session
// started. For completed sessions the end timestamp caps the interval.
func (s *Session) ElapsedSec(now time.Time) int {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	elapsed := int(end.Sub(s.StartedAt).Seconds())
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// RemainingSec returns whole seconds until the target duration is
// reached, floored at zero.
func (s *Session) RemainingSec(now time.Time) int {
	remaining := s.DurationSec - s.ElapsedSec(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
