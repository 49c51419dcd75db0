package domain

import "time"

// NotifFilter controls which alerts are delivered to the user.
type NotifFilter string

const (
	// NotifAll delivers every alert, including coins and milestones.
	NotifAll NotifFilter = "all"
	// NotifAlerts delivers only focus-loss and life-loss alerts.
	NotifAlerts NotifFilter = "alerts"
	// NotifNone suppresses all alerts.
	NotifNone NotifFilter = "none"
)

// Valid reports whether the filter is a known value.
func (f NotifFilter) Valid() bool {
	switch f {
	case NotifAll, NotifAlerts, NotifNone:
		return true
	}
	return false
}

// Preferences holds persisted user configuration. It is created with
// defaults on first run and read back at session-start time.
type Preferences struct {
	DefaultLevel       Level       `json:"default_level"`
	DefaultDurationSec int         `json:"default_duration_sec"`
	CameraOn           bool        `json:"camera_on"`
	NotifFilter        NotifFilter `json:"notif_filter"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// DefaultPreferences returns the first-run configuration.
func DefaultPreferences() Preferences {
	return Preferences{
		DefaultLevel:       LevelMedium,
		DefaultDurationSec: int(LevelMedium.DefaultDuration().Seconds()),
		CameraOn:           false,
		NotifFilter:        NotifAll,
	}
}

// Normalize fills in defaults for missing or unknown fields so records
// written by older versions still load.
func (p *Preferences) Normalize() {
	if !p.DefaultLevel.Valid() {
		p.DefaultLevel = LevelMedium
	}
	if p.DefaultDurationSec <= 0 {
		p.DefaultDurationSec = int(p.DefaultLevel.DefaultDuration().Seconds())
	}
	if !p.NotifFilter.Valid() {
		p.NotifFilter = NotifAll
	}
}
