// Package bridge glues the signal sources to the session manager and
// fans session updates out to the side channels. Focus signals from the
// gaze service and from the UI funnel through one place, so the manager
// sees a single stream regardless of who noticed the distraction first.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/clopfocus/focusd/internal/domain"
	"github.com/clopfocus/focusd/internal/gaze"
	"github.com/clopfocus/focusd/internal/notify"
	"github.com/clopfocus/focusd/internal/session"
)

// reportTimeout bounds persistence triggered by detector callbacks,
// which carry no request context of their own.
const reportTimeout = 5 * time.Second

// SessionControl is the slice of the session manager the bridge drives.
type SessionControl interface {
	HandleDistraction(ctx context.Context, source string) bool
	HandleFocusRegained(source string) bool
}

// GazeControl is the slice of the gaze client the bridge drives.
type GazeControl interface {
	StartSession(ctx context.Context, config json.RawMessage)
	StopSession(ctx context.Context)
	UpdateSettings(ctx context.Context, settings json.RawMessage)
	SendFrame(ctx context.Context, data string, ts time.Time)
}

// Bridge routes focus signals into the session manager and session
// updates out to the gaze service, the notifier, and the trace log. It
// doubles as the gaze client's Handler.
type Bridge struct {
	sessions SessionControl
	notifier *notify.Dispatcher
	trace    *gaze.TraceLogger

	mu       sync.Mutex
	gazectl  GazeControl
	cameraOn bool
}

// New creates a bridge. notifier must not be nil; trace may be nil when
// tracing is disabled. The gaze control is attached later via
// SetGazeControl because the client needs the bridge as its handler.
func New(sessions SessionControl, notifier *notify.Dispatcher, trace *gaze.TraceLogger) *Bridge {
	return &Bridge{sessions: sessions, notifier: notifier, trace: trace}
}

// SetGazeControl attaches the gaze client. A nil control leaves the
// bridge running on UI signals alone.
func (b *Bridge) SetGazeControl(g GazeControl) {
	b.mu.Lock()
	b.gazectl = g
	b.mu.Unlock()
}

func (b *Bridge) gazeControl() GazeControl {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gazectl
}

// ReportFocus applies a focus signal from the UI. It reports whether
// the signal changed session state.
func (b *Bridge) ReportFocus(ctx context.Context, focused bool, source string) bool {
	if source == "" {
		source = "ui"
	}
	if focused {
		return b.sessions.HandleFocusRegained(source)
	}
	return b.sessions.HandleDistraction(ctx, source)
}

// ReportFrame forwards a base64 camera frame to the gaze service. It
// drops the frame when the camera preference is off or no gaze client
// is attached.
func (b *Bridge) ReportFrame(ctx context.Context, data string, ts time.Time) {
	b.mu.Lock()
	g, on := b.gazectl, b.cameraOn
	b.mu.Unlock()
	if g == nil || !on {
		return
	}
	g.SendFrame(ctx, data, ts)
}

// UpdateGazeSettings passes detector settings through to the gaze
// service. It reports false when no gaze client is attached.
func (b *Bridge) UpdateGazeSettings(ctx context.Context, settings json.RawMessage) bool {
	g := b.gazeControl()
	if g == nil {
		return false
	}
	g.UpdateSettings(ctx, settings)
	return true
}

// PreferencesChanged applies the notification filter and the camera
// toggle from freshly saved preferences.
func (b *Bridge) PreferencesChanged(p domain.Preferences) {
	b.notifier.SetFilter(p.NotifFilter)
	b.mu.Lock()
	b.cameraOn = p.CameraOn
	b.mu.Unlock()
}

// Run consumes session updates until the channel closes or ctx is
// canceled. It is the only consumer allowed to drive the gaze session
// lifecycle, so start/stop stay ordered.
func (b *Bridge) Run(ctx context.Context, updates <-chan session.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, u)
		}
	}
}

func (b *Bridge) handleUpdate(ctx context.Context, u session.Update) {
	switch u.Type {
	case session.UpdateSessionStarted:
		b.trace.SetSession(u.Session.ID)
		if g := b.gazeControl(); g != nil {
			g.StartSession(ctx, jsonConfig(u.Session))
		}
	case session.UpdateSessionCompleted:
		if g := b.gazeControl(); g != nil {
			g.StopSession(ctx)
		}
		b.trace.SetSession("")
		if u.Session.Score != nil {
			b.notifier.SessionCompleted(*u.Session.Score)
		}
	case session.UpdateDistraction:
		b.notifier.FocusLoss(u.Source)
	case session.UpdateFocusRegained:
		b.notifier.FocusRegained()
	case session.UpdateLifeLost:
		b.notifier.LifeLost(u.Lives)
	case session.UpdateCoinEarned:
		b.notifier.CoinEarned(u.Session.Coins)
	}
}

// OnDetection implements gaze.Handler.
func (b *Bridge) OnDetection(res *gaze.DetectionResult) {
	b.applyFocusStatus(res.FocusStatus)
}

// OnFocusLoss implements gaze.Handler. Notifications without a status
// are treated as a hard focus loss.
func (b *Bridge) OnFocusLoss(note *gaze.FocusLossNotification) {
	status := note.FocusStatus
	if status == "" {
		status = gaze.StatusFocusLost
	}
	b.applyFocusStatus(status)
}

// OnGaze implements gaze.Handler. Raw samples without an analysis block
// carry no verdict and are ignored.
func (b *Bridge) OnGaze(sample *gaze.GazeSample) {
	if sample.FocusAnalysis == nil {
		return
	}
	b.applyFocusStatus(sample.FocusAnalysis.Status)
}

// OnStatus implements gaze.Handler.
func (b *Bridge) OnStatus(status *gaze.ServiceStatus) {
	slog.Debug("Gaze service status", "is_monitoring", status.IsMonitoring)
}

// applyFocusStatus maps a detector verdict onto the session state
// machine. Wavering is a warning, not a transition, so it changes
// nothing.
func (b *Bridge) applyFocusStatus(status gaze.FocusStatus) {
	switch {
	case status == gaze.StatusFocused:
		b.sessions.HandleFocusRegained("gaze")
	case status.Distracted():
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()
		b.sessions.HandleDistraction(ctx, "gaze")
	}
}

func jsonConfig(s domain.Session) json.RawMessage {
	data, err := json.Marshal(map[string]any{
		"session_id":   s.ID,
		"level":        s.Level,
		"duration_sec": s.DurationSec,
	})
	if err != nil {
		return nil
	}
	return data
}
