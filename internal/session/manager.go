// Package session owns the focus session lifecycle: the state machine,
// the tick loop, distraction grace periods, and lives/coins/score
// accounting. All mutation goes through the Manager, which is safe for
// concurrent use from HTTP handlers, WebSocket readers, and timers.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clopfocus/focusd/internal/clock"
	"github.com/clopfocus/focusd/internal/domain"
)

// persistTimeout bounds database writes triggered by timers rather
// than requests.
const persistTimeout = 5 * time.Second

// Recorder persists sessions and their event history. Writes are
// best-effort: the manager logs failures and keeps the in-memory
// session authoritative.
type Recorder interface {
	SaveSession(ctx context.Context, s *domain.Session) error
	AppendEvent(ctx context.Context, e *domain.SessionEvent) error
}

// Config holds the manager timing knobs. Zero fields fall back to
// defaults.
type Config struct {
	// TickInterval is the cadence of progress updates.
	TickInterval time.Duration
	// GracePeriod is how long a distraction may last before it costs
	// a life.
	GracePeriod time.Duration
	// CoinInterval is the focused time required to earn one coin.
	CoinInterval time.Duration
}

// DefaultConfig returns the production timing configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval: time.Second,
		GracePeriod:  20 * time.Second,
		CoinInterval: 5 * time.Minute,
	}
}

// Manager runs at most one focus session at a time.
//
// Focus accounting invariant: lastFocusAt is non-zero exactly while
// focused time is accruing (running, not paused, not distracted). Every
// transition out of that state folds the open interval into FocusMs
// and zeroes lastFocusAt, so distracted and paused spans never leak
// into the focus total.
type Manager struct {
	cfg Config
	clk clock.Clock
	rec Recorder

	mu           sync.Mutex
	active       *domain.Session
	paused       bool
	distracted   bool
	lastFocusAt  time.Time
	distractedAt time.Time
	episode      int
	graceTimer   *clock.Timer
	subs         []chan Update
	running      bool
}

// NewManager creates a manager. clk may be nil to use the real clock;
// rec may be nil to disable persistence.
func NewManager(clk clock.Clock, rec Recorder, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = def.GracePeriod
	}
	if cfg.CoinInterval <= 0 {
		cfg.CoinInterval = def.CoinInterval
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Manager{cfg: cfg, clk: clk, rec: rec}
}

// Subscribe registers an update channel with the given buffer size.
// Slow subscribers miss updates rather than block the manager. The
// channel is closed when the manager's run loop stops.
func (m *Manager) Subscribe(buffer int) <-chan Update {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Update, buffer)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Start launches the tick loop. It returns immediately; the loop stops
// and closes subscriber channels when ctx is canceled.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	go m.run(ctx)
}

func (m *Manager) run(ctx context.Context) {
	ticker := m.clk.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		close(ch)
	}
	m.subs = nil
	m.running = false
}

// StartSession begins a new session. It reports false when a session
// is already active, or when durationSec is not positive. An unknown
// level falls back to medium.
func (m *Manager) StartSession(ctx context.Context, level domain.Level, durationSec int) (domain.Session, bool) {
	if durationSec <= 0 {
		return domain.Session{}, false
	}
	if !level.Valid() {
		level = domain.LevelMedium
	}

	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return domain.Session{}, false
	}

	now := m.clk.Now()
	m.active = &domain.Session{
		ID:          uuid.NewString(),
		Level:       level,
		DurationSec: durationSec,
		StartedAt:   now,
	}
	m.paused = false
	m.distracted = false
	m.lastFocusAt = now
	m.episode = 0
	sess := *m.active
	m.emitLocked(UpdateSessionStarted, now)
	m.mu.Unlock()

	m.saveSession(ctx, &sess)
	return sess, true
}

// Pause suspends the session. Pausing during a distraction cancels the
// grace timer without costing a life. It reports false when there is
// no active session or it is already paused.
func (m *Manager) Pause(ctx context.Context) bool {
	m.mu.Lock()
	if m.active == nil || m.paused {
		m.mu.Unlock()
		return false
	}

	now := m.clk.Now()
	m.clearDistractionLocked()
	m.flushFocusLocked(now)
	m.paused = true
	m.active.Pauses++
	ev := m.eventLocked(domain.EventPause, nil, now)
	sess := *m.active
	m.emitLocked(UpdatePaused, now)
	m.mu.Unlock()

	m.appendEvent(ctx, &ev)
	m.saveSession(ctx, &sess)
	return true
}

// Resume continues a paused session. It reports false when the session
// is not paused.
func (m *Manager) Resume(ctx context.Context) bool {
	m.mu.Lock()
	if m.active == nil || !m.paused {
		m.mu.Unlock()
		return false
	}

	now := m.clk.Now()
	m.paused = false
	m.lastFocusAt = now
	ev := m.eventLocked(domain.EventResume, nil, now)
	sess := *m.active
	m.emitLocked(UpdateResumed, now)
	m.mu.Unlock()

	m.appendEvent(ctx, &ev)
	m.saveSession(ctx, &sess)
	return true
}

// HandleDistraction starts a distraction episode and arms the grace
// timer. Signals while paused, already distracted, or idle are
// ignored, so overlapping detectors cannot double-count an episode.
func (m *Manager) HandleDistraction(ctx context.Context, source string) bool {
	m.mu.Lock()
	if m.active == nil || m.paused || m.distracted {
		m.mu.Unlock()
		return false
	}

	now := m.clk.Now()
	m.flushFocusLocked(now)
	m.distracted = true
	m.distractedAt = now
	m.episode++
	m.active.Distractions++

	// Capture the episode so a timer surviving past focus regain
	// cannot penalize a later episode.
	episode := m.episode
	m.graceTimer = m.clk.AfterFunc(m.cfg.GracePeriod, func() {
		m.graceExpired(episode)
	})

	ev := m.eventLocked(domain.EventDistraction, jsonData(map[string]string{"source": source}), now)
	sess := *m.active
	u := m.updateLocked(UpdateDistraction, now)
	u.Source = source
	m.sendLocked(u)
	m.mu.Unlock()

	m.appendEvent(ctx, &ev)
	m.saveSession(ctx, &sess)
	return true
}

// HandleFocusRegained ends the current distraction episode. Within the
// grace period this cancels the pending life loss; after it, focus
// accrual simply restarts. It reports false when no episode is open.
func (m *Manager) HandleFocusRegained(source string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.paused || !m.distracted {
		return false
	}

	now := m.clk.Now()
	distractedMs := now.Sub(m.distractedAt).Milliseconds()
	m.clearDistractionLocked()
	m.lastFocusAt = now
	u := m.updateLocked(UpdateFocusRegained, now)
	u.Source = source
	m.sendLocked(u)
	slog.Debug("Focus regained", "session_id", m.active.ID, "source", source, "distracted_ms", distractedMs)
	return true
}

// graceExpired runs when a distraction outlasts the grace period. The
// episode check drops stale timers that fired after the episode they
// were armed for already ended.
func (m *Manager) graceExpired(episode int) {
	m.mu.Lock()
	if m.active == nil || !m.distracted || m.episode != episode {
		m.mu.Unlock()
		return
	}

	now := m.clk.Now()
	m.graceTimer = nil
	m.active.LivesLost++
	ev := m.eventLocked(domain.EventLifeLost, jsonData(map[string]int{"lives": m.active.Lives()}), now)
	sess := *m.active
	m.emitLocked(UpdateLifeLost, now)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	m.appendEvent(ctx, &ev)
	m.saveSession(ctx, &sess)
}

// End finishes the session, computes the final score, and returns the
// completed record. An open distraction episode is canceled without
// penalty. It reports false when no session is active.
func (m *Manager) End(ctx context.Context) (domain.Session, bool) {
	m.mu.Lock()
	if m.active == nil {
		m.mu.Unlock()
		return domain.Session{}, false
	}

	now := m.clk.Now()
	m.clearDistractionLocked()
	m.flushFocusLocked(now)
	endedAt := now
	m.active.EndedAt = &endedAt
	score := CalculateScore(m.active)
	m.active.Score = &score
	m.active.Completed = true
	final := *m.active
	m.active = nil
	m.paused = false
	m.sendLocked(Update{
		Type:         UpdateSessionCompleted,
		State:        domain.StateCompleted,
		Session:      final,
		ElapsedSec:   final.ElapsedSec(now),
		RemainingSec: final.RemainingSec(now),
		Lives:        final.Lives(),
		At:           now,
	})
	m.mu.Unlock()

	m.saveSession(ctx, &final)
	return final, true
}

// Status returns a snapshot of the current state. The session copy
// includes focus time accrued since the last tick.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return Status{State: domain.StateIdle, Lives: domain.StartingLives}
	}

	now := m.clk.Now()
	sess := *m.active
	sess.FocusMs = m.focusMsLocked(now)
	return Status{
		State:        m.stateLocked(),
		Session:      &sess,
		ElapsedSec:   sess.ElapsedSec(now),
		RemainingSec: sess.RemainingSec(now),
		Lives:        sess.Lives(),
	}
}

// tick advances focus accounting and emits a progress update. It runs
// while the session is active and not paused; during a distraction the
// elapsed time keeps moving but the focus total stays frozen.
func (m *Manager) tick() {
	m.mu.Lock()
	if m.active == nil || m.paused {
		m.mu.Unlock()
		return
	}

	now := m.clk.Now()
	m.checkpointFocusLocked(now)

	var events []domain.SessionEvent
	earned := int(m.active.FocusMs / m.cfg.CoinInterval.Milliseconds())
	for m.active.Coins < earned {
		m.active.Coins++
		events = append(events, m.eventLocked(domain.EventCoinEarned, jsonData(map[string]int{"coins": m.active.Coins}), now))
		m.emitLocked(UpdateCoinEarned, now)
	}
	m.emitLocked(UpdateTick, now)
	m.mu.Unlock()

	if len(events) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		for i := range events {
			m.appendEvent(ctx, &events[i])
		}
	}
}

// flushFocusLocked folds the open focus interval into FocusMs and
// stops accrual.
func (m *Manager) flushFocusLocked(now time.Time) {
	if m.lastFocusAt.IsZero() {
		return
	}
	if delta := now.Sub(m.lastFocusAt); delta > 0 {
		m.active.FocusMs += delta.Milliseconds()
	}
	m.lastFocusAt = time.Time{}
}

// checkpointFocusLocked folds the open focus interval into FocusMs and
// keeps accrual running from now.
func (m *Manager) checkpointFocusLocked(now time.Time) {
	if m.lastFocusAt.IsZero() {
		return
	}
	if delta := now.Sub(m.lastFocusAt); delta > 0 {
		m.active.FocusMs += delta.Milliseconds()
	}
	m.lastFocusAt = now
}

// focusMsLocked returns the focus total including the open interval,
// without mutating the session.
func (m *Manager) focusMsLocked(now time.Time) int64 {
	total := m.active.FocusMs
	if !m.lastFocusAt.IsZero() {
		if delta := now.Sub(m.lastFocusAt); delta > 0 {
			total += delta.Milliseconds()
		}
	}
	return total
}

func (m *Manager) clearDistractionLocked() {
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
	m.distracted = false
	m.distractedAt = time.Time{}
}

func (m *Manager) stateLocked() string {
	switch {
	case m.active == nil:
		return domain.StateIdle
	case m.distracted:
		return domain.StateDistracted
	case m.paused:
		return domain.StatePaused
	default:
		return domain.StateRunning
	}
}

func (m *Manager) emitLocked(typ UpdateType, now time.Time) {
	if m.active == nil {
		return
	}
	m.sendLocked(m.updateLocked(typ, now))
}

func (m *Manager) updateLocked(typ UpdateType, now time.Time) Update {
	sess := *m.active
	sess.FocusMs = m.focusMsLocked(now)
	return Update{
		Type:         typ,
		State:        m.stateLocked(),
		Session:      sess,
		ElapsedSec:   sess.ElapsedSec(now),
		RemainingSec: sess.RemainingSec(now),
		Lives:        sess.Lives(),
		At:           now,
	}
}

func (m *Manager) sendLocked(u Update) {
	for _, ch := range m.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (m *Manager) eventLocked(typ domain.EventType, data json.RawMessage, at time.Time) domain.SessionEvent {
	return domain.SessionEvent{
		ID:        uuid.NewString(),
		SessionID: m.active.ID,
		At:        at,
		Type:      typ,
		Data:      data,
	}
}

func (m *Manager) appendEvent(ctx context.Context, e *domain.SessionEvent) {
	if m.rec == nil {
		return
	}
	if err := m.rec.AppendEvent(ctx, e); err != nil {
		slog.Warn("Failed to append session event", "session_id", e.SessionID, "type", e.Type, "error", err)
	}
}

func (m *Manager) saveSession(ctx context.Context, s *domain.Session) {
	if m.rec == nil {
		return
	}
	if err := m.rec.SaveSession(ctx, s); err != nil {
		slog.Warn("Failed to save session", "session_id", s.ID, "error", err)
	}
}

func jsonData(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
