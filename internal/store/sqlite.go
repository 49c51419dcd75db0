package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clopfocus/focusd/internal/domain"
	_ "modernc.org/sqlite"
)

const defaultHistoryLimit = 50

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		level TEXT NOT NULL,
		duration_sec INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER,
		focus_ms INTEGER NOT NULL DEFAULT 0,
		pauses INTEGER NOT NULL DEFAULT 0,
		distractions INTEGER NOT NULL DEFAULT 0,
		lives_lost INTEGER NOT NULL DEFAULT 0,
		coins INTEGER NOT NULL DEFAULT 0,
		score REAL,
		completed INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_ended ON sessions(ended_at) WHERE ended_at IS NOT NULL;

	CREATE TABLE IF NOT EXISTS session_events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		at INTEGER NOT NULL,
		type TEXT NOT NULL,
		data TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id, at);

	CREATE TABLE IF NOT EXISTS preferences (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		default_level TEXT,
		default_duration_sec INTEGER,
		camera_on INTEGER,
		notif_filter TEXT,
		updated_at INTEGER
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const sessionColumns = `id, level, duration_sec, started_at, ended_at,
	       focus_ms, pauses, distractions, lives_lost, coins, score, completed`

// SaveSession creates or updates a session record. Timer callbacks and
// request handlers may write concurrently, so SQLITE_BUSY errors are
// retried with exponential backoff.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess *domain.Session) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = s.saveSessionOnce(ctx, sess); err == nil {
			return nil
		}
		if !isBusy(err) || i == maxRetries-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
		slog.Debug("SaveSession hit SQLITE_BUSY, retrying",
			"session_id", sess.ID,
			"attempt", i+1,
			"delay", delay)
		time.Sleep(delay)
	}

	return fmt.Errorf("save session %s: %w", sess.ID, err)
}

func (s *SQLiteStore) saveSessionOnce(ctx context.Context, sess *domain.Session) error {
	query := `
	INSERT INTO sessions (` + sessionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		ended_at = excluded.ended_at,
		focus_ms = excluded.focus_ms,
		pauses = excluded.pauses,
		distractions = excluded.distractions,
		lives_lost = excluded.lives_lost,
		coins = excluded.coins,
		score = excluded.score,
		completed = excluded.completed`

	var endedAt interface{}
	if sess.EndedAt != nil {
		endedAt = sess.EndedAt.UnixMilli()
	}
	var score interface{}
	if sess.Score != nil {
		score = *sess.Score
	}

	_, err := s.db.ExecContext(ctx, query,
		sess.ID, sess.Level, sess.DurationSec,
		sess.StartedAt.UnixMilli(), endedAt,
		sess.FocusMs, sess.Pauses, sess.Distractions,
		sess.LivesLost, sess.Coins, score, sess.Completed,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	return sess, nil
}

// ListSessions returns up to limit sessions, newest first. A
// non-positive limit falls back to the default page size.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("Failed to close session rows", "error", closeErr)
		}
	}()

	var sessions []*domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var sess domain.Session
	var startedAt int64
	var endedAt sql.NullInt64
	var score sql.NullFloat64

	err := row.Scan(
		&sess.ID, &sess.Level, &sess.DurationSec,
		&startedAt, &endedAt,
		&sess.FocusMs, &sess.Pauses, &sess.Distractions,
		&sess.LivesLost, &sess.Coins, &score, &sess.Completed,
	)
	if err != nil {
		return nil, err
	}

	sess.StartedAt = time.UnixMilli(startedAt)
	if endedAt.Valid {
		t := time.UnixMilli(endedAt.Int64)
		sess.EndedAt = &t
	}
	if score.Valid {
		v := score.Float64
		sess.Score = &v
	}

	return &sess, nil
}

// AppendEvent adds one entry to a session's event history.
func (s *SQLiteStore) AppendEvent(ctx context.Context, e *domain.SessionEvent) error {
	query := `INSERT INTO session_events (id, session_id, at, type, data) VALUES (?, ?, ?, ?, ?)`

	var data interface{}
	if len(e.Data) > 0 {
		data = string(e.Data)
	}

	_, err := s.db.ExecContext(ctx, query, e.ID, e.SessionID, e.At.UnixMilli(), e.Type, data)
	if err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}

// ListEvents returns a session's events in chronological order.
func (s *SQLiteStore) ListEvents(ctx context.Context, sessionID string) ([]*domain.SessionEvent, error) {
	query := `SELECT id, session_id, at, type, data FROM session_events WHERE session_id = ? ORDER BY at`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("Failed to close event rows", "error", closeErr)
		}
	}()

	var events []*domain.SessionEvent
	for rows.Next() {
		var e domain.SessionEvent
		var at int64
		var data sql.NullString

		if err := rows.Scan(&e.ID, &e.SessionID, &at, &e.Type, &data); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		e.At = time.UnixMilli(at)
		if data.Valid && data.String != "" {
			e.Data = json.RawMessage(data.String)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session events: %w", err)
	}

	return events, nil
}

// GetPreferences returns the stored preferences. Missing or invalid
// fields from older versions are filled with defaults; a missing row
// returns the first-run defaults.
func (s *SQLiteStore) GetPreferences(ctx context.Context) (*domain.Preferences, error) {
	query := `SELECT default_level, default_duration_sec, camera_on, notif_filter, updated_at
		FROM preferences WHERE id = 1`

	row := s.db.QueryRowContext(ctx, query)

	var level, filter sql.NullString
	var duration, updatedAt sql.NullInt64
	var camera sql.NullBool

	err := row.Scan(&level, &duration, &camera, &filter, &updatedAt)
	if err == sql.ErrNoRows {
		prefs := domain.DefaultPreferences()
		return &prefs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan preferences row: %w", err)
	}

	prefs := domain.Preferences{
		DefaultLevel:       domain.Level(level.String),
		DefaultDurationSec: int(duration.Int64),
		CameraOn:           camera.Bool,
		NotifFilter:        domain.NotifFilter(filter.String),
	}
	if updatedAt.Valid {
		prefs.UpdatedAt = time.UnixMilli(updatedAt.Int64)
	}
	prefs.Normalize()

	return &prefs, nil
}

// SavePreferences persists p, stamping its UpdatedAt.
func (s *SQLiteStore) SavePreferences(ctx context.Context, p *domain.Preferences) error {
	query := `
	INSERT INTO preferences (id, default_level, default_duration_sec, camera_on, notif_filter, updated_at)
	VALUES (1, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		default_level = excluded.default_level,
		default_duration_sec = excluded.default_duration_sec,
		camera_on = excluded.camera_on,
		notif_filter = excluded.notif_filter,
		updated_at = excluded.updated_at`

	p.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, query,
		p.DefaultLevel, p.DefaultDurationSec, p.CameraOn, p.NotifFilter,
		p.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

// Stats aggregates the stored session history. Score aggregates skip
// in-progress sessions, whose score column is still NULL.
func (s *SQLiteStore) Stats(ctx context.Context) (*domain.Stats, error) {
	query := `
	SELECT COUNT(*),
	       COALESCE(SUM(completed), 0),
	       COALESCE(SUM(focus_ms), 0),
	       COALESCE(SUM(coins), 0),
	       COALESCE(SUM(distractions), 0),
	       COALESCE(SUM(lives_lost), 0),
	       COALESCE(AVG(score), 0),
	       COALESCE(MAX(score), 0)
	FROM sessions`

	var stats domain.Stats
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalSessions, &stats.CompletedSessions,
		&stats.TotalFocusMs, &stats.TotalCoins,
		&stats.TotalDistractions, &stats.TotalLivesLost,
		&stats.AverageScore, &stats.BestScore,
	)
	if err != nil {
		return nil, fmt.Errorf("scan stats row: %w", err)
	}

	return &stats, nil
}

// PruneHistory deletes sessions that ended before the cutoff, along
// with their events. In-progress sessions are never pruned.
func (s *SQLiteStore) PruneHistory(ctx context.Context, olderThan time.Time) (int64, error) {
	cutoff := olderThan.UnixMilli()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM session_events WHERE session_id IN
			(SELECT id FROM sessions WHERE ended_at IS NOT NULL AND ended_at < ?)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune session events: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE ended_at IS NOT NULL AND ended_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// isBusy reports whether err is a SQLite concurrency error that
// warrants a retry. The driver surfaces these as text only.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
