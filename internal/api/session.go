package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/clopfocus/focusd/internal/domain"
)

// startRequest is the body of POST /api/session/start. Both fields are
// optional: a missing level falls back to the preferred default, and a
// missing duration is resolved from preferences or the level preset.
type startRequest struct {
	Level       domain.Level `json:"level"`
	DurationSec int          `json:"duration_sec"`
}

// StartSession begins a new focus session.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	// An empty body starts a session with the preferred defaults.
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		Error(w, http.StatusBadRequest, "invalid_request_body")
		return
	}
	if req.DurationSec < 0 {
		Error(w, http.StatusBadRequest, "invalid_duration")
		return
	}

	prefs, err := h.repo.GetPreferences(r.Context())
	if err != nil {
		slog.Error("Failed to load preferences for session start", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}

	level := req.Level
	if level == "" {
		level = prefs.DefaultLevel
	}
	duration := req.DurationSec
	if duration == 0 {
		if level == prefs.DefaultLevel {
			duration = prefs.DefaultDurationSec
		} else {
			duration = h.presets.DurationSec(level)
		}
	}

	sess, ok := h.manager.StartSession(r.Context(), level, duration)
	if !ok {
		Error(w, http.StatusConflict, "session_in_progress")
		return
	}

	slog.Info("Session started", "session_id", sess.ID, "level", sess.Level, "duration_sec", sess.DurationSec)
	JSON(w, http.StatusOK, sess)
}

// PauseSession suspends the active session.
func (h *Handler) PauseSession(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Pause(r.Context()) {
		Error(w, http.StatusConflict, "no_running_session")
		return
	}
	JSON(w, http.StatusOK, h.manager.Status())
}

// ResumeSession continues a paused session.
func (h *Handler) ResumeSession(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Resume(r.Context()) {
		Error(w, http.StatusConflict, "no_paused_session")
		return
	}
	JSON(w, http.StatusOK, h.manager.Status())
}

// EndSession finishes the active session and returns the final record.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	final, ok := h.manager.End(r.Context())
	if !ok {
		Error(w, http.StatusConflict, "no_active_session")
		return
	}
	slog.Info("Session ended", "session_id", final.ID, "score", *final.Score, "focus_ms", final.FocusMs)
	JSON(w, http.StatusOK, final)
}

// GetSession returns the live status of the active session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	status := h.manager.Status()
	if status.Session == nil {
		Error(w, http.StatusNotFound, "no_active_session")
		return
	}
	JSON(w, http.StatusOK, status)
}

// focusRequest is the body of POST /api/focus.
type focusRequest struct {
	Focused *bool  `json:"focused"`
	Source  string `json:"source"`
}

// ReportFocus applies a focus signal from the UI, such as a window blur
// or a visibility change. The response reports whether the signal
// changed session state.
func (h *Handler) ReportFocus(w http.ResponseWriter, r *http.Request) {
	var req focusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request_body")
		return
	}
	if req.Focused == nil {
		Error(w, http.StatusBadRequest, "missing_focused")
		return
	}

	applied := h.bridge.ReportFocus(r.Context(), *req.Focused, req.Source)
	JSON(w, http.StatusOK, map[string]interface{}{"applied": applied})
}
