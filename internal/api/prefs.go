package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/clopfocus/focusd/internal/domain"
)

// GetPreferences returns the stored preferences, or the first-run
// defaults when none have been saved.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.repo.GetPreferences(r.Context())
	if err != nil {
		slog.Error("Failed to load preferences", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	JSON(w, http.StatusOK, prefs)
}

// UpdatePreferences validates and persists new preferences, then
// applies the notification filter and camera toggle immediately.
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var prefs domain.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request_body")
		return
	}
	if !prefs.DefaultLevel.Valid() {
		Error(w, http.StatusBadRequest, "invalid_level")
		return
	}
	if prefs.DefaultDurationSec <= 0 {
		Error(w, http.StatusBadRequest, "invalid_duration")
		return
	}
	if !prefs.NotifFilter.Valid() {
		Error(w, http.StatusBadRequest, "invalid_filter")
		return
	}

	if err := h.repo.SavePreferences(r.Context(), &prefs); err != nil {
		slog.Error("Failed to save preferences", "error", err)
		Error(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}

	h.bridge.PreferencesChanged(prefs)
	slog.Info("Preferences updated", "level", prefs.DefaultLevel, "camera_on", prefs.CameraOn, "notif_filter", prefs.NotifFilter)
	JSON(w, http.StatusOK, prefs)
}

// UpdateGazeSettings passes detector settings through to the gaze
// service without interpreting them.
func (h *Handler) UpdateGazeSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_request_body")
		return
	}
	if len(body) == 0 || !json.Valid(body) {
		Error(w, http.StatusBadRequest, "invalid_settings")
		return
	}

	if !h.bridge.UpdateGazeSettings(r.Context(), body) {
		Error(w, http.StatusServiceUnavailable, "gaze_disabled")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "applied"})
}
