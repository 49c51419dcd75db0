// Package api provides HTTP handlers for the focus timer API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clopfocus/focusd/internal/bridge"
	"github.com/clopfocus/focusd/internal/domain"
	"github.com/clopfocus/focusd/internal/session"
	"github.com/clopfocus/focusd/internal/store"
)

// Handler provides common handler utilities.
type Handler struct {
	repo        store.Repository
	manager     *session.Manager
	bridge      *bridge.Bridge
	presets     domain.LevelPresets
	gazeEnabled bool
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, manager *session.Manager, br *bridge.Bridge, presets domain.LevelPresets, gazeEnabled bool) *Handler {
	if presets == nil {
		presets = domain.DefaultLevelPresets()
	}
	return &Handler{
		repo:        repo,
		manager:     manager,
		bridge:      br,
		presets:     presets,
		gazeEnabled: gazeEnabled,
	}
}

// RegisterRoutes registers the REST API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)
		r.Get("/session", h.GetSession)
		r.Post("/session/start", h.StartSession)
		r.Post("/session/pause", h.PauseSession)
		r.Post("/session/resume", h.ResumeSession)
		r.Post("/session/end", h.EndSession)
		r.Post("/focus", h.ReportFocus)
		r.Get("/sessions", h.ListSessions)
		r.Get("/sessions/{sessionID}/events", h.ListSessionEvents)
		r.Get("/stats", h.GetStats)
		r.Get("/preferences", h.GetPreferences)
		r.Put("/preferences", h.UpdatePreferences)
		r.Post("/gaze/settings", h.UpdateGazeSettings)
	})
}

// GetConfig returns the server configuration for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	levels := make(map[string]map[string]interface{}, len(h.presets))
	for level, d := range h.presets {
		levels[string(level)] = map[string]interface{}{
			"duration_sec": int(d.Seconds()),
		}
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"gaze_enabled": h.gazeEnabled,
		"levels":       levels,
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
