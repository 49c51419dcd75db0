package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// maxHistoryLimit caps how many sessions one request may page through.
const maxHistoryLimit = 500

// ListSessions returns recent sessions, newest first. The optional
// limit query parameter bounds the page size.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			Error(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = parsed
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	sessions, err := h.repo.ListSessions(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list sessions", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	JSON(w, http.StatusOK, sessions)
}

// ListSessionEvents returns the event history of one session in
// chronological order.
func (h *Handler) ListSessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := h.repo.GetSession(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to get session", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to get session")
		return
	}
	if sess == nil {
		Error(w, http.StatusNotFound, "session_not_found")
		return
	}

	events, err := h.repo.ListEvents(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to list session events", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	JSON(w, http.StatusOK, events)
}

// GetStats returns aggregate statistics over the stored history.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		slog.Error("Failed to aggregate stats", "error", err)
		Error(w, http.StatusInternalServerError, "failed to aggregate stats")
		return
	}
	JSON(w, http.StatusOK, stats)
}
