package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clopfocus/focusd/internal/gaze"
	"github.com/clopfocus/focusd/internal/store"
)

// healthCheckTimeout bounds the database probe.
const healthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo store.Repository
	gaze *gaze.Client
}

// NewHealthHandler creates a new health handler. gazeClient may be nil
// when gaze detection is disabled.
func NewHealthHandler(repo store.Repository, gazeClient *gaze.Client) *HealthHandler {
	return &HealthHandler{repo: repo, gaze: gazeClient}
}

// Health returns the health status of the API and its dependencies.
// A lost gaze service is reported but does not fail the check, since
// sessions keep running on UI signals alone.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	switch {
	case h.gaze == nil:
		checks["gaze"] = "disabled"
	case h.gaze.Degraded():
		checks["gaze"] = "degraded"
	case h.gaze.Connected():
		checks["gaze"] = "ok"
	default:
		checks["gaze"] = "connecting"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
