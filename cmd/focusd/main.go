// focusd - Gamified Focus Timer Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/clopfocus/focusd/internal/api"
	"github.com/clopfocus/focusd/internal/bridge"
	"github.com/clopfocus/focusd/internal/clock"
	"github.com/clopfocus/focusd/internal/config"
	"github.com/clopfocus/focusd/internal/domain"
	"github.com/clopfocus/focusd/internal/gaze"
	"github.com/clopfocus/focusd/internal/middleware"
	"github.com/clopfocus/focusd/internal/notify"
	"github.com/clopfocus/focusd/internal/session"
	"github.com/clopfocus/focusd/internal/store"
	"github.com/clopfocus/focusd/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	presets, err := domain.LoadLevelPresets(cfg.LevelsPath)
	if err != nil {
		slog.Error("Failed to load level presets", "error", err)
		os.Exit(1)
	}

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	prefs, err := repo.GetPreferences(context.Background())
	if err != nil {
		slog.Error("Failed to load preferences", "error", err)
		os.Exit(1)
	}

	// Initialize services.
	manager := session.NewManager(clock.Real(), repo, session.DefaultConfig())
	hub := api.NewHub()
	notifier := notify.NewDispatcher(prefs.NotifFilter, hub)

	trace, err := gaze.NewTraceLogger(gaze.TraceConfig{
		Enabled:   cfg.Trace.Enabled,
		Dir:       cfg.Trace.Dir,
		QueueSize: cfg.Trace.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize gaze trace logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := trace.Close(); closeErr != nil {
			slog.Error("Failed to close gaze trace logger", "error", closeErr)
		}
	}()

	br := bridge.New(manager, notifier, trace)
	br.PreferencesChanged(*prefs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Gaze detection client (optional).
	var gazeClient *gaze.Client
	if cfg.GazeEnabled() {
		gazeClient = gaze.NewClient(gaze.DefaultConfig(cfg.GazeURL), br, trace, logger)
		br.SetGazeControl(gazeClient)
		go func() {
			if err := gazeClient.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("Gaze client stopped, sessions continue on UI signals only", "error", err)
			}
		}()
		slog.Info("Gaze client started", "url", cfg.GazeURL)
	} else {
		slog.Info("Gaze detection disabled (GAZE_WS_URL not set)")
	}

	// Fan session updates out to the side channels and the UI.
	go br.Run(ctx, manager.Subscribe(64))
	go hub.PumpUpdates(ctx, manager.Subscribe(64))
	manager.Start(ctx)

	store.StartRetentionWorker(ctx, repo, cfg.HistoryRetention)

	// Initialize handlers.
	handler := api.NewHandler(repo, manager, br, presets, cfg.GazeEnabled())
	healthHandler := api.NewHealthHandler(repo, gazeClient)
	uiHandler := api.NewUIHandler(hub, manager, br, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS([]string{"*"}))

	// Public routes.
	healthHandler.RegisterHealth(r)
	handler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/ui", uiHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	// Note: WebSocket pushes require long timeouts (no WriteTimeout).
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,                 // 0 = no timeout so update streams are never cut off
		IdleTimeout:  120 * time.Second, // 2 minutes for idle connections
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
