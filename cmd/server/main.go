// NEXUS - Voice-First Automation Backend
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

	"github.com/nexuslabs/nexus-voice/internal/api"
	"github.com/nexuslabs/nexus-voice/internal/cmdlog"
	"github.com/nexuslabs/nexus-voice/internal/config"
	"github.com/nexuslabs/nexus-voice/internal/executor"
	"github.com/nexuslabs/nexus-voice/internal/identity"
	"github.com/nexuslabs/nexus-voice/internal/middleware"
	"github.com/nexuslabs/nexus-voice/internal/services"
	"github.com/nexuslabs/nexus-voice/internal/store"
	"github.com/nexuslabs/nexus-voice/internal/voice"
	"github.com/nexuslabs/nexus-voice/internal/workflow"
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

	// Outbound integrations.
	workflows := workflow.NewTrigger(cfg.N8NWebhookBaseURL, cfg.N8NAPIKey)

	var maps *services.MapsClient
	if cfg.GoogleMapsAPIKey != "" {
		maps, err = services.NewMapsClient(cfg.GoogleMapsAPIKey)
		if err != nil {
			slog.Error("Failed to initialize maps client", "error", err)
			os.Exit(1)
		}
		slog.Info("Maps client initialized")
	} else {
		slog.Info("Maps disabled (GOOGLE_MAPS_API_KEY not set)")
	}

	var transcriber voice.Transcriber
	if cfg.DeepgramAPIKey != "" {
		dg, err := voice.NewDeepgramClient(cfg.DeepgramAPIKey)
		if err != nil {
			slog.Error("Failed to initialize transcriber", "error", err)
			os.Exit(1)
		}
		transcriber = dg
		slog.Info("Voice transcription enabled")
	} else {
		slog.Info("Voice transcription disabled (DEEPGRAM_API_KEY not set)")
	}

	commandLog, err := cmdlog.New(cmdlog.Config{
		Enabled:   cfg.CommandLog.Enabled,
		Dir:       cfg.CommandLog.Dir,
		QueueSize: cfg.CommandLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize command log", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := commandLog.Close(); closeErr != nil {
			slog.Error("Failed to close command log", "error", closeErr)
		}
	}()

	// Command pipeline and handlers.
	pipeline := executor.NewPipeline(repo, workflows, maps, commandLog, logger)

	baseHandler := api.NewHandler(repo, cfg.FrontendURL)
	commandHandler := api.NewCommandHandler(baseHandler, pipeline, transcriber)
	systemHandler := api.NewSystemHandler(baseHandler, workflows, maps != nil, transcriber != nil)
	wsHandler := voice.NewWebSocketHandler(pipeline, transcriber, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	// All routes use identity middleware (no auth needed).
	systemHandler.RegisterRoutes(r)
	commandHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/voice", wsHandler.ServeHTTP)

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streamed voice sessions stay open indefinitely
		IdleTimeout:  120 * time.Second,
	}

	// Start the reference eviction worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartEvictionWorker(ctx, repo, cfg.SweepInterval, cfg.ReferenceTTL)
	slog.Info("Eviction worker started", "sweep_interval", cfg.SweepInterval, "reference_ttl", cfg.ReferenceTTL)

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
