// Honeytrap - Scam Engagement and Intelligence Server
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

	"github.com/fraudguard/honeytrap/internal/api"
	"github.com/fraudguard/honeytrap/internal/config"
	"github.com/fraudguard/honeytrap/internal/engine"
	"github.com/fraudguard/honeytrap/internal/intel"
	"github.com/fraudguard/honeytrap/internal/llm"
	"github.com/fraudguard/honeytrap/internal/middleware"
	"github.com/fraudguard/honeytrap/internal/notify"
	"github.com/fraudguard/honeytrap/internal/persona"
	"github.com/fraudguard/honeytrap/internal/store"
	"github.com/fraudguard/honeytrap/internal/transcript"
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

	policy, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		slog.Error("Failed to load engagement policy", "error", err)
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

	transcriptLog, err := transcript.New(transcript.Config{
		Enabled:   cfg.Transcript.Enabled,
		Dir:       cfg.Transcript.Dir,
		QueueSize: cfg.Transcript.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := transcriptLog.Close(); closeErr != nil {
			slog.Error("Failed to close transcript logger", "error", closeErr)
		}
	}()

	// Generation capability is optional; without it every reply comes
	// from the fallback policy.
	var generator llm.Generator
	if cfg.GoogleAPIKey != "" {
		gemini, err := llm.NewGeminiGenerator(context.Background(), llm.GeminiConfig{
			APIKey:  cfg.GoogleAPIKey,
			Model:   cfg.ModelName,
			Timeout: cfg.GenerateTimeout,
		}, logger)
		if err != nil {
			slog.Error("Failed to initialize generation client", "error", err)
			os.Exit(1)
		}
		generator = gemini
		slog.Info("Generation capability ready", "model", cfg.ModelName)
	} else {
		slog.Info("Generation disabled (GOOGLE_API_KEY not set), fallback replies only")
	}

	var dispatcher notify.Dispatcher = notify.Noop{}
	if cfg.CallbackURL != "" {
		dispatcher = notify.NewHTTPDispatcher(cfg.CallbackURL, cfg.CallbackAPIKey, logger)
		slog.Info("Final-report callback configured", "url", cfg.CallbackURL)
	}

	eng := engine.New(engine.Config{
		StopThreshold:   cfg.StopThreshold,
		MaxTurns:        cfg.MaxTurns,
		MaxEngagement:   cfg.MaxEngagement,
		GenerateTimeout: cfg.GenerateTimeout,
	},
		repo,
		intel.NewExtractor(policy.Keywords),
		persona.NewSelector(policy.Personas),
		generator,
		dispatcher,
		transcriptLog,
		logger,
	)

	handler := api.NewHandler(eng, logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	// Detection endpoints sit behind the shared secret.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APISecret))
		handler.RegisterRoutes(r)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start TTL worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartTTLWorker(ctx, repo, cfg.SessionTTL)

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
