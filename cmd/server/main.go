package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-rmib/internal/app"
	"github.com/stemsi/exstem-rmib/internal/config"
	"github.com/stemsi/exstem-rmib/internal/handler"
	"github.com/stemsi/exstem-rmib/internal/logger"
	"github.com/stemsi/exstem-rmib/internal/router"
	"github.com/stemsi/exstem-rmib/internal/service"
	"github.com/stemsi/exstem-rmib/internal/validator"
	"github.com/stemsi/exstem-rmib/internal/websocket"
	"github.com/stemsi/exstem-rmib/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, nil)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.Mode).
		Str("store", cfg.Store).
		Int("student_id", cfg.StudentID).
		Msg("Starting RMIB kiosk")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()
	if fields := cfg.Validate(); fields != nil {
		log.Fatal().Interface("fields", fields).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Category Catalog & Session ────────────────────────────────────
	categories, err := app.Catalog(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load categories")
	}
	session, err := app.NewSession(cfg, categories)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create session")
	}

	// ─── Progress Store ────────────────────────────────────────────────
	stores, err := app.OpenStore(ctx, cfg, categories, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open progress store")
	}
	defer stores.Close()

	// ─── Initialize Services ──────────────────────────────────────────
	hub := websocket.NewHub(log)
	sessionService := service.NewSessionService(session, stores.Store, hub, service.SessionOptions{
		AutosaveInterval: cfg.AutosaveInterval,
		SaveTimeout:      cfg.RequestTimeout,
	}, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessionService, hub),
		WS:      handler.NewWSHandler(sessionService, hub, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	if stores.Redis != nil {
		syncWorker := worker.NewSyncWorker(stores.Redis, app.BackendStores(cfg, log), log)
		go func() {
			defer close(workerDone)
			syncWorker.Start(workerCtx)
		}()
	} else {
		close(workerDone)
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Flush the session: one last save of unsent progress, then stop autosave.
	if sessionService.UnloadGuard() {
		if err := sessionService.SaveNow(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Final save failed")
		}
	}
	sessionService.Close()

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Sync worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
