package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/stemsi/exstem-rmib/internal/app"
	"github.com/stemsi/exstem-rmib/internal/config"
	"github.com/stemsi/exstem-rmib/internal/logger"
	"github.com/stemsi/exstem-rmib/internal/service"
	"github.com/stemsi/exstem-rmib/internal/terminal"
	"github.com/stemsi/exstem-rmib/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	// Logs go to stderr; stdout belongs to the table.
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	validator.Setup()
	if fields := cfg.Validate(); fields != nil {
		for field, msg := range fields {
			fmt.Fprintf(os.Stderr, "Error: %s %s\n", field, msg)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Session & Store ───────────────────────────────────────────────
	categories, err := app.Catalog(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load categories")
	}
	session, err := app.NewSession(cfg, categories)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create session")
	}

	stores, err := app.OpenStore(ctx, cfg, categories, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open progress store")
	}
	defer stores.Close()

	svc := service.NewSessionService(session, stores.Store, terminal.NewPresenter(os.Stdout), service.SessionOptions{
		AutosaveInterval: cfg.AutosaveInterval,
		SaveTimeout:      cfg.RequestTimeout,
	}, log)
	defer svc.Close()

	// ─── CLI Loop ──────────────────────────────────────────────────────
	fmt.Println("=== RMIB ===  ketik 'help' untuk daftar perintah")

	// Reading stdin blocks, so a signal ends the loop from here instead.
	runner := terminal.NewRunner(svc, os.Stdin, os.Stdout, log)
	errc := make(chan error, 1)
	go func() { errc <- runner.Run(ctx) }()

	select {
	case err := <-errc:
		if err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			svc.Close()
			stores.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info().Msg("Interrupted")
	}

	if svc.UnloadGuard() {
		if err := svc.SaveNow(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Final save failed")
		}
	}
}
