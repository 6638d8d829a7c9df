package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NarendraPati1/deIdentifier/internal/api"
	"github.com/NarendraPati1/deIdentifier/internal/app"
	"github.com/NarendraPati1/deIdentifier/internal/config"
	"github.com/NarendraPati1/deIdentifier/internal/pipeline"
	"github.com/NarendraPati1/deIdentifier/internal/store"
)

func main() {
	cfg, err := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	comps := app.Build(cfg, log)

	// Redaction log is optional; an empty STORE_PATH disables it.
	var hist api.HistoryStore
	var db *store.Store
	if cfg.StorePath != "" {
		db, err = store.Open(cfg.StorePath)
		if err != nil {
			log.Error("open store", "path", cfg.StorePath, "error", err)
			os.Exit(1)
		}
		hist = db
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, comps.Pipeline, hist, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, hist, comps.Stats(), comps.OCRReady, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown. main returns only once stopped is closed.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		comps.Close()
		if db != nil {
			db.Close()
		}
	}()

	log.Info("starting deidentifier",
		"port", cfg.Port,
		"demo_detection", !comps.Pipeline.DetectionAvailable(),
		"ocr", comps.OCRReady,
		"store", cfg.StorePath,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-stopped
	log.Info("shutdown complete")
}
