// hudpulse server - watches screen regions and streams semantic events
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hudpulse/hudpulse/internal/config"
	"github.com/hudpulse/hudpulse/internal/engine"
	"github.com/hudpulse/hudpulse/internal/event"
	"github.com/hudpulse/hudpulse/internal/metrics"
	"github.com/hudpulse/hudpulse/internal/server"
	"github.com/hudpulse/hudpulse/internal/templates"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	store, err := templates.LoadDir(cfg.TemplateDir)
	if err != nil {
		slog.Error("failed to load template sets", "dir", cfg.TemplateDir, "error", err)
		os.Exit(1)
	}
	slog.Info("template sets loaded", "dir", cfg.TemplateDir, "sets", store.IDs())

	met := metrics.New()
	fanout := event.NewFanout(cfg.EventBuffer)
	defer fanout.Close()

	eng := engine.New(cfg, store, fanout, met)
	srv := server.New(eng, fanout, met)

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("hudpulse server starting", "http", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Autostart a watch when a profile path is configured
	if cfg.ProfilePath != "" {
		data, err := os.ReadFile(cfg.ProfilePath)
		if err != nil {
			slog.Error("failed to read autostart profile", "path", cfg.ProfilePath, "error", err)
		} else if err := eng.StartWatch(context.Background(), data); err != nil {
			slog.Error("autostart watch rejected", "path", cfg.ProfilePath, "error", err)
		}
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	eng.StopWatch()
	slog.Info("shutdown complete")
}
