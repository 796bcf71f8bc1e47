package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/syphon/api"
	"github.com/use-agent/syphon/api/handler"
	"github.com/use-agent/syphon/cache"
	"github.com/use-agent/syphon/config"
	"github.com/use-agent/syphon/pipeline"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	// The service logs JSON unless SYPHON_LOG_FORMAT says otherwise.
	if os.Getenv("SYPHON_LOG_FORMAT") == "" {
		cfg.Log.Format = "json"
	}
	initLogger(cfg.Log)
	slog.Info("syphon-api starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"queueSize", cfg.Server.QueueSize,
		"torEnabled", cfg.Tor.Enabled,
	)

	// ── 3. Build the collector pipeline ─────────────────────────────
	collector, err := pipeline.New(cfg, nil)
	if err != nil {
		slog.Error("failed to initialise pipeline", "error", err)
		os.Exit(1)
	}

	if len(cfg.Auth.APIKeys) == 0 {
		slog.Warn("no API keys configured, all endpoints are open")
	}

	// ── 4. Initialise query cache and job manager ───────────────────
	qc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	jm := handler.NewJobManager(collector, cfg.Server.QueueSize)

	// ── 5. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(collector, jm, cfg, qc, startTime)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete. Jobs already
	// running keep going until their downloads finish or fail.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("syphon-api stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
