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

	"github.com/spf13/cobra"

	"github.com/hyperengineering/ritual/internal/api"
	"github.com/hyperengineering/ritual/internal/config"
	"github.com/hyperengineering/ritual/internal/reflect"
	"github.com/hyperengineering/ritual/internal/remote"
	"github.com/hyperengineering/ritual/internal/store"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "ritual",
	Short: "Ritual - habit tracking and journaling service",
	RunE:  run,
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)
	slog.Info("configuration loaded", "level", cfg.Log.Level)

	persister, err := store.NewSQLitePersister(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("snapshot database ready", "path", cfg.Database.Path)

	client := remote.NewHTTPClient(cfg.Remote.BaseURL, time.Duration(cfg.Remote.Timeout))

	st, err := store.New(client, persister, store.Options{
		FetchAttempts: cfg.Fetch.Attempts,
		FetchDelay:    time.Duration(cfg.Fetch.Delay),
	})
	if err != nil {
		return err
	}
	slog.Info("store initialized", "remote", cfg.Remote.BaseURL)

	var generator reflect.Generator
	if cfg.Reflection.Enabled() {
		generator = reflect.NewOpenAI(cfg.Reflection.APIKey, cfg.Reflection.BaseURL, cfg.Reflection.Model)
		slog.Info("reflection generator initialized", "model", cfg.Reflection.Model)
	} else {
		slog.Info("reflection generation disabled, no API key configured")
	}

	handler := api.NewHandler(st, generator, Version)
	router := api.NewRouter(handler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if err := st.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
