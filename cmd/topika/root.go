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

	"github.com/hyperengineering/topika/internal/api"
	"github.com/hyperengineering/topika/internal/backup"
	"github.com/hyperengineering/topika/internal/config"
	"github.com/hyperengineering/topika/internal/generate"
	"github.com/hyperengineering/topika/internal/store"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "topika",
	Short: "Topika - TOPIK practice content service",
	RunE:  run,
}

func init() {
	rootCmd.AddCommand(backupCmd)
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	// 3. Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", cfg.Log.Level)

	// 4. Initialize backup service, with optional offsite upload
	uploader, err := backup.NewUploader(cfg.Backup.Offsite)
	if err != nil {
		return err
	}
	backups, err := backup.NewService(cfg.Backup.ResolveDir(cfg.Storage.DataDir), cfg.Backup.MaxBackups, uploader)
	if err != nil {
		return err
	}
	slog.Info("backup service initialized", "max_backups", cfg.Backup.MaxBackups)

	// 5. Initialize stores
	active, err := store.OpenStore(cfg.Storage.ContentPath(), backups, cfg.Backup.Auto)
	if err != nil {
		return err
	}
	trash, err := store.OpenTrash(cfg.Storage.TrashPath())
	if err != nil {
		return err
	}
	library := store.NewLibrary(active, trash, backups)
	slog.Info("store initialized", "path", cfg.Storage.ContentPath(), "items", active.Len())

	// 6. Initialize generator; without an API key it serves mock content
	var completer generate.Completer
	if cfg.Generator.APIKey != "" {
		completer = generate.NewOpenAI(cfg.Generator.APIKey, cfg.Generator.Model)
		slog.Info("generator initialized", "model", cfg.Generator.Model)
	} else {
		slog.Warn("no API key configured, generator runs in mock mode")
	}
	generator := generate.NewGenerator(completer, cfg.Generator.Temperature, cfg.Generator.MaxTokens)

	// 7. Initialize HTTP router
	handler := api.NewHandler(library, generator, Version)
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	// 8. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 9. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		// Any other error indicates an actual server failure that should trigger shutdown.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel() // Trigger shutdown on server failure
		}
	}()

	// 10. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 11. Graceful shutdown (drains in-flight requests)
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
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
