package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arjunpratapdas/contractiq/config"
	"github.com/arjunpratapdas/contractiq/job"
	"github.com/arjunpratapdas/contractiq/pkg/logger"
	"github.com/arjunpratapdas/contractiq/service"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	slog.Info("configuration loaded successfully", "provider", cfg.Generation.Provider, "store", cfg.Session.Store)

	ctx := context.Background()

	store, err := service.NewSessionStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	generator, err := service.NewGenerator(ctx, &cfg.Generation)
	if err != nil {
		return fmt.Errorf("failed to initialize generation provider: %w", err)
	}

	var opts []service.ToolsOption
	if cfg.Minio.Enabled {
		minioSvc, err := service.NewMinioService(&cfg.Minio)
		if err != nil {
			return fmt.Errorf("failed to initialize MINIO service: %w", err)
		}
		if err := minioSvc.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure MINIO bucket: %w", err)
		}
		opts = append(opts, service.WithArchive(minioSvc))
	}

	tools := service.NewToolsService(store, generator, service.NewAnalysisClient(&cfg.Analysis), opts...)

	sweeper, err := job.StartSessionSweeper(cfg.Session.SweepSchedule, time.Duration(cfg.Session.IdleMinutes)*time.Minute, tools)
	if err != nil {
		return err
	}
	defer sweeper.Stop()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      newRouter(cfg, tools),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited gracefully")
	return nil
}
