// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-registry/internal/backup"
	"github.com/Shivanand-hulikatti/event-registry/internal/codec"
	"github.com/Shivanand-hulikatti/event-registry/internal/config"
	"github.com/Shivanand-hulikatti/event-registry/internal/database"
	"github.com/Shivanand-hulikatti/event-registry/internal/handler"
	"github.com/Shivanand-hulikatti/event-registry/internal/logging"
	"github.com/Shivanand-hulikatti/event-registry/internal/metrics"
	"github.com/Shivanand-hulikatti/event-registry/internal/registry"
	"github.com/Shivanand-hulikatti/event-registry/internal/repository"
	"github.com/Shivanand-hulikatti/event-registry/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server stopped with error")
	}
}

func run(cfg config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Metrics ────────────────────────────────────────────────────────
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	// ── 2. Persistence ────────────────────────────────────────────────────
	c, err := codec.ForFormat(cfg.Format())
	if err != nil {
		return err
	}
	policy := backup.New(cfg.BackupDir, backup.WithDisabled(!cfg.BackupEnabled))
	files := repository.NewFileRepository(c, policy, logger)

	recorder := service.NewRecorder(100)
	exportPolicy := backup.New(filepath.Join(cfg.ExportDir, "backups"), backup.WithDisabled(!cfg.BackupEnabled))
	opts := []service.Option{
		service.WithFiles(files, service.Paths{Events: cfg.EventsPath(), Users: cfg.UsersPath()}),
		service.WithExport(cfg.ExportDir, exportPolicy),
		service.WithObservers(service.NewLogObserver(logger), recorder),
		service.WithMetrics(m),
		service.WithLogger(logger),
	}

	// ── 3. Optional PostgreSQL snapshot mirror ────────────────────────────
	if cfg.Database.Enabled {
		pool, err := database.NewPool(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		snapshots := repository.NewSnapshotRepository(pool)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			return err
		}
		opts = append(opts, service.WithSnapshots(snapshots))
		logger.WithField("host", cfg.Database.Host).Info("connected to PostgreSQL")
	}

	svc := service.NewSyncService(registry.New(), registry.NewAccounts(), opts...)

	// ── 4. Initial data ───────────────────────────────────────────────────
	if err := svc.Bootstrap(ctx, cfg.SeedDemo); err != nil {
		return err
	}

	// ── 5. HTTP server with graceful shutdown ─────────────────────────────
	h := handler.NewEventHandler(svc, recorder, logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler.NewRouter(h, promReg, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if err := svc.Save(shutdownCtx); err != nil {
		return fmt.Errorf("save on shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
