package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/classmate/internal/audit"
	"github.com/fentz26/classmate/internal/config"
	"github.com/fentz26/classmate/internal/connectors/localexec"
	"github.com/fentz26/classmate/internal/controlplane"
	"github.com/fentz26/classmate/internal/ids"
	"github.com/fentz26/classmate/internal/ingest"
	"github.com/fentz26/classmate/internal/store"
	"github.com/fentz26/classmate/internal/store/redisstore"
	"github.com/fentz26/classmate/internal/timetable"
	"github.com/fentz26/classmate/internal/writeback"
)

var (
	listenAddr string
	dbPath     string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the classmate daemon",
	Long:  `Starts the classmate daemon which owns the store and serves the HTTP API.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
}

// backend is what the daemon needs from either store driver.
type backend interface {
	store.Adapter
	store.AuditLog
	controlplane.Pinger
	Close() error
}

func openBackend(cfg *config.Config, logger *slog.Logger) (backend, error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		return redisstore.New(cfg.Store.Redis, logger)
	default:
		return store.New(cfg.DB, logger)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if dbPath != "" {
		cfg.DB = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cfg.NewLogger(os.Stderr)
	logger.Info("starting classmate daemon", "listen", cfg.Listen, "store", cfg.Store.Driver)

	// Initialize store
	s, err := openBackend(cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	// Initialize components
	recorder := audit.NewRecorder(s)
	writer := writeback.New(s, recorder, &cfg.Writeback, logger)
	writer.Start()

	gen := ids.New()
	pipeline := ingest.New(
		localexec.New(cfg.Recognizer),
		timetable.NewNormalizer(cfg.Aliases),
		timetable.NewStructurer(cfg.Catalog, gen),
		s,
		logger,
	)

	engineOpts := cfg.EngineOptions()
	engineOpts.IDs = gen
	service := controlplane.NewService(s, writer, pipeline, recorder, controlplane.Options{
		Engine: engineOpts,
		Target: cfg.Attendance.Target,
	}, logger)
	server := controlplane.NewServer(service, s, cfg.Listen, logger)

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	go func() {
		err := server.Start()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "error", err)
			runErr = err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", "error", err)
	}
	// Sessions flush into the writer before it drains.
	service.Close()
	writer.Stop()

	if err := s.Close(); err != nil {
		logger.Warn("store close error", "error", err)
	}

	logger.Info("shutdown complete", "writer", writer.GetStats())
	return runErr
}
