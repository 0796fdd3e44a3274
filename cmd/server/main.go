/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the farm engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Build the logger
  3. Open the store (memory or SQLite)
  4. Open the engine (loads persisted state)
  5. Start the aging alert scheduler
  6. Configure HTTP router and start the server

COMMAND-LINE FLAGS:
  -config  YAML configuration file (optional)

ENVIRONMENT:
  Every key can be set as FARM_<SECTION>_<KEY>, e.g. FARM_SERVER_PORT,
  FARM_STORE_DRIVER, FARM_STORE_DSN. A .env file is read if present.
  See config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the store

EXAMPLES:
  # In-memory, defaults
  ./server

  # SQLite file
  FARM_STORE_DRIVER=sqlite FARM_STORE_DSN=./data/farm.db ./server

  # From a config file
  ./server -config=farm.yaml

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orchardops/farm-engine/api"
	"github.com/orchardops/farm-engine/config"
	"github.com/orchardops/farm-engine/farm"
	"github.com/orchardops/farm-engine/farm/store"
	"github.com/orchardops/farm-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := cfg.Logger()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Initialize store
	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	engine, err := farm.Open(ctx, st,
		farm.WithLogger(logger),
		farm.WithLocation(loc),
		farm.WithAvailability(farm.AvailabilityMode(cfg.Engine.Availability)),
		farm.WithDefaultAlertThreshold(cfg.Engine.AlertThresholdDays),
	)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}

	scheduler := api.NewAgingAlertScheduler(engine, logger)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.CheckInterval = cfg.Scheduler.Interval
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(engine, logger)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
			"store", cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func openStore(cfg *config.Config) (farm.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return s, func() { s.Close() }, nil
	default:
		return store.NewMemory(), func() {}, nil
	}
}
