/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the account processor service. Handles
  configuration, dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (config.toml + AP_* environment variables)
  2. Build the zap logger
  3. Initialize SQLite store
  4. Wire processor, handler and router
  5. Start delinquency sweep scheduler
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweep scheduler
  4. Close database connection
  5. Exit

CONFIGURATION:
  See config/config.go. Examples:
    AP_SERVER_PORT=3000 ./server
    AP_DATABASE_PATH=":memory:" ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zeus-health/account-processor/account"
	"github.com/zeus-health/account-processor/api"
	"github.com/zeus-health/account-processor/config"
	"github.com/zeus-health/account-processor/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := buildLogger(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	processor := account.NewProcessor(store, store, log)
	handler := api.NewHandler(processor, log)
	router := api.NewRouter(handler)

	scheduler := api.NewSweepScheduler(processor, log)
	scheduler.Interval = cfg.Sweep.Interval
	scheduler.Enabled = cfg.Sweep.Enabled
	scheduler.Start()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("database", cfg.Database.Path))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}
	scheduler.Stop()

	log.Info("server stopped")
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}
