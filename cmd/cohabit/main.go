package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/cohabit/internal/config"
	"github.com/dukerupert/cohabit/internal/database"
	"github.com/dukerupert/cohabit/internal/logging"
	"github.com/dukerupert/cohabit/internal/scheduler"
	"github.com/dukerupert/cohabit/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (default $COHABIT_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err, "path", cfg.Database.Path)
		os.Exit(1)
	}
	defer db.Close()

	srv := server.New(db, cfg, logger)

	jobsLogger := logger.With("component", "scheduler")
	jobs := scheduler.New(jobsLogger)
	if err := jobs.Add(scheduler.JobPurgeSessions, cfg.Maintenance.SessionCleanupSchedule,
		scheduler.PurgeSessions(srv.Accounts(), jobsLogger)); err != nil {
		logger.Error("failed to schedule session purge", "error", err)
		os.Exit(1)
	}
	if err := jobs.Add(scheduler.JobSweepRateLimit, cfg.Maintenance.RateLimitCleanupSchedule,
		scheduler.SweepRateLimits(srv.RateLimiter(), jobsLogger)); err != nil {
		logger.Error("failed to schedule rate limit sweep", "error", err)
		os.Exit(1)
	}
	// Clear sessions that expired while the process was down.
	jobs.RunNow(scheduler.JobPurgeSessions)
	jobs.Start()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("cohabit listening", "addr", httpServer.Addr, "db", cfg.Database.Path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	jobs.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
