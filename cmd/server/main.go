/*
main.go - Server entrypoint

CONFIGURATION (flags override environment):
  PORT / -port               listen port        (default 8080)
  DATABASE_PATH / -db        sqlite file        (default ./data/sitebook.db)
  AUDIT_SCHEDULE / -audit    cron spec for the register audit
                             (default "30 2 * * *", empty disables)

A .env file in the working directory is loaded first if present.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sitebook/posting-engine/api"
	"github.com/sitebook/posting-engine/audit"
	"github.com/sitebook/posting-engine/store/sqlite"
)

func main() {
	_ = godotenv.Load()

	port := flag.String("port", envOr("PORT", "8080"), "listen port")
	dbPath := flag.String("db", envOr("DATABASE_PATH", "./data/sitebook.db"), "sqlite database path")
	auditSchedule := flag.String("audit", envOr("AUDIT_SCHEDULE", audit.DefaultSchedule), "register audit cron schedule (empty disables)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err), zap.String("path", *dbPath))
	}
	defer store.Close()

	server := api.NewServer(store, logger)

	var auditor *audit.Auditor
	if *auditSchedule != "" {
		auditor = audit.New(store, logger, *auditSchedule)
		if err := auditor.Start(); err != nil {
			logger.Fatal("failed to start register audit", zap.Error(err))
		}
		defer auditor.Stop()
	}

	httpServer := &http.Server{
		Addr:         ":" + *port,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", *port), zap.String("db", *dbPath))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
