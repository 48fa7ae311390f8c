package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/stepup/internal/stepup/app"
)

func main() {
	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	logger := application.Logger()

	sess, ok, err := application.RestoreSession(context.Background())
	if err != nil {
		logger.Error("session restore failed", "error", err)
	}
	if ok {
		logger.Info("ready, authenticated", "user_id", sess.UserID, "name", sess.DisplayName)
	} else {
		logger.Info("ready, login required")
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	logger.Info("shutdown signal received", "signal", sig)

	if err := application.Close(); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
}
