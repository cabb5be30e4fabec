package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warpmine/internal"
	"warpmine/internal/config"
	"warpmine/internal/container"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := internal.NewLogger(appConfig.Server.LogLevel, appConfig.Server.Debug)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(ctx, appConfig, logger)
	if err != nil {
		logger.Fatal("failed to create application container", zap.Error(err))
	}

	runErr := appContainer.Server.Run(ctx, appConfig.Server.Addr(), shutdownTimeout)
	if err := appContainer.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	if runErr != nil {
		logger.Fatal("http server failed", zap.Error(runErr))
	}
	logger.Info("stopped")
}
