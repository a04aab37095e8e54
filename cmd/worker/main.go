package main

import (
	"OceanBooks/config"
	"OceanBooks/internal/logger"
	"OceanBooks/internal/storage"
	"OceanBooks/internal/worker"
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	config.InitConfig()
	cfg := config.AppConfig

	log := logger.Init(cfg.LogProduction)
	defer logger.Sync()

	blobs, err := storage.New(*config.StorageConfigInstance)
	if err != nil {
		log.Fatal("open blob store", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("cleanup worker started",
		zap.Int("concurrency", cfg.CleanupWorkerConcurrency),
		zap.Float64("rate", cfg.CleanupRate),
	)
	if err := worker.RunCleanupWorker(ctx, cfg, blobs, log); err != nil {
		log.Fatal("cleanup worker stopped", zap.Error(err))
	}
	log.Info("cleanup worker stopped")
}
