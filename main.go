package main

import (
	"OceanBooks/config"
	"OceanBooks/internal/handler"
	"OceanBooks/internal/logger"
	"OceanBooks/internal/repo"
	"OceanBooks/internal/service"
	"OceanBooks/internal/storage"
	"OceanBooks/internal/task"
	"OceanBooks/router"
	"OceanBooks/utils"
	"context"
	"net"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

// main initializes services and starts the HTTP server.
func main() {
	_ = godotenv.Load()
	config.InitConfig()
	cfg := config.AppConfig

	log := logger.Init(cfg.LogProduction)
	defer logger.Sync()
	if cfg.LogProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	db, err := repo.OpenDB(cfg)
	if err != nil {
		log.Fatal("open database", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	store := repo.NewCatalogStore(db)
	if err := service.InitCatalog(ctx, store, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatal("init catalog", zap.Error(err))
	}

	blobs, err := storage.New(*config.StorageConfigInstance)
	if err != nil {
		log.Fatal("open blob store", zap.String("backend", config.StorageConfigInstance.Backend), zap.Error(err))
	}

	opts := []service.Option{service.WithLogger(log)}
	if cfg.CacheEnabled {
		client, err := repo.NewRedis(ctx, cfg)
		if err != nil {
			log.Warn("redis unavailable, cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			opts = append(opts, service.WithCache(utils.NewRedisCache(client), cfg.CacheTTL))
		}
	}
	if cfg.BlobCleanupEnabled {
		publisher := task.NewCleanupPublisher(cfg.RabbitMQURL)
		defer publisher.Close()
		opts = append(opts, service.WithCleanup(publisher))
	}

	svc := service.NewCatalogService(store, blobs, opts...)
	r := router.InitRouter(handler.New(svc, log, cfg.MaxUploadBytes), log, cfg.CORSOrigins)

	ln, err := net.Listen("tcp", cfg.AppAddr)
	if err != nil {
		log.Fatal("listen", zap.String("addr", cfg.AppAddr), zap.Error(err))
	}
	if cfg.AppMaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.AppMaxConns)
	}
	log.Info("server started",
		zap.String("addr", cfg.AppAddr),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("blob_backend", config.StorageConfigInstance.Backend),
		zap.Bool("cache", cfg.CacheEnabled),
		zap.Bool("blob_cleanup", cfg.BlobCleanupEnabled),
	)
	if err := r.RunListener(ln); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
