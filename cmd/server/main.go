package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/tapcard/internal/config"
	"github.com/tapcard/internal/db"
	"github.com/tapcard/internal/handler"
	"github.com/tapcard/internal/logger"
	"github.com/tapcard/internal/realtime"
	"github.com/tapcard/internal/router"
	"github.com/tapcard/internal/service"
	"github.com/tapcard/internal/storage"
)

func main() {
	// 缺少 .env 文件时直接使用进程环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env failed: %v", err)
	}

	cfg := config.Load()

	appLogger := logger.New(cfg.AppEnv)
	slog.SetDefault(appLogger)
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DBDriver, cfg.DatabaseDSN()); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	if cfg.SuperRootUserName != "" && cfg.SuperRootPassword != "" {
		created, err := service.NewAuthService(db.DB).EnsureUser(context.Background(), cfg.SuperRootUserName, cfg.SuperRootPassword)
		if err != nil {
			log.Fatalf("failed to seed root user: %v", err)
		}
		if created {
			slog.Info("root user created", "username", cfg.SuperRootUserName)
		}
	}

	store, err := storage.NewStorage(storage.StorageConfig{
		Type:          storage.StorageType(cfg.StorageType),
		LocalPath:     cfg.UploadDir,
		LocalURLPath:  cfg.UploadURLPath,
		S3Bucket:      cfg.S3Bucket,
		S3Region:      cfg.S3Region,
		AWSAccessKey:  cfg.S3AccessKey,
		AWSSecretKey:  cfg.S3SecretKey,
		PublicBaseURL: cfg.S3PublicBaseURL,
	})
	if err != nil {
		log.Fatalf("failed to initialize storage: %v", err)
	}

	broker := newBroker(cfg)
	defer broker.Close()

	api := handler.NewAPI(db.DB, handler.Options{
		Broker:         broker,
		Storage:        store,
		MaxUploadBytes: cfg.MaxUploadBytes,
		SiteBaseURL:    cfg.SiteBaseURL,
	})

	opts := router.Options{
		SessionSecret: cfg.SessionSecret,
		UploadURL:     cfg.UploadURLPath,
		Logger:        appLogger,
	}
	if storage.StorageType(cfg.StorageType) != storage.StorageTypeS3 {
		opts.UploadDir = cfg.UploadDir
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.SetupRouter(api, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 收到退出信号后停止接收新请求
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server listening", "addr", cfg.ListenAddr, "env", cfg.AppEnv, "storage", cfg.StorageType)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("failed to run server: %v", err)
	}
}

// newBroker 配置了 REDIS_ADDR 时使用 Redis，否则使用进程内广播
func newBroker(cfg config.AppConfig) realtime.Broker {
	if cfg.RedisAddr == "" {
		return realtime.NewMemoryBroker()
	}

	broker, err := realtime.NewRedisBroker(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		slog.Warn("redis unavailable, falling back to in-process broker", "addr", cfg.RedisAddr, "error", err)
		return realtime.NewMemoryBroker()
	}
	return broker
}
