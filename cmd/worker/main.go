// Package main runs the background job worker (notification fan-out, attendee exports, PIN expiry).
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-events/backend/config"
	"github.com/aura-events/backend/internal/checkin"
	"github.com/aura-events/backend/internal/events"
	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/notifications"
	"github.com/aura-events/backend/internal/worker"
	"github.com/aura-events/backend/pkg/database"
	"github.com/aura-events/backend/pkg/queue"
	"github.com/aura-events/backend/pkg/redis"
	"github.com/aura-events/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var files worker.Files
	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		AssetsBucket:         cfg.AWS.AssetsBucket,
		ExportsBucket:        cfg.AWS.ExportsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Warn("s3 disabled, export jobs will fail", zap.Error(err))
	} else {
		files = s3Client
	}

	eventRepo := events.NewRepository(pool)
	mgr := lifecycle.NewManager(lifecycle.NewRepository(pool), logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewProcessor(jobQueue, notifications.NewRepository(pool), eventRepo, mgr, files, logger)
	pins := checkin.NewService(eventRepo, checkin.NewConsoleTokens(cfg.JWT.Secret, cfg.CheckIn.ConsoleTokenHours), logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := cfg.Worker.Concurrency
	if n < 1 {
		n = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processor.Run(workerCtx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		pins.RunReconciler(workerCtx, cfg.CheckIn.ReconcileInterval)
	}()
	logger.Info("worker started", zap.Int("concurrency", n))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	wg.Wait()
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
