// Package main runs the background job worker (emails, roster exports, reminders).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eventlane/backend/config"
	"github.com/eventlane/backend/internal/emaillogs"
	"github.com/eventlane/backend/internal/events"
	"github.com/eventlane/backend/internal/exports"
	"github.com/eventlane/backend/internal/registrations"
	"github.com/eventlane/backend/internal/worker"
	"github.com/eventlane/backend/pkg/database"
	"github.com/eventlane/backend/pkg/queue"
	"github.com/eventlane/backend/pkg/redis"
	"github.com/eventlane/backend/pkg/storage"
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

	// S3 is only needed for roster exports; emails flow without it.
	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	eventRepo := events.NewRepository(pool)
	registrationRepo := registrations.NewRepository(pool)
	emailLogRepo := emaillogs.NewRepository(pool)
	exportRepo := exports.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	var sender worker.Sender
	if cfg.Email.SMTPHost != "" {
		sender = worker.NewSMTPSender(cfg.Email)
		logger.Info("smtp sender configured", zap.String("host", cfg.Email.SMTPHost))
	} else {
		sender = worker.NewLogSender(logger)
		logger.Info("no smtp configured, emails will be logged only")
	}

	emailProcessor := worker.NewEmailProcessor(emailLogRepo, sender, logger)
	exportProcessor := worker.NewExportProcessor(exportRepo, registrationRepo, s3Client, logger)
	w := worker.New(jobQueue, emailProcessor, exportProcessor, logger)
	reminders := worker.NewReminderScheduler(eventRepo, registrationRepo, emailLogRepo, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(workerCtx)
	go reminders.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
