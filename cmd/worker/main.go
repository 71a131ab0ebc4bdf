// Package main runs the background job worker: notification emails and the daily reminder sweep.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/unievents/backend/config"
	"github.com/unievents/backend/internal/app"
	"github.com/unievents/backend/internal/realtime"
	"github.com/unievents/backend/internal/worker"
)

func main() {
	logger := app.NewLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	deps, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup", zap.Error(err))
	}
	defer deps.Close()

	mail, err := deps.Mailer()
	if err != nil {
		logger.Fatal("mailer", zap.Error(err))
	}
	if !mail.Enabled() {
		logger.Warn("SMTP_HOST not set; emails will be logged as skipped")
	}

	// Reminders pushed from here reach browsers through the servers' Redis subscriptions.
	redisPubSub := realtime.NewRedisPubSub(deps.Redis.Client, logger)
	push := realtime.NewHub(logger, redisPubSub, nil)
	sweeper := deps.Sweeper(deps.Dispatcher(push))

	processor := worker.NewProcessor(deps.Email, mail, sweeper, logger)
	runner := worker.NewRunner(deps.Queue, processor, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runner.Run(workerCtx)
	go worker.ScheduleReminders(workerCtx, deps.Queue, cfg.Reminders.Interval, time.Now, logger)
	logger.Info("worker started", zap.Int("reminder_lead_days", cfg.Reminders.LeadDays))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}
