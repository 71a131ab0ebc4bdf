// Package app opens the infrastructure shared by the server, the worker and
// the eventctl CLI.
package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unievents/backend/config"
	"github.com/unievents/backend/internal/auth"
	"github.com/unievents/backend/internal/emailsettings"
	"github.com/unievents/backend/internal/mailer"
	"github.com/unievents/backend/internal/meetings"
	"github.com/unievents/backend/internal/notifications"
	"github.com/unievents/backend/internal/reminders"
	"github.com/unievents/backend/internal/store/postgres"
	"github.com/unievents/backend/pkg/database"
	"github.com/unievents/backend/pkg/eventbus"
	"github.com/unievents/backend/pkg/queue"
	"github.com/unievents/backend/pkg/redis"
	"github.com/unievents/backend/pkg/storage"
)

// NewLogger returns the production JSON logger.
func NewLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

// Deps holds open connections and the repositories built on them.
type Deps struct {
	Config *config.Config
	Logger *zap.Logger

	Pool  *pgxpool.Pool
	Redis *redis.Client
	Queue *queue.Queue
	Bus   *eventbus.Publisher
	// S3 is nil when no bucket is configured.
	S3 *storage.S3

	Store    *postgres.Store
	Users    *auth.Repository
	Inbox    *notifications.Repository
	Meetings *meetings.Repository
	Email    *emailsettings.Repository
}

// Open connects to Postgres and Redis, optionally migrates, and builds the repositories.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Deps, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{}, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	d := &Deps{
		Config:   cfg,
		Logger:   logger,
		Pool:     pool,
		Redis:    rdb,
		Queue:    queue.NewQueue(rdb.Client, logger),
		Bus:      eventbus.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger),
		Store:    postgres.New(pool, logger),
		Users:    auth.NewRepository(pool),
		Inbox:    notifications.NewRepository(pool),
		Meetings: meetings.NewRepository(pool),
		Email:    emailsettings.NewRepository(pool),
	}

	if cfg.AWS.Bucket != "" {
		d.S3, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Bucket:               cfg.AWS.Bucket,
			Endpoint:             cfg.AWS.Endpoint,
			PublicBaseURL:        cfg.AWS.PublicBaseURL,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			d.S3 = nil
		}
	}
	return d, nil
}

// Close releases every connection.
func (d *Deps) Close() {
	if err := d.Bus.Close(); err != nil {
		d.Logger.Warn("close kafka writer", zap.Error(err))
	}
	_ = d.Redis.Close()
	d.Pool.Close()
}

// Dispatcher fans notifications out to the inbox, the email queue, Kafka and,
// when push is non-nil, open websockets.
func (d *Deps) Dispatcher(push notifications.Pusher) *notifications.Dispatcher {
	opts := []notifications.Option{notifications.WithEmail(d.Queue), notifications.WithBus(d.Bus)}
	if push != nil {
		opts = append(opts, notifications.WithPush(push))
	}
	return notifications.NewDispatcher(d.Users, d.Inbox, d.Logger, opts...)
}

// Sweeper builds the reminder sweep.
func (d *Deps) Sweeper(sender reminders.Sender) *reminders.Sweeper {
	return reminders.NewSweeper(d.Store, d.Users, d.Meetings, sender, d.Config.Reminders.LeadDays, d.Logger)
}

// Mailer builds the SMTP mailer from config.
func (d *Deps) Mailer() (*mailer.Mailer, error) {
	e := d.Config.Email
	return mailer.New(mailer.Config{
		Host:     e.SMTPHost,
		Port:     strconv.Itoa(e.SMTPPort),
		Username: e.SMTPUser,
		Password: e.SMTPPass,
		FromName: e.FromName,
		FromAddr: e.FromAddress,
		SiteURL:  d.Config.Server.SiteURL,
	}, d.Logger)
}
