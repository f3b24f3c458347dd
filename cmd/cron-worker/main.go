package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/carewellhq/carewell-backend/internal/appointments"
	"github.com/carewellhq/carewell-backend/internal/bloodbank"
	"github.com/carewellhq/carewell-backend/internal/cron"
	"github.com/carewellhq/carewell-backend/pkg/config"
	"github.com/carewellhq/carewell-backend/pkg/db"
	"github.com/carewellhq/carewell-backend/pkg/logger"
	"github.com/carewellhq/carewell-backend/pkg/metrics"
	"github.com/carewellhq/carewell-backend/pkg/migrate"
	"github.com/carewellhq/carewell-backend/pkg/outbox"
	"github.com/carewellhq/carewell-backend/pkg/redis"
)

const lockKeyFormat = "cw:cron-worker:lock:%s:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	lowStockJob, err := cron.NewLowStockJob(cron.LowStockJobParams{
		Logger:    logg,
		DB:        dbClient,
		Inventory: bloodbank.NewRepository(dbClient.DB()),
		Outbox:    outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create low stock job", err)
		os.Exit(1)
	}

	reminderJob, err := cron.NewReminderJob(cron.ReminderJobParams{
		Logger:       logg,
		DB:           dbClient,
		Appointments: appointments.NewRepository(dbClient.DB()),
		Outbox:       outboxService,
		LeadTime:     cfg.Cron.ReminderLeadTime,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reminder job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	registry.Register(lowStockJob, cfg.Cron.LowStockInterval)
	registry.Register(reminderJob, cfg.Cron.ReminderInterval)

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	locks := cron.LockFactory(func(job string) (cron.Lock, error) {
		return cron.NewRedisLock(redisClient, lockKey(cfg.App.Env, job), 0)
	})

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locks:    locks,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env, job string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env, job)
}
