package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/hotelbooker-backend/api/controllers"
	"github.com/angelmondragon/hotelbooker-backend/api/routes"
	"github.com/angelmondragon/hotelbooker-backend/internal/bookings"
	"github.com/angelmondragon/hotelbooker-backend/internal/catalog"
	"github.com/angelmondragon/hotelbooker-backend/internal/cron"
	"github.com/angelmondragon/hotelbooker-backend/internal/inventory"
	"github.com/angelmondragon/hotelbooker-backend/pkg/config"
	"github.com/angelmondragon/hotelbooker-backend/pkg/db"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
	"github.com/angelmondragon/hotelbooker-backend/pkg/metrics"
	"github.com/angelmondragon/hotelbooker-backend/pkg/migrate"
	"github.com/angelmondragon/hotelbooker-backend/pkg/outbox"
	"github.com/angelmondragon/hotelbooker-backend/pkg/redis"
)

const lockName = "cron-worker"

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

	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	ledger, err := inventory.NewLedger(dbClient.DB(), logg, bookingMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory ledger", err)
		os.Exit(1)
	}
	outboxRepo := outbox.NewRepository(dbClient.DB())
	bookingRepo := bookings.NewRepository(dbClient.DB())
	bookingService, err := bookings.NewService(bookings.ServiceParams{
		Repo:    bookingRepo,
		Catalog: catalog.NewRepository(dbClient.DB()),
		Ledger:  ledger,
		Tx:      dbClient,
		Outbox:  outbox.NewService(outboxRepo, logg),
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create booking service", err)
		os.Exit(1)
	}

	completionJob, err := cron.NewBookingCompletionJob(cron.BookingCompletionJobParams{
		Logger:   logg,
		Lister:   bookingRepo,
		Bookings: bookingService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create booking completion job", err)
		os.Exit(1)
	}
	expiryJob, err := cron.NewPendingBookingExpiryJob(cron.PendingBookingExpiryJobParams{
		Logger:   logg,
		Lister:   bookingRepo,
		Bookings: bookingService,
		TTL:      cfg.Booking.PendingTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pending booking expiry job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(completionJob, expiryJob, retentionJob)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	ops := routes.NewOpsRouter(cfg, logg, prometheus.DefaultGatherer, map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
	})
	go func() {
		if err := routes.ServeOps(ctx, ":"+cfg.App.OpsPort, ops, cfg.App.ShutdownTimeout, logg); err != nil {
			logg.Error(ctx, "ops server stopped", err)
		}
	}()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
