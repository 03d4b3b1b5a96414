package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/hotelbooker-backend/api/routes"
	"github.com/angelmondragon/hotelbooker-backend/internal/bookings"
	"github.com/angelmondragon/hotelbooker-backend/internal/catalog"
	"github.com/angelmondragon/hotelbooker-backend/internal/inventory"
	"github.com/angelmondragon/hotelbooker-backend/internal/payments"
	"github.com/angelmondragon/hotelbooker-backend/internal/payments/stripegateway"
	paymentwebhook "github.com/angelmondragon/hotelbooker-backend/internal/webhooks/payments"
	"github.com/angelmondragon/hotelbooker-backend/pkg/config"
	"github.com/angelmondragon/hotelbooker-backend/pkg/db"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
	"github.com/angelmondragon/hotelbooker-backend/pkg/metrics"
	"github.com/angelmondragon/hotelbooker-backend/pkg/migrate"
	"github.com/angelmondragon/hotelbooker-backend/pkg/outbox"
	"github.com/angelmondragon/hotelbooker-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/hotelbooker-backend/pkg/stripe"
)

const webhookGuardScope = "payment-webhook"

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bookingMetrics := metrics.NewBookingMetrics(registry)

	ledger, err := inventory.NewLedger(dbClient.DB(), logg, bookingMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory ledger", err)
		os.Exit(1)
	}
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	bookingService, err := bookings.NewService(bookings.ServiceParams{
		Repo:    bookings.NewRepository(dbClient.DB()),
		Catalog: catalog.NewRepository(dbClient.DB()),
		Ledger:  ledger,
		Tx:      dbClient,
		Outbox:  outboxService,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create booking service", err)
		os.Exit(1)
	}

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe client", err)
		os.Exit(1)
	}
	gateway, err := stripegateway.New(stripeClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway", err)
		os.Exit(1)
	}

	paymentRepo := payments.NewRepository(dbClient.DB())
	reconciler, err := payments.NewReconciler(paymentRepo, bookingService, outboxService, logg, nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment reconciler", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:       paymentRepo,
		Gateway:    gateway,
		Bookings:   bookingService,
		Reconciler: reconciler,
		Tx:         dbClient,
		Logger:     logg,
		Timeout:    cfg.Stripe.Timeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	webhookService, err := paymentwebhook.NewService(paymentwebhook.ServiceParams{
		Reconciler:        reconciler,
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           bookingMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := paymentwebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookEventTTL, webhookGuardScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"stripeEnv": cfg.Stripe.Environment(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			bookingService,
			paymentService,
			gateway,
			webhookService,
			webhookGuard,
		),
		ReadTimeout:  cfg.App.ReadTimeout,
		WriteTimeout: cfg.App.WriteTimeout,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	var closeErr error
	if err := server.Shutdown(shutdownCtx); err != nil {
		closeErr = multierr.Append(closeErr, err)
	}
	closeErr = multierr.Append(closeErr, redisClient.Close())
	closeErr = multierr.Append(closeErr, dbClient.Close())
	if closeErr != nil {
		logg.Error(ctx, "api shutdown incomplete", closeErr)
		exitCode = 1
	}

	logg.Info(ctx, "api server stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
