package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/clubline/clubline-backend/internal/clubs"
	"github.com/clubline/clubline-backend/internal/memberships"
	"github.com/clubline/clubline-backend/internal/notifications"
	"github.com/clubline/clubline-backend/internal/receipts"
	"github.com/clubline/clubline-backend/internal/registrations"
	"github.com/clubline/clubline-backend/internal/users"
	"github.com/clubline/clubline-backend/pkg/config"
	"github.com/clubline/clubline-backend/pkg/db"
	"github.com/clubline/clubline-backend/pkg/instance"
	"github.com/clubline/clubline-backend/pkg/logger"
	"github.com/clubline/clubline-backend/pkg/migrate"
	"github.com/clubline/clubline-backend/pkg/outbox/idempotency"
	"github.com/clubline/clubline-backend/pkg/pubsub"
	"github.com/clubline/clubline-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "receipt-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "receipt-worker"

	logg = logger.New(logger.Options{
		ServiceName: "receipt-worker",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	idempotencyManager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	sender, err := receipts.NewLogSender(logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create receipt sender", err)
		os.Exit(1)
	}

	receiptConsumer, err := receipts.NewConsumer(
		users.NewRepository(dbClient.DB()),
		clubs.NewRepository(dbClient.DB()),
		sender,
		idempotencyManager,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create receipt consumer", err)
		os.Exit(1)
	}

	alertConsumer, err := notifications.NewConsumer(
		notifications.NewRepository(dbClient.DB()),
		idempotencyManager,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create alert consumer", err)
		os.Exit(1)
	}

	registrationConsumer, err := registrations.NewConsumer(
		registrations.NewRepository(dbClient.DB()),
		memberships.NewRepository(dbClient.DB()),
		idempotencyManager,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create registration consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		PubSub:        pubsubClient,
		Receipts:      receiptConsumer,
		Notifications: alertConsumer,
		Registrations: registrationConsumer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create receipt worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting receipt worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "receipt worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "receipt worker shutting down gracefully")
}
