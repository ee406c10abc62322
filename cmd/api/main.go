package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clubline/clubline-backend/api/routes"
	"github.com/clubline/clubline-backend/internal/accounts"
	"github.com/clubline/clubline-backend/internal/auth"
	"github.com/clubline/clubline-backend/internal/checkout"
	"github.com/clubline/clubline-backend/internal/clubs"
	"github.com/clubline/clubline-backend/internal/memberships"
	"github.com/clubline/clubline-backend/internal/notifications"
	"github.com/clubline/clubline-backend/internal/paymentevents"
	"github.com/clubline/clubline-backend/internal/platformfees"
	"github.com/clubline/clubline-backend/internal/refunds"
	"github.com/clubline/clubline-backend/internal/transactions"
	"github.com/clubline/clubline-backend/internal/users"
	stripewebhook "github.com/clubline/clubline-backend/internal/webhooks/stripe"
	"github.com/clubline/clubline-backend/pkg/auth/session"
	"github.com/clubline/clubline-backend/pkg/config"
	"github.com/clubline/clubline-backend/pkg/db"
	"github.com/clubline/clubline-backend/pkg/logger"
	"github.com/clubline/clubline-backend/pkg/metrics"
	"github.com/clubline/clubline-backend/pkg/migrate"
	"github.com/clubline/clubline-backend/pkg/outbox"
	"github.com/clubline/clubline-backend/pkg/redis"
	pkgstripe "github.com/clubline/clubline-backend/pkg/stripe"
)

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

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	membershipsRepo := memberships.NewRepository(dbClient.DB())
	clubsRepo := clubs.NewRepository(dbClient.DB())
	transactionsRepo := transactions.NewRepository(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())
	paymentEventsRepo := paymentevents.NewRepository(dbClient.DB())
	checkoutRepo := checkout.NewRepository(dbClient.DB())
	outboxEmitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:        usersRepo,
		MembershipsRepo: membershipsRepo,
		SessionManager:  sessionManager,
		JWTConfig:       cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	adminRegisterService, err := auth.NewAdminRegisterService(auth.AdminRegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create admin register service", err)
		os.Exit(1)
	}

	switchService, err := auth.NewSwitchClubService(auth.SwitchClubServiceParams{
		MembershipsRepo: membershipsRepo,
		SessionManager:  sessionManager,
		JWTConfig:       cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create switch-club service", err)
		os.Exit(1)
	}

	transactionsService, err := transactions.NewService(transactionsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create transactions service", err)
		os.Exit(1)
	}

	refundsService, err := refunds.NewService(refunds.ServiceParams{
		Ledger:       transactionsRepo,
		StripeClient: refunds.NewStripeClient(stripeClient),
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create refunds service", err)
		os.Exit(1)
	}

	feeService, err := platformfees.NewService(platformfees.ServiceParams{
		Repo:            platformfees.NewRepository(dbClient.DB()),
		MonthlyFeeCents: cfg.Payments.MonthlyFeeCents,
		Logger:          logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create platform fee service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Repo:         checkoutRepo,
		Clubs:        clubsRepo,
		Fees:         feeService,
		StripeClient: checkout.NewStripeClient(stripeClient),
		Config:       cfg.Payments,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	accountsService, err := accounts.NewService(accounts.ServiceParams{
		Clubs:        clubsRepo,
		StripeClient: accounts.NewStripeClient(stripeClient),
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create accounts service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	paymentEventGate, err := paymentevents.NewService(paymentevents.ServiceParams{
		Repo:          paymentEventsRepo,
		SigningSecret: stripeClient.SigningSecret(),
		StaleClaimTTL: cfg.Payments.StaleClaimTTL,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment event gate", err)
		os.Exit(1)
	}

	stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Ledger:            transactionsRepo,
		CheckoutRepo:      checkoutRepo,
		Clubs:             clubsRepo,
		StripeClient:      stripewebhook.NewStripeClient(stripeClient),
		TransactionRunner: dbClient,
		Outbox:            outboxEmitter,
		Logger:            logg,
		Metrics:           paymentMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			membershipsRepo,
			promhttp.Handler(),
			paymentMetrics,
			authService,
			registerService,
			adminRegisterService,
			switchService,
			transactionsService,
			refundsService,
			checkoutService,
			accountsService,
			notificationsService,
			paymentEventGate,
			stripeWebhookService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
