package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clubline/clubline-backend/api/controllers"
	webhookcontrollers "github.com/clubline/clubline-backend/api/controllers/webhooks"
	"github.com/clubline/clubline-backend/api/middleware"
	"github.com/clubline/clubline-backend/internal/accounts"
	"github.com/clubline/clubline-backend/internal/auth"
	checkoutsvc "github.com/clubline/clubline-backend/internal/checkout"
	"github.com/clubline/clubline-backend/internal/notifications"
	"github.com/clubline/clubline-backend/internal/paymentevents"
	"github.com/clubline/clubline-backend/internal/refunds"
	"github.com/clubline/clubline-backend/internal/transactions"
	stripewebhook "github.com/clubline/clubline-backend/internal/webhooks/stripe"
	"github.com/clubline/clubline-backend/pkg/auth/session"
	"github.com/clubline/clubline-backend/pkg/config"
	"github.com/clubline/clubline-backend/pkg/db"
	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/logger"
	"github.com/clubline/clubline-backend/pkg/metrics"
	"github.com/clubline/clubline-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// paymentRoles may issue refunds and read the club ledger.
var paymentRoles = []enums.MemberRole{
	enums.MemberRoleOwner,
	enums.MemberRoleAdmin,
	enums.MemberRoleOrganizer,
}

// accountRoles may view and refresh connected-account onboarding state.
var accountRoles = []enums.MemberRole{
	enums.MemberRoleOwner,
	enums.MemberRoleAdmin,
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionManager sessionManager,
	membershipChecker middleware.MembershipChecker,
	metricsHandler http.Handler,
	paymentMetrics *metrics.PaymentMetrics,
	authService auth.Service,
	registerService auth.RegisterService,
	adminRegisterService auth.AdminRegisterService,
	switchService auth.SwitchClubService,
	transactionsService transactions.Service,
	refundsService refunds.Service,
	checkoutService checkoutsvc.Service,
	accountsService accounts.Service,
	notificationsService notifications.Service,
	paymentEventGate *paymentevents.Service,
	stripeWebhookService *stripewebhook.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	// Without a redis client, throttling and idempotency replay are disabled
	// rather than boxing a typed nil into the store interfaces.
	loginLimit := passthrough
	registerLimit := passthrough
	idempotency := passthrough
	apiLimit := passthrough
	if redisClient != nil {
		loginLimit = middleware.AuthRateLimit(loginPolicy, redisClient, logg)
		registerLimit = middleware.AuthRateLimit(registerPolicy, redisClient, logg)
		idempotency = middleware.Idempotency(redisClient, logg)
		apiLimit = middleware.RateLimit(redisClient, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Post("/validate", controllers.PublicValidate(logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, paymentEventGate, paymentMetrics, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(loginLimit).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(registerLimit).Post("/register", controllers.AuthRegister(registerService, authService, logg))
		r.Post("/logout", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))
		r.Post("/switch-club", controllers.AuthSwitchClub(switchService, cfg.JWT, logg))
	})

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		if !cfg.App.IsProd() {
			r.Post("/register", controllers.AdminAuthRegister(adminRegisterService, authService, cfg, logg))
		}
		r.With(loginLimit).Post("/login", controllers.AdminAuthLogin(authService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(idempotency)
		r.Use(apiLimit)

		// Checkout creation carries its club in the purchase purpose, so any
		// authenticated user may pay without an active club on the token.
		r.Post("/v1/checkout", controllers.CreateCheckoutSession(checkoutService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.ClubContext(logg))
			r.Get("/ping", controllers.PrivatePing())

			r.Get("/v1/checkout/{sessionId}", controllers.GetCheckoutSession(checkoutService, logg))

			r.Route("/v1/clubs/me", func(r chi.Router) {
				r.Route("/transactions", func(r chi.Router) {
					r.Use(middleware.RequireClubRoles(membershipChecker, logg, paymentRoles...))
					r.Get("/", controllers.ClubTransactions(transactionsService, logg))
					r.Get("/{transactionId}", controllers.ClubTransaction(transactionsService, logg))
					r.Post("/{transactionId}/refunds", controllers.CreateRefund(refundsService, logg))
				})
				r.Route("/account", func(r chi.Router) {
					r.Use(middleware.RequireClubRoles(membershipChecker, logg, accountRoles...))
					r.Get("/", controllers.ClubAccountStatus(accountsService, logg))
					r.Post("/refresh", controllers.RefreshClubAccount(accountsService, logg))
				})
			})

			r.Route("/v1/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(notificationsService, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
			})
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.RequirePlatformAdmin(logg))
		r.Use(idempotency)
		r.Use(apiLimit)
		r.Get("/ping", controllers.AdminPing())
		r.Route("/v1/payment-events", func(r chi.Router) {
			r.Get("/{eventId}", controllers.AdminPaymentEvent(paymentEventGate, logg))
		})
	})

	return r
}

func passthrough(next http.Handler) http.Handler { return next }
