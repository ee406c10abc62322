package config

// EnvPrefix namespaces every Clubline environment variable.
const EnvPrefix = "CLUBLINE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names shared between Load, tests, and deploy tooling.
const (
	EnvAppEnv                 = "CLUBLINE_APP_ENV"
	EnvPort                   = "CLUBLINE_APP_PORT"
	EnvDBDSN                  = "CLUBLINE_DB_DSN"
	EnvDBHost                 = "CLUBLINE_DB_HOST"
	EnvDBUser                 = "CLUBLINE_DB_USER"
	EnvDBName                 = "CLUBLINE_DB_NAME"
	EnvRedisURL               = "CLUBLINE_REDIS_URL"
	EnvJWTSecret              = "CLUBLINE_JWT_SECRET"
	EnvJWTIssuer              = "CLUBLINE_JWT_ISSUER"
	EnvJWTExpMins             = "CLUBLINE_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "CLUBLINE_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "CLUBLINE_GCP_PROJECT_ID"
	EnvPubSubPaymentsTopic    = "CLUBLINE_PUBSUB_PAYMENTS_TOPIC"
	EnvPubSubPaymentsSub      = "CLUBLINE_PUBSUB_PAYMENTS_SUBSCRIPTION"
	EnvPubSubReceiptsTopic    = "CLUBLINE_PUBSUB_RECEIPTS_TOPIC"
	EnvPubSubReceiptsSub      = "CLUBLINE_PUBSUB_RECEIPTS_SUBSCRIPTION"
	EnvStripeAPIKey           = "CLUBLINE_STRIPE_API_KEY"
	EnvStripeWebhookSecret    = "CLUBLINE_STRIPE_WEBHOOK_SECRET"
	EnvCheckoutSuccessURL     = "CLUBLINE_CHECKOUT_SUCCESS_URL"
	EnvCheckoutCancelURL      = "CLUBLINE_CHECKOUT_CANCEL_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
