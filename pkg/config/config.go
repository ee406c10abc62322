package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Stripe        StripeConfig
	Payments      PaymentsConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CLUBLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"CLUBLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CLUBLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CLUBLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CLUBLINE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CLUBLINE_DB_DSN"`
	Driver string `envconfig:"CLUBLINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CLUBLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"CLUBLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CLUBLINE_DB_USER"`
	LegacyPassword string `envconfig:"CLUBLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CLUBLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CLUBLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CLUBLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CLUBLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CLUBLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CLUBLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CLUBLINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CLUBLINE_REDIS_ADDR"`
	Password     string        `envconfig:"CLUBLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CLUBLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CLUBLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CLUBLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CLUBLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CLUBLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CLUBLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"CLUBLINE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"CLUBLINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"CLUBLINE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"CLUBLINE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CLUBLINE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CLUBLINE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CLUBLINE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CLUBLINE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CLUBLINE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"CLUBLINE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"CLUBLINE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"CLUBLINE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"CLUBLINE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"CLUBLINE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"CLUBLINE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CLUBLINE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"CLUBLINE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CLUBLINE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"CLUBLINE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CLUBLINE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	PaymentsTopic        string `envconfig:"CLUBLINE_PUBSUB_PAYMENTS_TOPIC" default:"cl-payment-events"`
	PaymentsSubscription string `envconfig:"CLUBLINE_PUBSUB_PAYMENTS_SUBSCRIPTION" required:"true"`
	ReceiptsTopic        string `envconfig:"CLUBLINE_PUBSUB_RECEIPTS_TOPIC" default:"cl-receipt-events"`
	ReceiptsSubscription string `envconfig:"CLUBLINE_PUBSUB_RECEIPTS_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CLUBLINE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CLUBLINE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CLUBLINE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"CLUBLINE_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"CLUBLINE_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"CLUBLINE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// PaymentsConfig tunes ledger and checkout behavior.
type PaymentsConfig struct {
	PlatformFeeBps     int           `envconfig:"CLUBLINE_PAYMENTS_PLATFORM_FEE_BPS" default:"150"`
	MonthlyFeeCents    int64         `envconfig:"CLUBLINE_PAYMENTS_MONTHLY_FEE_CENTS" default:"2900"`
	StaleClaimTTL      time.Duration `envconfig:"CLUBLINE_PAYMENTS_STALE_CLAIM_TTL" default:"15m"`
	CheckoutSuccessURL string        `envconfig:"CLUBLINE_CHECKOUT_SUCCESS_URL" required:"true"`
	CheckoutCancelURL  string        `envconfig:"CLUBLINE_CHECKOUT_CANCEL_URL" required:"true"`
}

type CronConfig struct {
	StuckClaimInterval time.Duration `envconfig:"CLUBLINE_CRON_STUCK_CLAIM_INTERVAL" default:"5m"`
	OutboxRetention    time.Duration `envconfig:"CLUBLINE_CRON_OUTBOX_RETENTION" default:"720h"`
	LockTTL            time.Duration `envconfig:"CLUBLINE_CRON_LOCK_TTL" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
