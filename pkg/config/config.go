package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Booking      BookingConfig
	Eventing     EventingConfig
	Outbox       OutboxConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = defaultSQLiteDSN
		}
		return &cfg, nil
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string        `envconfig:"HOTELBOOKER_APP_ENV" required:"true"`
	Port            string        `envconfig:"HOTELBOOKER_APP_PORT" default:"8080"`
	LogLevel        string        `envconfig:"HOTELBOOKER_LOG_LEVEL" default:"info"`
	LogWarnStack    bool          `envconfig:"HOTELBOOKER_LOG_WARN_STACK" default:"false"`
	ReadTimeout     time.Duration `envconfig:"HOTELBOOKER_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"HOTELBOOKER_HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"HOTELBOOKER_HTTP_SHUTDOWN_TIMEOUT" default:"20s"`
	CORSOrigins     []string      `envconfig:"HOTELBOOKER_CORS_ORIGINS" default:"http://localhost:3000"`
	// OpsPort serves health and metrics for the background workers.
	OpsPort         string        `envconfig:"HOTELBOOKER_OPS_PORT" default:"9090"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"HOTELBOOKER_DB_DSN"`
	Driver string `envconfig:"HOTELBOOKER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HOTELBOOKER_DB_HOST"`
	LegacyPort     int    `envconfig:"HOTELBOOKER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HOTELBOOKER_DB_USER"`
	LegacyPassword string `envconfig:"HOTELBOOKER_DB_PASSWORD"`
	LegacyName     string `envconfig:"HOTELBOOKER_DB_NAME"`
	LegacySSLMode  string `envconfig:"HOTELBOOKER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HOTELBOOKER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HOTELBOOKER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HOTELBOOKER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HOTELBOOKER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HOTELBOOKER_REDIS_URL"`
	Address      string        `envconfig:"HOTELBOOKER_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"HOTELBOOKER_REDIS_PASSWORD"`
	DB           int           `envconfig:"HOTELBOOKER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HOTELBOOKER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HOTELBOOKER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HOTELBOOKER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HOTELBOOKER_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"HOTELBOOKER_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"HOTELBOOKER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"HOTELBOOKER_JWT_ISSUER" default:"hotelbooker"`
	ExpirationMinutes int    `envconfig:"HOTELBOOKER_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"HOTELBOOKER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"HOTELBOOKER_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey         string        `envconfig:"HOTELBOOKER_STRIPE_API_KEY"`
	PublishableKey string        `envconfig:"HOTELBOOKER_STRIPE_PUBLISHABLE_KEY"`
	WebhookSecret  string        `envconfig:"HOTELBOOKER_STRIPE_WEBHOOK_SECRET"`
	Env            string        `envconfig:"HOTELBOOKER_STRIPE_ENV" default:"test"`
	Timeout        time.Duration `envconfig:"HOTELBOOKER_STRIPE_TIMEOUT" default:"10s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type BookingConfig struct {
	// PendingTTL is how long an unpaid booking holds inventory; zero disables expiry.
	PendingTTL time.Duration `envconfig:"HOTELBOOKER_BOOKING_PENDING_TTL" default:"24h"`
}

type EventingConfig struct {
	WebhookEventTTL time.Duration `envconfig:"HOTELBOOKER_WEBHOOK_EVENT_TTL" default:"720h"`
	IdempotencyTTL  time.Duration `envconfig:"HOTELBOOKER_IDEMPOTENCY_TTL" default:"24h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"HOTELBOOKER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"HOTELBOOKER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"HOTELBOOKER_OUTBOX_MAX_ATTEMPTS" default:"10"`

	// Retention is how long published rows are kept before the cron worker
	// deletes them.
	Retention time.Duration `envconfig:"HOTELBOOKER_OUTBOX_RETENTION" default:"720h"`
}

// PollInterval returns the publisher poll interval.
func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

type GCPConfig struct {
	ProjectID       string `envconfig:"HOTELBOOKER_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"HOTELBOOKER_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"HOTELBOOKER_PUBSUB_DOMAIN_TOPIC" default:"hotelbooker-domain-events"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"HOTELBOOKER_CRON_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"HOTELBOOKER_CRON_LOCK_TTL" default:"10m"`
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
