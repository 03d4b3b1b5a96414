package config

const (
	EnvPrefix = "HOTELBOOKER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres   = "postgres"
	DriverSQLite     = "sqlite"
	defaultSQLiteDSN = "hotelbooker.db"
)

const (
	EnvAppEnv        = "HOTELBOOKER_APP_ENV"
	EnvPort          = "HOTELBOOKER_APP_PORT"
	EnvDBDSN         = "HOTELBOOKER_DB_DSN"
	EnvDBHost        = "HOTELBOOKER_DB_HOST"
	EnvDBUser        = "HOTELBOOKER_DB_USER"
	EnvDBName        = "HOTELBOOKER_DB_NAME"
	EnvDBPassword    = "HOTELBOOKER_DB_PASSWORD"
	EnvRedisURL      = "HOTELBOOKER_REDIS_URL"
	EnvJWTSecret     = "HOTELBOOKER_JWT_SECRET"
	EnvUseSQLite     = "HOTELBOOKER_USE_SQLITE"
	EnvStripeTimeout = "HOTELBOOKER_STRIPE_TIMEOUT"
	EnvBookingTTL    = "HOTELBOOKER_BOOKING_PENDING_TTL"
	EnvPubSubTopic   = "HOTELBOOKER_PUBSUB_DOMAIN_TOPIC"
	EnvCORSOrigins   = "HOTELBOOKER_CORS_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
