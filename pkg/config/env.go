package config

// EnvPrefix scopes every variable read by Load.
const EnvPrefix = "DISPATCH"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	PushTransportNone     = "none"
	PushTransportPubSub   = "pubsub"
	PushTransportRabbitMQ = "rabbitmq"
)

const (
	EnvAppEnv       = "DISPATCH_APP_ENV"
	EnvPort         = "DISPATCH_APP_PORT"
	EnvLogLevel     = "DISPATCH_LOG_LEVEL"
	EnvLogWarnStack = "DISPATCH_LOG_WARN_STACK"

	EnvDBDSN      = "DISPATCH_DB_DSN"
	EnvDBHost     = "DISPATCH_DB_HOST"
	EnvDBPort     = "DISPATCH_DB_PORT"
	EnvDBUser     = "DISPATCH_DB_USER"
	EnvDBPassword = "DISPATCH_DB_PASSWORD"
	EnvDBName     = "DISPATCH_DB_NAME"
	EnvDBSSLMode  = "DISPATCH_DB_SSLMODE"

	EnvRedisURL  = "DISPATCH_REDIS_URL"
	EnvRedisAddr = "DISPATCH_REDIS_ADDR"

	EnvGCPProjectID             = "DISPATCH_GCP_PROJECT_ID"
	EnvPubSubNotificationTopic  = "DISPATCH_PUBSUB_NOTIFICATION_TOPIC"
	EnvRabbitMQHost             = "DISPATCH_RABBITMQ_HOST"
	EnvRabbitMQExchange         = "DISPATCH_RABBITMQ_EXCHANGE"
	EnvPushTransport            = "DISPATCH_PUSH_TRANSPORT"
	EnvRealtimeChannelPrefix    = "DISPATCH_REALTIME_CHANNEL_PREFIX"
	EnvTxMaxAttempts            = "DISPATCH_TX_MAX_ATTEMPTS"
	EnvTxBaseBackoff            = "DISPATCH_TX_BASE_BACKOFF"
	EnvMatchRadiusKm            = "DISPATCH_MATCH_RADIUS_KM"
	EnvCronInterval             = "DISPATCH_CRON_INTERVAL"
	EnvNotificationRetentionDay = "DISPATCH_NOTIFICATION_RETENTION_DAYS"
	EnvAutoMigrate              = "DISPATCH_AUTO_MIGRATE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
