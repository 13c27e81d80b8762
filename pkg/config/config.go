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
	GCP          GCPConfig
	PubSub       PubSubConfig
	RabbitMQ     RabbitMQConfig
	Push         PushConfig
	Realtime     RealtimeConfig
	Dispatch     DispatchConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Push.validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"DISPATCH_APP_ENV" required:"true"`
	Port         string   `envconfig:"DISPATCH_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"DISPATCH_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"DISPATCH_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"DISPATCH_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"DISPATCH_DB_DSN"`

	LegacyHost     string `envconfig:"DISPATCH_DB_HOST"`
	LegacyPort     int    `envconfig:"DISPATCH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DISPATCH_DB_USER"`
	LegacyPassword string `envconfig:"DISPATCH_DB_PASSWORD"`
	LegacyName     string `envconfig:"DISPATCH_DB_NAME"`
	LegacySSLMode  string `envconfig:"DISPATCH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DISPATCH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DISPATCH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DISPATCH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DISPATCH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"DISPATCH_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DISPATCH_REDIS_URL"`
	Address      string        `envconfig:"DISPATCH_REDIS_ADDR"`
	Password     string        `envconfig:"DISPATCH_REDIS_PASSWORD"`
	DB           int           `envconfig:"DISPATCH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DISPATCH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DISPATCH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DISPATCH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DISPATCH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DISPATCH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DISPATCH_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"DISPATCH_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DISPATCH_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"DISPATCH_PUBSUB_NOTIFICATION_TOPIC" default:"dispatch-push-notifications"`
}

type RabbitMQConfig struct {
	Host     string `envconfig:"DISPATCH_RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"DISPATCH_RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"DISPATCH_RABBITMQ_USER" default:"guest"`
	Password string `envconfig:"DISPATCH_RABBITMQ_PASSWORD" default:"guest"`
	Exchange string `envconfig:"DISPATCH_RABBITMQ_EXCHANGE" default:"notifications_fanout"`
}

// URL renders the AMQP connection string.
func (r RabbitMQConfig) URL() string {
	u := &url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(r.User, r.Password),
		Host:   fmt.Sprintf("%s:%d", r.Host, r.Port),
		Path:   "/",
	}
	return u.String()
}

// PushConfig selects the push-notification transport.
type PushConfig struct {
	Transport string `envconfig:"DISPATCH_PUSH_TRANSPORT" default:"none"`
}

// Kind returns the normalized transport name.
func (p PushConfig) Kind() string {
	kind := strings.ToLower(strings.TrimSpace(p.Transport))
	if kind == "" {
		return PushTransportNone
	}
	return kind
}

func (p PushConfig) validate(cfg Config) error {
	switch p.Kind() {
	case PushTransportNone, PushTransportRabbitMQ:
		return nil
	case PushTransportPubSub:
		if strings.TrimSpace(cfg.GCP.ProjectID) == "" {
			return fmt.Errorf("%s is required when push transport is %s", EnvGCPProjectID, PushTransportPubSub)
		}
		return nil
	default:
		return fmt.Errorf("unsupported push transport %q", p.Transport)
	}
}

type RealtimeConfig struct {
	ChannelPrefix string `envconfig:"DISPATCH_REALTIME_CHANNEL_PREFIX" default:"dispatch"`
}

// DispatchConfig holds the behaviorally significant dispatch knobs.
type DispatchConfig struct {
	MaxAttempts   int           `envconfig:"DISPATCH_TX_MAX_ATTEMPTS" default:"3"`
	BaseBackoff   time.Duration `envconfig:"DISPATCH_TX_BASE_BACKOFF" default:"150ms"`
	MatchRadiusKm float64       `envconfig:"DISPATCH_MATCH_RADIUS_KM" default:"15"`
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"DISPATCH_CRON_INTERVAL" default:"30s"`
	LockTTL                   time.Duration `envconfig:"DISPATCH_CRON_LOCK_TTL" default:"5m"`
	SweepBatchSize            int           `envconfig:"DISPATCH_CRON_SWEEP_BATCH_SIZE" default:"100"`
	NotificationRetentionDays int           `envconfig:"DISPATCH_NOTIFICATION_RETENTION_DAYS" default:"30"`
	NotificationPurgeBatch    int           `envconfig:"DISPATCH_NOTIFICATION_PURGE_BATCH" default:"500"`
}

type FeatureFlagsConfig struct {
	AutoMigrate       bool `envconfig:"DISPATCH_AUTO_MIGRATE" default:"false"`
	AutoAssignOnReady bool `envconfig:"DISPATCH_AUTO_ASSIGN_ON_READY" default:"true"`
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
