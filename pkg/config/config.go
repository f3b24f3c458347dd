package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix scopes every environment variable the service reads.
	EnvPrefix = "CAREWELL"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "CAREWELL_DB_DSN"
	EnvDBHost = "CAREWELL_DB_HOST"
	EnvDBUser = "CAREWELL_DB_USER"
	EnvDBName = "CAREWELL_DB_NAME"
)

var fallbackDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Stripe        StripeConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
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
	Env          string `envconfig:"CAREWELL_APP_ENV" required:"true"`
	Port         string `envconfig:"CAREWELL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CAREWELL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CAREWELL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CAREWELL_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CAREWELL_DB_DSN"`
	Driver string `envconfig:"CAREWELL_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CAREWELL_DB_HOST"`
	Port     int    `envconfig:"CAREWELL_DB_PORT" default:"5432"`
	User     string `envconfig:"CAREWELL_DB_USER"`
	Password string `envconfig:"CAREWELL_DB_PASSWORD"`
	Name     string `envconfig:"CAREWELL_DB_NAME"`
	SSLMode  string `envconfig:"CAREWELL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CAREWELL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CAREWELL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CAREWELL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CAREWELL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CAREWELL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CAREWELL_REDIS_ADDR"`
	Password     string        `envconfig:"CAREWELL_REDIS_PASSWORD"`
	DB           int           `envconfig:"CAREWELL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CAREWELL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CAREWELL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CAREWELL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CAREWELL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CAREWELL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"CAREWELL_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"CAREWELL_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"CAREWELL_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"CAREWELL_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CAREWELL_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CAREWELL_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CAREWELL_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CAREWELL_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CAREWELL_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"CAREWELL_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"CAREWELL_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"CAREWELL_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"CAREWELL_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"CAREWELL_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"CAREWELL_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CAREWELL_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey     string `envconfig:"CAREWELL_STRIPE_API_KEY"`
	Secret     string `envconfig:"CAREWELL_STRIPE_SECRET"`
	Env        string `envconfig:"CAREWELL_STRIPE_ENV" default:"test"`
	SuccessURL string `envconfig:"CAREWELL_STRIPE_SUCCESS_URL" default:"http://localhost:3000/payment/success"`
	CancelURL  string `envconfig:"CAREWELL_STRIPE_CANCEL_URL" default:"http://localhost:3000/payment/cancel"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PubSubConfig struct {
	ProjectID         string `envconfig:"CAREWELL_PUBSUB_PROJECT_ID"`
	BloodBankTopic    string `envconfig:"CAREWELL_PUBSUB_BLOOD_BANK_TOPIC" default:"cw-blood-bank-events"`
	AppointmentsTopic string `envconfig:"CAREWELL_PUBSUB_APPOINTMENTS_TOPIC" default:"cw-appointment-events"`
	BillingTopic      string `envconfig:"CAREWELL_PUBSUB_BILLING_TOPIC" default:"cw-billing-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CAREWELL_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CAREWELL_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CAREWELL_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	LowStockInterval time.Duration `envconfig:"CAREWELL_CRON_LOW_STOCK_INTERVAL" default:"15m"`
	ReminderInterval time.Duration `envconfig:"CAREWELL_CRON_REMINDER_INTERVAL" default:"1h"`
	ReminderLeadTime time.Duration `envconfig:"CAREWELL_CRON_REMINDER_LEAD_TIME" default:"24h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	fallbackValues := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range fallbackDBEnvVars {
		if fallbackValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
