package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	PubSub       PubSubConfig
	Square       SquareConfig
	Pricing      PricingConfig
	Terminal     TerminalConfig
	Print        PrintConfig
	Broadcast    BroadcastConfig
	Outbox       OutboxConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TABWIRE_APP_ENV" required:"true"`
	Port         string `envconfig:"TABWIRE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"TABWIRE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TABWIRE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TABWIRE_DB_DSN"`
	Driver string `envconfig:"TABWIRE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"TABWIRE_DB_HOST"`
	Port     int    `envconfig:"TABWIRE_DB_PORT" default:"5432"`
	User     string `envconfig:"TABWIRE_DB_USER"`
	Password string `envconfig:"TABWIRE_DB_PASSWORD"`
	Name     string `envconfig:"TABWIRE_DB_NAME"`
	SSLMode  string `envconfig:"TABWIRE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TABWIRE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TABWIRE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TABWIRE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TABWIRE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TABWIRE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TABWIRE_REDIS_ADDR"`
	Password     string        `envconfig:"TABWIRE_REDIS_PASSWORD"`
	DB           int           `envconfig:"TABWIRE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TABWIRE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TABWIRE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TABWIRE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TABWIRE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TABWIRE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type PubSubConfig struct {
	ProjectID          string `envconfig:"TABWIRE_GCP_PROJECT_ID" required:"true"`
	OrdersTopic        string `envconfig:"TABWIRE_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription string `envconfig:"TABWIRE_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"TABWIRE_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"TABWIRE_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"TABWIRE_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type PricingConfig struct {
	// TaxRate is a decimal fraction, e.g. "0.0825" for 8.25%.
	TaxRate string `envconfig:"TABWIRE_TAX_RATE" default:"0.0825"`
}

type TerminalConfig struct {
	ID             string        `envconfig:"TABWIRE_TERMINAL_ID"`
	LocationID     string        `envconfig:"TABWIRE_LOCATION_ID"`
	APIBaseURL     string        `envconfig:"TABWIRE_API_BASE_URL" default:"http://localhost:8080"`
	RequestTimeout time.Duration `envconfig:"TABWIRE_TERMINAL_REQUEST_TIMEOUT" default:"10s"`
	DraftDBPath    string        `envconfig:"TABWIRE_DRAFT_DB_PATH" default:"tabwire-drafts.db"`
}

type PrintConfig struct {
	ServiceURL     string        `envconfig:"TABWIRE_PRINT_SERVICE_URL"`
	RequestTimeout time.Duration `envconfig:"TABWIRE_PRINT_REQUEST_TIMEOUT" default:"5s"`
	MaxAttempts    int           `envconfig:"TABWIRE_PRINT_MAX_ATTEMPTS" default:"5"`
	DrainInterval  time.Duration `envconfig:"TABWIRE_PRINT_DRAIN_INTERVAL" default:"30s"`
}

type BroadcastConfig struct {
	MaxReconnects    int           `envconfig:"TABWIRE_BROADCAST_MAX_RECONNECTS" default:"10"`
	ReconnectBackoff time.Duration `envconfig:"TABWIRE_BROADCAST_RECONNECT_BACKOFF" default:"1s"`
	MaxBackoff       time.Duration `envconfig:"TABWIRE_BROADCAST_MAX_BACKOFF" default:"30s"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TABWIRE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TABWIRE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TABWIRE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TABWIRE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for name, value := range map[string]string{
		"TABWIRE_DB_HOST": db.Host,
		"TABWIRE_DB_USER": db.User,
		"TABWIRE_DB_NAME": db.Name,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either TABWIRE_DB_DSN or %s are required", strings.Join(missing, ", "))
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
