package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "ORDERENGINE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "ORDERENGINE_APP_ENV"
	EnvPort     = "ORDERENGINE_APP_PORT"
	EnvLogLevel = "ORDERENGINE_LOG_LEVEL"

	EnvDBDSN  = "ORDERENGINE_DB_DSN"
	EnvDBHost = "ORDERENGINE_DB_HOST"
	EnvDBUser = "ORDERENGINE_DB_USER"
	EnvDBName = "ORDERENGINE_DB_NAME"

	EnvRedisURL = "ORDERENGINE_REDIS_URL"

	EnvFreeShippingThreshold = "ORDERENGINE_CHECKOUT_FREE_SHIPPING_THRESHOLD"
	EnvFlatShippingCost      = "ORDERENGINE_CHECKOUT_FLAT_SHIPPING_COST"
	EnvTaxRate               = "ORDERENGINE_CHECKOUT_TAX_RATE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Checkout     CheckoutConfig
	Cache        CacheConfig
	Cart         CartConfig
	Idempotency  IdempotencyConfig
	RateLimit    RateLimitConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MigrationConfig is the subset read by cmd/migrate. Schema changes run from
// deploy jobs that carry no Redis or checkout settings.
type MigrationConfig struct {
	App AppConfig
	DB  DBConfig
}

// LoadMigration reads the app and database settings. A non-empty dsn wins over
// ORDERENGINE_DB_DSN and the split host/user/name variables. The embedded
// migrations are Postgres DDL, so any other driver is rejected.
func LoadMigration(dsn string) (*MigrationConfig, error) {
	var cfg MigrationConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if dsn = strings.TrimSpace(dsn); dsn != "" {
		cfg.DB.DSN = dsn
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if !strings.EqualFold(cfg.DB.Driver, "postgres") {
		return nil, fmt.Errorf("migrations require the postgres driver, got %q", cfg.DB.Driver)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ORDERENGINE_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERENGINE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ORDERENGINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ORDERENGINE_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"ORDERENGINE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERENGINE_DB_DSN"`
	Driver string `envconfig:"ORDERENGINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ORDERENGINE_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDERENGINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDERENGINE_DB_USER"`
	LegacyPassword string `envconfig:"ORDERENGINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDERENGINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDERENGINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERENGINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERENGINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERENGINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERENGINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERENGINE_REDIS_URL"`
	Address      string        `envconfig:"ORDERENGINE_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERENGINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERENGINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERENGINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERENGINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERENGINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERENGINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERENGINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// CheckoutConfig holds the pricing rules applied when an order is created.
type CheckoutConfig struct {
	FreeShippingThreshold decimal.Decimal `envconfig:"ORDERENGINE_CHECKOUT_FREE_SHIPPING_THRESHOLD" default:"50.00"`
	FlatShippingCost      decimal.Decimal `envconfig:"ORDERENGINE_CHECKOUT_FLAT_SHIPPING_COST" default:"5.00"`
	TaxRate               decimal.Decimal `envconfig:"ORDERENGINE_CHECKOUT_TAX_RATE" default:"0.22"`
}

func (c CheckoutConfig) validate() error {
	if c.FreeShippingThreshold.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvFreeShippingThreshold)
	}
	if c.FlatShippingCost.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvFlatShippingCost)
	}
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be between 0 and 1", EnvTaxRate)
	}
	return nil
}

type CacheConfig struct {
	KeyPrefix  string        `envconfig:"ORDERENGINE_CACHE_KEY_PREFIX" default:"orderengine"`
	ProductTTL time.Duration `envconfig:"ORDERENGINE_CACHE_PRODUCT_TTL" default:"5m"`
}

type CartConfig struct {
	GuestCartTTL    time.Duration `envconfig:"ORDERENGINE_CART_GUEST_TTL" default:"720h"`
	CleanupInterval time.Duration `envconfig:"ORDERENGINE_CART_CLEANUP_INTERVAL" default:"1h"`
	CleanupBatch    int           `envconfig:"ORDERENGINE_CART_CLEANUP_BATCH" default:"200"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"ORDERENGINE_IDEMPOTENCY_TTL" default:"24h"`
}

// RateLimitConfig throttles checkout per caller identity and per client IP.
// A zero limit disables that counter.
type RateLimitConfig struct {
	CheckoutWindow        time.Duration `envconfig:"ORDERENGINE_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutIdentityLimit int           `envconfig:"ORDERENGINE_RATE_LIMIT_CHECKOUT_IDENTITY" default:"10"`
	CheckoutIPLimit       int           `envconfig:"ORDERENGINE_RATE_LIMIT_CHECKOUT_IP" default:"30"`
}

// OutboxConfig drives the outbox publisher. Streams are named
// "<StreamPrefix>:events:<aggregate>".
type OutboxConfig struct {
	StreamPrefix   string `envconfig:"ORDERENGINE_OUTBOX_STREAM_PREFIX" default:"orderengine"`
	BatchSize      int    `envconfig:"ORDERENGINE_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"ORDERENGINE_OUTBOX_POLL_INTERVAL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"ORDERENGINE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int    `envconfig:"ORDERENGINE_OUTBOX_RETENTION_DAYS" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ORDERENGINE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ORDERENGINE_AUTO_MIGRATE" default:"false"`
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

// RedactedDSN returns the DSN with its password masked, for logs.
func (db DBConfig) RedactedDSN() string {
	if strings.Contains(db.DSN, "://") {
		if u, err := url.Parse(db.DSN); err == nil {
			return u.Redacted()
		}
		return "<unparseable dsn>"
	}
	fields := strings.Fields(db.DSN)
	for i, field := range fields {
		if strings.HasPrefix(strings.ToLower(field), "password=") {
			fields[i] = "password=xxxxx"
		}
	}
	return strings.Join(fields, " ")
}
