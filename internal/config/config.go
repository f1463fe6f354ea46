package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	// PublicBaseURL overrides the request origin when building checkout
	// redirect URLs.
	PublicBaseURL string
	SeedCatalog   bool

	OTLPEndpoint string

	DBType            string
	DBDSN             string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Payment   PaymentConfig
	Admin     AdminConfig
	Sweep     SweepConfig
	RateLimit RateLimitConfig
}

// PaymentConfig configures the payment gateway adapter.
type PaymentConfig struct {
	Provider      string
	SecretKey     string
	WebhookSecret string
	APIBase       string
	Timeout       time.Duration
}

// AdminConfig configures the shared-secret admin surface.
type AdminConfig struct {
	APIToken string
}

// SweepConfig configures the periodic stale order sweep.
type SweepConfig struct {
	Enabled    bool
	Interval   time.Duration
	BatchSize  int
	JobTimeout time.Duration

	// MinAge skips orders younger than this so fresh checkouts are left to
	// the webhook.
	MinAge  time.Duration
	LockTTL time.Duration
}

// RateLimitConfig sets the per-IP token buckets of the public endpoints.
// Rates are tokens per second.
type RateLimitConfig struct {
	Enabled         bool
	CheckoutRate    float64
	CheckoutBurst   int
	StatusRate      float64
	StatusBurst     int
	FailOpenOnError bool
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_NAME", "storefront"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("APP_ENV", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		NodeID:            int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		PublicBaseURL:     strings.TrimRight(strings.TrimSpace(getenv("PUBLIC_BASE_URL", "")), "/"),
		SeedCatalog:       getenvBool("SEED_CATALOG", false),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            strings.ToLower(getenv("DB_TYPE", "postgres")),
		DBDSN:             strings.TrimSpace(getenv("DB_DSN", "")),
		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBName:            getenv("DB_NAME", "storefront"),
		DBUser:            getenv("DB_USER", "postgres"),
		DBPassword:        getenv("DB_PASSWORD", ""),
		DBSSLMode:         getenv("DB_SSL_MODE", "disable"),
		DBMaxIdleConn:     getenvInt("DB_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DB_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DB_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DB_CONN_MAX_IDLE_TIME", 300),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           getenvInt("REDIS_DB", 0),
		Payment: PaymentConfig{
			Provider:      strings.ToLower(getenv("PAYMENT_PROVIDER", "stripe")),
			SecretKey:     strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			APIBase:       strings.TrimRight(getenv("STRIPE_API_BASE", "https://api.stripe.com"), "/"),
			Timeout:       getenvDuration("STRIPE_TIMEOUT", 12*time.Second),
		},
		Admin: AdminConfig{
			APIToken: strings.TrimSpace(getenv("ADMIN_API_TOKEN", "")),
		},
		Sweep: SweepConfig{
			Enabled:    getenvBool("SWEEP_ENABLED", true),
			Interval:   getenvDuration("SWEEP_INTERVAL", 5*time.Minute),
			BatchSize:  getenvInt("SWEEP_BATCH_SIZE", 100),
			JobTimeout: getenvDuration("SWEEP_JOB_TIMEOUT", 2*time.Minute),
			MinAge:     getenvDuration("SWEEP_MIN_AGE", 15*time.Minute),
			LockTTL:    getenvDuration("SWEEP_LOCK_TTL", 4*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getenvBool("RATE_LIMIT_ENABLED", true),
			CheckoutRate:    getenvFloat("RATE_LIMIT_CHECKOUT_RATE", 0.2),
			CheckoutBurst:   getenvInt("RATE_LIMIT_CHECKOUT_BURST", 5),
			StatusRate:      getenvFloat("RATE_LIMIT_STATUS_RATE", 1),
			StatusBurst:     getenvInt("RATE_LIMIT_STATUS_BURST", 20),
			FailOpenOnError: getenvBool("RATE_LIMIT_FAIL_OPEN", true),
		},
	}

	return cfg
}

// IsProduction reports whether the service runs in a production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
