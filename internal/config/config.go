package config

import (
	"fmt"
	"net/netip"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`

	// HTTP server
	HTTPPort          int      `env:"STOREFRONT_HTTP_PORT" envDefault:"8010"`
	CORSOrigins       []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`
	CookieSecure      bool     `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

	// Redis session store
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Session TTL in hours (default: 30 days, the lifetime of the original cookies)
	SessionTTL int `env:"SESSION_TTL_HOURS" envDefault:"720"`
	// Idle live containers are evicted after this many minutes; Redis keeps the state.
	SessionIdleEvict int `env:"SESSION_IDLE_EVICT_MINUTES" envDefault:"30"`

	// PostgreSQL catalog
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      int    `env:"DB_PORT" envDefault:"5432"`
	DBUser      string `env:"DB_USER" envDefault:"storefront"`
	DBPassword  string `env:"DB_PASSWORD" envDefault:"storefront"`
	DBName      string `env:"DB_NAME" envDefault:"storefront"`
	DBSSLMode   string `env:"DB_SSLMODE" envDefault:"disable"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"1"`
	SlowQueryMS int    `env:"DB_SLOW_QUERY_MS" envDefault:"200"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	// Async writes keep a slow broker out of the cart mutation path.
	KafkaAsync bool `env:"KAFKA_ASYNC" envDefault:"true"`

	// Inventory oracle. An empty base URL reads stock from the catalog table.
	OracleBaseURL   string `env:"ORACLE_BASE_URL" envDefault:""`
	OracleTimeoutMS int    `env:"ORACLE_TIMEOUT_MS" envDefault:"2000"`
	OracleRetries   int    `env:"ORACLE_MAX_RETRIES" envDefault:"1"`

	// Oracle circuit breaker
	CBMaxRequests  uint32  `env:"ORACLE_CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"ORACLE_CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"ORACLE_CB_TIMEOUT_SECONDS" envDefault:"15"`
	CBFailureRatio float64 `env:"ORACLE_CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"ORACLE_CB_MIN_REQUESTS" envDefault:"5"`

	// Cart behaviour
	SerializeProductMutations bool    `env:"CART_SERIALIZE_PRODUCT_MUTATIONS" envDefault:"false"`
	ClearCartOnLogout         bool    `env:"CART_CLEAR_ON_LOGOUT" envDefault:"false"`
	CartRateLimitRPS          float64 `env:"CART_RATE_LIMIT_RPS" envDefault:"10"`
	CartRateLimitBurst        int     `env:"CART_RATE_LIMIT_BURST" envDefault:"20"`

	// Auth
	JWTSecret string `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"storefront"`
	// Lifetime of tokens issued by this service (admin tooling and tests).
	JWTExpiryHours int `env:"JWT_EXPIRY_HOURS" envDefault:"24"`

	// Media uploads. An empty bucket keeps uploads in memory.
	S3Bucket        string `env:"S3_BUCKET" envDefault:""`
	S3Region        string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint      string `env:"S3_ENDPOINT" envDefault:""`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL" envDefault:""`
	MaxUploadMB     int    `env:"MEDIA_MAX_UPLOAD_MB" envDefault:"5"`

	// Tracing
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SessionTTLDuration returns the Redis expiry for session records.
func (c *Config) SessionTTLDuration() time.Duration {
	return time.Duration(c.SessionTTL) * time.Hour
}

// SessionIdleEvictDuration returns how long a live container may stay unused.
func (c *Config) SessionIdleEvictDuration() time.Duration {
	return time.Duration(c.SessionIdleEvict) * time.Minute
}

// OracleTimeout returns the per-call stock lookup timeout.
func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.OracleTimeoutMS) * time.Millisecond
}

// JWTExpiry returns the lifetime of issued access tokens.
func (c *Config) JWTExpiry() time.Duration {
	return time.Duration(c.JWTExpiryHours) * time.Hour
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.SessionTTL < 1 {
		return fmt.Errorf("invalid session TTL: %d hours", c.SessionTTL)
	}
	if c.SessionIdleEvict < 1 {
		return fmt.Errorf("invalid session idle eviction: %d minutes", c.SessionIdleEvict)
	}
	if c.OracleTimeoutMS < 1 {
		return fmt.Errorf("invalid oracle timeout: %d ms", c.OracleTimeoutMS)
	}
	if c.OracleRetries < 0 {
		return fmt.Errorf("invalid oracle retries: %d", c.OracleRetries)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1 {
		return fmt.Errorf("invalid circuit breaker failure ratio: %.2f", c.CBFailureRatio)
	}
	if c.CartRateLimitRPS <= 0 || c.CartRateLimitBurst < 1 {
		return fmt.Errorf("invalid cart rate limit: %.2f rps, burst %d", c.CartRateLimitRPS, c.CartRateLimitBurst)
	}
	if c.OTelSampleRate < 0 || c.OTelSampleRate > 1 {
		return fmt.Errorf("invalid OTEL sample rate: %.2f", c.OTelSampleRate)
	}
	if c.JWTExpiryHours < 1 {
		return fmt.Errorf("invalid JWT expiry: %d hours", c.JWTExpiryHours)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("invalid max upload size: %d MB", c.MaxUploadMB)
	}
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == "change-me-in-production") {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	for _, cidr := range c.PprofAllowedCIDRs {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			return fmt.Errorf("invalid pprof CIDR %q: %w", cidr, err)
		}
	}
	return nil
}
