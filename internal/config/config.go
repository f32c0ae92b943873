package config

import (
	"fmt"
	"time"

	"github.com/utafrali/sessionauth/internal/domain"
	pkgconfig "github.com/utafrali/sessionauth/pkg/config"
	"github.com/utafrali/sessionauth/pkg/database"
	"github.com/utafrali/sessionauth/pkg/middleware"
	"github.com/utafrali/sessionauth/pkg/tracing"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	minSecretLength = 32
)

// Config holds all configuration for the session service. It is read once at
// startup and never mutated.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"sessionauth"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server
	HTTPPort           int           `env:"HTTP_PORT" envDefault:"5000"`
	HTTPReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	HTTPWriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	HTTPIdleTimeout    time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	PprofAllowedCIDRs  []string      `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`
	SlowQueryThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// PostgreSQL
	PostgresHost     string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string        `env:"POSTGRES_USER" envDefault:"sessionauth"`
	PostgresPassword string        `env:"POSTGRES_PASSWORD" envDefault:"sessionauth_secret"`
	PostgresDB       string        `env:"POSTGRES_DB" envDefault:"sessionauth"`
	PostgresSSLMode  string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns int32         `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	PostgresMinConns int32         `env:"POSTGRES_MIN_CONNS" envDefault:"1"`
	PostgresConnLife time.Duration `env:"POSTGRES_MAX_CONN_LIFETIME" envDefault:"1h"`
	PostgresConnIdle time.Duration `env:"POSTGRES_MAX_CONN_IDLE_TIME" envDefault:"30m"`

	// Redis
	RedisHost        string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort        int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	RedisOpTimeout   time.Duration `env:"REDIS_OP_TIMEOUT" envDefault:"2s"`
	RedisBreakerOpen time.Duration `env:"REDIS_BREAKER_OPEN_TIMEOUT" envDefault:"10s"`

	// Tokens
	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET,notEmpty"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET,notEmpty"`
	AccessTokenExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"168h"`
	BcryptCost         int           `env:"BCRYPT_COST" envDefault:"12"`

	// Per-client limit on /api/auth. AUTH_RATE_LIMIT_RPS=0 disables it.
	AuthRateLimitRPS   float64 `env:"AUTH_RATE_LIMIT_RPS" envDefault:"5"`
	AuthRateLimitBurst int     `env:"AUTH_RATE_LIMIT_BURST" envDefault:"10"`

	// Kafka. An empty broker list disables event publishing.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from the process environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load session config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads configuration from vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFromMap(cfg, vars); err != nil {
		return nil, fmt.Errorf("load session config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the struct tags cannot express.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.RedisPort < 1 || c.RedisPort > 65535 {
		return fmt.Errorf("invalid Redis port: %d", c.RedisPort)
	}
	if c.RedisOpTimeout <= 0 {
		return fmt.Errorf("REDIS_OP_TIMEOUT must be positive, got %s", c.RedisOpTimeout)
	}
	if c.AccessTokenExpiry <= 0 || c.RefreshTokenExpiry <= 0 {
		return fmt.Errorf("token expiries must be positive")
	}
	if c.AccessTokenExpiry >= c.RefreshTokenExpiry {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRY (%s) must be shorter than REFRESH_TOKEN_EXPIRY (%s)",
			c.AccessTokenExpiry, c.RefreshTokenExpiry)
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if c.Environment != EnvDevelopment {
		if len(c.AccessTokenSecret) < minSecretLength {
			return fmt.Errorf("ACCESS_TOKEN_SECRET must be at least %d characters long, got %d", minSecretLength, len(c.AccessTokenSecret))
		}
		if len(c.RefreshTokenSecret) < minSecretLength {
			return fmt.Errorf("REFRESH_TOKEN_SECRET must be at least %d characters long, got %d", minSecretLength, len(c.RefreshTokenSecret))
		}
	}
	if c.AuthRateLimitRPS < 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT_RPS must not be negative, got %g", c.AuthRateLimitRPS)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be within [0, 1], got %g", c.OTELSampleRate)
	}
	return nil
}

// SecureCookies reports whether cookies must carry the Secure attribute.
func (c *Config) SecureCookies() bool {
	return c.Environment == EnvProduction
}

func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPassword,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSLMode,
		MaxConns:        c.PostgresMaxConns,
		MinConns:        c.PostgresMinConns,
		MaxConnLifetime: c.PostgresConnLife,
		MaxConnIdleTime: c.PostgresConnIdle,
	}
}

func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:      c.RedisHost,
		Port:      c.RedisPort,
		Password:  c.RedisPassword,
		DB:        c.RedisDB,
		OpTimeout: c.RedisOpTimeout,
	}
}

// RedisBreaker configures the breaker in front of the refresh token store.
func (c *Config) RedisBreaker() database.BreakerConfig {
	cfg := database.DefaultBreakerConfig("refresh_token_store")
	cfg.CallTimeout = c.RedisOpTimeout
	cfg.OpenTimeout = c.RedisBreakerOpen
	return cfg
}

func (c *Config) Tracing() tracing.Config {
	cfg := tracing.DefaultConfig(c.ServiceName)
	cfg.Environment = c.Environment
	cfg.OTLPEndpoint = c.OTELEndpoint
	cfg.SampleRate = c.OTELSampleRate
	cfg.Enabled = c.OTELEnabled
	return cfg
}

// AuthRateLimit configures the limiter in front of the credential endpoints.
func (c *Config) AuthRateLimit() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{RPS: c.AuthRateLimitRPS, Burst: c.AuthRateLimitBurst}
}

// TokenTTL bundles the two token lifetimes used by the minter, the store and
// the cookie transport.
func (c *Config) TokenTTL() domain.TokenTTL {
	return domain.TokenTTL{Access: c.AccessTokenExpiry, Refresh: c.RefreshTokenExpiry}
}
