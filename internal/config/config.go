package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	LogLevel       string   `mapstructure:"LOG_LEVEL"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir  string   `mapstructure:"MIGRATIONS_DIR"`
	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	// RateLimitIdleTTL bounds how long an idle client's limiter is kept.
	RateLimitIdleTTL time.Duration `mapstructure:"RATE_LIMIT_IDLE_TTL"`
	AMQPURL          string        `mapstructure:"AMQP_URL"`
	EventsQueue      string        `mapstructure:"EVENTS_QUEUE"`
}

var envKeys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"MIGRATIONS_DIR", "AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RATE_LIMIT_IDLE_TTL", "AMQP_URL", "EVENTS_QUEUE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("RATE_LIMIT_IDLE_TTL", "10m")
	v.SetDefault("EVENTS_QUEUE", "assignment_events")

	// Unmarshal only sees keys viper knows about.
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.AuthSigningKey == "" && cfg.AuthIssuer == "" {
		log.Println("WARNING: ENV=development without AUTH_SIGNING_KEY or AUTH_ISSUER: every request runs as admin.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DevAuth reports whether requests should bypass token validation.
func (c *Config) DevAuth() bool {
	return c.IsDev() && c.AuthSigningKey == "" && c.AuthIssuer == ""
}

// Validate checks that the configuration is safe to run. Outside development
// a token verification source (signing key or issuer) is mandatory.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" && c.AuthIssuer == "" {
		return fmt.Errorf(
			"AUTH_SIGNING_KEY or AUTH_ISSUER must be set when ENV=%q; refusing to start without authentication", c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters, got %d", len(c.AuthSigningKey))
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 || c.RateLimitIdleTTL < 0 {
		return fmt.Errorf("rate limit values must be non-negative")
	}
	return nil
}
