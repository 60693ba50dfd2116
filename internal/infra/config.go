package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"lotto"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"lotto"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"lotto"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`

	// Redis
	RedisURL     string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	RedisEnabled bool   `env:"REDIS_ENABLED" envDefault:"false"`

	// JWT
	JWTSecret         string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTOperatorExpiry time.Duration `env:"JWT_OPERATOR_EXPIRY" envDefault:"360h"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3100"`

	// Kafka
	KafkaBrokers     string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled     bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaTopicPrefix string `env:"KAFKA_TOPIC_PREFIX" envDefault:"lotto"`

	// Outbox relay
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	RelayMetricsPort   int           `env:"RELAY_METRICS_PORT" envDefault:"9102"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// Business rules
	PeriodTimezone   string        `env:"PERIOD_TIMEZONE" envDefault:"Asia/Bangkok"`
	SubmitRateLimit  int           `env:"SUBMIT_RATE_LIMIT" envDefault:"60"`
	SubmitRateWindow time.Duration `env:"SUBMIT_RATE_WINDOW" envDefault:"1m"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure or unusable configuration.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass the secret checks (local dev only).
func (c *Config) Validate() error {
	if _, err := c.PeriodLocation(); err != nil {
		return err
	}
	if c.SubmitRateLimit <= 0 {
		return fmt.Errorf("SUBMIT_RATE_LIMIT must be positive")
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive")
	}
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// PeriodLocation is the zone period boundaries are computed in.
func (c *Config) PeriodLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.PeriodTimezone)
	if err != nil {
		return nil, fmt.Errorf("PERIOD_TIMEZONE %q: %w", c.PeriodTimezone, err)
	}
	return loc, nil
}
