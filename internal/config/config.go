package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"stratboard"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	ServerHost string `env:"SERVER_HOST" envDefault:"localhost"`

	// Bearer token verification
	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER"`

	// Websocket origins allowed to connect; empty allows any
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// Room engine tuning
	CursorTimeout    time.Duration `env:"CURSOR_TIMEOUT" envDefault:"5s"`
	CursorThrottle   time.Duration `env:"CURSOR_THROTTLE" envDefault:"50ms"`
	RoomGracePeriod  time.Duration `env:"ROOM_GRACE_PERIOD" envDefault:"10s"`
	CleanupInterval  time.Duration `env:"CLEANUP_INTERVAL" envDefault:"30s"`
	MaxOperatorSlots int           `env:"MAX_OPERATOR_SLOTS" envDefault:"10"`
	OutboxSize       int           `env:"OUTBOX_SIZE" envDefault:"256"`

	// Observability
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"text"`
	TracingEnabled bool   `env:"TRACING_ENABLED" envDefault:"true"`
	JaegerEndpoint string `env:"JAEGER_ENDPOINT" envDefault:"http://localhost:14268/api/traces"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.CursorTimeout <= 0 {
		return fmt.Errorf("CURSOR_TIMEOUT must be positive")
	}
	if c.CursorThrottle < 0 {
		return fmt.Errorf("CURSOR_THROTTLE must not be negative")
	}
	if c.RoomGracePeriod < 0 {
		return fmt.Errorf("ROOM_GRACE_PERIOD must not be negative")
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive")
	}
	if c.MaxOperatorSlots <= 0 {
		return fmt.Errorf("MAX_OPERATOR_SLOTS must be positive")
	}
	if c.OutboxSize <= 0 {
		return fmt.Errorf("OUTBOX_SIZE must be positive")
	}
	return nil
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.ServerHost, c.ServerPort)
}
