package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_ENV"` specify the environment variable name.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"` // development, staging, production
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Listings   ListingConfig
	Render     RenderConfig
	Wizard     WizardConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
}

type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	DBName   string `envconfig:"POSTGRES_DBNAME" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// RedisConfig is optional: an empty URL disables the template cache.
type RedisConfig struct {
	URL              string        `envconfig:"REDIS_URL"`
	TemplateCacheTTL time.Duration `envconfig:"TEMPLATE_CACHE_TTL" default:"5m"`
}

type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
}

type ListingConfig struct {
	ExpiryDays int `envconfig:"LISTING_EXPIRY_DAYS" default:"30"`
}

// RenderConfig controls how detail and review views format values.
type RenderConfig struct {
	Language         string `envconfig:"RENDER_LANGUAGE" default:"en"`
	Currency         string `envconfig:"RENDER_CURRENCY" default:"USD"`
	DateLayout       string `envconfig:"RENDER_DATE_LAYOUT" default:"Jan 2, 2006"`
	DateTimeLayout   string `envconfig:"RENDER_DATETIME_LAYOUT" default:"Jan 2, 2006 15:04"`
	Timezone         string `envconfig:"RENDER_TIMEZONE" default:"UTC"`
	PlaceholderImage string `envconfig:"PLACEHOLDER_IMAGE_URL" default:"https://via.placeholder.com/800x600?text=No+Image"`
}

type WizardConfig struct {
	SessionTTL    time.Duration `envconfig:"WIZARD_SESSION_TTL" default:"30m"`
	SweepInterval time.Duration `envconfig:"WIZARD_SWEEP_INTERVAL" default:"1m"`
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if cfg.Listings.ExpiryDays <= 0 {
		return nil, fmt.Errorf("LISTING_EXPIRY_DAYS must be positive, got %d", cfg.Listings.ExpiryDays)
	}
	if _, err := time.LoadLocation(cfg.Render.Timezone); err != nil {
		return nil, fmt.Errorf("invalid RENDER_TIMEZONE %q: %w", cfg.Render.Timezone, err)
	}
	return &cfg, nil
}

// Location returns the render timezone; Load has already validated it.
func (rc *RenderConfig) Location() *time.Location {
	loc, err := time.LoadLocation(rc.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
