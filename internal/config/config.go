package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port          string   `env:"PORT" envDefault:"8080"`
	StorageDriver string   `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string   `env:"DATABASE_URL"`
	JWTSecret     string   `env:"JWT_SECRET"`
	JWTIssuer     string   `env:"JWT_ISSUER" envDefault:"rewear-backend"`
	JWTTTLMinutes int      `env:"JWT_TTL_MINUTES" envDefault:"60"`
	SessionCookie string   `env:"SESSION_COOKIE" envDefault:"rewear_session"`
	CORSOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	StartingPoints int64 `env:"STARTING_POINTS" envDefault:"100"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"40"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	RedisURL string `env:"REDIS_URL"`
	NATSURL  string `env:"NATS_URL"`

	SendGridAPIKey  string `env:"SENDGRID_API_KEY"`
	EmailSender     string `env:"EMAIL_SENDER" envDefault:"no-reply@rewear.local"`
	EmailSenderName string `env:"EMAIL_SENDER_NAME" envDefault:"ReWear"`

	S3Bucket        string `env:"S3_BUCKET" envDefault:"item-images"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
	S3UsePathStyle  bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`
	AWSRegion       string `env:"AWS_REGION"`
	MaxUploadMB     int64  `env:"MAX_UPLOAD_MB" envDefault:"5"`
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	for _, proxy := range c.TrustedProxies {
		if _, err := netip.ParsePrefix(proxy); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(proxy); err != nil {
			return fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP or CIDR", proxy)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.JWTSecret = strings.TrimSpace(c.JWTSecret)
	c.CORSOrigins = trimAll(c.CORSOrigins)
	c.TrustedProxies = trimAll(c.TrustedProxies)
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.JWTTTLMinutes <= 0 {
		c.JWTTTLMinutes = 60
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = 5
	}
	if c.StartingPoints < 0 {
		c.StartingPoints = 0
	}
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// JWTTTL is the lifetime of issued session tokens.
func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLMinutes) * time.Minute
}

// MaxUploadBytes caps image uploads.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func trimAll(input []string) []string {
	var out []string
	for _, part := range input {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
