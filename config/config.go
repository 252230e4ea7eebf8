// Package config loads service configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"openstream/db"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Storage   StorageConfig   `koanf:"storage"`
	Auth      AuthConfig      `koanf:"auth"`
	YouTube   YouTubeConfig   `koanf:"youtube"`
	Redis     RedisConfig     `koanf:"redis"`
	SMTP      SMTPConfig      `koanf:"smtp"`
	Logging   LoggingConfig   `koanf:"logging"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Probe     ProbeConfig     `koanf:"probe"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	StaticDir       string        `koanf:"static_dir"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	BackfillEvery   time.Duration `koanf:"backfill_every"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
	URL    string `koanf:"url"`
}

type StorageConfig struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`
	PublicURL string `koanf:"public_url"`
}

type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
	CodeTTL   time.Duration `koanf:"code_ttl"`
}

type YouTubeConfig struct {
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

type RedisConfig struct {
	URL string `koanf:"url"`
}

type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type RateLimitConfig struct {
	Requests     int           `koanf:"requests"`
	AuthRequests int           `koanf:"auth_requests"`
	Window       time.Duration `koanf:"window"`
	Disabled     bool          `koanf:"disabled"`
}

type ProbeConfig struct {
	FFprobePath string        `koanf:"ffprobe_path"`
	Timeout     time.Duration `koanf:"timeout"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			StaticDir:       "./public",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 10 * time.Second,
			BackfillEvery:   15 * time.Minute,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "/data/openstream.db",
		},
		Storage: StorageConfig{
			Endpoint: "localhost:9000",
		},
		Auth: AuthConfig{
			TokenTTL: 7 * 24 * time.Hour,
			CodeTTL:  15 * time.Minute,
		},
		YouTube: YouTubeConfig{
			Timeout: 5 * time.Second,
		},
		SMTP: SMTPConfig{
			Port: 587,
			From: "no-reply@openstream.local",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Requests:     120,
			AuthRequests: 10,
			Window:       time.Minute,
		},
		Probe: ProbeConfig{
			FFprobePath: "ffprobe",
			Timeout:     20 * time.Second,
		},
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if d, _ := db.ParseDialect(c.Database.Driver); d == db.DialectPostgres {
		return c.Database.URL
	}
	return c.Database.Path
}

// Validate reports values that make the service unable to start.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	dialect, err := db.ParseDialect(c.Database.Driver)
	if err != nil {
		errs = append(errs, err)
	}
	if dialect == db.DialectPostgres && c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required for postgres"))
	}
	if dialect == db.DialectSQLite && c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required for sqlite"))
	}
	if c.RateLimit.Window <= 0 && !c.RateLimit.Disabled {
		errs = append(errs, errors.New("rate_limit.window must be positive"))
	}
	return errors.Join(errs...)
}

// Warnings lists missing settings that degrade the service without stopping it.
func (c *Config) Warnings() []string {
	var w []string
	if c.Auth.JWTSecret == "" {
		w = append(w, "JWT_SECRET is not set; tokens are signed with an ephemeral secret")
	}
	if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
		w = append(w, "MINIO_ACCESS_KEY or MINIO_SECRET_KEY is not set; uploads will fail")
	}
	if c.Storage.PublicURL == "" {
		w = append(w, "STORAGE_PUBLIC_URL is not set; object URLs are relative")
	}
	if c.YouTube.APIKey == "" {
		w = append(w, "YOUTUBE_API_KEY is not set; YouTube durations are unavailable")
	}
	if c.SMTP.Host == "" {
		w = append(w, "SMTP_HOST is not set; one-time codes are written to the log")
	}
	if strings.TrimSpace(c.Redis.URL) == "" {
		w = append(w, "REDIS_URL is not set; duration cache disabled")
	}
	return w
}
