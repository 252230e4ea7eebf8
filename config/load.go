package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// envMappings maps flat environment names to koanf paths. Unlisted variables
// are ignored.
var envMappings = map[string]string{
	"port":                "server.port",
	"static_dir":          "server.static_dir",
	"cors_origins":        "server.cors_origins",
	"shutdown_timeout":    "server.shutdown_timeout",
	"backfill_every":      "server.backfill_every",
	"db_driver":           "database.driver",
	"db_path":             "database.path",
	"database_url":        "database.url",
	"minio_endpoint":      "storage.endpoint",
	"minio_access_key":    "storage.access_key",
	"minio_secret_key":    "storage.secret_key",
	"minio_use_ssl":       "storage.use_ssl",
	"storage_public_url":  "storage.public_url",
	"jwt_secret":          "auth.jwt_secret",
	"token_ttl":           "auth.token_ttl",
	"code_ttl":            "auth.code_ttl",
	"youtube_api_key":     "youtube.api_key",
	"youtube_timeout":     "youtube.timeout",
	"redis_url":           "redis.url",
	"smtp_host":           "smtp.host",
	"smtp_port":           "smtp.port",
	"smtp_username":       "smtp.username",
	"smtp_password":       "smtp.password",
	"smtp_from":           "smtp.from",
	"log_level":           "logging.level",
	"log_format":          "logging.format",
	"rate_limit_requests": "rate_limit.requests",
	"rate_limit_auth":     "rate_limit.auth_requests",
	"rate_limit_window":   "rate_limit.window",
	"rate_limit_disabled": "rate_limit.disabled",
	"ffprobe_path":        "probe.ffprobe_path",
	"probe_timeout":       "probe.timeout",
}

var sliceConfigPaths = []string{"server.cors_origins"}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load reads .env (if present), then layers defaults, the YAML file and the
// environment, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// processSliceFields splits comma-separated env values into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}
