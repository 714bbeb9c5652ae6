// Package config loads service configuration from a YAML file and
// PRODLENS_-prefixed environment variables, env taking precedence.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server      ServerConfig     `koanf:"server"`
	Storage     StorageConfig    `koanf:"storage"`
	Model       ModelConfig      `koanf:"model"`
	Throttle    ThrottleConfig   `koanf:"throttle"`
	Screenshots ScreenshotConfig `koanf:"screenshots"`
}

type ServerConfig struct {
	Port           int    `koanf:"port"`
	RequestTimeout string `koanf:"request_timeout"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // memory, sqlite
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type ModelConfig struct {
	BaseURL      string `koanf:"base_url"`
	APIKey       string `koanf:"api_key"`
	ModelID      string `koanf:"model_id"`
	StageTimeout string `koanf:"stage_timeout"`
}

// ThrottleConfig bounds trigger admission: a token bucket plus a daily
// request quota.
type ThrottleConfig struct {
	Burst         int     `koanf:"burst"`
	RatePerSecond float64 `koanf:"rate_per_second"`
	DailyQuota    int     `koanf:"daily_quota"`
}

type ScreenshotConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Bucket    string `koanf:"bucket"`
	UseSSL    bool   `koanf:"use_ssl"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from path (missing file is fine) and the
// environment, then applies defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Environment variables override file config:
	// PRODLENS_SERVER__PORT → server.port
	if err := k.Load(env.Provider("PRODLENS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "PRODLENS_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	setDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Model.APIKey = substituteEnvVars(cfg.Model.APIKey)
	cfg.Screenshots.AccessKey = substituteEnvVars(cfg.Screenshots.AccessKey)
	cfg.Screenshots.SecretKey = substituteEnvVars(cfg.Screenshots.SecretKey)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("server.request_timeout") {
		k.Set("server.request_timeout", "30s")
	}
	if !k.Exists("storage.type") {
		k.Set("storage.type", "memory")
	}
	if !k.Exists("model.model_id") {
		k.Set("model.model_id", "us.amazon.nova-lite-v1:0")
	}
	if !k.Exists("model.stage_timeout") {
		k.Set("model.stage_timeout", "300s")
	}
	if !k.Exists("throttle.burst") {
		k.Set("throttle.burst", 10)
	}
	if !k.Exists("throttle.rate_per_second") {
		k.Set("throttle.rate_per_second", 5.0)
	}
	if !k.Exists("throttle.daily_quota") {
		k.Set("throttle.daily_quota", 1000)
	}
}

func (c *Config) validate() error {
	switch c.Storage.Type {
	case "memory":
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required when storage.type is sqlite")
		}
	default:
		return fmt.Errorf("unknown storage.type %q", c.Storage.Type)
	}

	if c.Screenshots.Enabled {
		if c.Screenshots.Endpoint == "" || c.Screenshots.Bucket == "" {
			return fmt.Errorf("screenshots.endpoint and screenshots.bucket are required when screenshots.enabled is true")
		}
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
