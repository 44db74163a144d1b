package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const devJWTSecret = "default_super_secret_key"

type DatabaseOptions struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"postgres"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN renders the options as a postgres URL
func (d DatabaseOptions) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type StorageOptions struct {
	Root       string        `env:"STORAGE_ROOT" envDefault:"./uploads"`
	SigningKey string        `env:"STORAGE_SIGNING_KEY"`
	PublicURL  string        `env:"STORAGE_PUBLIC_URL" envDefault:"http://localhost:8080"`
	URLTTL     time.Duration `env:"STORAGE_URL_TTL" envDefault:"15m"`
}

type Config struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	GinMode     string   `env:"GIN_MODE" envDefault:"debug"`
	JWTSecret   string   `env:"JWT_SECRET"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://127.0.0.1:5173"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string   `env:"LOG_FORMAT" envDefault:"text"`
	MetricsPath string   `env:"METRICS_PATH" envDefault:"/metrics"`
	Database    DatabaseOptions
	Storage     StorageOptions
}

// IsRelease reports whether gin runs in release mode
func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}

// Load reads the given env files (missing ones are skipped) and parses the environment.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finalize() error {
	if c.JWTSecret == "" {
		if c.IsRelease() {
			return errors.New("JWT_SECRET environment variable is required in release mode")
		}
		c.JWTSecret = devJWTSecret
	}
	if c.Storage.SigningKey == "" {
		c.Storage.SigningKey = c.JWTSecret
	}
	if c.Storage.URLTTL <= 0 {
		return fmt.Errorf("STORAGE_URL_TTL must be positive, got %s", c.Storage.URLTTL)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be 'text' or 'json', got '%s'", c.LogFormat)
	}
	return nil
}
