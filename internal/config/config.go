// Package config loads runtime settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable pointing at the YAML file.
const FileEnv = "CALSYNC_CONFIG"

type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

type OutlookConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Tenant       string `yaml:"tenant"` // default: common
	RedirectURL  string `yaml:"redirect_url"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite3 | pgx
	URL    string `yaml:"url"`    // file path for sqlite3, DSN for pgx
}

type ServerConfig struct {
	ListenAddr         string  `yaml:"listen_addr"`
	AuthSecret         string  `yaml:"auth_secret"` // HS256 key for caller tokens
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`
}

type Config struct {
	LogLevel    string         `yaml:"log_level"`
	TimeZone    string         `yaml:"time_zone"`
	HTTPTimeout time.Duration  `yaml:"http_timeout"`
	Database    DatabaseConfig `yaml:"database"`
	Google      GoogleConfig   `yaml:"google"`
	Outlook     OutlookConfig  `yaml:"outlook"`
	Server      ServerConfig   `yaml:"server"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		LogLevel:    "info",
		TimeZone:    "UTC",
		HTTPTimeout: 30 * time.Second,
		Database: DatabaseConfig{
			Driver: "sqlite3",
			URL:    filepath.Join(xdg.DataHome, "calsync", "calsync.db"),
		},
		Server: ServerConfig{
			ListenAddr:         ":8080",
			RateLimitPerSecond: 5,
			RateLimitBurst:     10,
		},
	}
}

// Load builds the configuration from defaults, the file named by
// CALSYNC_CONFIG (if any), and the environment.
func Load() (Config, error) {
	c := Defaults()
	if path := os.Getenv(FileEnv); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str("LOG_LEVEL", &c.LogLevel)
	str("PRIMARY_TIMEZONE", &c.TimeZone)
	str("DATABASE_DRIVER", &c.Database.Driver)
	str("DATABASE_URL", &c.Database.URL)
	str("GOOGLE_CLIENT_ID", &c.Google.ClientID)
	str("GOOGLE_CLIENT_SECRET", &c.Google.ClientSecret)
	str("GOOGLE_REDIRECT_URL", &c.Google.RedirectURL)
	str("OUTLOOK_CLIENT_ID", &c.Outlook.ClientID)
	str("OUTLOOK_CLIENT_SECRET", &c.Outlook.ClientSecret)
	str("OUTLOOK_TENANT", &c.Outlook.Tenant)
	str("OUTLOOK_REDIRECT_URL", &c.Outlook.RedirectURL)
	str("LISTEN_ADDR", &c.Server.ListenAddr)
	str("AUTH_SECRET", &c.Server.AuthSecret)

	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_TIMEOUT %q: %w", v, err)
		}
		c.HTTPTimeout = d
	}
	if v := os.Getenv("RATE_LIMIT_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_PER_SECOND %q: %w", v, err)
		}
		c.Server.RateLimitPerSecond = f
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_BURST %q: %w", v, err)
		}
		c.Server.RateLimitBurst = n
	}
	return nil
}

// Validate checks values that would otherwise fail deep inside a sync.
func (c Config) Validate() error {
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", c.TimeZone, err)
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("http timeout must be positive")
	}
	switch c.Database.Driver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		return errors.New("database url is required")
	}
	return nil
}

// Location returns the configured zone. Call after Validate.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
