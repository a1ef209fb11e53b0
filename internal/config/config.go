// Package config loads runtime settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces environment overrides, e.g. SCHEDULEAI_API_BASE_URL.
const EnvPrefix = "SCHEDULEAI_"

const maxConfigFileSize = 1 << 20

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken    string        `koanf:"telegram_token"`
	APIBaseURL       string        `koanf:"api_base_url"`
	DatabaseURL      string        `koanf:"database_url"`
	Timezone         string        `koanf:"timezone"`
	HTTPTimeout      time.Duration `koanf:"http_timeout"`
	ReminderInterval time.Duration `koanf:"reminder_interval"`
	ReminderRate     float64       `koanf:"reminder_rate"`
	// DigestTime is an optional HH:MM for a daily morning summary.
	DigestTime       string        `koanf:"digest_time"`
	UpcomingLimit    int           `koanf:"upcoming_limit"`
	LogLevel         string        `koanf:"log_level"`
	LogFormat        string        `koanf:"log_format"`
	MetricsAddr      string        `koanf:"metrics_addr"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		APIBaseURL:       "http://localhost:8000",
		DatabaseURL:      "scheduleai.db",
		Timezone:         "Local",
		HTTPTimeout:      15 * time.Second,
		ReminderInterval: 5 * time.Hour,
		ReminderRate:     20,
		UpcomingLimit:    3,
		LogLevel:         "info",
		LogFormat:        "console",
	}
}

// Load reads configuration. Precedence, highest first:
//
//  1. SCHEDULEAI_* environment variables
//  2. TELEGRAM_TOKEN and DATABASE_URL
//  3. the YAML file at path, when path is not empty
//  4. Default()
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	bare := map[string]string{
		"TELEGRAM_TOKEN": "telegram_token",
		"DATABASE_URL":   "database_url",
	}
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return bare[s]
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.APIBaseURL = strings.TrimSpace(cfg.APIBaseURL)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}

// Validate checks everything except the Telegram token, which only the bot
// needs.
func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_base_url %q must be an http(s) URL", c.APIBaseURL))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http_timeout must be positive"))
	}
	if c.ReminderInterval < 0 {
		errs = append(errs, fmt.Errorf("reminder_interval cannot be negative"))
	}
	if c.UpcomingLimit <= 0 {
		errs = append(errs, fmt.Errorf("upcoming_limit must be positive"))
	}
	if c.DigestTime != "" {
		if _, err := time.Parse("15:04", c.DigestTime); err != nil {
			errs = append(errs, fmt.Errorf("digest_time %q must be HH:MM", c.DigestTime))
		}
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be console or json"))
	}
	return errors.Join(errs...)
}

// RequireTelegram reports a missing bot token.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

// Location resolves Timezone. "Local" and "" mean the host zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
