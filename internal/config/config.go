// Package config handles application configuration from environment
// variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Schedule timezones must resolve on hosts without zoneinfo.

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string

	EventsURL       string
	EventURLBase    string
	PhotoBaseURL    string
	PhotoCollection string

	Schedule         string
	Timezone         string
	DisplayUTCOffset int

	SendInterval time.Duration
	FetchTimeout time.Duration
	MaxEvents    int

	ExcludeKeywords []string
}

// fileConfig mirrors Config for the YAML file. The bot token is never read
// from disk.
type fileConfig struct {
	DatabasePath     string   `yaml:"database_path"`
	LogLevel         string   `yaml:"log_level"`
	EventsURL        string   `yaml:"events_url"`
	EventURLBase     string   `yaml:"event_url_base"`
	PhotoBaseURL     string   `yaml:"photo_base_url"`
	PhotoCollection  string   `yaml:"photo_collection"`
	Schedule         string   `yaml:"schedule"`
	Timezone         string   `yaml:"timezone"`
	DisplayUTCOffset *int     `yaml:"display_utc_offset"`
	SendInterval     string   `yaml:"send_interval"`
	FetchTimeout     string   `yaml:"fetch_timeout"`
	MaxEvents        *int     `yaml:"max_events"`
	ExcludeKeywords  []string `yaml:"exclude_keywords"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		DatabasePath:     "./data/bot.db",
		LogLevel:         "info",
		EventsURL:        "https://api.example.org/v1/events",
		EventURLBase:     "https://campus.example.org/event/",
		PhotoBaseURL:     "https://cdn.example.org/event-photos",
		PhotoCollection:  "campus",
		Schedule:         "0 17 * * 0",
		Timezone:         "America/Los_Angeles",
		DisplayUTCOffset: -7,
		SendInterval:     time.Second,
		FetchTimeout:     30 * time.Second,
	}
}

// Load builds the configuration from defaults, the YAML file at path (when
// path is not empty) and environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that can be checked without network access.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err))
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("invalid schedule %q: %w", c.Schedule, err))
	}
	if c.DisplayUTCOffset < -12 || c.DisplayUTCOffset > 14 {
		errs = append(errs, fmt.Errorf("display UTC offset %d out of range [-12, 14]", c.DisplayUTCOffset))
	}
	if c.SendInterval < 0 {
		errs = append(errs, fmt.Errorf("send interval must not be negative"))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch timeout must be positive"))
	}
	if c.MaxEvents < 0 {
		errs = append(errs, fmt.Errorf("max events must not be negative"))
	}
	if c.EventsURL == "" {
		errs = append(errs, fmt.Errorf("events URL is required"))
	}
	return errors.Join(errs...)
}

// Location returns the timezone of the weekly schedule.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// DisplayZone returns the fixed zone used for displayed event times.
func (c *Config) DisplayZone() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.DisplayUTCOffset), c.DisplayUTCOffset*3600)
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.DatabasePath, fc.DatabasePath)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.EventsURL, fc.EventsURL)
	setString(&c.EventURLBase, fc.EventURLBase)
	setString(&c.PhotoBaseURL, fc.PhotoBaseURL)
	setString(&c.PhotoCollection, fc.PhotoCollection)
	setString(&c.Schedule, fc.Schedule)
	setString(&c.Timezone, fc.Timezone)
	if fc.DisplayUTCOffset != nil {
		c.DisplayUTCOffset = *fc.DisplayUTCOffset
	}
	if fc.MaxEvents != nil {
		c.MaxEvents = *fc.MaxEvents
	}
	if fc.ExcludeKeywords != nil {
		c.ExcludeKeywords = fc.ExcludeKeywords
	}
	if err := setDuration(&c.SendInterval, "send_interval", fc.SendInterval); err != nil {
		return err
	}
	return setDuration(&c.FetchTimeout, "fetch_timeout", fc.FetchTimeout)
}

func (c *Config) applyEnv() error {
	c.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")

	setString(&c.DatabasePath, os.Getenv("DATABASE_PATH"))
	setString(&c.LogLevel, os.Getenv("LOG_LEVEL"))
	setString(&c.EventsURL, os.Getenv("EVENTS_URL"))
	setString(&c.EventURLBase, os.Getenv("EVENT_URL_BASE"))
	setString(&c.PhotoBaseURL, os.Getenv("PHOTO_BASE_URL"))
	setString(&c.PhotoCollection, os.Getenv("PHOTO_COLLECTION"))
	setString(&c.Schedule, os.Getenv("SCHEDULE"))
	setString(&c.Timezone, os.Getenv("TIMEZONE"))

	if raw := os.Getenv("DISPLAY_UTC_OFFSET"); raw != "" {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UTC_OFFSET %q: %w", raw, err)
		}
		c.DisplayUTCOffset = v
	}
	if raw := os.Getenv("MAX_EVENTS"); raw != "" {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid MAX_EVENTS %q: %w", raw, err)
		}
		c.MaxEvents = v
	}
	if err := setDuration(&c.SendInterval, "SEND_INTERVAL", os.Getenv("SEND_INTERVAL")); err != nil {
		return err
	}
	if err := setDuration(&c.FetchTimeout, "FETCH_TIMEOUT", os.Getenv("FETCH_TIMEOUT")); err != nil {
		return err
	}

	if raw := os.Getenv("EXCLUDE_KEYWORDS"); raw != "" {
		var words []string
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				words = append(words, s)
			}
		}
		c.ExcludeKeywords = words
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	*dst = d
	return nil
}
