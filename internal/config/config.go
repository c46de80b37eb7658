package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	appLog "webinarsched/internal/log"
	"webinarsched/internal/schedule"
)

// NOTE: This file provides the configuration model and YAML load/save,
// including first-run config creation with 0600 permissions.

// DisplayConfig holds the default query used for "next dates" output.
type DisplayConfig struct {
	// Limit is the number of distinct dates shown.
	Limit int `yaml:"limit" json:"limit"`
	// DateFormat, TimeFormat and RawTimeFormat use PHP date() notation,
	// e.g. "l, F jS", "g:ia " and "H:i".
	DateFormat    string `yaml:"date_format" json:"date_format"`
	TimeFormat    string `yaml:"time_format" json:"time_format"`
	RawTimeFormat string `yaml:"raw_time_format" json:"raw_time_format"`
	// ZoneLabel is appended verbatim to display times. It is a label only
	// and does not follow Timezone; change both together.
	ZoneLabel string `yaml:"zone_label" json:"zone_label"`
}

// FeedConfig controls the iCalendar export.
type FeedConfig struct {
	Title string `yaml:"title" json:"title"`
	// SessionLength is a Go duration ("1h", "45m") used as DTEND - DTSTART.
	SessionLength string `yaml:"session_length" json:"session_length"`
	// RegisterURL is attached to exported events when set.
	RegisterURL string `yaml:"register_url,omitempty" json:"register_url,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone the schedule is evaluated in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Mode is one of "standard", "rolling", "evergreen".
	Mode string `yaml:"mode" json:"mode"`

	// OptinLeway is the ISO-8601 registration grace window, e.g. "PT0H05M".
	OptinLeway string `yaml:"optin_leway" json:"optin_leway"`

	// RefreshCron is a standard 5-field cron spec for re-resolving the
	// schedule. Evergreen anchors move with the clock, so keep it short.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Display DisplayConfig `yaml:"display" json:"display"`
	Feed    FeedConfig    `yaml:"feed" json:"feed"`

	// Schedule is the raw template; see schedule.Template for key forms.
	Schedule schedule.Template `yaml:"schedule" json:"-"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen        = "127.0.0.1:8080"
	defaultRefreshCron   = "*/5 * * * *"
	defaultLogLevel      = "info"
	defaultFeedTitle     = "Webinar"
	defaultSessionLength = "1h"
)

// DefaultConfig returns an in-memory default configuration with a sample
// evergreen template.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    schedule.DefaultTimezone,
		Mode:        "evergreen",
		OptinLeway:  schedule.DefaultOptinLeway,
		RefreshCron: defaultRefreshCron,
		LogLevel:    defaultLogLevel,
		Display: DisplayConfig{
			Limit:         schedule.DefaultLimit,
			DateFormat:    schedule.DefaultDateFormat,
			TimeFormat:    schedule.DefaultTimeFormat,
			RawTimeFormat: schedule.DefaultRawTimeFormat,
			ZoneLabel:     schedule.DefaultZoneLabel,
		},
		Feed: FeedConfig{
			Title:         defaultFeedTitle,
			SessionLength: defaultSessionLength,
		},
		Schedule: schedule.Template{
			{Key: "0", Times: []string{"08:00", "09:00"}},
			{Key: "3", Times: []string{"14:00"}},
		},
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave. Invalid timezone or leway values are left for schedule.New to
// report; Validate catches the rest.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = schedule.DefaultTimezone
	}
	if c.Mode == "" {
		c.Mode = "standard"
	}
	if c.OptinLeway == "" {
		c.OptinLeway = schedule.DefaultOptinLeway
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}

	d := &c.Display
	if d.Limit <= 0 {
		d.Limit = schedule.DefaultLimit
	}
	if d.DateFormat == "" {
		d.DateFormat = schedule.DefaultDateFormat
	}
	if d.TimeFormat == "" {
		d.TimeFormat = schedule.DefaultTimeFormat
	}
	if d.RawTimeFormat == "" {
		d.RawTimeFormat = schedule.DefaultRawTimeFormat
	}
	// An empty ZoneLabel is a valid choice and is kept.

	if c.Feed.Title == "" {
		c.Feed.Title = defaultFeedTitle
	}
	if c.Feed.SessionLength == "" {
		c.Feed.SessionLength = defaultSessionLength
	}
}

// Validate rejects values that have no sensible fallback.
func (c *Config) Validate() error {
	var errs []error
	if _, err := schedule.ParseMode(c.Mode); err != nil {
		errs = append(errs, fmt.Errorf("mode: %w", err))
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
	}
	if d, err := time.ParseDuration(c.Feed.SessionLength); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("feed.session_length %q: must be a positive duration", c.Feed.SessionLength))
	}
	return errors.Join(errs...)
}

// SessionLength returns the parsed feed session length.
func (c *Config) SessionLength() time.Duration {
	d, err := time.ParseDuration(c.Feed.SessionLength)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(defaultSessionLength)
	}
	return d
}

// Query returns the configured default display query.
func (c *Config) Query() schedule.Query {
	return schedule.Query{
		Limit:         c.Display.Limit,
		DateFormat:    c.Display.DateFormat,
		TimeFormat:    c.Display.TimeFormat,
		RawTimeFormat: c.Display.RawTimeFormat,
		ZoneLabel:     c.Display.ZoneLabel,
	}
}

// NewSchedule builds an unloaded Schedule from the config. Timezone or
// leway values that fell back to defaults are logged, not returned.
func (c *Config) NewSchedule(clock schedule.Clock) (*schedule.Schedule, error) {
	mode, err := schedule.ParseMode(c.Mode)
	if err != nil {
		return nil, err
	}
	s, warn := schedule.New(schedule.Options{
		Mode:       mode,
		Timezone:   c.Timezone,
		OptinLeway: c.OptinLeway,
		Clock:      clock,
	})
	if warn != nil {
		appLog.Warn("config value replaced by default", "err", warn)
	}
	return s, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	// ZoneLabel may be set to "" on purpose, so its default is preloaded
	// rather than filled in by Normalize.
	cfg := Config{Display: DisplayConfig{ZoneLabel: schedule.DefaultZoneLabel}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".webinarsched-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
