package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// RemoteConfig describes the calendar/mail GraphQL service the dialog talks to.
type RemoteConfig struct {
	// Endpoint is the GraphQL URL, e.g. "https://api.example.com/graphql".
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Token is sent as a bearer token when non-empty.
	Token string `yaml:"token" json:"-"`
	// TimeoutSeconds bounds every remote request.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Timeout returns TimeoutSeconds as a duration.
func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// AgendaConfig controls the cached event list that backs the refresh callback.
type AgendaConfig struct {
	// Refresh is a cron-style schedule string (e.g. "*/15 * * * *").
	Refresh string `yaml:"refresh" json:"refresh"`
	// HorizonDays is the number of future days kept in the agenda.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`
	// BackfillDays is the number of past days kept in the agenda.
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`
}

// PreviewConfig controls attachment preview capture.
type PreviewConfig struct {
	CacheDir       string `yaml:"cache_dir" json:"cache_dir"`
	Width          int    `yaml:"width" json:"width"`
	Height         int    `yaml:"height" json:"height"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// ImportConfig controls fetching of calendar attachments for import.
type ImportConfig struct {
	// CacheDir holds the conditional-request cache of fetched .ics files.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone the form's wall-clock fields are expressed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DateLayout is the Go layout of the locale date shown in the form
	// (month/day/year by default).
	DateLayout string `yaml:"date_layout" json:"date_layout"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogFormat is "console" or "json".
	LogFormat string `yaml:"log_format" json:"log_format"`

	// DefaultReminderMinutes is used for every sharing user when a new event
	// is created and the message tag has no notification settings.
	DefaultReminderMinutes int `yaml:"default_reminder_minutes" json:"default_reminder_minutes"`

	Remote  RemoteConfig  `yaml:"remote" json:"remote"`
	Agenda  AgendaConfig  `yaml:"agenda" json:"agenda"`
	Preview PreviewConfig `yaml:"preview" json:"preview"`
	Import  ImportConfig  `yaml:"import" json:"import"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen     = "127.0.0.1:8080"
	defaultDateLayout = "1/2/2006"
	defaultRefresh    = "*/15 * * * *"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.DateLayout == "" {
		c.DateLayout = defaultDateLayout
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = "info"
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		c.LogFormat = "console"
	}
	if c.DefaultReminderMinutes <= 0 {
		c.DefaultReminderMinutes = 10
	}

	if c.Remote.TimeoutSeconds <= 0 {
		c.Remote.TimeoutSeconds = 15
	}

	if c.Agenda.Refresh == "" {
		c.Agenda.Refresh = defaultRefresh
	}
	if c.Agenda.HorizonDays <= 0 {
		c.Agenda.HorizonDays = 14
	}
	if c.Agenda.BackfillDays < 0 {
		c.Agenda.BackfillDays = 0
	}

	if c.Preview.CacheDir == "" {
		c.Preview.CacheDir = "./cache/previews"
	}
	if c.Preview.Width <= 0 {
		c.Preview.Width = 816
	}
	if c.Preview.Height <= 0 {
		c.Preview.Height = 1056
	}
	if c.Preview.TimeoutSeconds <= 0 {
		c.Preview.TimeoutSeconds = 30
	}

	if c.Import.CacheDir == "" {
		c.Import.CacheDir = "./cache/ics"
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
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
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
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

	tmp, err := os.CreateTemp(dir, ".evdialog-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
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
