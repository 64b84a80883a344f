package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"

	appLog "studycal/internal/log"
)

// NOTE: Load creates a default config on first run (0600) and applies
// STUDYCAL_* environment overrides on top of the YAML file.

const (
	StoreMemory = "memory"
	StoreBolt   = "bolt"
	StoreMongo  = "mongo"
)

// SubscriptionConfig is a remote .ics feed imported for one user.
type SubscriptionConfig struct {
	// ID is the stable calendar grouping id the feed is stored under.
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	URL      string `yaml:"url" json:"url"`
	Username string `yaml:"username" json:"username"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

type StoreConfig struct {
	// Driver is one of "bolt" (default), "mongo" or "memory".
	Driver        string `yaml:"driver" json:"driver"`
	Path          string `yaml:"path" json:"path"`
	MongoURI      string `yaml:"mongo_uri,omitempty" json:"mongo_uri,omitempty"`
	MongoDatabase string `yaml:"mongo_database,omitempty" json:"mongo_database,omitempty"`
}

type GoogleConfig struct {
	ClientID     string `yaml:"client_id,omitempty" json:"client_id,omitempty"`
	ClientSecret string `yaml:"client_secret,omitempty" json:"-"`
	RedirectURL  string `yaml:"redirect_url,omitempty" json:"redirect_url,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone every calendar-day comparison happens in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is the cron schedule for subscription refresh
	// (e.g. "*/15 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Store StoreConfig `yaml:"store" json:"store"`

	Subscriptions []SubscriptionConfig `yaml:"subscriptions" json:"subscriptions"`

	Google GoogleConfig `yaml:"google" json:"google"`

	// CacheDir holds downloaded subscription feeds.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// envOverrides are read with caarlos0/env. Empty values leave the file
// value alone.
type envOverrides struct {
	Listen             string `env:"STUDYCAL_LISTEN"`
	Timezone           string `env:"STUDYCAL_TIMEZONE"`
	LogLevel           string `env:"STUDYCAL_LOG_LEVEL"`
	StoreDriver        string `env:"STUDYCAL_STORE_DRIVER"`
	StorePath          string `env:"STUDYCAL_STORE_PATH"`
	MongoURI           string `env:"STUDYCAL_MONGO_URI"`
	GoogleClientID     string `env:"STUDYCAL_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"STUDYCAL_GOOGLE_CLIENT_SECRET"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        "127.0.0.1:8080",
		Timezone:      "UTC",
		RefreshCron:   "*/15 * * * *",
		LogLevel:      "info",
		Store:         StoreConfig{Driver: StoreBolt, Path: "./var/studycal.db"},
		Subscriptions: []SubscriptionConfig{},
		CacheDir:      "./var/ics-cache",
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	switch c.Store.Driver {
	case StoreBolt, StoreMongo, StoreMemory:
	default:
		c.Store.Driver = StoreBolt
	}
	if c.Store.Path == "" {
		c.Store.Path = d.Store.Path
	}
	if c.Subscriptions == nil {
		c.Subscriptions = []SubscriptionConfig{}
	}
	if c.CacheDir == "" {
		c.CacheDir = d.CacheDir
	}
}

// Validate reports settings that cannot work at all.
func (c *Config) Validate() error {
	if c.Store.Driver == StoreMongo && c.Store.MongoURI == "" {
		return errors.New("store.mongo_uri is required for the mongo driver")
	}
	seen := make(map[string]bool, len(c.Subscriptions))
	for i, s := range c.Subscriptions {
		if s.ID == "" || s.URL == "" || s.Username == "" {
			return fmt.Errorf("subscriptions[%d]: id, url and username are required", i)
		}
		if seen[s.Username+"/"+s.ID] {
			return fmt.Errorf("subscriptions[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.Username+"/"+s.ID] = true
	}
	return nil
}

// Location loads Timezone, falling back to time.Local when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("unknown timezone, using local time", err, "timezone", c.Timezone)
		return time.Local
	}
	return loc
}

// ApplyEnv overlays STUDYCAL_* environment variables.
func (c *Config) ApplyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Listen, o.Listen)
	set(&c.Timezone, o.Timezone)
	set(&c.LogLevel, o.LogLevel)
	set(&c.Store.Driver, o.StoreDriver)
	set(&c.Store.Path, o.StorePath)
	set(&c.Store.MongoURI, o.MongoURI)
	set(&c.Google.ClientID, o.GoogleClientID)
	set(&c.Google.ClientSecret, o.GoogleClientSecret)
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directory created as needed).
//   - Otherwise the YAML is read and defaults are filled in.
//   - Environment overrides are applied last; they are never written back.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
		appLog.Info("default config written", "path", path)
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
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

	tmp, err := os.CreateTemp(dir, ".studycal-config-*.tmp")
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

func (c *Config) Save(path string) error {
	return Save(path, c)
}
