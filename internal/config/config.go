// Package config loads the dashboard client's settings from
// $HOME/.logdash/config.yaml with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"logdash/internal/dashboard"
	"logdash/internal/models"
	"logdash/internal/stream"
)

type Config struct {
	ServerURL       string        `yaml:"server_url"`
	Transport       string        `yaml:"transport"`
	StatsHours      int           `yaml:"stats_hours"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	LogType         string        `yaml:"log_type"`
	NoColor         bool          `yaml:"no_color"`
	path            string
}

func Default() *Config {
	return &Config{
		ServerURL:       "http://localhost:8080",
		Transport:       stream.KindSSE,
		StatsHours:      dashboard.DefaultStatsWindow,
		RefreshInterval: dashboard.DefaultRefreshInterval,
		LogType:         string(models.LogTypeAccess),
	}
}

// DefaultPath is where Load and Save look when no path is given.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".logdash", "config.yaml"), nil
}

// Load reads cfgFile, falling back to defaults when it does not exist, and
// applies LOGDASH_* environment overrides.
func Load(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		cfgFile = p
	}

	cfg := Default()
	cfg.path = cfgFile

	data, err := os.ReadFile(cfgFile)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfgFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LOGDASH_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("LOGDASH_TRANSPORT"); v != "" {
		c.Transport = v
	}
	if v := os.Getenv("LOGDASH_STATS_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOGDASH_STATS_HOURS: %w", err)
		}
		c.StatsHours = hours
	}
	return nil
}

// Validate checks the values that would otherwise fail later, deep inside
// the dashboard.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url must not be empty")
	}
	if _, err := stream.New(c.Transport, c.ServerURL); err != nil {
		return err
	}
	if !dashboard.ValidWindow(c.StatsHours) {
		return fmt.Errorf("%w: stats_hours %d (choose one of %v)", dashboard.ErrInvalidWindow, c.StatsHours, dashboard.StatsWindows)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive, got %s", c.RefreshInterval)
	}
	if _, err := models.ParseLogType(c.LogType); err != nil {
		return err
	}
	return nil
}

// Path returns the file the config was loaded from or will be saved to.
func (c *Config) Path() string { return c.path }

func (c *Config) Save() error {
	if c.path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		c.path = p
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(c.path, data, 0600)
}
