package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env"
)

// Config represents the global ~/.comfytui/config.toml, with COMFY_*
// environment variables taking precedence over file values.
type Config struct {
	APIBaseURL   string `toml:"api_base_url" env:"COMFY_API_BASE_URL"`
	RealtimeURL  string `toml:"realtime_url" env:"COMFY_REALTIME_URL"`
	AuthToken    string `toml:"auth_token" env:"COMFY_AUTH_TOKEN"`
	AgentID      string `toml:"agent_id" env:"COMFY_AGENT_ID"`
	AgentName    string `toml:"agent_name" env:"COMFY_AGENT_NAME"`
	MasterSecret string `toml:"master_secret" env:"COMFY_MASTER_SECRET"`

	// DisableNotifications turns desktop popups off for shared machines.
	DisableNotifications bool `toml:"disable_notifications" env:"COMFY_DISABLE_NOTIFICATIONS"`

	// Intervals in seconds; zero means use the default.
	PollIntervalSec      int `toml:"poll_interval_sec" env:"COMFY_POLL_INTERVAL_SEC"`
	PollGraceSec         int `toml:"poll_grace_sec" env:"COMFY_POLL_GRACE_SEC"`
	ReconcileIntervalSec int `toml:"reconcile_interval_sec" env:"COMFY_RECONCILE_INTERVAL_SEC"`
}

const (
	defaultPollInterval      = 5 * time.Second
	defaultPollGrace         = 10 * time.Second
	defaultReconcileInterval = 30 * time.Second
)

// Load reads config from the given path, then applies environment overrides.
// A missing file is not an error as long as the environment provides the
// required values.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the fields the console cannot run without are set.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url is required")
	}
	if c.RealtimeURL == "" {
		return fmt.Errorf("realtime_url is required")
	}
	if c.AuthToken == "" {
		return fmt.Errorf("auth_token is required")
	}
	if c.AgentID == "" {
		return fmt.Errorf("agent_id is required")
	}
	if c.MasterSecret == "" {
		return fmt.Errorf("master_secret is required")
	}
	return nil
}

// PollInterval returns the polling fallback tick interval.
func (c *Config) PollInterval() time.Duration {
	if c.PollIntervalSec > 0 {
		return time.Duration(c.PollIntervalSec) * time.Second
	}
	return defaultPollInterval
}

// PollGrace returns the delay between opening a chat and arming the poller.
func (c *Config) PollGrace() time.Duration {
	if c.PollGraceSec > 0 {
		return time.Duration(c.PollGraceSec) * time.Second
	}
	return defaultPollGrace
}

// ReconcileInterval returns the periodic reconciliation sweep interval.
func (c *Config) ReconcileInterval() time.Duration {
	if c.ReconcileIntervalSec > 0 {
		return time.Duration(c.ReconcileIntervalSec) * time.Second
	}
	return defaultReconcileInterval
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
