// Package config loads process configuration from defaults, an optional YAML
// file, and COHABIT_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Log         LogConfig         `yaml:"log"`
	Session     SessionConfig     `yaml:"session"`
	Household   HouseholdConfig   `yaml:"household"`
	Task        TaskConfig        `yaml:"task"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// LoginRate is the number of login and register attempts allowed per
	// LoginWindow for a single client IP.
	LoginRate   int           `yaml:"login_rate"`
	LoginWindow time.Duration `yaml:"login_window"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

type SessionConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type HouseholdConfig struct {
	// FetchTimeout bounds the concurrent roster and pending-request reads
	// when building a household view.
	FetchTimeout       time.Duration `yaml:"fetch_timeout"`
	InviteCodeAttempts int           `yaml:"invite_code_attempts"`
}

type TaskConfig struct {
	// StrictUncomplete turns a missing completion record on uncomplete into
	// an error instead of skipping the XP reversal.
	StrictUncomplete bool `yaml:"strict_uncomplete"`
}

type MaintenanceConfig struct {
	SessionCleanupSchedule   string `yaml:"session_cleanup_schedule"`
	RateLimitCleanupSchedule string `yaml:"rate_limit_cleanup_schedule"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			LoginRate:    10,
			LoginWindow:  time.Minute,
		},
		Database: DatabaseConfig{
			Path: "cohabit.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Session: SessionConfig{
			TTL: 30 * 24 * time.Hour,
		},
		Household: HouseholdConfig{
			FetchTimeout:       5 * time.Second,
			InviteCodeAttempts: 1000,
		},
		Maintenance: MaintenanceConfig{
			SessionCleanupSchedule:   "@every 1h",
			RateLimitCleanupSchedule: "@every 10m",
		},
	}
}

// Load builds the configuration. An empty path falls back to COHABIT_CONFIG;
// a missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("COHABIT_CONFIG")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overrideFromEnv() error {
	if v := os.Getenv("COHABIT_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("COHABIT_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("COHABIT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("COHABIT_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("COHABIT_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("COHABIT_SESSION_TTL: %w", err)
		}
		c.Session.TTL = d
	}
	if v := os.Getenv("COHABIT_FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("COHABIT_FETCH_TIMEOUT: %w", err)
		}
		c.Household.FetchTimeout = d
	}
	if v := os.Getenv("COHABIT_STRICT_UNCOMPLETE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COHABIT_STRICT_UNCOMPLETE: %w", err)
		}
		c.Task.StrictUncomplete = b
	}
	return nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port == "" {
		problems = append(problems, "server.port is required")
	}
	if c.Database.Path == "" {
		problems = append(problems, "database.path is required")
	}
	if c.Session.TTL <= 0 {
		problems = append(problems, "session.ttl must be positive")
	}
	if c.Household.FetchTimeout <= 0 {
		problems = append(problems, "household.fetch_timeout must be positive")
	}
	if c.Household.InviteCodeAttempts < 1 {
		problems = append(problems, "household.invite_code_attempts must be at least 1")
	}
	if c.Server.LoginRate < 1 || c.Server.LoginWindow <= 0 {
		problems = append(problems, "server.login_rate and server.login_window must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
