/*
Package config loads and validates the server configuration.

PURPOSE:
  One YAML file describes the whole deployment: HTTP listener, database
  location, workflow knobs, notification relays, and the calendar
  backend. Load fills in defaults for anything omitted so a minimal file
  (or none at all) still yields a runnable server.

USAGE:
  cfg, err := config.Load("vacation.yaml")

SEE ALSO:
  - cmd/server/main.go: wiring the loaded config into components
*/
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can say "30s" or "5m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML accepts Go duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("config: duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration back in Go syntax.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func seconds(n int) Duration { return Duration{time.Duration(n) * time.Second} }
func minutes(n int) Duration { return Duration{time.Duration(n) * time.Minute} }
func hours(n int) Duration   { return Duration{time.Duration(n) * time.Hour} }

// Config is the full server configuration tree.
type Config struct {
	Listen       string         `yaml:"listen"`
	DatabasePath string         `yaml:"database_path"`
	LogLevel     string         `yaml:"log_level"`
	Auth         AuthConfig     `yaml:"auth"`
	Workflow     WorkflowConfig `yaml:"workflow"`
	SMTP         SMTPConfig     `yaml:"smtp"`
	Calendar     CalendarConfig `yaml:"calendar"`
	Redis        RedisConfig    `yaml:"redis"`
	Jobs         JobsConfig     `yaml:"jobs"`
}

// AuthConfig controls bearer-token verification.
type AuthConfig struct {
	JWTSecret string   `yaml:"jwt_secret"`
	TokenTTL  Duration `yaml:"token_ttl"`
}

// WorkflowConfig holds the request-processing knobs.
type WorkflowConfig struct {
	MinAdvanceNoticeDays int      `yaml:"min_advance_notice_days"`
	EnforceBalance       bool     `yaml:"enforce_balance"`
	LockTimeout          Duration `yaml:"lock_timeout"`
	RateLimit            int      `yaml:"rate_limit"`
	RateWindow           Duration `yaml:"rate_window"`
}

// SMTPConfig describes the outbound mail relay. Empty Host disables mail.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// CalendarConfig selects the calendar backend.
//
// Mode is one of "none", "ics", or "google".
type CalendarConfig struct {
	Mode       string `yaml:"mode"`
	ICSPath    string `yaml:"ics_path"`
	CalendarID string `yaml:"calendar_id"`
	TokenFile  string `yaml:"token_file"`
}

// RedisConfig points at the shared limiter backend. Empty Addr selects
// the in-process limiter instead.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JobsConfig holds background maintenance schedules (cron syntax).
type JobsConfig struct {
	ReconcileSchedule string   `yaml:"reconcile_schedule"`
	RosterTTL         Duration `yaml:"roster_ttl"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Listen:       ":8080",
		DatabasePath: "./vacation.db",
		LogLevel:     "info",
		Auth: AuthConfig{
			TokenTTL: hours(24),
		},
		Workflow: WorkflowConfig{
			MinAdvanceNoticeDays: 0,
			EnforceBalance:       true,
			LockTimeout:          seconds(10),
			RateLimit:            10,
			RateWindow:           minutes(1),
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Calendar: CalendarConfig{
			Mode:    "none",
			ICSPath: "./vacation.ics",
		},
		Jobs: JobsConfig{
			ReconcileSchedule: "0 * * * *",
			RosterTTL:         minutes(5),
		},
	}
}

// Load reads the file at path over the defaults. A missing file is not an
// error: defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration back to path. Used to bootstrap a
// commented starting point for new deployments.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (c Config) validate() error {
	switch c.Calendar.Mode {
	case "none", "ics", "google":
	default:
		return fmt.Errorf("config: unknown calendar mode %q (want none, ics, or google)", c.Calendar.Mode)
	}
	if c.Calendar.Mode == "google" && c.Calendar.CalendarID == "" {
		return fmt.Errorf("config: calendar mode google requires calendar_id")
	}
	if c.Workflow.RateLimit < 0 {
		return fmt.Errorf("config: rate_limit must not be negative")
	}
	if c.Workflow.MinAdvanceNoticeDays < 0 {
		return fmt.Errorf("config: min_advance_notice_days must not be negative")
	}
	return nil
}
