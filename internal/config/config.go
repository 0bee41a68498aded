package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/m365ops/watchtower/internal/model"
)

// ConfigError is the aggregate of every missing or malformed configuration
// field found during validation. It is fatal at startup; the process never
// starts with an invalid configuration.
type ConfigError struct {
	Problems []string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

// Config is the typed root of the configuration document
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Log        LogConfig        `mapstructure:"log"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Slack      SlackConfig      `mapstructure:"slack"`
	Email      EmailConfig      `mapstructure:"email"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Bus        BusConfig        `mapstructure:"bus"`
	Reports    ReportsConfig    `mapstructure:"reports"`
}

// AppConfig identifies the running instance
type AppConfig struct {
	Name string `mapstructure:"name"`
}

// LogConfig controls logger construction
type LogConfig struct {
	// Level is one of: debug | info | warn | error. Default info.
	Level string `mapstructure:"level"`
}

// AlertingConfig controls the deduplication queue and the advisory rate cap
type AlertingConfig struct {
	// SuppressionPeriod is the dedup window in seconds. Required, > 0.
	SuppressionPeriod int `mapstructure:"suppression_period"`

	// MaxAlertsPerHour is an advisory cap; 0 disables the warning.
	MaxAlertsPerHour int `mapstructure:"max_alerts_per_hour"`

	// HistoryPath is the SQLite alert journal path; empty disables the journal.
	HistoryPath string `mapstructure:"history_path"`
}

// SlackConfig configures the webhook notification channel
type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`

	// Channels maps each severity level to a channel name. All four levels
	// must be present.
	Channels map[string]string `mapstructure:"channels"`

	// MentionRoles maps severity levels to mention handles. A severity with
	// no configured mentions sends no mention line.
	MentionRoles map[string][]string `mapstructure:"mention_roles"`
}

// EmailConfig configures the optional SMTP notification channel
type EmailConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Host       string   `mapstructure:"host"`
	Port       int      `mapstructure:"port"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	From       string   `mapstructure:"from"`
	Recipients []string `mapstructure:"recipients"`
}

// MonitoringConfig configures monitor registration and check cadence
type MonitoringConfig struct {
	// Intervals maps a service identifier to its check interval in seconds.
	// At least one entry is required; each must be >= 1.
	Intervals map[string]int `mapstructure:"intervals"`

	// CheckTimeout is the per-check timeout in seconds. Default 60.
	CheckTimeout int `mapstructure:"check_timeout"`

	// TickInterval is the scheduler tick cadence in seconds. Default 1.
	TickInterval int `mapstructure:"tick_interval"`

	// Endpoints maps a service identifier to an HTTP health probe URL.
	// Every entry must have a matching interval.
	Endpoints map[string]string `mapstructure:"endpoints"`

	System SystemMonitorConfig `mapstructure:"system"`
}

// SystemMonitorConfig configures the built-in host resources monitor
type SystemMonitorConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	CPUThreshold    float64 `mapstructure:"cpu_threshold"`
	MemoryThreshold float64 `mapstructure:"memory_threshold"`
}

// BusConfig configures the optional NATS accepted-alert mirror
type BusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// ReportsConfig configures periodic summary reports
type ReportsConfig struct {
	// DailySummary is a cron expression for the summary job; empty disables it.
	DailySummary string `mapstructure:"daily_summary"`
}

// Load reads the configuration file at path and returns the validated
// configuration. Validation problems are aggregated into a single
// *ConfigError rather than failing on first access.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("app.name", "watchtower")
	v.SetDefault("log.level", "info")
	v.SetDefault("monitoring.check_timeout", 60)
	v.SetDefault("monitoring.tick_interval", 1)
	v.SetDefault("monitoring.system.cpu_threshold", 90.0)
	v.SetDefault("monitoring.system.memory_threshold", 90.0)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field eagerly and returns a *ConfigError listing
// all problems, or nil when the configuration is usable.
func (c *Config) Validate() error {
	var problems []string

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level: unknown level %q", c.Log.Level))
	}

	if c.Alerting.SuppressionPeriod <= 0 {
		problems = append(problems, "alerting.suppression_period: must be a positive number of seconds")
	}
	if c.Alerting.MaxAlertsPerHour < 0 {
		problems = append(problems, "alerting.max_alerts_per_hour: must not be negative")
	}

	if c.Slack.WebhookURL == "" {
		problems = append(problems, "slack.webhook_url: required")
	}
	for _, sev := range model.Severities {
		if c.Slack.Channels[string(sev)] == "" {
			problems = append(problems, fmt.Sprintf("slack.channels.%s: required", sev))
		}
	}
	for key := range c.Slack.Channels {
		if _, err := model.ParseSeverity(key); err != nil {
			problems = append(problems, fmt.Sprintf("slack.channels.%s: unknown severity", key))
		}
	}
	for key := range c.Slack.MentionRoles {
		if _, err := model.ParseSeverity(key); err != nil {
			problems = append(problems, fmt.Sprintf("slack.mention_roles.%s: unknown severity", key))
		}
	}

	if c.Email.Enabled {
		if c.Email.Host == "" {
			problems = append(problems, "email.host: required when email is enabled")
		}
		if c.Email.Port <= 0 {
			problems = append(problems, "email.port: required when email is enabled")
		}
		if c.Email.From == "" {
			problems = append(problems, "email.from: required when email is enabled")
		}
		if len(c.Email.Recipients) == 0 {
			problems = append(problems, "email.recipients: required when email is enabled")
		}
	}

	if len(c.Monitoring.Intervals) == 0 {
		problems = append(problems, "monitoring.intervals: at least one monitor interval is required")
	}
	for service, interval := range c.Monitoring.Intervals {
		if interval < 1 {
			problems = append(problems, fmt.Sprintf("monitoring.intervals.%s: must be >= 1 second", service))
		}
	}
	for service := range c.Monitoring.Endpoints {
		if _, ok := c.Monitoring.Intervals[service]; !ok {
			problems = append(problems, fmt.Sprintf("monitoring.endpoints.%s: no matching monitoring.intervals entry", service))
		}
	}
	if c.Monitoring.System.Enabled {
		if _, ok := c.Monitoring.Intervals["system"]; !ok {
			problems = append(problems, "monitoring.intervals.system: required when the system monitor is enabled")
		}
	}
	if c.Monitoring.CheckTimeout < 1 {
		problems = append(problems, "monitoring.check_timeout: must be >= 1 second")
	}
	if c.Monitoring.TickInterval < 1 {
		problems = append(problems, "monitoring.tick_interval: must be >= 1 second")
	}

	if c.Bus.Enabled && c.Bus.URL == "" {
		problems = append(problems, "bus.url: required when the bus is enabled")
	}

	if c.Reports.DailySummary != "" {
		if _, err := cron.ParseStandard(c.Reports.DailySummary); err != nil {
			problems = append(problems, fmt.Sprintf("reports.daily_summary: invalid cron expression: %v", err))
		}
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// SuppressionPeriod returns the dedup window as a duration
func (c *Config) SuppressionPeriod() time.Duration {
	return time.Duration(c.Alerting.SuppressionPeriod) * time.Second
}

// CheckTimeout returns the per-check timeout as a duration
func (c *Config) CheckTimeout() time.Duration {
	return time.Duration(c.Monitoring.CheckTimeout) * time.Second
}

// TickInterval returns the scheduler cadence as a duration
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Monitoring.TickInterval) * time.Second
}

// Interval returns the configured check interval for a service
func (c *Config) Interval(service string) time.Duration {
	return time.Duration(c.Monitoring.Intervals[service]) * time.Second
}
