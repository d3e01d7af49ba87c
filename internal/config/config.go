package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingToken is returned by Validate when no bot token is configured.
	ErrMissingToken = errors.New("telegram token not configured (set TELEGRAM_TOKEN)")
	// ErrMissingDSN is returned by Validate when no database DSN is configured.
	ErrMissingDSN = errors.New("database dsn not configured (set DATABASE_URL)")
)

// Config holds all cargobot configuration.
type Config struct {
	// Company name printed on reports and in the welcome text.
	Company string `yaml:"company"`

	// Telegram user ids allowed to run admin commands.
	Admins []int64 `yaml:"admins"`

	// IANA zone for dates shown in chat and reports. Empty uses TZ.
	Timezone string `yaml:"timezone"`

	Telegram      TelegramConfig      `yaml:"telegram"`
	Database      DatabaseConfig      `yaml:"database"`
	Queries       QueriesConfig       `yaml:"queries"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Broadcast     BroadcastConfig     `yaml:"broadcast"`
	Reports       ReportsConfig       `yaml:"reports"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// QueriesConfig sets the time windows used by read commands.
type QueriesConfig struct {
	Lookback       string `yaml:"lookback"`        // /orders, /completed, /status, /missing_photos, /report
	UpcomingWindow string `yaml:"upcoming_window"` // /upcoming
	StatsWindow    string `yaml:"stats_window"`    // /stats weekly activity
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Company: "Margiana Logistic Services",

		Telegram: TelegramConfig{
			PollTimeout: "60s",
			Workers:     4,
		},

		Database: DatabaseConfig{
			Driver:       "postgres",
			AutoMigrate:  false,
			QueryTimeout: "15s",
		},

		Queries: QueriesConfig{
			Lookback:       "720h",
			UpcomingWindow: "168h",
			StatsWindow:    "168h",
		},

		Notifications: NotificationsConfig{
			Enabled:     true,
			FirstDelay:  "10s",
			Interval:    "30s",
			BatchSize:   10,
			MaxAttempts: 5,
		},

		Broadcast: BroadcastConfig{
			RatePerSecond: 25,
			Concurrency:   4,
		},

		Reports: ReportsConfig{
			Dir:  "reports",
			Keep: false,
		},

		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9090",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; env overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if token := os.Getenv("TELEGRAM_TOKEN"); token != "" {
		c.Telegram.Token = token
	}

	// DATABASE_URL wins over the Supabase-specific name.
	if dsn := os.Getenv("SUPABASE_DB_URL"); dsn != "" {
		c.Database.DSN = dsn
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}

	if raw := os.Getenv("ADMIN_IDS"); raw != "" {
		ids, err := ParseAdminIDs(raw)
		if err != nil {
			return fmt.Errorf("ADMIN_IDS: %w", err)
		}
		c.Admins = ids
	}

	if dir := os.Getenv("REPORTS_DIR"); dir != "" {
		c.Reports.Dir = dir
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		c.Metrics.Listen = addr
		c.Metrics.Enabled = true
	}

	return nil
}

// ParseAdminIDs accepts a JSON array ("[1, 2]") or a comma separated list ("1,2").
func ParseAdminIDs(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if strings.HasPrefix(raw, "[") {
		var ids []int64
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, fmt.Errorf("invalid admin id list: %w", err)
		}
		return ids, nil
	}

	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return ErrMissingToken
	}
	if err := c.ValidateStorage(); err != nil {
		return err
	}
	if c.Telegram.Workers < 1 {
		return fmt.Errorf("telegram.workers must be >= 1")
	}
	if c.Notifications.BatchSize < 1 {
		return fmt.Errorf("notifications.batch_size must be >= 1")
	}
	if c.Notifications.MaxAttempts < 1 {
		return fmt.Errorf("notifications.max_attempts must be >= 1")
	}
	if err := c.validateDurations(); err != nil {
		return err
	}
	if c.Broadcast.Concurrency < 1 {
		return fmt.Errorf("broadcast.concurrency must be >= 1")
	}
	if c.Reports.Dir == "" {
		return fmt.Errorf("reports.dir must be set")
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	return nil
}

// ValidateStorage checks only what commands that touch the database need.
func (c *Config) ValidateStorage() error {
	if c.Database.DSN == "" {
		return ErrMissingDSN
	}
	valid := false
	for _, d := range ValidDrivers {
		if c.Database.Driver == d {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid database driver: %s (valid: %v)", c.Database.Driver, ValidDrivers)
	}
	return nil
}

// GetLookback returns the window for the order listing commands.
func (c *Config) GetLookback() time.Duration {
	return parseDuration(c.Queries.Lookback, 30*24*time.Hour)
}

// GetUpcomingWindow returns how far ahead /upcoming looks.
func (c *Config) GetUpcomingWindow() time.Duration {
	return parseDuration(c.Queries.UpcomingWindow, 7*24*time.Hour)
}

// GetStatsWindow returns the window for weekly activity in /stats.
func (c *Config) GetStatsWindow() time.Duration {
	return parseDuration(c.Queries.StatsWindow, 7*24*time.Hour)
}

// GetLocation returns the zone for user-visible dates: Timezone when it
// loads, otherwise the process zone (TZ).
func (c *Config) GetLocation() *time.Location {
	if c.Timezone != "" {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			return loc
		}
	}
	return time.Local
}

// validateDurations rejects duration strings that are set but unparsable.
func (c *Config) validateDurations() error {
	fields := map[string]string{
		"telegram.poll_timeout":     c.Telegram.PollTimeout,
		"database.query_timeout":    c.Database.QueryTimeout,
		"queries.lookback":          c.Queries.Lookback,
		"queries.upcoming_window":   c.Queries.UpcomingWindow,
		"queries.stats_window":      c.Queries.StatsWindow,
		"notifications.first_delay": c.Notifications.FirstDelay,
		"notifications.interval":    c.Notifications.Interval,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
