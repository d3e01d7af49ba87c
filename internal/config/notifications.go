package config

import "time"

// NotificationsConfig configures the queue dispatcher.
type NotificationsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	FirstDelay  string `yaml:"first_delay"`
	Interval    string `yaml:"interval"`
	BatchSize   int    `yaml:"batch_size"`
	MaxAttempts int    `yaml:"max_attempts"` // failed sends before a row is parked as failed
}

// BroadcastConfig configures admin broadcasts.
type BroadcastConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second"` // Bot API allows ~30 msg/s
	Concurrency   int     `yaml:"concurrency"`
}

// GetNotifyFirstDelay returns the delay before the first queue drain.
func (c *Config) GetNotifyFirstDelay() time.Duration {
	d, err := time.ParseDuration(c.Notifications.FirstDelay)
	if err != nil || d < 0 {
		return 10 * time.Second
	}
	return d
}

// GetNotifyInterval returns the queue drain interval.
func (c *Config) GetNotifyInterval() time.Duration {
	return parseDuration(c.Notifications.Interval, 30*time.Second)
}
