package config

import "time"

// TelegramConfig configures the Bot API transport.
type TelegramConfig struct {
	Token       string `yaml:"token"`
	APIEndpoint string `yaml:"api_endpoint"` // empty = api.telegram.org
	PollTimeout string `yaml:"poll_timeout"` // long-poll timeout
	Workers     int    `yaml:"workers"`      // concurrent update handlers
	Debug       bool   `yaml:"debug"`        // dump raw API traffic
}

// GetPollTimeout returns the long-poll timeout as a duration.
func (c *Config) GetPollTimeout() time.Duration {
	return parseDuration(c.Telegram.PollTimeout, 60*time.Second)
}
