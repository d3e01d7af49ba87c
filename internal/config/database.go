package config

import "time"

// ValidDrivers lists the supported database drivers.
var ValidDrivers = []string{"postgres", "sqlite"}

// DatabaseConfig configures the order database.
// For Supabase use the project's Postgres connection string.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // postgres, sqlite
	DSN          string `yaml:"dsn"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
	QueryTimeout string `yaml:"query_timeout"`
}

// GetQueryTimeout returns the timeout for a single database call.
func (c *Config) GetQueryTimeout() time.Duration {
	return parseDuration(c.Database.QueryTimeout, 15*time.Second)
}
