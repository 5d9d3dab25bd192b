package config

import "time"

// Database type constants
const (
	// DatabaseTypePostgres represents PostgreSQL database
	DatabaseTypePostgres = "postgres"
	// DatabaseTypeMySQL represents MySQL database
	DatabaseTypeMySQL = "mysql"
	// DatabaseTypeSQLite represents an embedded SQLite database
	DatabaseTypeSQLite = "sqlite"
	// DatabaseTypeMongoDB represents MongoDB database
	DatabaseTypeMongoDB = "mongodb"
)

// Config is the root configuration structure for repository tooling.
type Config struct {
	Service       ServiceConfig       `mapstructure:"service"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Repository    RepositoryConfig    `mapstructure:"repository"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig configures the backing store.
type DatabaseConfig struct {
	Type               string        `mapstructure:"type"` // postgres, mysql, sqlite, mongodb
	URL                string        `mapstructure:"url"`
	Path               string        `mapstructure:"path"` // sqlite only
	DatabaseName       string        `mapstructure:"database_name"`
	ServerVersion      string        `mapstructure:"server_version"` // mysql only, skips the version probe
	MaxOpenConns       int           `mapstructure:"max_open_conns"`
	MaxIdleConns       int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime    time.Duration `mapstructure:"conn_max_idle_time"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout       time.Duration `mapstructure:"query_timeout"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
}

// RepositoryConfig configures repository callers.
type RepositoryConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
}

// ObservabilityConfig configures logging and metrics.
type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"` // json, text
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "repokit",
			Environment: "production",
		},
		Database: DatabaseConfig{
			MaxOpenConns:       25,
			MaxIdleConns:       5,
			ConnMaxLifetime:    5 * time.Minute,
			ConnMaxIdleTime:    5 * time.Minute,
			ConnectTimeout:     5 * time.Second,
			QueryTimeout:       10 * time.Second,
			SlowQueryThreshold: 200 * time.Millisecond,
		},
		Repository: RepositoryConfig{
			DefaultPageSize: 5,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}
