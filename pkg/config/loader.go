package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/nimburion/repokit/pkg/observability/logger"
)

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile         string
	envPrefix          string
	serviceNameDefault string
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "REPOKIT")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// WithServiceNameDefault sets the default service.name used when no config/env override is provided.
func (l *ViperLoader) WithServiceNameDefault(serviceName string) *ViperLoader {
	if l == nil {
		return l
	}
	l.serviceNameDefault = strings.TrimSpace(serviceName)
	return l
}

// Load loads configuration with precedence: ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	v, err := l.readConfig()
	if err != nil {
		return nil, err
	}
	return l.finish(v)
}

// readConfig seeds a viper instance with the defaults and the config file.
func (l *ViperLoader) readConfig() (*viper.Viper, error) {
	v := viper.New()
	l.setDefaults(v, DefaultConfig())
	if l.configFile == "" {
		return v, nil
	}
	v.SetConfigFile(l.configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
	}
	return v, nil
}

// finish applies environment overrides, then decodes and validates.
func (l *ViperLoader) finish(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(l.envPrefix)
	l.bindLegacyEnvVars()
	l.bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	// Database
	v.BindEnv("database.type", l.prefixedEnv("DB_TYPE"))
	v.BindEnv("database.url", l.prefixedEnv("DB_URL"))
	v.BindEnv("database.path", l.prefixedEnv("DB_PATH"))
	v.BindEnv("database.database_name", l.prefixedEnv("DB_DATABASE_NAME"))
	v.BindEnv("database.server_version", l.prefixedEnv("DB_SERVER_VERSION"))
	v.BindEnv("database.max_open_conns", l.prefixedEnv("DB_MAX_OPEN_CONNS"))
	v.BindEnv("database.max_idle_conns", l.prefixedEnv("DB_MAX_IDLE_CONNS"))
	v.BindEnv("database.conn_max_lifetime", l.prefixedEnv("DB_CONN_MAX_LIFETIME"))
	v.BindEnv("database.conn_max_idle_time", l.prefixedEnv("DB_CONN_MAX_IDLE_TIME"))
	v.BindEnv("database.connect_timeout", l.prefixedEnv("DB_CONNECT_TIMEOUT"))
	v.BindEnv("database.query_timeout", l.prefixedEnv("DB_QUERY_TIMEOUT"))
	v.BindEnv("database.slow_query_threshold", l.prefixedEnv("DB_SLOW_QUERY_THRESHOLD"))

	v.BindEnv("repository.default_page_size", l.prefixedEnv("REPOSITORY_DEFAULT_PAGE_SIZE"))

	// Observability
	v.BindEnv("observability.log_level", l.prefixedEnv("OBSERVABILITY_LOG_LEVEL"), l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("observability.log_format", l.prefixedEnv("OBSERVABILITY_LOG_FORMAT"), l.prefixedEnv("LOG_FORMAT"))
	v.BindEnv("observability.metrics_enabled", l.prefixedEnv("OBSERVABILITY_METRICS_ENABLED"))
}

// bindLegacyEnvVars maps DATABASE_* names to the abbreviated DB_* names when the latter are absent.
func (l *ViperLoader) bindLegacyEnvVars() {
	for _, suffix := range []string{
		"TYPE", "URL", "PATH", "DATABASE_NAME", "MAX_OPEN_CONNS", "MAX_IDLE_CONNS",
		"CONN_MAX_LIFETIME", "QUERY_TIMEOUT", "CONNECT_TIMEOUT",
	} {
		abbrevEnv := l.prefixedEnv("DB_" + suffix)
		if _, hasAbbrev := os.LookupEnv(abbrevEnv); hasAbbrev {
			continue
		}
		if legacyValue, hasLegacy := os.LookupEnv(l.prefixedEnv("DATABASE_" + suffix)); hasLegacy {
			_ = os.Setenv(abbrevEnv, legacyValue)
		}
	}
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	return fmt.Sprintf("%s_%s", resolveEnvPrefix(l.envPrefix), suffix)
}

// resolveEnvPrefix upper-cases prefix, falling back to REPOKIT.
func resolveEnvPrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "REPOKIT"
	}
	return strings.ToUpper(prefix)
}

func (l *ViperLoader) defaultServiceName(fallback string) string {
	if l != nil {
		if configured := strings.TrimSpace(l.serviceNameDefault); configured != "" {
			return configured
		}
	}
	return strings.TrimSpace(fallback)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", l.defaultServiceName(cfg.Service.Name))
	v.SetDefault("service.environment", cfg.Service.Environment)

	v.SetDefault("database.type", cfg.Database.Type)
	v.SetDefault("database.url", cfg.Database.URL)
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.database_name", cfg.Database.DatabaseName)
	v.SetDefault("database.server_version", cfg.Database.ServerVersion)
	v.SetDefault("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", cfg.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", cfg.Database.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", cfg.Database.ConnMaxIdleTime)
	v.SetDefault("database.connect_timeout", cfg.Database.ConnectTimeout)
	v.SetDefault("database.query_timeout", cfg.Database.QueryTimeout)
	v.SetDefault("database.slow_query_threshold", cfg.Database.SlowQueryThreshold)

	v.SetDefault("repository.default_page_size", cfg.Repository.DefaultPageSize)

	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.metrics_enabled", cfg.Observability.MetricsEnabled)
}

// Validate normalizes the database type and log settings in place and
// reports every problem found, joined.
func (l *ViperLoader) Validate(cfg *Config) error {
	var errs []error

	cfg.Database.Type = strings.ToLower(strings.TrimSpace(cfg.Database.Type))
	if cfg.Database.Type != "" {
		validTypes := []string{DatabaseTypePostgres, DatabaseTypeMySQL, DatabaseTypeSQLite, DatabaseTypeMongoDB}
		if !contains(validTypes, cfg.Database.Type) {
			errs = append(errs, fmt.Errorf("invalid database.type: %s (must be one of: %v)", cfg.Database.Type, validTypes))
		}
		if cfg.Database.Type == DatabaseTypeSQLite {
			if cfg.Database.Path == "" {
				errs = append(errs, errors.New("database.path is required when database.type is sqlite"))
			}
		} else if cfg.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required when database.type is specified"))
		}
		if cfg.Database.Type == DatabaseTypeMongoDB && cfg.Database.DatabaseName == "" {
			errs = append(errs, errors.New("database.database_name is required when database.type is mongodb"))
		}
	}
	if cfg.Database.MaxOpenConns < 0 {
		errs = append(errs, errors.New("database.max_open_conns cannot be negative"))
	}
	if cfg.Database.MaxIdleConns < 0 {
		errs = append(errs, errors.New("database.max_idle_conns cannot be negative"))
	}
	if cfg.Database.QueryTimeout < 0 {
		errs = append(errs, errors.New("database.query_timeout cannot be negative"))
	}
	if cfg.Database.ConnectTimeout < 0 {
		errs = append(errs, errors.New("database.connect_timeout cannot be negative"))
	}

	if cfg.Repository.DefaultPageSize < 0 {
		errs = append(errs, errors.New("repository.default_page_size cannot be negative"))
	}

	if level, err := logger.ParseLogLevel(cfg.Observability.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid observability.log_level: %s (must be one of: debug, info, warn, error)", cfg.Observability.LogLevel))
	} else {
		cfg.Observability.LogLevel = string(level)
	}
	if format, err := logger.ParseLogFormat(cfg.Observability.LogFormat); err != nil {
		errs = append(errs, fmt.Errorf("invalid observability.log_format: %s (must be one of: json, text)", cfg.Observability.LogFormat))
	} else {
		cfg.Observability.LogFormat = string(format)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
