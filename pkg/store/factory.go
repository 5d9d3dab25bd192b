package store

import (
	"fmt"
	"strings"

	"github.com/nimburion/repokit/pkg/config"
	"github.com/nimburion/repokit/pkg/observability/logger"
	"github.com/nimburion/repokit/pkg/store/mongodb"
	"github.com/nimburion/repokit/pkg/store/mysql"
	"github.com/nimburion/repokit/pkg/store/postgres"
	"github.com/nimburion/repokit/pkg/store/sqlite"
)

// Cosa fa: seleziona e inizializza lo storage adapter in base alla config.
// Cosa NON fa: non gestisce fallback tra provider diversi.
// Esempio minimo: adp, err := store.NewStorageAdapter(cfg.Database, log)
func NewStorageAdapter(cfg config.DatabaseConfig, log logger.Logger) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case config.DatabaseTypePostgres:
		a, err := postgres.NewPostgreSQLAdapter(postgres.Config{
			URL:                cfg.URL,
			MaxOpenConns:       cfg.MaxOpenConns,
			MaxIdleConns:       cfg.MaxIdleConns,
			ConnMaxLifetime:    cfg.ConnMaxLifetime,
			ConnMaxIdleTime:    cfg.ConnMaxIdleTime,
			ConnectTimeout:     cfg.ConnectTimeout,
			QueryTimeout:       cfg.QueryTimeout,
			SlowQueryThreshold: cfg.SlowQueryThreshold,
		}, log)
		if err != nil {
			return nil, err
		}
		return a, nil
	case config.DatabaseTypeMySQL:
		a, err := mysql.NewMySQLAdapter(mysql.Config{
			URL:                cfg.URL,
			MaxOpenConns:       cfg.MaxOpenConns,
			MaxIdleConns:       cfg.MaxIdleConns,
			ConnMaxLifetime:    cfg.ConnMaxLifetime,
			ConnMaxIdleTime:    cfg.ConnMaxIdleTime,
			ConnectTimeout:     cfg.ConnectTimeout,
			QueryTimeout:       cfg.QueryTimeout,
			SlowQueryThreshold: cfg.SlowQueryThreshold,
			ServerVersion:      cfg.ServerVersion,
		}, log)
		if err != nil {
			return nil, err
		}
		return a, nil
	case config.DatabaseTypeSQLite:
		a, err := sqlite.NewAdapter(sqlite.Config{
			Path:               cfg.Path,
			MaxOpenConns:       cfg.MaxOpenConns,
			QueryTimeout:       cfg.QueryTimeout,
			SlowQueryThreshold: cfg.SlowQueryThreshold,
		}, log)
		if err != nil {
			return nil, err
		}
		return a, nil
	case config.DatabaseTypeMongoDB:
		a, err := mongodb.NewAdapter(MongoDBConfig(cfg), log)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unsupported database.type %q (supported: postgres, mysql, sqlite, mongodb)", cfg.Type)
	}
}

// MongoDBConfig maps the database section onto the MongoDB adapter. The pool
// size follows max_open_conns and the idle floor follows max_idle_conns.
func MongoDBConfig(cfg config.DatabaseConfig) mongodb.Config {
	return mongodb.Config{
		URL:              cfg.URL,
		Database:         cfg.DatabaseName,
		MaxPoolSize:      nonNegative(cfg.MaxOpenConns),
		MinPoolSize:      nonNegative(cfg.MaxIdleConns),
		MaxConnIdleTime:  cfg.ConnMaxIdleTime,
		ConnectTimeout:   cfg.ConnectTimeout,
		OperationTimeout: cfg.QueryTimeout,
	}
}

func nonNegative(n int) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}
