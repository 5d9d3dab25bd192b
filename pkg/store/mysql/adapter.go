// Package mysql provides the MySQL connection pool and the GORM session the
// relational repository runs on.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/nimburion/repokit/pkg/observability/logger"
)

// MySQLAdapter provides MySQL connectivity with pooled connections.
type MySQLAdapter struct {
	db     *sql.DB
	gorm   *gorm.DB
	logger logger.Logger
	config Config
}

// Config holds MySQL configuration. ServerVersion skips the version probe
// GORM otherwise runs when the session opens.
type Config struct {
	URL                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	ConnectTimeout     time.Duration
	QueryTimeout       time.Duration
	SlowQueryThreshold time.Duration
	ServerVersion      string
}

// Cosa fa: inizializza un adapter MySQL con validazione, ping iniziale e sessione GORM.
// Cosa NON fa: non esegue migrazioni schema né provisioning database.
// Esempio minimo: adapter, err := mysql.NewMySQLAdapter(cfg, log)
func NewMySQLAdapter(cfg Config, log logger.Logger) (*MySQLAdapter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	dsn, err := PrepareDSN(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping mysql database: %w", err)
	}

	adapter, err := NewMySQLAdapterWithDB(db, cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info("MySQL connection established",
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
		"conn_max_lifetime", cfg.ConnMaxLifetime,
		"conn_max_idle_time", cfg.ConnMaxIdleTime,
	)
	return adapter, nil
}

// NewMySQLAdapterWithDB wraps an already opened pool. The pool must have been
// opened with a DSN from PrepareDSN.
func NewMySQLAdapterWithDB(db *sql.DB, cfg Config, log logger.Logger) (*MySQLAdapter, error) {
	if db == nil {
		return nil, fmt.Errorf("sql db is nil")
	}
	if log == nil {
		log = logger.NewNop()
	}
	gdb, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      db,
		ServerVersion:             cfg.ServerVersion,
		SkipInitializeWithVersion: cfg.ServerVersion != "",
	}), &gorm.Config{
		Logger: logger.NewGormLogger(log, cfg.SlowQueryThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm session: %w", err)
	}
	return &MySQLAdapter{db: db, gorm: gdb, logger: log, config: cfg}, nil
}

// PrepareDSN enables parseTime so DATETIME columns scan into time.Time, and
// clientFoundRows so UPDATE reports matched rather than changed rows.
func PrepareDSN(raw string) (string, error) {
	dsnCfg, err := mysqldriver.ParseDSN(raw)
	if err != nil {
		return "", fmt.Errorf("invalid mysql DSN: %w", err)
	}
	dsnCfg.ParseTime = true
	dsnCfg.ClientFoundRows = true
	return dsnCfg.FormatDSN(), nil
}

// DB returns the underlying connection pool.
func (a *MySQLAdapter) DB() *sql.DB {
	return a.db
}

// Gorm returns the GORM session sharing the adapter's pool.
func (a *MySQLAdapter) Gorm() *gorm.DB {
	return a.gorm
}

// Ping performs a basic connectivity check to verify the service is reachable.
func (a *MySQLAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// HealthCheck verifies the component is operational and can perform its intended function.
func (a *MySQLAdapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := a.withQueryTimeout(ctx)
	defer cancel()
	if err := a.db.PingContext(hcCtx); err != nil {
		a.logger.Error("MySQL health check failed", "error", err)
		return fmt.Errorf("mysql health check failed: %w", err)
	}
	return nil
}

// Close releases all resources held by this instance. Should be called when the instance is no longer needed.
func (a *MySQLAdapter) Close() error {
	a.logger.Info("closing MySQL connection")
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close MySQL connection", "error", err)
		return fmt.Errorf("failed to close mysql connection: %w", err)
	}
	a.logger.Info("MySQL connection closed successfully")
	return nil
}

func (a *MySQLAdapter) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	timeout := a.config.QueryTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
