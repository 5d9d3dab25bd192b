// Package sqlite provides a pure-Go SQLite database for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	glebarez "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/nimburion/repokit/pkg/observability/logger"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Config holds SQLite configuration.
type Config struct {
	Path               string
	MaxOpenConns       int
	QueryTimeout       time.Duration
	SlowQueryThreshold time.Duration
}

// Adapter owns a SQLite file or in-memory database.
type Adapter struct {
	db     *sql.DB
	gorm   *gorm.DB
	logger logger.Logger
	config Config
}

// NewAdapter opens the database at cfg.Path, creating parent directories.
// In-memory databases are pinned to one connection since every connection
// would otherwise see its own empty database.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	memory := isMemory(cfg.Path)
	if !memory {
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory %q: %w", dir, err)
			}
		}
	}

	gdb, err := gorm.Open(glebarez.Open(cfg.Path), &gorm.Config{
		Logger: logger.NewGormLogger(log, cfg.SlowQueryThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	switch {
	case memory:
		db.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	log.Info("SQLite database opened", "path", cfg.Path, "in_memory", memory)
	return &Adapter{db: db, gorm: gdb, logger: log, config: cfg}, nil
}

func isMemory(path string) bool {
	return path == MemoryPath || strings.Contains(path, "mode=memory") || strings.HasPrefix(path, "file::memory:")
}

// DB returns the underlying connection pool.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Gorm returns the GORM session.
func (a *Adapter) Gorm() *gorm.DB {
	return a.gorm
}

// Ping verifies the database is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// HealthCheck runs a trivial query within the query timeout.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && a.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.QueryTimeout)
		defer cancel()
	}
	var one int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		a.logger.Error("SQLite health check failed", "error", err)
		return fmt.Errorf("sqlite health check failed: %w", err)
	}
	return nil
}

// Close closes the database. In-memory contents are lost.
func (a *Adapter) Close() error {
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("failed to close sqlite database: %w", err)
	}
	a.logger.Info("SQLite database closed", "path", a.config.Path)
	return nil
}
