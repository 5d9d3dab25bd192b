package mysql

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/gorm"

	"github.com/nimburion/repokit/pkg/observability/logger"
)

type mockLogger struct{}

func (m *mockLogger) Debug(string, ...any)                      {}
func (m *mockLogger) Info(string, ...any)                       {}
func (m *mockLogger) Warn(string, ...any)                       {}
func (m *mockLogger) Error(string, ...any)                      {}
func (m *mockLogger) With(...any) logger.Logger                 { return m }
func (m *mockLogger) WithContext(context.Context) logger.Logger { return m }

func TestNewMySQLAdapter_Validation(t *testing.T) {
	if _, err := NewMySQLAdapter(Config{}, &mockLogger{}); err == nil {
		t.Fatal("expected error for empty URL")
	}
	if _, err := NewMySQLAdapter(Config{URL: "not-a-dsn"}, &mockLogger{}); err == nil {
		t.Fatal("expected error for malformed DSN")
	}
	if _, err := NewMySQLAdapterWithDB(nil, Config{}, nil); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestPrepareDSN(t *testing.T) {
	dsn, err := PrepareDSN("app:secret@tcp(db.internal:3306)/orders?charset=utf8mb4")
	if err != nil {
		t.Fatalf("PrepareDSN() error = %v", err)
	}
	for _, want := range []string{"clientFoundRows=true", "parseTime=true", "charset=utf8mb4", "tcp(db.internal:3306)/orders"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q does not contain %q", dsn, want)
		}
	}
}

func TestMySQLAdapter_Gorm(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	a, err := NewMySQLAdapterWithDB(db, Config{ServerVersion: "8.0.36"}, &mockLogger{})
	if err != nil {
		t.Fatalf("NewMySQLAdapterWithDB() error = %v", err)
	}
	if a.DB() != db || a.Gorm().Dialector.Name() != "mysql" {
		t.Fatalf("unexpected session: %s", a.Gorm().Dialector.Name())
	}

	mock.ExpectExec("UPDATE `gadgets` SET `status`=\\? WHERE `id` = \\?").
		WithArgs("b", "g1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	tx := a.Gorm().Session(&gorm.Session{SkipDefaultTransaction: true}).Table("gadgets").Where("`id` = ?", "g1").Update("status", "b")
	if tx.Error != nil || tx.RowsAffected != 1 {
		t.Fatalf("update = %d, %v", tx.RowsAffected, tx.Error)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sqlmock expectations: %v", err)
	}
}

func TestMySQLAdapter_HealthCheckAndClose(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	mock.ExpectPing()
	a, err := NewMySQLAdapterWithDB(db, Config{ServerVersion: "8.0.36", QueryTimeout: time.Second}, &mockLogger{})
	if err != nil {
		t.Fatalf("NewMySQLAdapterWithDB() error = %v", err)
	}

	mock.ExpectPing().WillReturnError(errors.New("broken pipe"))
	if err := a.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check failure")
	}

	mock.ExpectClose()
	if err := a.Close(); err != nil {
		t.Fatalf("close error: %v", err)
	}
	if err := a.Ping(context.Background()); err == nil {
		t.Fatal("expected error after close")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sqlmock expectations: %v", err)
	}
}

func TestWithQueryTimeout_UsesConfigWhenNoDeadline(t *testing.T) {
	a := &MySQLAdapter{config: Config{QueryTimeout: 2 * time.Second}}

	ctx, cancel := a.withQueryTimeout(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected deadline from query timeout")
	}
	if remaining := time.Until(deadline); remaining <= 0 || remaining > 2*time.Second {
		t.Fatalf("unexpected remaining timeout: %v", remaining)
	}
}

func TestWithQueryTimeout_PreservesCallerDeadline(t *testing.T) {
	a := &MySQLAdapter{config: Config{QueryTimeout: 2 * time.Second}}
	parentCtx, parentCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer parentCancel()

	ctx, cancel := a.withQueryTimeout(parentCtx)
	defer cancel()

	parentDeadline, _ := parentCtx.Deadline()
	gotDeadline, _ := ctx.Deadline()
	if !gotDeadline.Equal(parentDeadline) {
		t.Fatalf("expected caller deadline to be preserved, got %v want %v", gotDeadline, parentDeadline)
	}
}
