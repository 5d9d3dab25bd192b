package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nimburion/repokit/pkg/query"
	"github.com/nimburion/repokit/pkg/result"
)

func newMockedGadgetRepo(t *testing.T) (*GormRepository[gadget, *gadget], sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open gorm: %v", err)
	}
	return newGadgetRepo(t, db), mock
}

func TestGormRepository_InvalidInputNeverReachesStore(t *testing.T) {
	repo, mock := newMockedGadgetRepo(t)
	ctx := context.Background()

	res := repo.AddItem(ctx, nil)
	if _, ok, msg := res.Tuple(); ok || msg != MsgItemNull {
		t.Fatalf("AddItem(nil) = (%v, %q)", ok, msg)
	}
	repo.AddManyItems(ctx, nil)
	repo.GetByID(ctx, "")
	repo.UpdateItem(ctx, uuid.NewString(), nil)
	repo.SoftRemoveItem(ctx, uuid.Nil.String())
	repo.RemoveItem(ctx, " ")
	repo.GetPaging(ctx, query.SearchSpec{"bad field": "x"}, query.PageRequest{})
	repo.GetByFilter(ctx, query.Eq("colour", "red"))
	if _, err := repo.Count(ctx, nil, -1); err == nil {
		t.Fatal("expected Count error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected store interaction: %v", err)
	}
}

func TestGormRepository_QueryErrorsAreFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(mock sqlmock.Sqlmock)
		run   func(repo *GormRepository[gadget, *gadget]) result.Kind
		want  result.Kind
	}{
		{
			name: "get by id",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT \* FROM "gadgets"`).WillReturnError(errors.New("connection reset"))
			},
			run: func(repo *GormRepository[gadget, *gadget]) result.Kind {
				return repo.GetByID(context.Background(), uuid.NewString()).Kind
			},
			want: result.KindFailed,
		},
		{
			name: "get by id no rows",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT \* FROM "gadgets"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			run: func(repo *GormRepository[gadget, *gadget]) result.Kind {
				return repo.GetByID(context.Background(), uuid.NewString()).Kind
			},
			want: result.KindNotFound,
		},
		{
			name: "paging",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT \* FROM "gadgets"`).WillReturnError(errors.New("timeout"))
			},
			run: func(repo *GormRepository[gadget, *gadget]) result.Kind {
				return repo.GetPaging(context.Background(), query.SearchSpec{"status": "a"}, query.PageRequest{}).Kind
			},
			want: result.KindFailed,
		},
		{
			name: "soft remove matched nothing",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE "gadgets" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
			},
			run: func(repo *GormRepository[gadget, *gadget]) result.Kind {
				return repo.SoftRemoveItem(context.Background(), uuid.NewString()).Kind
			},
			want: result.KindNotFound,
		},
		{
			name: "soft remove error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE "gadgets" SET`).WillReturnError(errors.New("deadlock"))
			},
			run: func(repo *GormRepository[gadget, *gadget]) result.Kind {
				return repo.SoftRemoveItem(context.Background(), uuid.NewString()).Kind
			},
			want: result.KindFailed,
		},
		{
			name: "remove",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`DELETE FROM "gadgets"`).WillReturnResult(sqlmock.NewResult(0, 1))
			},
			run: func(repo *GormRepository[gadget, *gadget]) result.Kind {
				return repo.RemoveItem(context.Background(), uuid.NewString()).Kind
			},
			want: result.KindOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockedGadgetRepo(t)
			tt.setup(mock)

			if got := tt.run(repo); got != tt.want {
				t.Errorf("kind = %s, want %s", got, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestGormRepository_CountErrorWrapsInvalidArgument(t *testing.T) {
	repo, mock := newMockedGadgetRepo(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "gadgets"`).WillReturnError(errors.New("broken pipe"))

	_, err := repo.Count(context.Background(), query.SearchSpec{"status": "a"}, 5)
	if !errors.Is(err, result.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unfulfilled expectations: %v", err)
	}
}

func TestGormRepository_PagingOrdersByIDLast(t *testing.T) {
	tests := []struct {
		name  string
		sort  string
		order string
	}{
		{name: "default", sort: "", order: `ORDER BY "gadgets"."id" LIMIT`},
		{name: "ascending", sort: "status", order: `ORDER BY "gadgets"."status","gadgets"."id" LIMIT`},
		{name: "descending", sort: "!rank", order: `ORDER BY "gadgets"."rank" DESC,"gadgets"."id" LIMIT`},
		{name: "by id", sort: "ID", order: `ORDER BY "gadgets"."id" LIMIT`},
		{name: "by id descending", sort: "!id", order: `ORDER BY "gadgets"."id" DESC LIMIT`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockedGadgetRepo(t)
			mock.ExpectQuery(regexp.QuoteMeta(tt.order)).WillReturnRows(sqlmock.NewRows([]string{"id"}))

			res := repo.GetPaging(context.Background(), nil, query.PageRequest{Size: 2, Index: 2, Sort: tt.sort})
			if !res.Succeeded() {
				t.Fatalf("GetPaging() = %s %q", res.Kind, res.Message)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestGormRepository_UnmatchableCriterionNeverReachesStore(t *testing.T) {
	repo, mock := newMockedGadgetRepo(t)
	ctx := context.Background()

	if res := repo.GetPaging(ctx, query.SearchSpec{"rank": "abc"}, query.PageRequest{}); res.Kind != result.KindInvalid {
		t.Fatalf("GetPaging() = %s %q", res.Kind, res.Message)
	}
	if res := repo.GetByFilter(ctx, query.Eq("is_deleted", int64(0))); res.Kind != result.KindInvalid {
		t.Fatalf("GetByFilter() = %s %q", res.Kind, res.Message)
	}
	if _, err := repo.Count(ctx, query.SearchSpec{"rank": "!abc"}, 5); !errors.Is(err, query.ErrInvalidField) {
		t.Fatalf("Count() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected store interaction: %v", err)
	}
}
